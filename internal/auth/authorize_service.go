package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/indieauthify/indieauthify/internal/clientmeta"
	"github.com/indieauthify/indieauthify/internal/codec"
	"github.com/indieauthify/indieauthify/internal/relme"
	"github.com/indieauthify/indieauthify/params"
)

type ClientResolver interface {
	Resolve(ctx context.Context, clientID string) *clientmeta.ClientInfo
}

// AuthorizeService validates authorization requests and issues
// authorization codes once the user consents.
type AuthorizeService struct {
	resolver ClientResolver
	codec    *codec.Codec
	now      func() time.Time
}

func checkParams(req *AuthorizationRequest) error {
	var missing []string
	for _, param := range [][2]string{
		{"client_id", req.ClientID},
		{"redirect_uri", req.RedirectURI},
		{"response_type", req.ResponseType},
		{"state", req.State},
	} {
		if param[1] == "" {
			missing = append(missing, param[0])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingParameter, strings.Join(missing, ", "))
	}
	if len(req.ClientID) > params.MaxClientIDLength {
		return fmt.Errorf("%w: client_id", ErrParameterTooLong)
	}
	if len(req.Scope) > params.MaxScopeLength {
		return fmt.Errorf("%w: scope", ErrParameterTooLong)
	}
	if req.ResponseType != ResponseTypeCode && req.ResponseType != ResponseTypeID {
		return fmt.Errorf("%w: %s", ErrUnsupportedResponse, req.ResponseType)
	}
	if req.CodeChallenge != "" && req.CodeChallengeMethod != CodeChallengeMethodS256 {
		return fmt.Errorf("%w: %q", ErrUnsupportedChallenge, req.CodeChallengeMethod)
	}
	if req.CodeChallenge == "" && req.CodeChallengeMethod != "" {
		return fmt.Errorf("%w: code_challenge", ErrMissingParameter)
	}
	return nil
}

// Validate decides what the authorization endpoint does with req given the
// current login state.
func (s *AuthorizeService) Validate(ctx context.Context, req AuthorizationRequest, identity Identity) *Decision {
	decision := &Decision{Request: req}

	if !identity.LoggedIn {
		decision.Phase = PhaseAwaitingLogin
		return decision
	}
	if req.Me != "" && !relme.Equal(req.Me, identity.Me) {
		slog.Info("Authorization requested for another identity", "me", req.Me, "clientID", req.ClientID)
		decision.Phase = PhaseAwaitingLogin
		decision.ClearSession = true
		return decision
	}

	reject := func(err error) *Decision {
		decision.Phase = PhaseRejected
		decision.Err = invalidRequest(err)
		return decision
	}

	if err := checkParams(&req); err != nil {
		return reject(err)
	}

	client := s.resolver.Resolve(ctx, req.ClientID)
	decision.Client = client
	if client.Status == clientmeta.StatusUnavailable {
		return reject(fmt.Errorf("%w: %v", ErrClientUnavailable, client.Err))
	}

	if !clientmeta.SameOrigin(req.ClientID, req.RedirectURI) && client.Lookup(req.RedirectURI) != clientmeta.RedirectConfirmed {
		return reject(ErrRedirectNotAllowed)
	}

	decision.Phase = PhaseAwaitingConsent
	return decision
}

// Approve re-validates req and issues an authorization code for the scopes
// the user approved. A nil approved list grants every requested scope.
func (s *AuthorizeService) Approve(ctx context.Context, req AuthorizationRequest, identity Identity, approved []string) (*Grant, error) {
	decision := s.Validate(ctx, req, identity)
	switch decision.Phase {
	case PhaseAwaitingConsent:
	case PhaseRejected:
		return nil, decision.Err
	default:
		return nil, newError(ErrorAccessDenied, http.StatusUnauthorized, ErrNotLoggedIn)
	}

	scope := grantedScope(req, approved)
	claims := codec.Claims{
		Me:                  CanonicalMe(identity.Me),
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		Scope:               scope,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(s.now().Add(params.AuthorizationCodeTTL)),
		},
	}
	code, err := s.codec.Issue(claims)
	if err != nil {
		return nil, serverError(err)
	}

	redirectURL, err := url.Parse(req.RedirectURI)
	if err != nil {
		return nil, invalidRequest(err)
	}
	query := redirectURL.Query()
	query.Set("code", code)
	query.Set("state", req.State)
	redirectURL.RawQuery = query.Encode()

	slog.Info("Authorization approved", "clientID", req.ClientID, "scope", scope, "responseType", req.ResponseType)
	return &Grant{Code: code, RedirectURL: redirectURL.String(), Claims: claims}, nil
}

func grantedScope(req AuthorizationRequest, approved []string) string {
	if req.ResponseType == ResponseTypeID {
		return ""
	}
	requested := req.Scopes()
	if approved == nil {
		return strings.Join(requested, " ")
	}
	allowed := make(map[string]bool, len(approved))
	for _, scope := range approved {
		allowed[scope] = true
	}
	var granted []string
	for _, scope := range requested {
		if allowed[scope] {
			granted = append(granted, scope)
		}
	}
	return strings.Join(granted, " ")
}

func NewAuthorizeService(resolver ClientResolver, codec *codec.Codec) *AuthorizeService {
	return &AuthorizeService{
		resolver: resolver,
		codec:    codec,
		now:      time.Now,
	}
}
