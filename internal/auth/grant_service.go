package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/indieauthify/indieauthify/internal/codec"
	"github.com/indieauthify/indieauthify/internal/profile"
	"github.com/indieauthify/indieauthify/internal/store"
	"github.com/indieauthify/indieauthify/internal/tokenstore"
	"github.com/indieauthify/indieauthify/model"
	"github.com/indieauthify/indieauthify/params"
)

const spentCodePrefix = "code:"

type TokenStore interface {
	RecordIssued(ctx context.Context, token *model.IssuedToken) error
	RedeemTicket(ctx context.Context, ticket string, issue tokenstore.IssueFunc) (*model.IssuedToken, error)
	Revoke(ctx context.Context, token string) error
	IsRevoked(ctx context.Context, token string) (bool, error)
	IsActive(ctx context.Context, token string) (bool, error)
}

type ProfileLookup interface {
	Get(ctx context.Context, me string) (*profile.Profile, error)
}

type IssueNotifier interface {
	NotifyIssued(ctx context.Context, me, clientID string)
}

type IntrospectionResponse struct {
	Me       string           `json:"me"`
	ClientID string           `json:"client_id"`
	Scope    string           `json:"scope"`
	Profile  *profile.Profile `json:"profile,omitempty"`
}

// GrantService redeems authorization codes and tickets for access tokens,
// and answers introspection and revocation requests.
type GrantService struct {
	owner      string
	codec      *codec.Codec
	tokenStore TokenStore
	spentCodes store.Store
	resolver   ClientResolver
	profiles   ProfileLookup
	notifier   IssueNotifier
	now        func() time.Time
}

// redeemCode verifies an authorization code against the redeeming client.
// A code can be redeemed successfully once.
func (s *GrantService) redeemCode(ctx context.Context, code, clientID, redirectURI, verifier string) (*codec.Claims, error) {
	if code == "" || clientID == "" || redirectURI == "" {
		return nil, invalidRequest(fmt.Errorf("%w: code, client_id and redirect_uri are required", ErrMissingParameter))
	}

	claims, err := s.codec.Verify(code)
	if err != nil {
		return nil, invalidGrant(err)
	}
	if claims.ClientID != clientID {
		return nil, invalidGrant(ErrClientMismatch)
	}
	if claims.RedirectURI != redirectURI {
		return nil, invalidGrant(ErrRedirectMismatch)
	}
	now := s.now()
	if claims.Expired(now) {
		return nil, invalidGrant(ErrCodeExpired)
	}
	if claims.CodeChallenge != "" {
		if verifier == "" {
			return nil, invalidGrant(ErrVerifierMissing)
		}
		if !verifyCodeChallenge(claims.CodeChallenge, verifier) {
			return nil, invalidGrant(ErrVerifierMismatch)
		}
	}

	ttl := claims.Expires().Sub(now) + time.Minute
	fresh, err := s.spentCodes.SetNX(ctx, spentCodePrefix+claims.ID, ttl)
	if err != nil {
		return nil, serverError(err)
	}
	if !fresh {
		return nil, invalidGrant(ErrCodeReused)
	}
	return claims, nil
}

// issueError maps a failure to mint or store a token. A token that cannot be
// stored is the request's fault, anything else is the server's.
func issueError(err error) *Error {
	if errors.Is(err, ErrTokenTooLong) {
		return invalidRequest(err)
	}
	return serverError(err)
}

// releaseCode makes a redeemed code usable again after the token it paid for
// could not be stored.
func (s *GrantService) releaseCode(ctx context.Context, claims *codec.Claims) {
	if err := s.spentCodes.Del(ctx, spentCodePrefix+claims.ID); err != nil {
		slog.Error("Could not release authorization code", "clientID", claims.ClientID, "error", err)
	}
}

func (s *GrantService) appMetadataJSON(ctx context.Context, clientID string) string {
	client := s.resolver.Resolve(ctx, clientID)
	if client.App == nil {
		return "{}"
	}
	data, err := json.Marshal(client.App)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func (s *GrantService) mintToken(me, clientID, scope, resource, appJSON string) (*model.IssuedToken, error) {
	now := s.now()
	expiresAt := now.Add(params.AccessTokenTTL)
	token, err := s.codec.Issue(codec.Claims{
		Me:       me,
		ClientID: clientID,
		Scope:    scope,
		Resource: resource,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	if err != nil {
		return nil, err
	}
	if len(token) > params.MaxTokenLength {
		return nil, fmt.Errorf("%w: %d characters", ErrTokenTooLong, len(token))
	}
	return &model.IssuedToken{
		Token:           token,
		Me:              me,
		ClientID:        clientID,
		Scope:           scope,
		IssuedAt:        now,
		ExpiresAt:       expiresAt.Unix(),
		AppMetadataJSON: appJSON,
	}, nil
}

func tokenResponse(issued *model.IssuedToken) *TokenResponse {
	return &TokenResponse{
		AccessToken: issued.Token,
		TokenType:   params.TokenTypeBearer,
		Scope:       issued.Scope,
		Me:          CanonicalMe(issued.Me),
	}
}

// Exchange handles a token endpoint grant request.
func (s *GrantService) Exchange(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	switch req.GrantType {
	case GrantTypeAuthorizationCode:
		return s.exchangeCode(ctx, req)
	case GrantTypeTicket:
		return s.exchangeTicket(ctx, req)
	case "":
		return nil, invalidRequest(fmt.Errorf("%w: grant_type", ErrMissingParameter))
	default:
		return nil, newError(ErrorUnsupportedGrantType, http.StatusBadRequest, fmt.Errorf("grant_type %q is not supported", req.GrantType))
	}
}

func (s *GrantService) exchangeCode(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	claims, err := s.redeemCode(ctx, req.Code, req.ClientID, req.RedirectURI, req.CodeVerifier)
	if err != nil {
		return nil, err
	}
	if claims.Scope == "" {
		return nil, invalidGrant(errors.New("code was issued for authentication only"))
	}

	issued, err := s.mintToken(claims.Me, claims.ClientID, claims.Scope, params.ResourceAll, s.appMetadataJSON(ctx, claims.ClientID))
	if err == nil {
		err = s.tokenStore.RecordIssued(ctx, issued)
	}
	if err != nil {
		s.releaseCode(ctx, claims)
		return nil, issueError(err)
	}

	slog.Info("Access token issued", "clientID", issued.ClientID, "scope", issued.Scope)
	s.notifier.NotifyIssued(ctx, issued.Me, issued.ClientID)
	return tokenResponse(issued), nil
}

func (s *GrantService) exchangeTicket(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	ticket := req.TicketValue()
	if ticket == "" {
		return nil, invalidRequest(fmt.Errorf("%w: ticket", ErrMissingParameter))
	}
	clientID := req.ClientID
	appJSON := "{}"
	if clientID == "" {
		clientID = "ticket:" + ticket
	} else {
		appJSON = s.appMetadataJSON(ctx, clientID)
	}

	issued, err := s.tokenStore.RedeemTicket(ctx, ticket, func(t *model.Ticket) (*model.IssuedToken, error) {
		return s.mintToken(CanonicalMe(s.owner), clientID, params.TicketScope, t.Resource, appJSON)
	})
	if errors.Is(err, tokenstore.ErrTicketNotFound) {
		return nil, newError(ErrorInvalidTicket, http.StatusBadRequest, err)
	}
	if err != nil {
		return nil, issueError(err)
	}

	slog.Info("Access token issued for ticket", "clientID", issued.ClientID)
	s.notifier.NotifyIssued(ctx, issued.Me, issued.ClientID)
	return tokenResponse(issued), nil
}

// VerifyAuthenticationCode redeems a code at the authorization endpoint,
// which only confirms the user's identity.
func (s *GrantService) VerifyAuthenticationCode(ctx context.Context, req TokenRequest) (*AuthenticationResponse, error) {
	claims, err := s.redeemCode(ctx, req.Code, req.ClientID, req.RedirectURI, req.CodeVerifier)
	if err != nil {
		return nil, err
	}
	return &AuthenticationResponse{Me: CanonicalMe(claims.Me)}, nil
}

// Introspect validates a bearer token presented by a resource server. When
// resource is set, the token must grant access to it.
func (s *GrantService) Introspect(ctx context.Context, authorization string, resource string) (*IntrospectionResponse, error) {
	token := bearerToken(authorization)
	if token == "" {
		return nil, invalidRequest(fmt.Errorf("%w: bearer token", ErrMissingParameter))
	}

	revoked, err := s.tokenStore.IsRevoked(ctx, token)
	if err != nil {
		return nil, serverError(err)
	}
	if revoked {
		return nil, invalidGrant(ErrTokenRevoked)
	}

	claims, err := s.codec.Verify(token)
	if err != nil {
		return nil, newError(ErrorInvalidCode, http.StatusBadRequest, err)
	}
	if claims.Expired(s.now()) {
		return nil, invalidGrant(ErrCodeExpired)
	}

	active, err := s.tokenStore.IsActive(ctx, token)
	if err != nil {
		return nil, serverError(err)
	}
	if !active {
		return nil, invalidGrant(ErrTokenInactive)
	}

	if claims.Resource != "" && claims.Resource != params.ResourceAll {
		if !containsField(claims.Resource, resource) {
			return nil, invalidRequest(fmt.Errorf("%w: %q", ErrResourceNotAllowed, resource))
		}
	}

	resp := &IntrospectionResponse{
		Me:       CanonicalMe(claims.Me),
		ClientID: claims.ClientID,
		Scope:    claims.Scope,
	}
	if containsField(claims.Scope, "profile") && s.profiles != nil {
		p, err := s.profiles.Get(ctx, claims.Me)
		if err != nil {
			slog.Warn("Could not fetch profile", "me", claims.Me, "error", err)
		}
		resp.Profile = p
	}
	return resp, nil
}

// Revoke revokes token. Revoking an unknown or already revoked token
// succeeds.
func (s *GrantService) Revoke(ctx context.Context, token string) error {
	token = bearerToken(token)
	if token == "" {
		return invalidRequest(fmt.Errorf("%w: token", ErrMissingParameter))
	}
	if err := s.tokenStore.Revoke(ctx, token); err != nil {
		return serverError(err)
	}
	slog.Info("Token revoked")
	return nil
}

// IssueManual issues a token to clientID without an authorization request,
// for tokens the owner hands out by hand.
func (s *GrantService) IssueManual(ctx context.Context, clientID, scope string) (*model.IssuedToken, error) {
	if clientID == "" || strings.TrimSpace(scope) == "" {
		return nil, invalidRequest(fmt.Errorf("%w: client_id and scope", ErrMissingParameter))
	}
	scope = strings.Join(strings.Fields(scope), " ")
	if len(clientID) > params.MaxClientIDLength || len(scope) > params.MaxScopeLength {
		return nil, invalidRequest(fmt.Errorf("%w: client_id or scope", ErrParameterTooLong))
	}
	issued, err := s.mintToken(CanonicalMe(s.owner), clientID, scope, params.ResourceAll, s.appMetadataJSON(ctx, clientID))
	if err == nil {
		err = s.tokenStore.RecordIssued(ctx, issued)
	}
	if err != nil {
		return nil, issueError(err)
	}
	slog.Info("Access token issued manually", "clientID", clientID, "scope", scope)
	return issued, nil
}

func bearerToken(authorization string) string {
	authorization = strings.TrimSpace(authorization)
	if len(authorization) > 7 && strings.EqualFold(authorization[:7], "bearer ") {
		return strings.TrimSpace(authorization[7:])
	}
	return authorization
}

func containsField(list, item string) bool {
	for _, field := range strings.Fields(list) {
		if field == item {
			return true
		}
	}
	return false
}

type GrantServiceConfig struct {
	Owner      string
	Codec      *codec.Codec
	TokenStore TokenStore
	SpentCodes store.Store
	Resolver   ClientResolver
	Profiles   ProfileLookup
	Notifier   IssueNotifier
}

type noopNotifier struct{}

func (noopNotifier) NotifyIssued(ctx context.Context, me, clientID string) {}

// Notifiers fans an issuance out to every notifier in the list.
type Notifiers []IssueNotifier

func (n Notifiers) NotifyIssued(ctx context.Context, me, clientID string) {
	for _, notifier := range n {
		notifier.NotifyIssued(ctx, me, clientID)
	}
}

func NewGrantService(cfg GrantServiceConfig) *GrantService {
	if cfg.Notifier == nil {
		cfg.Notifier = noopNotifier{}
	}
	return &GrantService{
		owner:      cfg.Owner,
		codec:      cfg.Codec,
		tokenStore: cfg.TokenStore,
		spentCodes: cfg.SpentCodes,
		resolver:   cfg.Resolver,
		profiles:   cfg.Profiles,
		notifier:   cfg.Notifier,
		now:        time.Now,
	}
}
