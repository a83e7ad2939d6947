package auth

import (
	"net/url"
	"strings"

	"github.com/indieauthify/indieauthify/internal/clientmeta"
	"github.com/indieauthify/indieauthify/internal/codec"
)

const (
	ResponseTypeCode = "code"
	ResponseTypeID   = "id"

	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeTicket            = "ticket"

	ActionRevoke = "revoke"
)

// AuthorizationRequest holds the parameters of an authorization endpoint
// request. They arrive in the query string on GET and in the form body when
// the consent form is submitted.
type AuthorizationRequest struct {
	Me                  string `query:"me" form:"me"`
	ClientID            string `query:"client_id" form:"client_id"`
	RedirectURI         string `query:"redirect_uri" form:"redirect_uri"`
	ResponseType        string `query:"response_type" form:"response_type"`
	State               string `query:"state" form:"state"`
	CodeChallenge       string `query:"code_challenge" form:"code_challenge"`
	CodeChallengeMethod string `query:"code_challenge_method" form:"code_challenge_method"`
	Scope               string `query:"scope" form:"scope"`
}

func (r *AuthorizationRequest) Scopes() []string {
	return strings.Fields(r.Scope)
}

// Values re-encodes the request, e.g. to carry it through the login page.
func (r *AuthorizationRequest) Values() url.Values {
	values := url.Values{}
	set := func(key, val string) {
		if val != "" {
			values.Set(key, val)
		}
	}
	set("me", r.Me)
	set("client_id", r.ClientID)
	set("redirect_uri", r.RedirectURI)
	set("response_type", r.ResponseType)
	set("state", r.State)
	set("code_challenge", r.CodeChallenge)
	set("code_challenge_method", r.CodeChallengeMethod)
	set("scope", r.Scope)
	return values
}

// TokenRequest is the form posted to the token endpoint. Ticket redemption
// accepts the ticket in either the ticket or the code field.
type TokenRequest struct {
	Action       string `form:"action"`
	GrantType    string `form:"grant_type"`
	Code         string `form:"code"`
	Ticket       string `form:"ticket"`
	Token        string `form:"token"`
	ClientID     string `form:"client_id"`
	RedirectURI  string `form:"redirect_uri"`
	CodeVerifier string `form:"code_verifier"`
}

func (r *TokenRequest) TicketValue() string {
	if r.Ticket != "" {
		return r.Ticket
	}
	return r.Code
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	Me          string `json:"me"`
}

type AuthenticationResponse struct {
	Me string `json:"me"`
}

// Identity is the login state the authorization endpoint sees.
type Identity struct {
	Me       string
	LoggedIn bool
}

type Phase int

const (
	PhaseAwaitingLogin Phase = iota
	PhaseAwaitingConsent
	PhaseApproved
	PhaseRejected
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingLogin:
		return "awaiting_login"
	case PhaseAwaitingConsent:
		return "awaiting_consent"
	case PhaseApproved:
		return "approved"
	default:
		return "rejected"
	}
}

// Decision is the outcome of validating an authorization request.
type Decision struct {
	Phase        Phase
	ClearSession bool
	Request      AuthorizationRequest
	Client       *clientmeta.ClientInfo
	Err          *Error
}

// Grant is an approved authorization request.
type Grant struct {
	Code        string
	RedirectURL string
	Claims      codec.Claims
}

// CanonicalMe returns me with exactly one trailing slash.
func CanonicalMe(me string) string {
	return strings.TrimRight(me, "/") + "/"
}
