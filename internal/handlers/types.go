package handlers

import (
	"context"

	"github.com/indieauthify/indieauthify/internal/auth"
	"github.com/indieauthify/indieauthify/internal/login"
	"github.com/indieauthify/indieauthify/model"
)

type AuthorizeService interface {
	Validate(ctx context.Context, req auth.AuthorizationRequest, identity auth.Identity) *auth.Decision
	Approve(ctx context.Context, req auth.AuthorizationRequest, identity auth.Identity, approved []string) (*auth.Grant, error)
}

type GrantService interface {
	Exchange(ctx context.Context, req auth.TokenRequest) (*auth.TokenResponse, error)
	VerifyAuthenticationCode(ctx context.Context, req auth.TokenRequest) (*auth.AuthenticationResponse, error)
	Introspect(ctx context.Context, authorization string, resource string) (*auth.IntrospectionResponse, error)
	Revoke(ctx context.Context, token string) error
	IssueManual(ctx context.Context, clientID, scope string) (*model.IssuedToken, error)
}

type TokenStore interface {
	GetIssued(ctx context.Context, token string) (*model.IssuedToken, error)
	ListIssued(ctx context.Context) ([]*model.IssuedToken, error)
	ListTickets(ctx context.Context) ([]*model.Ticket, error)
	Revoke(ctx context.Context, token string) error
	RevokeAll(ctx context.Context) (int, error)
}

type LoginOrchestrator interface {
	Policy() login.Policy
	CaptureRedirect(state login.State, redirect string) login.State
	SubmitDomain(state login.State, domain string) (login.State, error)
	RelMeLinks(ctx context.Context, state login.State) ([]string, error)
	BeginFederated(state login.State, providerName string) (login.State, string, error)
	CompleteFederated(ctx context.Context, state login.State, oauthState, code string) (login.State, error)
	Logout(state login.State) login.State
}
