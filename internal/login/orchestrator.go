package login

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/indieauthify/indieauthify/internal/oauth"
)

type RelMeVerifier interface {
	ListRelMe(ctx context.Context, domain string, requireLinkBack bool) ([]string, error)
	VerifyRelMe(ctx context.Context, domain, account string, requireLinkBack bool) (bool, error)
}

// Orchestrator runs the side effects of the login flow: it talks to the
// federated provider and the rel=me verifier, then feeds the results to
// Transition.
type Orchestrator struct {
	policy       Policy
	oauthService *oauth.OAuthService
	verifier     RelMeVerifier
}

func (o *Orchestrator) Policy() Policy {
	return o.policy
}

func (o *Orchestrator) CaptureRedirect(state State, redirect string) State {
	next, _ := Transition(state, CaptureRedirect{URL: redirect}, o.policy)
	return next
}

func (o *Orchestrator) SubmitDomain(state State, domain string) (State, error) {
	next, err := Transition(state, SubmitDomain{Domain: domain}, o.policy)
	if err != nil {
		slog.Info("Login rejected", "domain", domain, "error", err)
	}
	return next, err
}

// RelMeLinks lists the accounts the claimed domain links to with rel=me and
// that link back to it.
func (o *Orchestrator) RelMeLinks(ctx context.Context, state State) ([]string, error) {
	if state.PendingDomain == "" {
		return nil, ErrNoDomainClaimed
	}
	return o.verifier.ListRelMe(ctx, state.PendingDomain, true)
}

// BeginFederated starts a login with the named provider and returns the
// provider URL to send the user to.
func (o *Orchestrator) BeginFederated(state State, providerName string) (State, string, error) {
	provider := o.oauthService.GetProvider(providerName)
	if provider == nil {
		return state, "", fmt.Errorf("%w: %s", oauth.ErrUnknownProvider, providerName)
	}
	oauthState, err := randomState()
	if err != nil {
		return state, "", err
	}
	next, err := Transition(state, BeginFederated{Provider: providerName, State: oauthState}, o.policy)
	if err != nil {
		return next, "", err
	}
	return next, provider.GetAuthCodeURL(oauthState), nil
}

// CompleteFederated handles the provider callback. The provider is only
// contacted when oauthState matches the one issued by BeginFederated.
func (o *Orchestrator) CompleteFederated(ctx context.Context, state State, oauthState, code string) (State, error) {
	if state.Phase != PhaseIdentityPending || oauthState != state.OAuthState {
		slog.Warn("Login state token mismatch", "provider", state.Provider)
		return Transition(state, IdentityAsserted{State: oauthState}, o.policy)
	}

	userInfo, err := o.oauthService.GetUserInfo(ctx, state.Provider, code)
	if err != nil {
		slog.Error("Federated login failed", "provider", state.Provider, "error", err)
		next, _ := Transition(state, Fail{Reason: err.Error()}, o.policy)
		return next, fmt.Errorf("%w: %v", ErrFederatedLogin, err)
	}

	verified, err := o.verifier.VerifyRelMe(ctx, o.policy.Owner, userInfo.ProfileURL, true)
	if err != nil {
		slog.Warn("Could not verify rel=me link", "me", o.policy.Owner, "account", userInfo.ProfileURL, "error", err)
		next, _ := Transition(state, Fail{Reason: ErrRelMeUnavailable.Error()}, o.policy)
		return next, fmt.Errorf("%w: %v", ErrRelMeUnavailable, err)
	}

	next, err := Transition(state, IdentityAsserted{
		State:    oauthState,
		Account:  userInfo.ProfileURL,
		Verified: verified,
	}, o.policy)
	if err != nil {
		slog.Info("Login rejected", "account", userInfo.ProfileURL, "error", err)
		return next, err
	}
	slog.Info("Logged in", "me", next.Me, "account", userInfo.ProfileURL)
	return next, nil
}

func (o *Orchestrator) Logout(state State) State {
	next, _ := Transition(state, Logout{}, o.policy)
	return next
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func NewOrchestrator(owner string, oauthService *oauth.OAuthService, verifier RelMeVerifier) *Orchestrator {
	return &Orchestrator{
		policy:       Policy{Owner: owner},
		oauthService: oauthService,
		verifier:     verifier,
	}
}
