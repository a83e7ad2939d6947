package login

import (
	"crypto/subtle"
	"encoding/gob"
	"net/url"
	"strings"

	"github.com/indieauthify/indieauthify/internal/relme"
)

type Phase int

const (
	PhaseAnonymous Phase = iota
	PhaseDomainClaimed
	PhaseIdentityPending
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseDomainClaimed:
		return "domain_claimed"
	case PhaseIdentityPending:
		return "identity_pending"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// State is the login progress of one browser session.
type State struct {
	Phase             Phase
	Me                string
	LoggedIn          bool
	PendingDomain     string
	PostLoginRedirect string
	OAuthState        string
	Provider          string
	Failure           string
}

func init() {
	gob.Register(State{})
}

func (s *State) IsAuthenticated() bool {
	return s.Phase == PhaseAuthenticated && s.LoggedIn
}

// TakeRedirect returns the post-login redirect and clears it, so it is
// honored once.
func (s *State) TakeRedirect() string {
	redirect := s.PostLoginRedirect
	s.PostLoginRedirect = ""
	return redirect
}

// Policy decides which identities may log in. There is exactly one: the
// owner's domain.
type Policy struct {
	Owner string
}

func (p Policy) AllowsDomain(domain string) bool {
	return relme.Equal(domain, p.Owner)
}

// AllowsRedirect reports whether redirect is a path on this server or
// points into the owner's domain.
func (p Policy) AllowsRedirect(redirect string) bool {
	if strings.HasPrefix(redirect, "/") && !strings.HasPrefix(redirect, "//") && !strings.HasPrefix(redirect, "/\\") {
		return true
	}
	u, err := url.Parse(redirect)
	if err != nil || u.Host == "" {
		return false
	}
	owner, err := url.Parse(relme.HomeURL(p.Owner))
	if err != nil || owner.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	ownerHost := strings.ToLower(owner.Hostname())
	return host == ownerHost || strings.HasSuffix(host, "."+ownerHost)
}

type Event interface {
	isEvent()
}

// CaptureRedirect remembers where to send the user once logged in.
type CaptureRedirect struct {
	URL string
}

type SubmitDomain struct {
	Domain string
}

type BeginFederated struct {
	Provider string
	State    string
}

// IdentityAsserted is the outcome of a federated login callback. Verified
// tells whether Account is a rel=me link of the claimed domain.
type IdentityAsserted struct {
	State    string
	Account  string
	Verified bool
}

type Fail struct {
	Reason string
}

type Logout struct{}

func (CaptureRedirect) isEvent()  {}
func (SubmitDomain) isEvent()     {}
func (BeginFederated) isEvent()   {}
func (IdentityAsserted) isEvent() {}
func (Fail) isEvent()             {}
func (Logout) isEvent()           {}

// failed drops every piece of authentication progress. Only the pending
// redirect survives so a retry ends up in the same place.
func failed(s State, err error) (State, error) {
	return State{
		Phase:             PhaseAnonymous,
		PostLoginRedirect: s.PostLoginRedirect,
		Failure:           err.Error(),
	}, err
}

// Transition applies ev to s. It performs no I/O; the caller persists the
// returned state. On error the returned state is the state to persist.
func Transition(s State, ev Event, policy Policy) (State, error) {
	switch ev := ev.(type) {
	case CaptureRedirect:
		if ev.URL != "" && policy.AllowsRedirect(ev.URL) {
			s.PostLoginRedirect = ev.URL
		}
		return s, nil

	case SubmitDomain:
		if s.IsAuthenticated() {
			return s, nil
		}
		if strings.TrimSpace(ev.Domain) == "" {
			return failed(s, ErrMissingDomain)
		}
		if !policy.AllowsDomain(ev.Domain) {
			return failed(s, ErrDomainNotAllowed)
		}
		return State{
			Phase:             PhaseDomainClaimed,
			PendingDomain:     ev.Domain,
			PostLoginRedirect: s.PostLoginRedirect,
		}, nil

	case BeginFederated:
		if s.Phase != PhaseDomainClaimed && s.Phase != PhaseIdentityPending {
			return s, ErrNoDomainClaimed
		}
		s.Phase = PhaseIdentityPending
		s.Provider = ev.Provider
		s.OAuthState = ev.State
		s.Failure = ""
		return s, nil

	case IdentityAsserted:
		if s.Phase != PhaseIdentityPending || ev.State == "" ||
			subtle.ConstantTimeCompare([]byte(ev.State), []byte(s.OAuthState)) != 1 {
			return failed(s, ErrStateMismatch)
		}
		if !ev.Verified {
			return failed(s, ErrIdentityNotVerified)
		}
		return State{
			Phase:             PhaseAuthenticated,
			Me:                policy.Owner,
			LoggedIn:          true,
			PostLoginRedirect: s.PostLoginRedirect,
		}, nil

	case Fail:
		next, _ := failed(s, ErrFederatedLogin)
		if ev.Reason != "" {
			next.Failure = ev.Reason
		}
		return next, nil

	case Logout:
		return State{}, nil
	}
	return s, nil
}
