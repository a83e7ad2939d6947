package login

import "errors"

var (
	ErrMissingDomain       = errors.New("missing domain parameter")
	ErrDomainNotAllowed    = errors.New("only approved domains can access this service")
	ErrStateMismatch       = errors.New("login state token mismatch")
	ErrIdentityNotVerified = errors.New("account is not a verified rel=me link of the domain")
	ErrRelMeUnavailable    = errors.New("could not fetch the rel=me links of the domain")
	ErrNoDomainClaimed     = errors.New("no domain has been claimed")
	ErrFederatedLogin      = errors.New("federated login failed")
)
