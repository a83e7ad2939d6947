package render

import (
	"github.com/indieauthify/indieauthify/internal/clientmeta"
	"github.com/indieauthify/indieauthify/internal/middlewares/sessions"
)

type HomePageData struct {
	Me       string
	LoggedIn bool
	Flashes  []sessions.Flash
}

type LoginPageData struct {
	CSRFToken string
	Redirect  string
	Flashes   []sessions.Flash
}

type RelMePageData struct {
	Domain         string
	Me             string
	Links          []string
	OAuthLoginURLs map[string]string
	ErrorMsg       string
	Flashes        []sessions.Flash
}

type ConsentPageData struct {
	CSRFToken    string
	Me           string
	ClientID     string
	RedirectURI  string
	ResponseType string
	State        string
	Challenge    string
	Method       string
	Scopes       []string
	App          *clientmeta.App
}

type IssuedToken struct {
	Token     string
	ClientID  string
	Scope     string
	IssuedAt  string
	ExpiresAt string
	Expired   bool
	App       clientmeta.App
}

type Ticket struct {
	Token     string
	Resource  string
	CreatedAt string
}

type IssuedPageData struct {
	CSRFToken string
	Me        string
	Tokens    []IssuedToken
	Tickets   []Ticket
	Issued    string
	Flashes   []sessions.Flash
}

type TokenPageData struct {
	CSRFToken string
	Token     IssuedToken
}

type ErrorPageData struct {
	Code    int
	Message string
}
