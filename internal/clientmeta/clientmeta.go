package clientmeta

import (
	"context"
	"net/url"
	"strings"

	"github.com/indieauthify/indieauthify/internal/webfetch"
	"willnorris.com/go/microformats"
)

type Status int

const (
	StatusFetched Status = iota
	StatusUnavailable
)

func (s Status) String() string {
	if s == StatusFetched {
		return "fetched"
	}
	return "unavailable"
}

type RedirectLookup int

const (
	RedirectConfirmed RedirectLookup = iota
	RedirectAbsent
	RedirectUnconfirmed
)

// App is the h-app (or h-x-app) a client publishes about itself.
type App struct {
	Name    string `json:"name,omitempty"`
	Logo    string `json:"logo,omitempty"`
	URL     string `json:"url,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// ClientInfo is the outcome of resolving a client_id. Status distinguishes a
// page that was fetched but lists no matching redirect from a page that could
// not be fetched at all.
type ClientInfo struct {
	ClientID     string
	RedirectURIs []string
	App          *App
	Status       Status
	Err          error
}

func (c *ClientInfo) Lookup(redirectURI string) RedirectLookup {
	if c.Status != StatusFetched {
		return RedirectUnconfirmed
	}
	for _, uri := range c.RedirectURIs {
		if uri == redirectURI {
			return RedirectConfirmed
		}
	}
	return RedirectAbsent
}

// SameOrigin reports whether a and b share scheme and host. A redirect_uri on
// the client's own origin needs no published whitelist.
func SameOrigin(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return ua.Scheme != "" && ua.Host != "" &&
		strings.EqualFold(ua.Scheme, ub.Scheme) && strings.EqualFold(ua.Host, ub.Host)
}

type Resolver struct {
	fetcher webfetch.Fetcher
}

// Resolve fetches clientID and extracts its redirect URIs and app metadata.
// Network failures are reported through ClientInfo.Status, never as errors.
func (r *Resolver) Resolve(ctx context.Context, clientID string) *ClientInfo {
	info := &ClientInfo{ClientID: clientID}

	base, err := url.Parse(clientID)
	if err != nil || base.Host == "" {
		info.Status = StatusUnavailable
		info.Err = err
		if info.Err == nil {
			info.Err = &url.Error{Op: "parse", URL: clientID, Err: webfetch.ErrUnavailable}
		}
		return info
	}

	page, err := r.fetcher.Fetch(ctx, clientID)
	if err != nil {
		info.Status = StatusUnavailable
		info.Err = err
		return info
	}
	info.Status = StatusFetched

	origin := &url.URL{Scheme: base.Scheme, Host: base.Host}
	for _, link := range page.Links("link").FilterByRel("redirect_uri") {
		if resolved, err := origin.Parse(link.URL); err == nil {
			info.RedirectURIs = append(info.RedirectURIs, resolved.String())
		}
	}
	info.App = findApp(page.Microformats())
	return info
}

func findApp(data *microformats.Data) *App {
	item := webfetch.FindItem(data, "h-app", "h-x-app")
	if item == nil {
		return nil
	}
	return &App{
		Name:    webfetch.PropertyString(item, "name"),
		Logo:    webfetch.PropertyString(item, "logo"),
		URL:     webfetch.PropertyString(item, "url"),
		Summary: webfetch.PropertyString(item, "summary"),
	}
}

func NewResolver(fetcher webfetch.Fetcher) *Resolver {
	return &Resolver{fetcher: fetcher}
}
