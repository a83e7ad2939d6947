package profile

import (
	"context"
	"fmt"

	"github.com/indieauthify/indieauthify/internal/relme"
	"github.com/indieauthify/indieauthify/internal/webfetch"
)

// Profile is the h-card published on a user's home page.
type Profile struct {
	Name  string `json:"name,omitempty"`
	URL   string `json:"url,omitempty"`
	Photo string `json:"photo,omitempty"`
	Email string `json:"email,omitempty"`
}

type Lookup struct {
	fetcher webfetch.Fetcher
}

// Get returns the first h-card on me's home page. A page without an h-card
// yields a nil profile and no error.
func (l *Lookup) Get(ctx context.Context, me string) (*Profile, error) {
	page, err := l.fetcher.Fetch(ctx, relme.HomeURL(me))
	if err != nil {
		return nil, fmt.Errorf("fetch profile %s: %w", me, err)
	}
	card := webfetch.FindItem(page.Microformats(), "h-card")
	if card == nil {
		return nil, nil
	}
	return &Profile{
		Name:  webfetch.PropertyString(card, "name"),
		URL:   webfetch.PropertyString(card, "url"),
		Photo: webfetch.PropertyString(card, "photo"),
		Email: webfetch.PropertyString(card, "email"),
	}, nil
}

func NewLookup(fetcher webfetch.Fetcher) *Lookup {
	return &Lookup{fetcher: fetcher}
}
