package relme

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/indieauthify/indieauthify/internal/webfetch"
)

// Canonicalize strips the http(s) scheme and any trailing slashes from u.
// Comparison stays case-sensitive. Canonicalize(Canonicalize(u)) ==
// Canonicalize(u) holds for every input.
func Canonicalize(u string) string {
	for {
		next := strings.TrimSpace(u)
		next = strings.TrimRight(next, "/")
		next = strings.TrimPrefix(next, "https://")
		next = strings.TrimPrefix(next, "http://")
		if next == u {
			return u
		}
		u = next
	}
}

// Equal reports whether a and b name the same identity.
func Equal(a, b string) bool {
	return Canonicalize(a) == Canonicalize(b)
}

// HomeURL turns a bare domain or URL into a fetchable home page URL.
func HomeURL(domain string) string {
	domain = strings.TrimSpace(domain)
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	return domain
}

type Verifier struct {
	fetcher webfetch.Fetcher
}

// ListRelMe returns the rel=me links published on domain's home page. With
// requireLinkBack set, only links whose page links back to domain with
// rel=me are kept; candidates that cannot be fetched are dropped. An error is
// returned only when the home page itself cannot be fetched.
func (v *Verifier) ListRelMe(ctx context.Context, domain string, requireLinkBack bool) ([]string, error) {
	home, err := v.fetcher.Fetch(ctx, HomeURL(domain))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", domain, err)
	}

	var candidates []string
	seen := make(map[string]bool)
	add := func(link string) {
		key := Canonicalize(link)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		candidates = append(candidates, link)
	}
	for _, link := range home.Microformats().Rels["me"] {
		add(link)
	}
	for _, link := range home.Links().FilterByRel("me") {
		add(resolve(home.URL, link.URL))
	}

	if !requireLinkBack {
		return candidates, nil
	}

	target := Canonicalize(domain)
	verified := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if v.linksBack(ctx, candidate, target) {
			verified = append(verified, candidate)
		}
	}
	return verified, nil
}

func (v *Verifier) linksBack(ctx context.Context, candidate, target string) bool {
	page, err := v.fetcher.Fetch(ctx, candidate)
	if err != nil {
		slog.Debug("Skipping rel=me candidate", "url", candidate, "error", err)
		return false
	}
	for _, link := range page.Links("a", "link").FilterByRel("me") {
		if Canonicalize(resolve(page.URL, link.URL)) == target {
			return true
		}
	}
	return false
}

// VerifyRelMe reports whether account is one of domain's rel=me links.
func (v *Verifier) VerifyRelMe(ctx context.Context, domain, account string, requireLinkBack bool) (bool, error) {
	links, err := v.ListRelMe(ctx, domain, requireLinkBack)
	if err != nil {
		return false, err
	}
	want := Canonicalize(account)
	for _, link := range links {
		if Canonicalize(link) == want {
			return true, nil
		}
	}
	return false, nil
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

func NewVerifier(fetcher webfetch.Fetcher) *Verifier {
	return &Verifier{fetcher: fetcher}
}
