package webfetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/indieauthify/indieauthify/params"
	"github.com/tomnomnom/linkheader"
	"golang.org/x/net/html"
	"willnorris.com/go/microformats"
)

var (
	ErrUnavailable = errors.New("remote page unavailable")
)

// StatusError is returned when the remote server answers with a non-2xx
// status code.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrUnavailable
}

// Fetcher retrieves remote pages.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

type Page struct {
	URL        *url.URL
	StatusCode int
	Header     http.Header
	Body       []byte

	parseOnce sync.Once
	root      *html.Node
}

func (p *Page) IsHTML() bool {
	mediaType, _, _ := mime.ParseMediaType(p.Header.Get("Content-Type"))
	return mediaType == "" || mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// Root returns the parsed HTML document, or nil when the page is not HTML.
func (p *Page) Root() *html.Node {
	p.parseOnce.Do(func() {
		if !p.IsHTML() {
			return
		}
		if root, err := html.Parse(bytes.NewReader(p.Body)); err == nil {
			p.root = root
		}
	})
	return p.root
}

// Microformats returns the microformats2 parse of the page.
func (p *Page) Microformats() *microformats.Data {
	root := p.Root()
	if root == nil {
		return &microformats.Data{Rels: map[string][]string{}}
	}
	return microformats.ParseNode(root, p.URL)
}

// Links returns the Link header entries followed by the rel-bearing HTML
// elements named in tags. URLs are returned as written in the document.
func (p *Page) Links(tags ...string) linkheader.Links {
	var links linkheader.Links
	for _, link := range linkheader.ParseMultiple(p.Header.Values("Link")) {
		for _, rel := range strings.Fields(link.Rel) {
			links = append(links, linkheader.Link{URL: link.URL, Rel: strings.ToLower(rel), Params: link.Params})
		}
	}
	if len(tags) > 0 {
		if root := p.Root(); root != nil {
			links = append(links, findLinks(root, tags)...)
		}
	}
	return links
}

func findLinks(node *html.Node, tags []string) linkheader.Links {
	var links linkheader.Links
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && containsTag(tags, n.Data) {
			rel, hasRel := getAttr(n, "rel")
			href, hasHref := getAttr(n, "href")
			if hasRel && hasHref {
				for _, r := range strings.Fields(rel) {
					links = append(links, linkheader.Link{URL: href, Rel: strings.ToLower(r)})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return links
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func getAttr(node *html.Node, name string) (string, bool) {
	for _, attr := range node.Attr {
		if attr.Key == name {
			return attr.Val, true
		}
	}
	return "", false
}

type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, params.MaxFetchBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &Page{
		URL:        resp.Request.URL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// NewHTTPFetcherWithClient wraps an existing client, e.g. one returned by
// httptest.Server.Client.
func NewHTTPFetcherWithClient(client *http.Client, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{client: client, userAgent: userAgent}
}
