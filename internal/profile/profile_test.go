package profile

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/indieauthify/indieauthify/internal/webfetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<div class="h-card">
  <img class="u-photo" src="/me.jpg">
  <a class="p-name u-url" href="/">Jane Doe</a>
  <a class="u-email" href="mailto:jane@example.com">email</a>
</div>
</body></html>`)
	}))
	defer server.Close()

	lookup := NewLookup(webfetch.NewHTTPFetcher(time.Second, "test"))
	p, err := lookup.Get(context.Background(), server.URL)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Jane Doe", p.Name)
	assert.Equal(t, server.URL+"/", p.URL)
	assert.Equal(t, server.URL+"/me.jpg", p.Photo)
	assert.Equal(t, "mailto:jane@example.com", p.Email)
}

func TestGetProfileWithoutCard(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>hello</p></body></html>`)
	}))
	defer server.Close()

	lookup := NewLookup(webfetch.NewHTTPFetcher(time.Second, "test"))
	p, err := lookup.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Nil(t, p)
}
