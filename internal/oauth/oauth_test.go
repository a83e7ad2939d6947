package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newGitHubServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "bad_verification_code"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"access_token": "gh-token", "token_type": "bearer"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gh-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{"id": 42, "login": "octocat", "name": "The Octocat"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestProvider(server *httptest.Server) *GitHubOAuthProvider {
	return NewGitHubOAuthProvider("github", "client", "secret", "https://auth.example/callback", nil).
		WithEndpoint(oauth2.Endpoint{
			AuthURL:  server.URL + "/login/oauth/authorize",
			TokenURL: server.URL + "/login/oauth/access_token",
		}, server.URL+"/user")
}

func TestGitHubAuthCodeURL(t *testing.T) {
	provider := NewGitHubOAuthProvider("github", "client", "secret", "https://auth.example/callback", nil)
	authURL, err := url.Parse(provider.GetAuthCodeURL("xyz"))
	require.NoError(t, err)
	assert.Equal(t, "github.com", authURL.Host)
	assert.Equal(t, "xyz", authURL.Query().Get("state"))
	assert.Equal(t, "client", authURL.Query().Get("client_id"))
	assert.Equal(t, "read:user", authURL.Query().Get("scope"))
}

func TestOAuthServiceGetUserInfo(t *testing.T) {
	server := newGitHubServer(t)
	svc := NewOAuthService([]OAuthProvider{newTestProvider(server)})

	info, err := svc.GetUserInfo(context.Background(), "github", "good-code")
	require.NoError(t, err)
	assert.Equal(t, "42", info.ID)
	assert.Equal(t, "octocat", info.Login)
	assert.Equal(t, "https://github.com/octocat", info.ProfileURL)

	_, err = svc.GetUserInfo(context.Background(), "github", "bad-code")
	assert.Error(t, err)

	_, err = svc.GetUserInfo(context.Background(), "gitlab", "good-code")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
