package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/indieauthify/indieauthify/internal/auth"
	"github.com/indieauthify/indieauthify/internal/clientmeta"
	"github.com/indieauthify/indieauthify/internal/codec"
	"github.com/indieauthify/indieauthify/internal/config"
	"github.com/indieauthify/indieauthify/internal/database"
	"github.com/indieauthify/indieauthify/internal/login"
	"github.com/indieauthify/indieauthify/internal/oauth"
	"github.com/indieauthify/indieauthify/internal/profile"
	"github.com/indieauthify/indieauthify/internal/relme"
	"github.com/indieauthify/indieauthify/internal/store"
	"github.com/indieauthify/indieauthify/internal/tokenstore"
	"github.com/indieauthify/indieauthify/internal/webfetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testAPIKey   = "dashboard-key"
	testVerifier = "dBjftJeZ4CVP-mJ92K9s8iyU1TtmpTTDzemXk7dR8dM"
)

var csrfPattern = regexp.MustCompile(`name="_csrf" value="([0-9a-f]+)"`)

// newWeb serves the owner's home page, a federated account page linking back
// to it, and a client application.
func newWeb(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<html><body>
<div class="h-card"><a class="p-name u-url" href="%[1]s/">Alice</a></div>
<a rel="me" href="%[1]s/github/alice">GitHub</a>
<a rel="me" href="%[1]s/github/nobacklink">Elsewhere</a>
</body></html>`, server.URL)
	})
	mux.HandleFunc("/github/alice", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><a rel="me nofollow" href="%s/">alice's site</a></body></html>`, server.URL)
	})
	mux.HandleFunc("/github/nobacklink", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>nothing here</body></html>`)
	})
	mux.HandleFunc("/app/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div class="h-app"><span class="p-name">Notebook</span></div></body></html>`)
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

type fakeProvider struct {
	account string
}

func (p *fakeProvider) Name() string { return "github" }

func (p *fakeProvider) GetAuthCodeURL(state string) string {
	return "https://provider.example/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) ExchangeToken(ctx context.Context, code string) (*oauth.OAuthToken, error) {
	if code != "good" {
		return nil, errors.New("bad_verification_code")
	}
	return &oauth.OAuthToken{AccessToken: "gh"}, nil
}

func (p *fakeProvider) GetUserInfo(ctx context.Context, token *oauth.OAuthToken) (*oauth.OAuthUserInfo, error) {
	return &oauth.OAuthUserInfo{Login: "alice", ProfileURL: p.account}, nil
}

type testServer struct {
	app    *fiber.App
	web    *httptest.Server
	tokens *tokenstore.Store
}

func newTestServer(t *testing.T) *testServer {
	web := newWeb(t)

	db, err := database.Open(context.Background(), config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "tokens.db"),
	}, false)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		AppName:    "IndieAuthify",
		BaseURL:    "https://auth.example",
		Me:         web.URL,
		SigningKey: "test-secret",
		APIKeyHash: string(hash),
		Session: config.SessionConfig{
			SessionMaxAge: time.Hour,
			CookieName:    "sid",
		},
	}

	fetcher := webfetch.NewHTTPFetcherWithClient(web.Client(), "test")
	resolver := clientmeta.NewResolver(fetcher)
	signer := codec.NewCodec(cfg.SigningKey)
	tokens := tokenstore.NewStore(db)
	provider := &fakeProvider{account: web.URL + "/github/alice"}

	app := New(cfg, Services{
		Authorize: auth.NewAuthorizeService(resolver, signer),
		Grants: auth.NewGrantService(auth.GrantServiceConfig{
			Owner:      cfg.Me,
			Codec:      signer,
			TokenStore: tokens,
			SpentCodes: store.NewMemoryStore(),
			Resolver:   resolver,
			Profiles:   profile.NewLookup(fetcher),
		}),
		Tokens:         tokens,
		Login:          login.NewOrchestrator(cfg.Me, oauth.NewOAuthService([]oauth.OAuthProvider{provider}), relme.NewVerifier(fetcher)),
		OAuthProviders: []string{"github"},
	})
	return &testServer{app: app, web: web, tokens: tokens}
}

// browser keeps the session cookie between requests.
type browser struct {
	t       *testing.T
	app     *fiber.App
	cookies map[string]string
}

func (s *testServer) browser(t *testing.T) *browser {
	return &browser{t: t, app: s.app, cookies: map[string]string{}}
}

func (b *browser) do(req *http.Request) *http.Response {
	b.t.Helper()
	for name, value := range b.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	resp, err := b.app.Test(req, -1)
	require.NoError(b.t, err)
	for _, cookie := range resp.Cookies() {
		if cookie.MaxAge < 0 || cookie.Value == "" {
			delete(b.cookies, cookie.Name)
		} else {
			b.cookies[cookie.Name] = cookie.Value
		}
	}
	return resp
}

func (b *browser) get(target string) *http.Response {
	return b.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) post(target string, form url.Values) *http.Response {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func csrfToken(t *testing.T, body string) string {
	t.Helper()
	match := csrfPattern.FindStringSubmatch(body)
	require.Len(t, match, 2, "no csrf token in page")
	return match[1]
}

func (s *testServer) authorizeQuery(state string) url.Values {
	return url.Values{
		"me":                    {s.web.URL},
		"client_id":             {s.web.URL + "/app/"},
		"redirect_uri":          {s.web.URL + "/app/callback"},
		"response_type":         {"code"},
		"state":                 {state},
		"code_challenge":        {auth.S256(testVerifier)},
		"code_challenge_method": {"S256"},
		"scope":                 {"create update profile"},
	}
}

// login walks the domain login and federated bounce and returns the
// location the callback redirected to.
func (s *testServer) login(t *testing.T, b *browser, returnTo string) string {
	t.Helper()
	resp := b.get("/login?r=" + url.QueryEscape(returnTo))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := csrfToken(t, readBody(t, resp))

	resp = b.post("/login", url.Values{"domain": {s.web.URL}, "_csrf": {token}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/rel", resp.Header.Get("Location"))

	resp = b.get("/rel")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, s.web.URL+"/github/alice")
	assert.NotContains(t, body, "nobacklink")

	resp = b.get("/auth/github")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	providerURL, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := providerURL.Query().Get("state")
	require.NotEmpty(t, state)

	resp = b.get("/auth/github/callback?code=good&state=" + url.QueryEscape(state))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	return resp.Header.Get("Location")
}

func TestEndToEnd(t *testing.T) {
	s := newTestServer(t)
	b := s.browser(t)

	query := s.authorizeQuery("s1")
	resp := b.get("/auth?" + query.Encode())
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loginURL, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loginURL.Path)
	returnTo := loginURL.Query().Get("r")
	assert.True(t, strings.HasPrefix(returnTo, "/auth?"))

	location := s.login(t, b, returnTo)
	assert.Equal(t, returnTo, location)

	resp = b.get(location)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Notebook")
	token := csrfToken(t, body)

	form := url.Values{}
	for key, values := range query {
		form[key] = values
	}
	form.Set("_csrf", token)
	form["approved_scope"] = []string{"create", "profile"}
	resp = b.post("/auth/approve", form)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	callback, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, s.web.URL+"/app/callback", callback.Scheme+"://"+callback.Host+callback.Path)
	assert.Equal(t, "s1", callback.Query().Get("state"))
	code := callback.Query().Get("code")
	require.NotEmpty(t, code)

	client := s.browser(t)
	exchange := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {s.web.URL + "/app/"},
		"redirect_uri":  {s.web.URL + "/app/callback"},
		"code_verifier": {testVerifier},
	}
	resp = client.post("/token", exchange)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tokenResp auth.TokenResponse
	decodeJSON(t, resp, &tokenResp)
	assert.Equal(t, "Bearer", tokenResp.TokenType)
	assert.Equal(t, "create profile", tokenResp.Scope)
	assert.Equal(t, s.web.URL+"/", tokenResp.Me)

	resp = client.post("/token", exchange)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp auth.ErrorResponse
	decodeJSON(t, resp, &errResp)
	assert.Equal(t, auth.ErrorInvalidGrant, errResp.Error)

	req := httptest.NewRequest(http.MethodGet, "/token", nil)
	req.Header.Set("Authorization", "Bearer "+tokenResp.AccessToken)
	resp = client.do(req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var introspection auth.IntrospectionResponse
	decodeJSON(t, resp, &introspection)
	assert.Equal(t, s.web.URL+"/", introspection.Me)
	assert.Equal(t, s.web.URL+"/app/", introspection.ClientID)
	assert.Equal(t, "create profile", introspection.Scope)
	require.NotNil(t, introspection.Profile)
	assert.Equal(t, "Alice", introspection.Profile.Name)

	resp = client.post("/revoke", url.Values{"token": {tokenResp.AccessToken}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = client.post("/token", url.Values{"action": {"revoke"}, "token": {tokenResp.AccessToken}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/token", nil)
	req.Header.Set("Authorization", "Bearer "+tokenResp.AccessToken)
	resp = client.do(req)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decodeJSON(t, resp, &errResp)
	assert.Equal(t, auth.ErrorInvalidGrant, errResp.Error)
}

func TestAuthenticationOnlyFlow(t *testing.T) {
	s := newTestServer(t)
	b := s.browser(t)
	s.login(t, b, "/")

	query := s.authorizeQuery("s2")
	query.Set("response_type", "id")
	query.Del("scope")
	resp := b.get("/auth?" + query.Encode())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := csrfToken(t, readBody(t, resp))

	form := url.Values{}
	for key, values := range query {
		form[key] = values
	}
	form.Set("_csrf", token)
	resp = b.post("/auth/approve", form)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	callback, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)

	resp = s.browser(t).post("/auth", url.Values{
		"code":          {callback.Query().Get("code")},
		"client_id":     {s.web.URL + "/app/"},
		"redirect_uri":  {s.web.URL + "/app/callback"},
		"code_verifier": {testVerifier},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var authResp auth.AuthenticationResponse
	decodeJSON(t, resp, &authResp)
	assert.Equal(t, s.web.URL+"/", authResp.Me)
}

func TestAuthorizeRejectsUnpublishedRedirect(t *testing.T) {
	s := newTestServer(t)
	b := s.browser(t)
	s.login(t, b, "/")

	query := s.authorizeQuery("s3")
	query.Set("redirect_uri", "https://evil.example/callback")
	resp := b.get("/auth?" + query.Encode())
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp auth.ErrorResponse
	decodeJSON(t, resp, &errResp)
	assert.Equal(t, auth.ErrorInvalidRequest, errResp.Error)
	assert.Contains(t, errResp.ErrorDescription, "redirect_uri")
}

func TestAuthorizeForOtherIdentityClearsSession(t *testing.T) {
	s := newTestServer(t)
	b := s.browser(t)
	s.login(t, b, "/")

	query := s.authorizeQuery("s4")
	query.Set("me", "https://bob.example/")
	resp := b.get("/auth?" + query.Encode())
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/login?"))

	resp = b.get("/issued")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/login?"))
}

func TestLoginRejectsForeignDomain(t *testing.T) {
	s := newTestServer(t)
	b := s.browser(t)

	resp := b.get("/login")
	token := csrfToken(t, readBody(t, resp))
	resp = b.post("/login", url.Values{"domain": {"https://bob.example"}, "_csrf": {token}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = b.get("/login")
	assert.Contains(t, readBody(t, resp), login.ErrDomainNotAllowed.Error())

	resp = b.get("/auth/github")
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestLoginRequiresCSRF(t *testing.T) {
	s := newTestServer(t)
	b := s.browser(t)
	b.get("/login")

	resp := b.post("/login", url.Values{"domain": {s.web.URL}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCallbackStateMismatch(t *testing.T) {
	s := newTestServer(t)
	b := s.browser(t)

	resp := b.get("/login")
	token := csrfToken(t, readBody(t, resp))
	b.post("/login", url.Values{"domain": {s.web.URL}, "_csrf": {token}})
	b.get("/auth/github")

	resp = b.get("/auth/github/callback?code=good&state=forged")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = b.get("/login")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), login.ErrStateMismatch.Error())
}

func TestMetadata(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/metadata", "/.well-known/oauth-authorization-server"} {
		resp := s.browser(t).get(path)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var metadata map[string]any
		decodeJSON(t, resp, &metadata)
		assert.Equal(t, "https://auth.example/", metadata["issuer"])
		assert.Equal(t, "https://auth.example/token", metadata["token_endpoint"])
		assert.Equal(t, []any{"S256"}, metadata["code_challenge_methods_supported"])
		assert.Equal(t, []any{"authorization_code", "ticket"}, metadata["grant_types_supported"])
	}
}

func TestTokenEndpointErrors(t *testing.T) {
	s := newTestServer(t)
	b := s.browser(t)

	resp := b.post("/token", url.Values{"grant_type": {"password"}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp auth.ErrorResponse
	decodeJSON(t, resp, &errResp)
	assert.Equal(t, auth.ErrorUnsupportedGrantType, errResp.Error)

	resp = b.post("/token", url.Values{"grant_type": {"ticket"}, "ticket": {"nope"}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decodeJSON(t, resp, &errResp)
	assert.Equal(t, auth.ErrorInvalidTicket, errResp.Error)

	resp = b.get("/token")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decodeJSON(t, resp, &errResp)
	assert.Equal(t, auth.ErrorInvalidRequest, errResp.Error)
}

func TestTicketGrant(t *testing.T) {
	s := newTestServer(t)
	ticket, err := s.tokens.AddTicket(context.Background(), "/feeds/private")
	require.NoError(t, err)

	b := s.browser(t)
	resp := b.post("/token", url.Values{"grant_type": {"ticket"}, "ticket": {ticket.Token}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tokenResp auth.TokenResponse
	decodeJSON(t, resp, &tokenResp)
	assert.Equal(t, "read", tokenResp.Scope)

	req := httptest.NewRequest(http.MethodGet, "/token?resource=/feeds/private", nil)
	req.Header.Set("Authorization", "Bearer "+tokenResp.AccessToken)
	resp = b.do(req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIssuedDashboardWithAPIKey(t *testing.T) {
	s := newTestServer(t)
	b := s.browser(t)

	post := func(form url.Values, key string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/issued", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Authorization", "Bearer "+key)
		return b.do(req)
	}
	get := func(target, key string) *http.Response {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Authorization", "Bearer "+key)
		return b.do(req)
	}

	resp := post(url.Values{"client_id": {s.web.URL + "/app/"}, "scope": {"create"}}, "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = post(url.Values{"client_id": {s.web.URL + "/app/"}, "scope": {"create"}}, testAPIKey)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var issued struct {
		Token    string `json:"token"`
		ClientID string `json:"client_id"`
	}
	decodeJSON(t, resp, &issued)
	assert.Equal(t, s.web.URL+"/app/", issued.ClientID)

	resp = get("/issued", testAPIKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	decodeJSON(t, resp, &list)
	assert.Len(t, list, 1)

	req := httptest.NewRequest(http.MethodPost, "/issued/revoke", strings.NewReader(url.Values{"token": {"all"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	resp = b.do(req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	revoked, err := s.tokens.IsRevoked(context.Background(), issued.Token)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestIssuedDashboardWithSession(t *testing.T) {
	s := newTestServer(t)
	b := s.browser(t)

	resp := b.get("/issued")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	location := resp.Header.Get("Location")
	loginURL, err := url.Parse(location)
	require.NoError(t, err)

	assert.Equal(t, "/issued", s.login(t, b, loginURL.Query().Get("r")))

	resp = b.get("/issued")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Authenticated successfully")
	token := csrfToken(t, body)

	resp = b.post("/issued", url.Values{"client_id": {s.web.URL + "/app/"}, "scope": {"media"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = b.post("/issued", url.Values{"client_id": {s.web.URL + "/app/"}, "scope": {"media"}, "_csrf": {token}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Notebook")

	issued, err := s.tokens.ListIssued(context.Background())
	require.NoError(t, err)
	require.Len(t, issued, 1)

	// a cross-site link or form carries the cookie but not the csrf token
	resp = b.get("/revoke?token=all")
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
	resp = b.post("/issued/revoke", url.Values{"token": {"all"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	active, err := s.tokens.IsActive(context.Background(), issued[0].Token)
	require.NoError(t, err)
	assert.True(t, active)

	resp = b.post("/issued/revoke", url.Values{"token": {issued[0].Token}, "_csrf": {token}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/issued", resp.Header.Get("Location"))
	resp = b.get("/issued")
	assert.Contains(t, readBody(t, resp), "Your token was revoked.")
	revoked, err := s.tokens.IsRevoked(context.Background(), issued[0].Token)
	require.NoError(t, err)
	assert.True(t, revoked)

	resp = b.get("/logout")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	resp = b.get("/issued")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}
