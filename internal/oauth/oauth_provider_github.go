package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	githubUserInfoURL = "https://api.github.com/user"
	githubProfileBase = "https://github.com/"
)

type GitHubOAuthProvider struct {
	name        string
	userInfoURL string
	oauth2.Config
}

func (p *GitHubOAuthProvider) Name() string {
	return p.name
}

func (p *GitHubOAuthProvider) GetAuthCodeURL(state string) string {
	return p.AuthCodeURL(state)
}

func (p *GitHubOAuthProvider) ExchangeToken(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.Exchange(ctx, code)
}

func (p *GitHubOAuthProvider) GetUserInfo(ctx context.Context, token *oauth2.Token) (*OAuthUserInfo, error) {
	var githubUser struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := p.Client(ctx, token).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github user info: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&githubUser); err != nil {
		return nil, err
	}
	if githubUser.Login == "" {
		return nil, fmt.Errorf("github user info: missing login")
	}
	return &OAuthUserInfo{
		ID:         strconv.FormatInt(githubUser.ID, 10),
		Login:      githubUser.Login,
		Name:       githubUser.Name,
		Email:      githubUser.Email,
		Picture:    githubUser.AvatarURL,
		ProfileURL: githubProfileBase + githubUser.Login,
	}, nil
}

// WithEndpoint points the provider at another OAuth server, e.g. GitHub
// Enterprise or a test server.
func (p *GitHubOAuthProvider) WithEndpoint(endpoint oauth2.Endpoint, userInfoURL string) *GitHubOAuthProvider {
	p.Endpoint = endpoint
	p.userInfoURL = userInfoURL
	return p
}

func NewGitHubOAuthProvider(name string, clientID, clientSecret, redirectURL string, scopes []string) *GitHubOAuthProvider {
	if len(scopes) == 0 {
		scopes = []string{"read:user"}
	}
	return &GitHubOAuthProvider{
		name:        name,
		userInfoURL: githubUserInfoURL,
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint:     github.Endpoint,
		},
	}
}
