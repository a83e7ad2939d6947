package oauth

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

var (
	ErrUnknownProvider = errors.New("unknown OAuth provider")
)

type OAuthToken = oauth2.Token

type OAuthUserInfo struct {
	ID         string
	Login      string
	Name       string
	Email      string
	Picture    string
	ProfileURL string // public account URL compared against rel=me links
}

type OAuthProvider interface {
	Name() string
	GetAuthCodeURL(state string) string
	ExchangeToken(ctx context.Context, code string) (*OAuthToken, error)
	GetUserInfo(ctx context.Context, token *OAuthToken) (*OAuthUserInfo, error)
}
