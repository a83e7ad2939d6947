package oauth

import (
	"context"
	"fmt"
	"log/slog"
)

// OAuthService resolves the account a user proved control of through a
// federated provider.
type OAuthService struct {
	oauthProviders []OAuthProvider
}

func (s *OAuthService) GetProvider(name string) OAuthProvider {
	for _, provider := range s.oauthProviders {
		if provider.Name() == name {
			return provider
		}
	}
	return nil
}

func (s *OAuthService) OAuthProviders() []OAuthProvider {
	return s.oauthProviders
}

// GetUserInfo exchanges authCode with the named provider and returns the
// account it belongs to.
func (s *OAuthService) GetUserInfo(ctx context.Context, providerName string, authCode string) (*OAuthUserInfo, error) {
	provider := s.GetProvider(providerName)
	if provider == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}
	token, err := provider.ExchangeToken(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("exchange %s code: %w", providerName, err)
	}
	userInfo, err := provider.GetUserInfo(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("fetch %s user info: %w", providerName, err)
	}
	slog.Debug("Federated identity asserted", "provider", providerName, "account", userInfo.ProfileURL)
	return userInfo, nil
}

func NewOAuthService(oauthProviders []OAuthProvider) *OAuthService {
	return &OAuthService{
		oauthProviders: oauthProviders,
	}
}
