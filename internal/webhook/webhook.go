package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Notifier posts a short message to a webhook whenever a token is issued.
type Notifier struct {
	URL    string
	APIKey string
	client *http.Client
}

func (n *Notifier) doNotify(ctx context.Context, message string) error {
	form := url.Values{"message": {message}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if n.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.APIKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook bad status: %d", resp.StatusCode)
	}
	return nil
}

// NotifyIssued reports an issuance. Failures are logged and never returned,
// a broken webhook must not fail the grant.
func (n *Notifier) NotifyIssued(ctx context.Context, me, clientID string) {
	if n == nil || n.URL == "" {
		return
	}
	message := fmt.Sprintf("%s has issued an access token to %s", me, clientID)
	if err := n.doNotify(ctx, message); err != nil {
		slog.Error("Webhook notify error", "url", n.URL, "error", err)
		return
	}
	slog.Debug("Webhook notified", "url", n.URL, "clientID", clientID)
}

func NewNotifier(webhookURL, apiKey string, timeout time.Duration) *Notifier {
	return &Notifier{
		URL:    webhookURL,
		APIKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}
