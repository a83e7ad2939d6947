package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
)

// Notifier emails the owner whenever a token is issued. Mail is sent in the
// background so a slow SMTP server never holds up the token endpoint.
type Notifier struct {
	sender   MailSender
	to       []string
	siteName string
	engine   *html.Engine
	now      func() time.Time
}

func (n *Notifier) send(me, clientID string) error {
	body, err := renderHTML(n.engine, "token_issued", fiber.Map{
		"siteName": n.siteName,
		"me":       me,
		"clientID": clientID,
		"issuedAt": n.now().UTC().Format(time.RFC1123),
	})
	if err != nil {
		return err
	}
	return n.sender.Send(&Message{
		To:      n.to,
		Subject: fmt.Sprintf("[%s] Token issued to %s", n.siteName, clientID),
		Body:    body,
		IsHTML:  true,
	})
}

func (n *Notifier) NotifyIssued(ctx context.Context, me, clientID string) {
	go func() {
		if err := n.send(me, clientID); err != nil {
			slog.Error("Issuance mail failed", "to", n.to, "error", err)
			return
		}
		slog.Debug("Issuance mail sent", "to", n.to, "clientID", clientID)
	}()
}

func NewNotifier(sender MailSender, to []string, siteName string) *Notifier {
	return &Notifier{
		sender:   sender,
		to:       to,
		siteName: siteName,
		engine:   newHtmlEngine(),
		now:      time.Now,
	}
}
