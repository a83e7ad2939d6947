package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/indieauthify/indieauthify/internal/middlewares/sessions"
	"github.com/indieauthify/indieauthify/params"
)

const (
	HeaderName = "X-CSRF-Token"
	FormField  = "_csrf"
)

var (
	ErrInvalidToken = errors.New("invalid CSRF token")
)

// Get returns the session's CSRF token, issuing a new one when it is missing
// or expired.
func Get(ctx *fiber.Ctx) string {
	data := sessions.Get(ctx)
	if data.CSRFToken == "" || time.Now().After(data.CSRFExpiresAt) {
		data.CSRFToken = randomToken()
		data.CSRFExpiresAt = time.Now().Add(params.CSRFTokenExpiration)
		sessions.Set(ctx, data)
	}
	return data.CSRFToken
}

func Verify(ctx *fiber.Ctx) bool {
	token := ctx.Get(HeaderName)
	if token == "" && ctx.Method() == fiber.MethodPost {
		token = ctx.FormValue(FormField)
	}

	data := sessions.Get(ctx)
	if token == "" || data.CSRFToken == "" || time.Now().After(data.CSRFExpiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(data.CSRFToken), []byte(token)) == 1
}

func randomToken() string {
	const tokenLength = 32
	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate CSRF token: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// New rejects state-changing requests that do not carry the session's CSRF
// token.
func New() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		switch ctx.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return ctx.Next()
		}
		if !Verify(ctx) {
			return fiber.NewError(fiber.StatusForbidden, ErrInvalidToken.Error())
		}
		return ctx.Next()
	}
}
