package middlewares

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/indieauthify/indieauthify/internal/auth"
	"github.com/indieauthify/indieauthify/internal/render"
)

// ErrorHandler renders protocol errors as OAuth JSON bodies and anything
// else as an error page.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	var oauthErr *auth.Error
	if errors.As(err, &oauthErr) {
		switch {
		case oauthErr.Status >= fiber.StatusInternalServerError:
			slog.Error("Request failed", "path", ctx.Path(), "error", oauthErr.Err)
		case auth.IsGrantFailure(oauthErr):
			slog.Warn("Grant rejected", "path", ctx.Path(), "ip", ctx.IP(), "error", oauthErr)
		default:
			slog.Debug("Invalid request", "path", ctx.Path(), "error", oauthErr)
		}
		resp := oauthErr.Response()
		if oauthErr.Status >= fiber.StatusInternalServerError {
			resp.ErrorDescription = ""
		}
		return ctx.Status(oauthErr.Status).JSON(resp)
	}

	code := fiber.StatusInternalServerError
	message := "Something went wrong."
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}
	if code >= fiber.StatusInternalServerError {
		slog.Error("Unhandled error", "code", code, "path", ctx.Path(), "error", err)
	}
	return render.RenderError(ctx.Status(code), render.ErrorPageData{Code: code, Message: message})
}
