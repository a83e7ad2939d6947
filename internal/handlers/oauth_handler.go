package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/indieauthify/indieauthify/internal/login"
	"github.com/indieauthify/indieauthify/internal/middlewares/sessions"
	"github.com/indieauthify/indieauthify/internal/oauth"
)

// OAuthHandler bounces the user through a federated login provider.
type OAuthHandler struct {
	orchestrator LoginOrchestrator
}

func NewOAuthHandler(orchestrator LoginOrchestrator) *OAuthHandler {
	return &OAuthHandler{orchestrator: orchestrator}
}

func (h *OAuthHandler) GetOAuthLogin(ctx *fiber.Ctx) error {
	providerName := ctx.Params("provider")
	data := sessions.Get(ctx)
	if data.IsLoggedIn() {
		return ctx.Redirect("/")
	}

	next, authURL, err := h.orchestrator.BeginFederated(data.Login, providerName)
	if errors.Is(err, oauth.ErrUnknownProvider) {
		return fiber.ErrNotFound
	}
	if errors.Is(err, login.ErrNoDomainClaimed) {
		return ctx.Redirect("/login")
	}
	if err != nil {
		return err
	}

	data.Login = next
	sessions.Set(ctx, data)
	slog.Debug("Login requested, bouncing to provider", "provider", providerName)
	return ctx.Redirect(authURL)
}

func (h *OAuthHandler) GetOAuthCallback(ctx *fiber.Ctx) error {
	data := sessions.Get(ctx)
	if errMsg := ctx.Query("error"); errMsg != "" {
		data.Login = h.orchestrator.Logout(data.Login)
		data.AddFlash(FlashError, fmt.Sprintf("%s: %s", ctx.Params("provider"), errMsg))
		sessions.Set(ctx, data)
		return ctx.Redirect("/login")
	}

	next, err := h.orchestrator.CompleteFederated(ctx.Context(), data.Login, ctx.Query("state"), ctx.Query("code"))
	data.Login = next
	if err != nil {
		data.AddFlash(FlashError, err.Error())
		sessions.Set(ctx, data)
		return ctx.Redirect("/login")
	}

	location := data.Login.TakeRedirect()
	if location == "" {
		location = "/"
	}
	data.LoginTime = time.Now()
	data.AddFlash(FlashSuccess, fmt.Sprintf(MsgLoginSucceeded, data.Login.Me))
	if err := sessions.Reset(ctx, &data); err != nil {
		return err
	}
	return ctx.Redirect(location)
}
