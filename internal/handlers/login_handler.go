package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/indieauthify/indieauthify/internal/middlewares/csrf"
	"github.com/indieauthify/indieauthify/internal/middlewares/sessions"
	"github.com/indieauthify/indieauthify/internal/render"
)

// LoginHandler serves the domain login pages.
type LoginHandler struct {
	orchestrator   LoginOrchestrator
	oauthProviders []string
}

// NewLoginHandler returns a new instance of LoginHandler.
func NewLoginHandler(orchestrator LoginOrchestrator, oauthProviders []string) *LoginHandler {
	return &LoginHandler{
		orchestrator:   orchestrator,
		oauthProviders: oauthProviders,
	}
}

func (h *LoginHandler) getOAuthLoginURLs() map[string]string {
	oauthLoginURLs := make(map[string]string)
	for _, name := range h.oauthProviders {
		oauthLoginURLs[name] = "/auth/" + name
	}
	return oauthLoginURLs
}

// finishLogin sends an authenticated user to the pending redirect, once.
func (h *LoginHandler) finishLogin(ctx *fiber.Ctx, data sessions.SessionData) error {
	location := data.Login.TakeRedirect()
	sessions.Set(ctx, data)
	if location == "" {
		location = "/"
	}
	return ctx.Redirect(location)
}

func (h *LoginHandler) GetHome(ctx *fiber.Ctx) error {
	data := sessions.Get(ctx)
	flashes := data.TakeFlashes()
	if len(flashes) > 0 {
		sessions.Set(ctx, data)
	}
	return render.RenderHomePage(ctx, render.HomePageData{
		Me:       data.Login.Me,
		LoggedIn: data.IsLoggedIn(),
		Flashes:  flashes,
	})
}

func (h *LoginHandler) GetLogin(ctx *fiber.Ctx) error {
	csrfToken := csrf.Get(ctx)
	data := sessions.Get(ctx)
	data.Login = h.orchestrator.CaptureRedirect(data.Login, ctx.Query("r"))

	if data.IsLoggedIn() {
		return h.finishLogin(ctx, data)
	}
	if data.Login.PendingDomain != "" {
		sessions.Set(ctx, data)
		return ctx.Redirect("/rel")
	}

	flashes := data.TakeFlashes()
	sessions.Set(ctx, data)
	return render.RenderLogin(ctx, render.LoginPageData{
		CSRFToken: csrfToken,
		Redirect:  data.Login.PostLoginRedirect,
		Flashes:   flashes,
	})
}

func (h *LoginHandler) PostLogin(ctx *fiber.Ctx) error {
	data := sessions.Get(ctx)
	data.Login = h.orchestrator.CaptureRedirect(data.Login, ctx.Query("r"))
	if data.IsLoggedIn() {
		return h.finishLogin(ctx, data)
	}

	next, err := h.orchestrator.SubmitDomain(data.Login, ctx.FormValue("domain"))
	data.Login = next
	if err != nil {
		data.AddFlash(FlashError, err.Error())
		sessions.Set(ctx, data)
		return redirectSeeOther(ctx, "/login")
	}
	sessions.Set(ctx, data)
	return redirectSeeOther(ctx, "/rel")
}

func (h *LoginHandler) GetRelMe(ctx *fiber.Ctx) error {
	data := sessions.Get(ctx)
	if data.IsLoggedIn() {
		return h.finishLogin(ctx, data)
	}
	if data.Login.PendingDomain == "" {
		return ctx.Redirect("/login")
	}

	pageData := render.RelMePageData{
		Domain:         data.Login.PendingDomain,
		Me:             h.orchestrator.Policy().Owner,
		OAuthLoginURLs: h.getOAuthLoginURLs(),
	}
	links, err := h.orchestrator.RelMeLinks(ctx.Context(), data.Login)
	if err != nil {
		pageData.ErrorMsg = fmt.Sprintf(MsgRelMeUnavailable, err)
	}
	pageData.Links = links

	if flashes := data.TakeFlashes(); len(flashes) > 0 {
		pageData.Flashes = flashes
		sessions.Set(ctx, data)
	}
	return render.RenderRelMe(ctx, pageData)
}

func (h *LoginHandler) GetLogout(ctx *fiber.Ctx) error {
	if err := sessions.Destroy(ctx); err != nil {
		return err
	}
	return ctx.Redirect("/")
}
