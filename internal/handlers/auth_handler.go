package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/indieauthify/indieauthify/internal/auth"
	"github.com/indieauthify/indieauthify/internal/middlewares/csrf"
	"github.com/indieauthify/indieauthify/internal/middlewares/sessions"
	"github.com/indieauthify/indieauthify/internal/render"
)

// AuthHandler serves the authorization endpoint.
type AuthHandler struct {
	authorizeService AuthorizeService
	grantService     GrantService
	orchestrator     LoginOrchestrator
}

// NewAuthHandler returns a new instance of AuthHandler.
func NewAuthHandler(authorizeService AuthorizeService, grantService GrantService, orchestrator LoginOrchestrator) *AuthHandler {
	return &AuthHandler{
		authorizeService: authorizeService,
		grantService:     grantService,
		orchestrator:     orchestrator,
	}
}

func identityOf(data sessions.SessionData) auth.Identity {
	return auth.Identity{Me: data.Login.Me, LoggedIn: data.IsLoggedIn()}
}

func (h *AuthHandler) redirectLogin(ctx *fiber.Ctx, req auth.AuthorizationRequest, clearSession bool) error {
	returnTo := "/auth?" + req.Values().Encode()
	data := sessions.Get(ctx)
	if clearSession {
		data = sessions.SessionData{}
		data.AddFlash(FlashWarning, fmt.Sprintf(MsgSignInAs, req.ClientID, req.Me, req.Me))
		data.Login = h.orchestrator.CaptureRedirect(data.Login, returnTo)
		if err := sessions.Reset(ctx, &data); err != nil {
			return err
		}
	} else {
		data.Login = h.orchestrator.CaptureRedirect(data.Login, returnTo)
		sessions.Set(ctx, data)
	}
	return redirect(ctx, "/login", fiber.Map{"r": returnTo})
}

func (h *AuthHandler) GetAuthorize(ctx *fiber.Ctx) error {
	var req auth.AuthorizationRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.ErrBadRequest
	}

	csrfToken := csrf.Get(ctx)
	data := sessions.Get(ctx)
	decision := h.authorizeService.Validate(ctx.Context(), req, identityOf(data))
	switch decision.Phase {
	case auth.PhaseAwaitingLogin:
		return h.redirectLogin(ctx, req, decision.ClearSession)
	case auth.PhaseRejected:
		return decision.Err
	}

	return render.RenderConsent(ctx, render.ConsentPageData{
		CSRFToken:    csrfToken,
		Me:           auth.CanonicalMe(data.Login.Me),
		ClientID:     req.ClientID,
		RedirectURI:  req.RedirectURI,
		ResponseType: req.ResponseType,
		State:        req.State,
		Challenge:    req.CodeChallenge,
		Method:       req.CodeChallengeMethod,
		Scopes:       req.Scopes(),
		App:          decision.Client.App,
	})
}

// PostApprove handles the consent form. Scopes the user unticked are left
// out of the code.
func (h *AuthHandler) PostApprove(ctx *fiber.Ctx) error {
	var req auth.AuthorizationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}

	var approved []string
	if req.Scope != "" {
		approved = []string{}
		for _, scope := range ctx.Request().PostArgs().PeekMulti("approved_scope") {
			approved = append(approved, string(scope))
		}
	}

	grant, err := h.authorizeService.Approve(ctx.Context(), req, identityOf(sessions.Get(ctx)), approved)
	if err != nil {
		return err
	}
	return ctx.Redirect(grant.RedirectURL)
}

// PostAuthorize redeems a code issued for response_type=id, which only
// proves who the user is.
func (h *AuthHandler) PostAuthorize(ctx *fiber.Ctx) error {
	var req auth.TokenRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	resp, err := h.grantService.VerifyAuthenticationCode(ctx.Context(), req)
	if err != nil {
		return err
	}
	return ctx.JSON(resp)
}
