package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/indieauthify/indieauthify/internal/clientmeta"
	"github.com/indieauthify/indieauthify/internal/middlewares/csrf"
	"github.com/indieauthify/indieauthify/internal/middlewares/sessions"
	"github.com/indieauthify/indieauthify/internal/render"
	"github.com/indieauthify/indieauthify/internal/tokenstore"
	"github.com/indieauthify/indieauthify/model"
	"golang.org/x/crypto/bcrypt"
)

const (
	ownerContextKey = "owner"
	ownerViaAPIKey  = "api_key"
	ownerViaSession = "session"
	revokeAll       = "all"
	timeLayout      = "2006-01-02 15:04 MST"
)

// IssuedHandler serves the owner's token dashboard.
type IssuedHandler struct {
	tokenStore   TokenStore
	grantService GrantService
	apiKeyHash   []byte
}

func NewIssuedHandler(tokenStore TokenStore, grantService GrantService, apiKeyHash string) *IssuedHandler {
	return &IssuedHandler{
		tokenStore:   tokenStore,
		grantService: grantService,
		apiKeyHash:   []byte(apiKeyHash),
	}
}

func viaAPIKey(ctx *fiber.Ctx) bool {
	return ctx.Locals(ownerContextKey) == ownerViaAPIKey
}

// RequireOwner lets through the logged in owner, or a request carrying the
// API key as a bearer token.
func (h *IssuedHandler) RequireOwner(ctx *fiber.Ctx) error {
	if authorization := ctx.Get(fiber.HeaderAuthorization); authorization != "" {
		key := strings.TrimSpace(strings.TrimPrefix(authorization, "Bearer "))
		if len(h.apiKeyHash) == 0 || bcrypt.CompareHashAndPassword(h.apiKeyHash, []byte(key)) != nil {
			return fiber.NewError(fiber.StatusUnauthorized, MsgInvalidAPIKey)
		}
		ctx.Locals(ownerContextKey, ownerViaAPIKey)
		return ctx.Next()
	}

	data := sessions.Get(ctx)
	if !data.IsLoggedIn() {
		return redirect(ctx, "/login", fiber.Map{"r": ctx.OriginalURL()})
	}
	ctx.Locals(ownerContextKey, ownerViaSession)
	return ctx.Next()
}

// RequireCSRF checks the CSRF token of browser requests. API key requests
// carry no session and are exempt.
func (h *IssuedHandler) RequireCSRF(ctx *fiber.Ctx) error {
	if viaAPIKey(ctx) || csrf.Verify(ctx) {
		return ctx.Next()
	}
	return fiber.NewError(fiber.StatusForbidden, csrf.ErrInvalidToken.Error())
}

func issuedTokenView(token *model.IssuedToken, now time.Time) render.IssuedToken {
	view := render.IssuedToken{
		Token:     token.Token,
		ClientID:  token.ClientID,
		Scope:     token.Scope,
		IssuedAt:  token.IssuedAt.UTC().Format(timeLayout),
		ExpiresAt: time.Unix(token.ExpiresAt, 0).UTC().Format(timeLayout),
		Expired:   token.Expired(now),
	}
	if token.AppMetadataJSON != "" {
		var app clientmeta.App
		if err := json.Unmarshal([]byte(token.AppMetadataJSON), &app); err == nil {
			view.App = app
		}
	}
	return view
}

func (h *IssuedHandler) renderIssued(ctx *fiber.Ctx, issued string) error {
	tokens, err := h.tokenStore.ListIssued(ctx.Context())
	if err != nil {
		return err
	}
	if viaAPIKey(ctx) {
		return ctx.JSON(tokens)
	}

	tickets, err := h.tokenStore.ListTickets(ctx.Context())
	if err != nil {
		return err
	}

	now := time.Now()
	pageData := render.IssuedPageData{
		CSRFToken: csrf.Get(ctx),
		Issued:    issued,
	}
	for _, token := range tokens {
		pageData.Tokens = append(pageData.Tokens, issuedTokenView(token, now))
	}
	for _, ticket := range tickets {
		pageData.Tickets = append(pageData.Tickets, render.Ticket{
			Token:     ticket.Token,
			Resource:  ticket.Resource,
			CreatedAt: ticket.CreatedAt.UTC().Format(timeLayout),
		})
	}

	data := sessions.Get(ctx)
	pageData.Me = data.Login.Me
	if flashes := data.TakeFlashes(); len(flashes) > 0 {
		pageData.Flashes = flashes
		sessions.Set(ctx, data)
	}
	return render.RenderIssued(ctx, pageData)
}

// GetIssued lists issued tokens, or shows one with ?token=.
func (h *IssuedHandler) GetIssued(ctx *fiber.Ctx) error {
	tokenValue := ctx.Query("token")
	if tokenValue == "" {
		return h.renderIssued(ctx, "")
	}

	token, err := h.tokenStore.GetIssued(ctx.Context(), tokenValue)
	if errors.Is(err, tokenstore.ErrTokenNotFound) {
		return fiber.NewError(fiber.StatusNotFound, MsgTokenNotFound)
	}
	if err != nil {
		return err
	}
	if viaAPIKey(ctx) {
		return ctx.JSON(token)
	}
	return render.RenderToken(ctx, render.TokenPageData{
		CSRFToken: csrf.Get(ctx),
		Token:     issuedTokenView(token, time.Now()),
	})
}

// PostIssued issues a token by hand.
func (h *IssuedHandler) PostIssued(ctx *fiber.Ctx) error {
	issued, err := h.grantService.IssueManual(ctx.Context(), ctx.FormValue("client_id"), ctx.FormValue("scope"))
	if err != nil {
		return err
	}
	if viaAPIKey(ctx) {
		return ctx.Status(fiber.StatusCreated).JSON(issued)
	}
	return h.renderIssued(ctx, issued.Token)
}

// PostRevoke revokes one token, or every token with token=all.
func (h *IssuedHandler) PostRevoke(ctx *fiber.Ctx) error {
	tokenValue := ctx.FormValue("token")
	if tokenValue == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing token parameter")
	}

	var message string
	category := FlashSuccess
	if tokenValue == revokeAll {
		count, err := h.tokenStore.RevokeAll(ctx.Context())
		if err != nil {
			category, message = FlashError, fmt.Sprintf(MsgTokenRevokeFailed, err)
		} else {
			message = fmt.Sprintf(MsgAllTokensRevoked, count)
		}
	} else if err := h.tokenStore.Revoke(ctx.Context(), tokenValue); err != nil {
		category, message = FlashError, fmt.Sprintf(MsgTokenRevokeFailed, err)
	} else {
		message = MsgTokenRevoked
	}

	if viaAPIKey(ctx) {
		if category == FlashError {
			return fiber.NewError(fiber.StatusInternalServerError, message)
		}
		return ctx.JSON(fiber.Map{})
	}
	sessions.AddFlash(ctx, category, message)
	return redirectSeeOther(ctx, "/issued")
}
