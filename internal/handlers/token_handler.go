package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/indieauthify/indieauthify/internal/auth"
	"github.com/indieauthify/indieauthify/params"
)

type Metadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	RevocationEndpoint            string   `json:"revocation_endpoint"`
	IntrospectionEndpoint         string   `json:"introspection_endpoint"`
	ScopesSupported               []string `json:"scopes_supported"`
	ResponseTypesSupported        []string `json:"response_types_supported"`
	GrantTypesSupported           []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
}

// TokenHandler serves the token, introspection, revocation and discovery
// endpoints.
type TokenHandler struct {
	grantService GrantService
	baseURL      string
}

func NewTokenHandler(grantService GrantService, baseURL string) *TokenHandler {
	return &TokenHandler{
		grantService: grantService,
		baseURL:      baseURL,
	}
}

// PostToken exchanges a grant for an access token, or revokes a token when
// action=revoke.
func (h *TokenHandler) PostToken(ctx *fiber.Ctx) error {
	var req auth.TokenRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}

	if req.Action == auth.ActionRevoke {
		token := req.Token
		if token == "" {
			token = req.Code
		}
		if err := h.grantService.Revoke(ctx.Context(), token); err != nil {
			return err
		}
		return ctx.JSON(fiber.Map{})
	}

	resp, err := h.grantService.Exchange(ctx.Context(), req)
	if err != nil {
		return err
	}
	ctx.Set(fiber.HeaderCacheControl, "no-store")
	return ctx.JSON(resp)
}

// GetToken introspects the bearer token in the Authorization header.
func (h *TokenHandler) GetToken(ctx *fiber.Ctx) error {
	resp, err := h.grantService.Introspect(ctx.Context(), ctx.Get(fiber.HeaderAuthorization), ctx.Query("resource"))
	if err != nil {
		return err
	}
	return ctx.JSON(resp)
}

func (h *TokenHandler) PostRevoke(ctx *fiber.Ctx) error {
	if err := h.grantService.Revoke(ctx.Context(), ctx.FormValue("token")); err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{})
}

func (h *TokenHandler) GetMetadata(ctx *fiber.Ctx) error {
	baseURL := h.baseURL
	if baseURL == "" {
		baseURL = ctx.BaseURL()
	}
	return ctx.JSON(Metadata{
		Issuer:                        baseURL + "/",
		AuthorizationEndpoint:         baseURL + "/auth",
		TokenEndpoint:                 baseURL + "/token",
		RevocationEndpoint:            baseURL + "/revoke",
		IntrospectionEndpoint:         baseURL + "/token",
		ScopesSupported:               params.ScopesSupported,
		ResponseTypesSupported:        []string{auth.ResponseTypeCode, auth.ResponseTypeID},
		GrantTypesSupported:           []string{auth.GrantTypeAuthorizationCode, auth.GrantTypeTicket},
		CodeChallengeMethodsSupported: []string{auth.CodeChallengeMethodS256},
	})
}
