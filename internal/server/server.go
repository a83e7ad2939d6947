package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/indieauthify/indieauthify/internal/config"
	"github.com/indieauthify/indieauthify/internal/handlers"
	"github.com/indieauthify/indieauthify/internal/middlewares"
	"github.com/indieauthify/indieauthify/internal/middlewares/csrf"
	"github.com/indieauthify/indieauthify/internal/middlewares/sessions"
	"github.com/indieauthify/indieauthify/internal/render"
	"github.com/indieauthify/indieauthify/params"
)

// Services are the collaborators the HTTP surface is built on.
type Services struct {
	Authorize      handlers.AuthorizeService
	Grants         handlers.GrantService
	Tokens         handlers.TokenStore
	Login          handlers.LoginOrchestrator
	OAuthProviders []string
	SessionStorage fiber.Storage
}

func newSessionStore(cfg config.SessionConfig, storage fiber.Storage) *session.Store {
	return session.New(session.Config{
		Storage:        storage,
		Expiration:     cfg.SessionMaxAge,
		KeyLookup:      "cookie:" + cfg.CookieName,
		CookieHTTPOnly: cfg.CookieHttpOnly,
		CookieSecure:   cfg.CookieSecure,
		CookieSameSite: fiber.CookieSameSiteLaxMode,
	})
}

// New builds the fiber app serving every route.
func New(cfg *config.Config, svc Services) *fiber.App {
	render.InitValues(fiber.Map{
		"siteName": cfg.AppName,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		Views:        render.NewHtmlEngine(cfg.TemplateDir),
		ErrorHandler: middlewares.ErrorHandler,
		BodyLimit:    params.ServerBodyLimit,
		IdleTimeout:  params.ServerIdleTimeout,
		ReadTimeout:  params.ServerReadTimeout,
		WriteTimeout: params.ServerWriteTimeout,
	})

	loginHandler := handlers.NewLoginHandler(svc.Login, svc.OAuthProviders)
	oauthHandler := handlers.NewOAuthHandler(svc.Login)
	authHandler := handlers.NewAuthHandler(svc.Authorize, svc.Grants, svc.Login)
	tokenHandler := handlers.NewTokenHandler(svc.Grants, cfg.BaseURL)
	issuedHandler := handlers.NewIssuedHandler(svc.Tokens, svc.Grants, cfg.APIKeyHash)

	app.Use(sessions.SessionMiddleware(newSessionStore(cfg.Session, svc.SessionStorage)))

	app.Get("/", loginHandler.GetHome)
	app.Get("/login", loginHandler.GetLogin)
	app.Post("/login", csrf.New(), loginHandler.PostLogin)
	app.Get("/rel", loginHandler.GetRelMe)
	app.Get("/logout", loginHandler.GetLogout)

	app.Get("/auth", authHandler.GetAuthorize)
	app.Post("/auth", authHandler.PostAuthorize)
	app.Post("/auth/approve", csrf.New(), authHandler.PostApprove)
	app.Get("/auth/:provider", oauthHandler.GetOAuthLogin)
	app.Get("/auth/:provider/callback", oauthHandler.GetOAuthCallback)

	app.Get("/token", tokenHandler.GetToken)
	app.Post("/token", tokenHandler.PostToken)
	app.Post("/revoke", tokenHandler.PostRevoke)
	app.Get("/metadata", tokenHandler.GetMetadata)
	app.Get("/.well-known/oauth-authorization-server", tokenHandler.GetMetadata)

	app.Get("/issued", issuedHandler.RequireOwner, issuedHandler.GetIssued)
	app.Post("/issued", issuedHandler.RequireOwner, issuedHandler.RequireCSRF, issuedHandler.PostIssued)
	app.Post("/issued/revoke", issuedHandler.RequireOwner, issuedHandler.RequireCSRF, issuedHandler.PostRevoke)

	return app
}
