package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fredis "github.com/gofiber/storage/redis/v3"
	"github.com/indieauthify/indieauthify/internal/auth"
	"github.com/indieauthify/indieauthify/internal/clientmeta"
	"github.com/indieauthify/indieauthify/internal/codec"
	"github.com/indieauthify/indieauthify/internal/config"
	"github.com/indieauthify/indieauthify/internal/database"
	"github.com/indieauthify/indieauthify/internal/login"
	"github.com/indieauthify/indieauthify/internal/mail"
	"github.com/indieauthify/indieauthify/internal/oauth"
	"github.com/indieauthify/indieauthify/internal/profile"
	"github.com/indieauthify/indieauthify/internal/relme"
	"github.com/indieauthify/indieauthify/internal/server"
	"github.com/indieauthify/indieauthify/internal/store"
	"github.com/indieauthify/indieauthify/internal/tokenstore"
	"github.com/indieauthify/indieauthify/internal/webfetch"
	"github.com/indieauthify/indieauthify/internal/webhook"
	"github.com/indieauthify/indieauthify/params"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
	resourceFlag = &cli.StringFlag{
		Name:     "resource",
		Usage:    "Space separated resources the ticket grants access to",
		Required: true,
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "IndieAuth identity provider"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
		{
			Name:  "ticket",
			Usage: "Manage ticket grants",
			Subcommands: []*cli.Command{
				{
					Name:   "add",
					Usage:  "Create a ticket",
					Flags:  []cli.Flag{resourceFlag},
					Action: addTicket,
				},
				{
					Name:   "list",
					Usage:  "List outstanding tickets",
					Action: listTickets,
				},
			},
		},
		{
			Name:      "hash-key",
			Usage:     "Print the bcrypt hash of an API key for apiKeyHash",
			ArgsUsage: "<api key>",
			Action:    hashKey,
		},
	}
	app.Action = run
}

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		return nil, err
	}
	if ctx.IsSet(debugFlag.Name) {
		cfg.Debug = true
	}
	return cfg, nil
}

func initLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func openDatabase(ctx *cli.Context) (*config.Config, *gorm.DB, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return nil, nil, err
	}
	initLogger(cfg.Debug)

	db, err := database.Open(ctx.Context, cfg.Database, cfg.Debug)
	if err != nil {
		slog.Error("Could not open database.", "driver", cfg.Database.Driver, "error", err)
		return nil, nil, err
	}
	return cfg, db, nil
}

// initStores returns the spent-code store and the session storage. Both live
// in Redis when redisURL is set, in process memory otherwise.
func initStores(cfg *config.Config) (store.Store, fiber.Storage, func() error) {
	if cfg.RedisURL != "" {
		storage := fredis.New(fredis.Config{URL: cfg.RedisURL})
		slog.Info("Using Redis for sessions and spent codes")
		return store.NewRedisStore(storage.Conn(), "indieauthify:spent:"),
			store.WithPrefix(storage, "indieauthify:session:"),
			storage.Close
	}
	mem := store.NewMemoryStore()
	return mem, store.WithPrefix(mem.Storage(), "session:"), mem.Storage().Close
}

func initOAuthProviders(cfg *config.Config) []oauth.OAuthProvider {
	var providers []oauth.OAuthProvider
	if cfg.GitHub.ClientID != "" {
		redirectURL := cfg.GitHub.RedirectURL
		if redirectURL == "" {
			redirectURL = cfg.BaseURL + "/auth/github/callback"
		}
		providers = append(providers, oauth.NewGitHubOAuthProvider("github",
			cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, redirectURL, cfg.GitHub.Scope))
	}
	return providers
}

func run(ctx *cli.Context) error {
	cfg, db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close(db)

	spentCodes, sessionStorage, closeStores := initStores(cfg)
	defer closeStores()

	fetcher := webfetch.NewHTTPFetcher(cfg.RPCTimeout, cfg.AppName+"/"+params.Version)
	resolver := clientmeta.NewResolver(fetcher)
	signer := codec.NewCodec(cfg.SigningKey)
	tokens := tokenstore.NewStore(db)

	var notifiers auth.Notifiers
	if cfg.Webhook.URL != "" {
		notifiers = append(notifiers, webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.APIKey, cfg.RPCTimeout))
	}
	if cfg.Mail.Host != "" {
		notifiers = append(notifiers, mail.NewNotifier(mail.NewSMTPMailSender(cfg.Mail), cfg.Mail.To, cfg.AppName))
	}

	providers := initOAuthProviders(cfg)
	providerNames := make([]string, 0, len(providers))
	for _, provider := range providers {
		providerNames = append(providerNames, provider.Name())
	}
	if len(providers) == 0 {
		slog.Warn("No federated login provider configured, nobody will be able to log in")
	}

	router := server.New(cfg, server.Services{
		Authorize: auth.NewAuthorizeService(resolver, signer),
		Grants: auth.NewGrantService(auth.GrantServiceConfig{
			Owner:      cfg.Me,
			Codec:      signer,
			TokenStore: tokens,
			SpentCodes: spentCodes,
			Resolver:   resolver,
			Profiles:   profile.NewLookup(fetcher),
			Notifier:   notifiers,
		}),
		Tokens:         tokens,
		Login:          login.NewOrchestrator(cfg.Me, oauth.NewOAuthService(providers), relme.NewVerifier(fetcher)),
		OAuthProviders: providerNames,
		SessionStorage: sessionStorage,
	})

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting IndieAuth server", "address", cfg.ListenAddr, "me", cfg.Me, "version", params.Version)
		errCh <- router.Listen(cfg.ListenAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return router.ShutdownWithContext(shutdownCtx)
}

func addTicket(ctx *cli.Context) error {
	_, db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close(db)

	ticket, err := tokenstore.NewStore(db).AddTicket(ctx.Context, ctx.String(resourceFlag.Name))
	if err != nil {
		return err
	}
	fmt.Println(ticket.Token)
	return nil
}

func listTickets(ctx *cli.Context) error {
	_, db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close(db)

	tickets, err := tokenstore.NewStore(db).ListTickets(ctx.Context)
	if err != nil {
		return err
	}
	for _, ticket := range tickets {
		fmt.Printf("%s\t%s\t%s\n", ticket.Token, ticket.CreatedAt.Format(time.RFC3339), ticket.Resource)
	}
	return nil
}

func hashKey(ctx *cli.Context) error {
	key := ctx.Args().First()
	if key == "" {
		return errors.New("missing api key argument")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	fmt.Println(string(hash))
	return nil
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
