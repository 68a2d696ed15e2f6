package main

import (
	"context"
	"crypto/sha256"
	"os"
	"os/signal"
	"syscall"
	"time"

	userauth "github.com/goliatone/go-userauth"
	"github.com/goliatone/go-userauth/activitymap"
	"github.com/goliatone/go-userauth/config"
	"github.com/goliatone/go-userauth/database"
	"github.com/goliatone/go-userauth/httpapi"
	"github.com/goliatone/go-userauth/logging"
	"github.com/goliatone/go-userauth/mailer"
	"github.com/goliatone/go-userauth/views"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "text", "info").Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.SlogLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.OpenAndMigrate(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	repos := userauth.NewRepositoryManager(db)
	repos.MustValidate()

	audit := logger.With("component", "audit")
	async := mailer.NewAsyncDispatcher(newDispatcher(cfg, logger), logger.With("component", "mailer"))

	svc, err := userauth.NewService(cfg, userauth.Dependencies{
		Store:  repos.Accounts(),
		Mailer: async,
		Logger: logger.With("component", "auth"),
		Activity: userauth.ActivitySinkFunc(func(_ context.Context, event userauth.ActivityEvent) error {
			record := activitymap.Normalize(event)
			audit.Info(record.Verb,
				"actor", record.ActorID,
				"object", record.ObjectID,
				"metadata", record.Metadata,
				"occurred_at", record.OccurredAt,
			)
			return nil
		}),
	})
	if err != nil {
		return err
	}

	debug := cfg.LogLevel == "debug"
	app := httpapi.NewApp(logger, debug)
	httpapi.RegisterRoutes(app, svc,
		httpapi.WithLogger(logger.With("component", "http")),
		httpapi.WithDebug(debug),
		httpapi.WithSecureCookies(cfg.CookieSecure),
		httpapi.WithRateLimits(cfg.LoginRateLimit, cfg.RegisterRateLimit, cfg.RateLimitWindow),
		httpapi.WithCSRFKey(csrfKey(cfg.SigningKey)),
	)

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		errc <- app.Listen(cfg.HTTPAddr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := async.Close(shutdownCtx); err != nil {
		logger.Warn("pending emails dropped", "error", err)
	}
	return nil
}

// csrfKey derives the form signing key from the JWT secret
func csrfKey(secret string) []byte {
	sum := sha256.Sum256([]byte("csrf:" + secret))
	return sum[:]
}

func newDispatcher(cfg *config.Config, logger *logging.SlogLogger) userauth.EmailDispatcher {
	if cfg.SMTP.Host == "" {
		logger.Warn("SMTP_HOST not set, emails are written to the log")
		return mailer.NewLogDispatcher(cfg.FrontendURL, logger.With("component", "mailer"))
	}

	engine := views.NewEngine()
	return mailer.NewSMTPDispatcher(mailer.SMTPConfig{
		Host:            cfg.SMTP.Host,
		Port:            cfg.SMTP.Port,
		User:            cfg.SMTP.User,
		Password:        cfg.SMTP.Password,
		From:            cfg.SMTP.From,
		FrontendURL:     cfg.FrontendURL,
		VerificationTTL: cfg.VerificationTokenTTL,
		ResetTTL:        cfg.PasswordResetTTL,
	}, engine)
}
