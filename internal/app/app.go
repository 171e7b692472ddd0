package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/auth"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/config"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/mailer"
	"github.com/sistemaspreventiva/Pagina-radicacionFacturas/internal/store"
)

type App struct {
	config     *config.Config
	logger     *slog.Logger
	db         *sqlx.DB
	userStore  *store.UserStore
	tokens     *auth.TokenIssuer
	dispatcher *mailer.Dispatcher
	smtp       *mailer.SMTPTransport
}

func (app *App) Close() {
	app.db.Close()
}

// New wires the application from cfg. Mail misconfiguration is logged and
// tolerated; a database that cannot be opened or migrated is fatal.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := newLogger(cfg)

	for _, w := range cfg.Warnings() {
		logger.Warn("config: " + w)
	}

	if err := store.MigrateUp(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	dispatcher, sel := mailer.New(cfg.Mail, logger)
	for _, w := range sel.Warnings {
		logger.Warn("mailer: " + w)
	}
	logger.Info("mailer: transport selected",
		"requested", sel.Requested,
		"effective", sel.Effective,
		"downgraded", sel.Downgraded(),
		"dry_run", sel.DryRun,
	)

	return &App{
		config:     cfg,
		logger:     logger,
		db:         db,
		userStore:  store.NewUserStore(db),
		tokens:     auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		dispatcher: dispatcher,
		smtp:       mailer.NewSMTPTransport(cfg.Mail.SMTP, nil),
	}, nil
}

func (app *App) Start(ctx context.Context) error {
	// Create an errgroup derived from the parent context
	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", app.config.Port),
		Handler:           app.routes(),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		ErrorLog:          slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
	}

	// Start the server in a goroutine
	g.Go(func() error {
		app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	// Report relay reachability once at boot; failures only warn.
	if app.dispatcher.Transport() == string(mailer.ProviderSMTP) && app.config.Mail.SMTP.Host != "" {
		g.Go(func() error {
			app.verifySMTP(gctx)
			return nil
		})
	}

	// Start shutdown listener
	g.Go(func() error {
		<-gctx.Done() // Wait for OS signal or parent context to fail

		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	app.logger.Info("stopped server")
	return nil
}

func (app *App) verifySMTP(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, app.config.Mail.SMTP.ConnectionTimeout+app.config.Mail.SMTP.GreetingTimeout)
	defer cancel()

	if err := app.smtp.Verify(ctx); err != nil {
		app.logger.Warn("mailer: smtp verify failed", "address", app.smtp.Address(), "err", err, "timeout", mailer.IsTimeout(err))
		return
	}
	app.logger.Info("mailer: smtp ready", "address", app.smtp.Address())
}

func newLogger(cfg *config.Config) *slog.Logger {
	logLevel := slog.LevelInfo

	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	slog.SetDefault(logger)
	return logger
}
