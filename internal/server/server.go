// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"

	"codeberg.org/oliverandrich/votany/internal/config"
	"codeberg.org/oliverandrich/votany/internal/database"
	"codeberg.org/oliverandrich/votany/internal/handlers"
	"codeberg.org/oliverandrich/votany/internal/i18n"
	"codeberg.org/oliverandrich/votany/internal/metrics"
	"codeberg.org/oliverandrich/votany/internal/middleware"
	"codeberg.org/oliverandrich/votany/internal/repository"
	"codeberg.org/oliverandrich/votany/internal/services/account"
	"codeberg.org/oliverandrich/votany/internal/services/auth"
	"codeberg.org/oliverandrich/votany/internal/services/email"
	"codeberg.org/oliverandrich/votany/internal/services/polls"
	"codeberg.org/oliverandrich/votany/internal/sse"
)

const shutdownTimeout = 10 * time.Second

// ShutdownEvent is the last event an open stream receives before the
// server stops.
const ShutdownEvent = "shutdown"

// App is the assembled HTTP application.
type App struct {
	Echo     *echo.Echo
	Repo     *repository.Repository
	Hub      *sse.Hub
	Metrics  *metrics.Metrics
	Handlers *handlers.Handlers

	cfg      *config.Config
	notifier account.Notifier
}

// Option configures an App.
type Option func(*App)

// WithNotifier replaces the email service used by the account workflow.
func WithNotifier(n account.Notifier) Option {
	return func(a *App) {
		a.notifier = n
	}
}

// New wires the services around db and registers all routes.
func New(cfg *config.Config, db *sqlx.DB, opts ...Option) (*App, error) {
	app := &App{cfg: cfg}
	for _, opt := range opts {
		opt(app)
	}

	if cfg.Metrics.Enabled {
		app.Metrics = metrics.New()
	}

	app.Repo = repository.New(db, repository.WithResetTTL(cfg.Auth.ResetTTL))

	if app.notifier == nil {
		mailer, err := email.NewService(cfg, email.WithMetrics(app.Metrics))
		if err != nil {
			return nil, fmt.Errorf("failed to set up email: %w", err)
		}
		app.notifier = mailer
	}

	accounts := account.NewService(app.Repo, app.Repo, app.notifier, cfg, account.WithMetrics(app.Metrics))
	authSvc := auth.NewService(app.Repo, &cfg.Auth)
	app.Hub = sse.NewHub()
	pollSvc := polls.NewService(app.Repo, app.Repo,
		polls.WithPublisher(app.Hub),
		polls.WithMetrics(app.Metrics),
	)
	app.Handlers = handlers.New(db, accounts, authSvc, pollSvc, app.Hub)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.HTTPErrorHandler

	setupMiddleware(e, cfg, authSvc)
	app.setupRoutes(e)
	app.Echo = e

	return app, nil
}

func (a *App) setupRoutes(e *echo.Echo) {
	h := a.Handlers

	e.GET("/health", h.Health)
	if a.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(a.Metrics.Handler()))
	}

	api := e.Group("/api")

	user := api.Group("/user")
	user.POST("/register", h.Register)
	user.GET("/verify/:verifyId", h.Verify)
	user.POST("/requestPasswordReset", h.RequestPasswordReset)
	user.GET("/authenticatePasswordReset/:authenticateId", h.AuthenticatePasswordReset)
	user.POST("/changePassword/:authenticateId", h.ChangePassword)
	user.POST("/login", h.Login)
	user.GET("/testlogin", h.TestLogin, middleware.RequireAuth)
	user.GET("/profile/:screenName", h.Profile)
	user.GET("/me", h.Me, middleware.RequireAuth)

	poll := api.Group("/poll")
	poll.GET("", h.RecentPolls)
	poll.GET("/search", h.SearchPolls)
	poll.POST("/create", h.CreatePoll, middleware.RequireAuth)
	poll.PUT("/vote/:pollId", h.Vote)
	poll.PUT("/addchoice/:pollId", h.AddChoice, middleware.RequireAuth)
	poll.DELETE("/delete/:pollId", h.DeletePoll, middleware.RequireAuth)
	poll.GET("/:pollId", h.GetPoll)
	poll.GET("/:pollId/events", h.PollEvents)
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return err
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database, migrations are applied on open
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	app, err := New(cfg, db)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reaper := repository.NewReaper(app.Repo, cfg.Reaper.Interval, app.Metrics)
	go reaper.Run(ctx)

	return app.serve(ctx)
}

func (a *App) serve(ctx context.Context) error {
	cfg := a.cfg
	mode, tlsConfig, err := SetupTLS(cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	errChan := make(chan error, 1)

	go func() {
		slog.Info("server running", "url", cfg.Server.BaseURL, "tls", string(mode))
		var err error
		if mode == TLSModeManual {
			err = startTLSServer(a.Echo, addr, tlsConfig)
		} else {
			err = a.Echo.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	a.closeStreams()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// closeStreams tells every open event stream that the server is going away
// and ends it. Event streams never finish on their own.
func (a *App) closeStreams() {
	a.Hub.Broadcast(sse.FormatEvent(ShutdownEvent, "The server is shutting down."))
	a.Hub.Close()
}

// startTLSServer starts the Echo server with a custom TLS configuration.
func startTLSServer(e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	return e.Server.Serve(e.TLSListener)
}
