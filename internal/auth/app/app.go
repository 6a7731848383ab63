package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	httpapi "github.com/northquay/tokend/internal/auth/http"
	"github.com/northquay/tokend/internal/auth/identity"
	"github.com/northquay/tokend/internal/auth/service"
	"github.com/northquay/tokend/internal/auth/store"
	"github.com/northquay/tokend/internal/auth/store/drivers/postgres"
	"github.com/northquay/tokend/internal/auth/store/drivers/sqlite"
	"github.com/northquay/tokend/pkg/jwtx"
	"github.com/northquay/tokend/pkg/obs"
	"github.com/northquay/tokend/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the token service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db store.Store

	tokenService        *service.TokenService
	housekeepingService *service.HousekeepingService

	// router is swapped atomically on SIGHUP so in-flight requests keep
	// the handler graph they started with.
	router atomic.Pointer[httpapi.Router]
	server *http.Server
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "tokend",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	obs.Init()

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("token service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)

	for {
		select {
		case err := <-serverErrors:
			if err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil

		case <-reload:
			app.logger.Info("reload signal received")
			if err := app.Reload(); err != nil {
				app.logger.Error("configuration reload failed", "error", err)
			}

		case sig := <-shutdown:
			app.logger.Info("shutdown signal received", "signal", sig)

			if err := app.Shutdown(); err != nil {
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			return nil
		}
	}
}

// Reload re-reads the environment and rebuilds the service graph. The
// store and listening socket are kept; token parameters, secrets and
// routing take effect for subsequent requests.
func (app *Application) Reload() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	app.cfg = cfg

	if err := app.initServices(); err != nil {
		return err
	}

	router := app.buildRouter()
	app.router.Store(router)

	app.logger.Info("configuration reloaded")
	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down token service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("token service stopped")
	return nil
}

// initDatabase opens the configured storage backend and applies migrations.
func (app *Application) initDatabase() error {
	var (
		db  store.Store
		err error
	)

	switch app.cfg.StoreDriver {
	case "postgres":
		db, err = postgres.NewStore(app.cfg.DatabaseURL)
	default:
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
		db, err = sqlite.NewStore(dsn)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.StoreDriver)
	return nil
}

// initServices initializes the token engine and its supporting services.
func (app *Application) initServices() error {
	secret := []byte(app.cfg.SecretKey)

	signer, err := jwtx.NewSignerHS256(secret)
	if err != nil {
		return fmt.Errorf("failed to initialize signer: %w", err)
	}

	verifier := jwtx.NewVerifierHS256(secret, jwtx.VerifyOptions{
		Issuer:           app.cfg.Issuer,
		Audience:         app.cfg.Audience,
		Leeway:           app.cfg.Leeway,
		VerifyExpiration: app.cfg.VerifyExpiration,
	})

	// Refresh re-validation accepts tokens whose exp has already passed;
	// the orig_iat window is the relevant bound there.
	refreshVerifier := jwtx.NewVerifierHS256(secret, jwtx.VerifyOptions{
		Issuer:           app.cfg.Issuer,
		Audience:         app.cfg.Audience,
		Leeway:           app.cfg.Leeway,
		VerifyExpiration: false,
	})

	provider := identity.NewStoreProvider(app.db)

	app.tokenService = &service.TokenService{
		Signer:          signer,
		Verifier:        verifier,
		RefreshVerifier: refreshVerifier,
		Identity:        provider,
		Store:           app.db,

		Issuer:       app.cfg.Issuer,
		Audience:     app.cfg.Audience,
		AccessTTL:    app.cfg.AccessTTL,
		RefreshTTL:   app.cfg.RefreshTTL,
		AllowRefresh: app.cfg.AllowRefresh,
		Mode:         service.RefreshMode(app.cfg.RefreshMode),

		RefreshTokenLength: app.cfg.RefreshTokenLength,
	}

	if app.housekeepingService == nil {
		app.housekeepingService = service.NewHousekeepingService(
			app.db,
			app.logger,
			app.cfg.HousekeepingInterval,
			app.cfg.RefreshTTL,
		)
	}

	return nil
}

func (app *Application) buildRouter() *httpapi.Router {
	router := httpapi.NewRouter(
		app.tokenService,
		app.db,
		app.cfg.AuthHeader,
		app.cfg.AuthHeaderPrefix,
		BuildVersion,
		app.logger,
	)
	router.ApplyRoutes()
	return router
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	app.router.Store(app.buildRouter())

	app.server = &http.Server{
		Addr: fmt.Sprintf(":%d", app.cfg.Port),
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			app.router.Load().ServeHTTP(w, r)
		}),
		ReadHeaderTimeout: 3 * time.Second,
	}
}
