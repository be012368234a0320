package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/hoope/openbanking/internal/banking/http"
	"github.com/hoope/openbanking/internal/banking/service"
	"github.com/hoope/openbanking/internal/banking/store"
	"github.com/hoope/openbanking/internal/banking/store/drivers/sqlite"
	"github.com/hoope/openbanking/internal/banking/tokenstore"
	"github.com/hoope/openbanking/pkg/cryptox"
	"github.com/hoope/openbanking/pkg/httpx"
	"github.com/hoope/openbanking/pkg/jwsx"
	"github.com/hoope/openbanking/pkg/obclient"
	"github.com/hoope/openbanking/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application wires the banking service and owns its lifecycle.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	tokens *tokenstore.TokenStore
	bank   *obclient.Client
	signer *jwsx.Signer

	accountAccess *service.AccountAccessService
	payments      *service.PaymentService
	broker        *service.CallbackBroker
	housekeeping  *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "openbank-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Token sealing key must be set before the store opens
	if cfg.MasterKeyPath != "" {
		cryptox.SetMasterKeyPath(cfg.MasterKeyPath)
		app.logger.Info("master key path configured", "path", cfg.MasterKeyPath)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initBankClient(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("openbank service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"auth_host", app.cfg.AuthBaseURL,
		"resource_host", app.cfg.ResourceBaseURL)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down openbank service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("openbank service stopped")
	return nil
}

// initDatabase opens the store and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initBankClient builds the signer, the token store and the bank client,
// then ties the refresh loop together.
func (app *Application) initBankClient() error {
	signingKey, err := loadSigningKey(app.cfg)
	if err != nil {
		return err
	}

	signer, err := jwsx.NewSigner(app.cfg.KID, app.cfg.TrustAnchor(), signingKey)
	if err != nil {
		return fmt.Errorf("failed to initialize request signer: %w", err)
	}
	app.signer = signer

	httpClient, err := newBankHTTPClient(app.cfg)
	if err != nil {
		return err
	}

	tokens, err := tokenstore.New(context.Background(), app.db.Tokens())
	if err != nil {
		return err
	}
	app.tokens = tokens

	limiter := httpx.NewOutboundLimiter(httpx.RateLimitConfig{
		RequestsPerWindow: app.cfg.OutboundRPS,
		Window:            time.Second,
		Burst:             app.cfg.OutboundRPS,
	})

	bank, err := obclient.New(obclient.Config{
		AuthBaseURL:     app.cfg.AuthBaseURL,
		ResourceBaseURL: app.cfg.ResourceBaseURL,
		ClientID:        app.cfg.ClientID,
		ClientSecret:    app.cfg.ClientSecret,
		FinancialID:     app.cfg.FinancialID,
		HTTPClient:      httpClient,
		Tokens:          tokens,
		Signer:          signer,
		Limiter:         limiter,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize bank client: %w", err)
	}
	app.bank = bank

	// The client refreshes through the store; the store exchanges
	// through the client.
	tokens.SetRefresher(bank)

	return nil
}

// initServices wires the flow orchestrators.
func (app *Application) initServices() {
	app.broker = service.NewCallbackBroker()

	app.accountAccess = service.NewAccountAccessService(
		app.db, app.bank, app.tokens, app.signer, app.broker,
		app.cfg.ClientID, app.cfg.RedirectURI, app.cfg.AuthBaseURL,
		app.cfg.ConsentTTL,
	)

	app.payments = service.NewPaymentService(
		app.db, app.bank, app.tokens, app.signer, app.broker,
		app.cfg.ClientID, app.cfg.RedirectURI, app.cfg.AuthBaseURL,
		obclient.Risk{PaymentContextCode: "EcommerceGoods"},
	)

	app.housekeeping = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP wires the router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	router.AccountAccess = app.accountAccess
	router.Payments = app.payments
	router.Broker = app.broker
	router.Bank = app.bank
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
