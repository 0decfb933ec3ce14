package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/bhs-school/fee-payments/api"
	"github.com/bhs-school/fee-payments/internal/feepayment"
	"github.com/bhs-school/fee-payments/internal/transport"
	"github.com/bhs-school/fee-payments/internal/transport/middleware"
	"github.com/bhs-school/fee-payments/internal/transport/rest"
	"github.com/bhs-school/fee-payments/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server for payment initiation, gateway webhooks and admin reporting`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := startHTTPServer(); err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	},
}

func startHTTPServer() error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	initLogger(cfg)
	log := logger.LoggerWrapper()

	app, err := newApplication(cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	router := chi.NewRouter()
	if err := setupRoutes(context.Background(), router, app); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Reconciler.Enabled {
		scheduler, err := app.reconciler().Schedule(ctx, cfg.Reconciler.Schedule)
		if err != nil {
			return err
		}
		scheduler.Start()
		log.Info("reconciler scheduled", "schedule", cfg.Reconciler.Schedule)
		defer func() { <-scheduler.Stop().Done() }()
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "address", addr, "env", cfg.Env)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	// Receipts for payments confirmed just before shutdown are still in flight.
	if err := app.bus.Wait(shutdownCtx); err != nil {
		log.Warn("event handlers did not drain", "error", err)
	}

	log.Info("server stopped")
	return nil
}

func setupRoutes(ctx context.Context, router *chi.Mux, app *application) error {
	doc, err := api.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load openapi document: %w", err)
	}

	cfg := app.config
	base := transport.NewBaseHandler(app.logger)
	origins := cfg.Server.Origins()
	service := app.service()

	handlers := rest.Handlers{
		Base: base,
		Health: rest.NewHealthHandler(map[string]rest.Check{
			"postgres": app.db.PingContext,
		}),
		FeePayment: feepayment.NewHandler(base, service, feepayment.OriginPolicy{
			BaseURL: cfg.Server.BaseURL,
			Allowed: origins,
		}),
		Webhook:        feepayment.NewWebhookHandler(base, app.webhookVerifier()),
		AllowedOrigins: origins,
	}

	if cfg.Security.AdminEnabled() {
		handlers.AdminHandler = feepayment.NewAdminHandler(base, service)
		handlers.AdminAuth = middleware.NewAdminAuthenticator(base, cfg.Security.AdminTokenSecret, cfg.Security.AdminTokenIssuer)
	}

	return rest.RegisterAllRoutes(router, doc, handlers, app.logger)
}
