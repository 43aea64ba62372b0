/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the loyalty engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from environment (.env honored)
  2. Initialize SQLite store
  3. Build the accrual engine, settlement, and notifier
  4. Configure HTTP router and reconcile scheduler
  5. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the reconcile scheduler
  4. Close database connection
  5. Exit

ENVIRONMENT:
  All configuration is LOYALTY_-prefixed, see config/config.go.
  Examples:
    LOYALTY_ADDR=:3000 LOYALTY_DB_PATH=:memory: ./server

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/warp/loyalty-engine/api"
	"github.com/warp/loyalty-engine/auth"
	"github.com/warp/loyalty-engine/config"
	"github.com/warp/loyalty-engine/loyalty"
	"github.com/warp/loyalty-engine/notify"
	"github.com/warp/loyalty-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Notifications: rendered templates, delivered to the log. Swap the
	// sender for a real mail provider in production.
	mailer, err := notify.NewMailer(notify.LogSender{})
	if err != nil {
		log.WithError(err).Fatal("failed to build notifier")
	}

	// Domain services
	engine := loyalty.NewEngine(store, cfg.Campaign(), mailer)
	settlement := loyalty.NewSettlement(store, mailer)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	handler := api.NewHandler(store, engine, settlement, tokens)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	// Scheduled reconciliation
	var scheduler *api.ReconcileScheduler
	if cfg.ReconcileSpec != "" {
		scheduler, err = api.NewReconcileScheduler(handler.Reconciler, cfg.ReconcileSpec)
		if err != nil {
			log.WithError(err).Fatal("failed to build reconcile scheduler")
		}
		scheduler.Start()
	}

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}
	if scheduler != nil {
		scheduler.Stop()
	}

	log.Info("server stopped")
}
