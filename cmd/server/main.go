/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the capacity planning engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment)
  2. Initialize structured logger
  3. Initialize SQLite store
  4. Wire planning services
  5. Configure HTTP router
  6. Start server with graceful shutdown

CONFIGURATION (environment, .env supported):
  PORT           HTTP server port (default: 8080)
  DATABASE_PATH  SQLite database path (default: ./data/capacity.db)
                 Use ":memory:" for in-memory database
  LOG_LEVEL      debug | info | warn | error (default: info)
  APP_ENV        development | production (default: development)

  -port and -db flags override PORT and DATABASE_PATH when set.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/go-chi/httplog/v3"
	"github.com/warp/capacity-engine/api"
	"github.com/warp/capacity-engine/config"
	"github.com/warp/capacity-engine/planning"
	"github.com/warp/capacity-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	port := flag.Int("port", 0, "HTTP server port (overrides PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DATABASE_PATH)")
	flag.Parse()
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	logFormat := httplog.SchemaECS.Concise(!cfg.IsProduction())
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       cfg.SlogLevel(),
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "capacity-engine"),
		slog.String("env", cfg.Env),
	)
	slog.SetDefault(logger)

	// Initialize store
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Wire planning services
	resolver := &planning.ContractResolver{Contracts: store.Contracts()}
	leaveSvc := planning.NewLeaveService(store.Leaves(), logger)
	allocationSvc := planning.NewAllocationService(store.Allocations(), resolver, logger)
	capacitySvc := planning.NewCapacityService(
		resolver,
		store.Holidays(),
		store.Leaves(),
		store.Allocations(),
		store.Snapshots(),
		logger,
	)

	handler := api.NewHandler(leaveSvc, allocationSvc, capacitySvc, store.Contracts(), store.Holidays(), logger)
	router := api.NewRouter(handler, logger)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", "addr", cfg.Addr(), "db", cfg.DatabasePath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
