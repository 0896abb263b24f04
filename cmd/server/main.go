/*
main.go - Application entry point

PURPOSE:
  Starts the household points server. Handles configuration, dependency
  injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Build the zap logger
  3. Open the SQLite store (migrations run here)
  4. Build engine, fallback store and state facade
  5. Load the session snapshot (seeds an empty store)
  6. Start the retention scheduler (retention.auto_prune_interval)
  7. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML configuration file (optional)
  -addr    Listen address, overrides server.addr
  -data    Data directory, overrides storage.dir
  -db      Database file name or ":memory:", overrides storage.database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests (server.shutdown_timeout)
  3. Stop the retention scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  ./server -data ./data
  ./server -db ":memory:" -addr :3000
  ./server -config /etc/familypoints.yaml

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration file format
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rushbq/Familypoints-Pages/api"
	"github.com/rushbq/Familypoints-Pages/config"
	"github.com/rushbq/Familypoints-Pages/kvstore"
	"github.com/rushbq/Familypoints-Pages/persistence"
	"github.com/rushbq/Familypoints-Pages/state"
	"github.com/rushbq/Familypoints-Pages/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML configuration file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dataDir := flag.String("data", "", "Data directory (overrides config)")
	dbName := flag.String("db", "", `Database file name or ":memory:" (overrides config)`)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dataDir != "" {
		cfg.Storage.Dir = *dataDir
	}
	if *dbName != "" {
		cfg.Storage.Database = *dbName
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if !cfg.InMemory() {
		if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	// Initialize store
	store, err := sqlite.New(cfg.DatabasePath(),
		sqlite.WithQuota(cfg.Storage.QuotaBytes),
		sqlite.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	fallback, err := kvstore.NewDir(cfg.FallbackDir())
	if err != nil {
		return err
	}

	engine := persistence.New(store, persistence.WithLogger(logger))
	facade := state.New(engine, fallback,
		state.WithLogger(logger),
		state.WithWarningPercent(cfg.Storage.WarningPercent),
	)

	handler := api.NewHandler(facade,
		api.WithRetentionDays(cfg.Retention.DefaultDays),
		api.WithWarningPercent(cfg.Storage.WarningPercent),
		api.WithLogger(logger),
	)
	handler.Load(context.Background())

	scheduler := api.NewRetentionScheduler(handler, cfg.Retention.AutoPruneInterval, cfg.Retention.DefaultDays)
	scheduler.Start()
	defer scheduler.Stop()

	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Server.Addr),
			zap.String("database", cfg.DatabasePath()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
