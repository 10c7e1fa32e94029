/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the sales commission engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env, YAML and SALES_* environment (config.Load)
  2. Apply command-line flag overrides
  3. Open the selected store (sqlite, rtdb or memory)
  4. Seed a starter tier config when the store has none
  5. Create API handler, router and closure watcher
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (overrides addr)
  -db         SQLite database path (implies store=sqlite)
              Use ":memory:" for in-memory database
  -store      Backend: sqlite, rtdb or memory
  -scenarios  Mount the demo scenario loaders

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the closure watcher
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/sales.db"

  # Run against a Realtime Database
  SALES_STORE=rtdb SALES_RTDB_URL=https://x.firebaseio.com ./server

  # Run in memory with demo data routes
  ./server -store=memory -scenarios

ENVIRONMENT:
  See config/config.go. Every key is SALES_<KEY>, e.g. SALES_JWT_SECRET.

SEE ALSO:
  - config/config.go: Process configuration
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go, store/rtdb/store.go: Backends
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

	"github.com/warp/sales-engine/api"
	"github.com/warp/sales-engine/config"
	"github.com/warp/sales-engine/factory"
	"github.com/warp/sales-engine/generic"
	"github.com/warp/sales-engine/generic/store"
	"github.com/warp/sales-engine/observability"
	"github.com/warp/sales-engine/store/rtdb"
	"github.com/warp/sales-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 0, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	backend := flag.String("store", "", "Store backend: sqlite, rtdb or memory")
	scenarios := flag.Bool("scenarios", false, "Mount demo scenario loaders")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Addr = fmt.Sprintf(":%d", *port)
	}
	if *dbPath != "" {
		cfg.Store = config.BackendSQLite
		cfg.SQLitePath = *dbPath
	}
	if *backend != "" {
		cfg.Store = *backend
	}
	if *scenarios {
		cfg.Scenarios = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()
	metrics := observability.NewMetrics()

	// Initialize store
	st, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.String("store", cfg.Store), zap.Error(err))
	}
	defer closeStore()

	if err := seedConfig(context.Background(), st, cfg.Timezone); err != nil {
		logger.Fatal("failed to seed tier config", zap.Error(err))
	}

	// Initialize handler
	handler := api.NewHandler(st, api.WithLogger(logger), api.WithMetrics(metrics))

	auth := api.NewAuthenticator(cfg.JWTSecret)
	if auth == nil {
		logger.Warn("jwt_secret not set, trusting X-User-Id and X-User-Role headers")
	}

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{
		Auth:        auth,
		CORSOrigins: cfg.CORSOrigins,
		Scenarios:   cfg.Scenarios,
	})

	watcher := api.NewClosureWatcher(handler)
	watcher.Start()

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", zap.String("addr", cfg.Addr), zap.String("store", cfg.Store))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// openStore returns the configured backend and its close function.
func openStore(cfg *config.Config, logger *zap.Logger) (generic.Store, func(), error) {
	switch cfg.Store {
	case config.BackendRTDB:
		s := rtdb.New(rtdb.NewClient(nil, cfg.RTDB(), logger))
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RTDBTimeout)
		defer cancel()
		if err := s.Ping(ctx); err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case config.BackendMemory:
		return store.NewMemory(), func() {}, nil
	default:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warn("failed to close database", zap.Error(err))
			}
		}, nil
	}
}

// seedConfig writes an empty-team starter config the first time a store is
// used. The admin fills in the team through PUT /api/config.
func seedConfig(ctx context.Context, st generic.Store, timezone string) error {
	_, err := st.FetchTierConfig(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, generic.ErrConfigNotFound) {
		return err
	}
	return st.SaveTierConfig(ctx, factory.StarterConfigJSON(timezone, ""))
}
