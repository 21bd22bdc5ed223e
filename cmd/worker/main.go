package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/subpay/service/config"
	"github.com/brojonat/subpay/service/db"
	"github.com/brojonat/subpay/service/metrics"
	"github.com/brojonat/subpay/service/monitor"
	natspkg "github.com/brojonat/subpay/service/nats"
	"github.com/brojonat/subpay/service/solana"
	"github.com/brojonat/subpay/service/temporal"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()

	// Load and validate configuration from environment
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting temporal worker",
		"temporal_host", cfg.TemporalHost,
		"namespace", cfg.TemporalNamespace,
		"task_queue", cfg.TemporalTaskQueue,
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// Verify database connection
	if err := dbPool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	store := db.NewStore(dbPool, metricsCollector)

	// Start metrics HTTP server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}

	go func() {
		logger.Info("starting metrics HTTP server", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}()

	// Initialize Solana RPC client
	rpcURL, err := solana.SelectRandomEndpoint(cfg.SolanaRPCURLs)
	if err != nil {
		logger.Error("failed to select solana RPC endpoint", "error", err)
		os.Exit(1)
	}
	endpoint := solana.EndpointLabel(rpcURL)
	ledger := solana.NewClient(solana.NewRPCClient(rpcURL), endpoint, cfg.RPCTimeout, metricsCollector, logger)
	logger.Info("initialized solana RPC client",
		"endpoint", endpoint,
		"total_endpoints", len(cfg.SolanaRPCURLs),
	)

	// Initialize NATS notifier
	notifier, err := natspkg.NewNotifier(cfg.NATSURL, natspkg.NotifierConfig{
		PublishTimeout: cfg.NotifyTimeout,
		ExplorerURL:    cfg.ExplorerURL,
	}, metricsCollector, logger)
	if err != nil {
		logger.Error("failed to create NATS notifier", "error", err)
		os.Exit(1)
	}
	defer notifier.Close()
	logger.Info("connected to NATS", "url", cfg.NATSURL)

	balances := monitor.New(store, ledger, notifier, monitor.Config{
		Concurrency: cfg.SweepConcurrency,
	}, metricsCollector, logger)

	// Initialize Temporal client for schedule management
	temporalClient, err := temporal.NewClient(
		cfg.TemporalHost,
		cfg.TemporalNamespace,
		cfg.TemporalTaskQueue,
		logger,
	)
	if err != nil {
		logger.Error("failed to create temporal client", "error", err)
		os.Exit(1)
	}
	defer temporalClient.Close()

	if err := temporal.EnsureSweepSchedule(ctx, temporalClient, cfg.SweepSchedule, logger); err != nil {
		logger.Error("failed to ensure sweep schedule", "error", err)
		os.Exit(1)
	}

	// Initialize Temporal worker
	worker, err := temporal.NewWorker(temporal.WorkerConfig{
		TemporalHost:      cfg.TemporalHost,
		TemporalNamespace: cfg.TemporalNamespace,
		TaskQueue:         cfg.TemporalTaskQueue,
		Sweeper:           balances,
		Logger:            logger,
	})
	if err != nil {
		logger.Error("failed to create temporal worker", "error", err)
		os.Exit(1)
	}

	logger.Info("temporal worker initialized, all dependencies ready",
		"solana_endpoint", endpoint,
		"sweep_schedule", cfg.SweepSchedule,
		"sweep_concurrency", cfg.SweepConcurrency,
	)

	// Start worker in background
	workerErrors := make(chan error, 1)
	go func() {
		workerErrors <- worker.Start()
	}()

	// Wait for shutdown signal or worker error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-workerErrors:
		logger.Error("temporal worker error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
		worker.Stop()
		logger.Info("shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
