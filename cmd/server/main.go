package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/subpay/service/config"
	"github.com/brojonat/subpay/service/db"
	"github.com/brojonat/subpay/service/metrics"
	"github.com/brojonat/subpay/service/monitor"
	natspkg "github.com/brojonat/subpay/service/nats"
	"github.com/brojonat/subpay/service/oracle"
	"github.com/brojonat/subpay/service/payment"
	"github.com/brojonat/subpay/service/server"
	"github.com/brojonat/subpay/service/solana"
	"github.com/brojonat/subpay/service/txbuilder"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// A local .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

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

	store := db.NewStore(dbPool, metricsCollector)

	// Initialize Solana RPC client against one of the configured endpoints
	rpcURL, err := solana.SelectRandomEndpoint(cfg.SolanaRPCURLs)
	if err != nil {
		logger.Error("failed to select solana RPC endpoint", "error", err)
		os.Exit(1)
	}
	ledger := solana.NewClient(solana.NewRPCClient(rpcURL), solana.EndpointLabel(rpcURL), cfg.RPCTimeout, metricsCollector, logger)
	logger.Info("initialized solana RPC client",
		"endpoint", solana.EndpointLabel(rpcURL),
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

	// Addresses were validated by config.Load
	priceOracle := oracle.New(ledger, oracle.Config{
		PoolAddress: solanago.MustPublicKeyFromBase58(cfg.PoolAddress),
		ReadTimeout: cfg.PoolReadTimeout,
		CacheTTL:    cfg.QuoteCacheTTL,
	}, metricsCollector, logger)

	builder, err := txbuilder.NewBuilder(
		solanago.MustPublicKeyFromBase58(cfg.SubscriptionProgramID),
		solanago.MustPublicKeyFromBase58(cfg.FeeWallet),
	)
	if err != nil {
		logger.Error("failed to create transaction builder", "error", err)
		os.Exit(1)
	}

	payments := payment.NewService(priceOracle, ledger, builder, payment.Config{
		TargetUSD: cfg.FeeTargetUSD,
		USDCMint:  solanago.MustPublicKeyFromBase58(cfg.USDCMintAddress),
	}, metricsCollector, logger)

	balances := monitor.New(store, ledger, notifier, monitor.Config{
		Concurrency: cfg.SweepConcurrency,
	}, metricsCollector, logger)

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, payments, balances, metricsCollector, logger).
		WithWriteTimeout(cfg.HTTPWriteTimeout)

	logger.Info("server initialized, all dependencies ready",
		"pool", cfg.PoolAddress,
		"program_id", cfg.SubscriptionProgramID,
		"fee_target_usd", cfg.FeeTargetUSD,
		"nats_url", cfg.NATSURL,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
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

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
