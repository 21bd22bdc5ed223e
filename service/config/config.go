package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

const (
	// DefaultPoolAddress is the Raydium SOL/USDC AMM account read by the price oracle.
	DefaultPoolAddress = "8HoQnePLqPj4M7PUDzfw8e3YMdPZ9oZdtPo9f5kPQCVe"

	// DefaultUSDCMintAddress is the mainnet USDC mint.
	DefaultUSDCMintAddress = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	// DefaultSolanaRPCURL is the public mainnet endpoint.
	DefaultSolanaRPCURL = "https://api.mainnet-beta.solana.com"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr       string
	LogLevel         string
	MetricsAddr      string
	HTTPWriteTimeout time.Duration

	// Database configuration
	DatabaseURL string

	// NATS configuration
	NATSURL string

	// Solana configuration
	SolanaRPCURLs         []string
	PoolAddress           string
	SubscriptionProgramID string
	FeeWallet             string
	USDCMintAddress       string

	// Fee pricing
	FeeTargetUSD    float64
	PoolReadTimeout time.Duration
	RPCTimeout      time.Duration
	QuoteCacheTTL   time.Duration

	// Notifications
	NotifyTimeout time.Duration
	ExplorerURL   string

	// Balance sweep
	SweepConcurrency int
	SweepSchedule    string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")

	// Database configuration
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	// NATS configuration
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")

	// Solana configuration
	cfg.SolanaRPCURLs = parseList(getEnvOrDefault("SOLANA_RPC_URLS", DefaultSolanaRPCURL))
	if len(cfg.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URLS must contain at least one endpoint"))
	}

	cfg.PoolAddress = getEnvOrDefault("POOL_ADDRESS", DefaultPoolAddress)
	cfg.USDCMintAddress = getEnvOrDefault("USDC_MINT_ADDRESS", DefaultUSDCMintAddress)

	cfg.SubscriptionProgramID = os.Getenv("SUBSCRIPTION_PROGRAM_ID")
	if cfg.SubscriptionProgramID == "" {
		errs = append(errs, fmt.Errorf("SUBSCRIPTION_PROGRAM_ID is required"))
	}

	cfg.FeeWallet = os.Getenv("FEE_WALLET")
	if cfg.FeeWallet == "" {
		errs = append(errs, fmt.Errorf("FEE_WALLET is required"))
	}

	for key, value := range map[string]string{
		"POOL_ADDRESS":            cfg.PoolAddress,
		"USDC_MINT_ADDRESS":       cfg.USDCMintAddress,
		"SUBSCRIPTION_PROGRAM_ID": cfg.SubscriptionProgramID,
		"FEE_WALLET":              cfg.FeeWallet,
	} {
		if value == "" {
			continue
		}
		if _, err := solana.PublicKeyFromBase58(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid address %q: %w", key, value, err))
		}
	}

	// Fee pricing
	target, err := parseFloat("FEE_TARGET_USD", 0.10)
	if err != nil {
		errs = append(errs, err)
	} else if target <= 0 {
		errs = append(errs, fmt.Errorf("FEE_TARGET_USD must be positive"))
	} else {
		cfg.FeeTargetUSD = target
	}

	if cfg.PoolReadTimeout, err = parseDuration("POOL_READ_TIMEOUT", "10s"); err != nil {
		errs = append(errs, err)
	}
	if cfg.RPCTimeout, err = parseDuration("RPC_TIMEOUT", "15s"); err != nil {
		errs = append(errs, err)
	}
	if cfg.QuoteCacheTTL, err = parseDuration("QUOTE_CACHE_TTL", "0s"); err != nil {
		errs = append(errs, err)
	}
	if cfg.QuoteCacheTTL > time.Minute {
		errs = append(errs, fmt.Errorf("QUOTE_CACHE_TTL (%v) cannot exceed 1m", cfg.QuoteCacheTTL))
	}

	// Notifications
	if cfg.NotifyTimeout, err = parseDuration("NOTIFY_TIMEOUT", "10s"); err != nil {
		errs = append(errs, err)
	}
	cfg.ExplorerURL = getEnvOrDefault("EXPLORER_URL", "https://solscan.io/tx/")

	// The low-balance endpoint sweeps synchronously; a slow sweep takes about
	// ceil(records/SWEEP_CONCURRENCY) * RPC_TIMEOUT.
	if cfg.HTTPWriteTimeout, err = parseDuration("HTTP_WRITE_TIMEOUT", "5m"); err != nil {
		errs = append(errs, err)
	} else if cfg.HTTPWriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_WRITE_TIMEOUT must be positive"))
	}

	// Balance sweep
	if cfg.SweepConcurrency, err = parseInt("SWEEP_CONCURRENCY", 4); err != nil {
		errs = append(errs, err)
	} else if cfg.SweepConcurrency < 1 {
		errs = append(errs, fmt.Errorf("SWEEP_CONCURRENCY must be at least 1"))
	}
	cfg.SweepSchedule = getEnvOrDefault("SWEEP_SCHEDULE", "0 9 * * *")

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "subpay-balance-sweep")

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required"))
	}

	if len(c.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SolanaRPCURLs is required"))
	}

	if c.SubscriptionProgramID == "" {
		errs = append(errs, fmt.Errorf("SubscriptionProgramID is required"))
	}

	if c.FeeWallet == "" {
		errs = append(errs, fmt.Errorf("FeeWallet is required"))
	}

	if c.PoolAddress == "" {
		errs = append(errs, fmt.Errorf("PoolAddress is required"))
	}

	if c.USDCMintAddress == "" {
		errs = append(errs, fmt.Errorf("USDCMintAddress is required"))
	}

	if c.FeeTargetUSD <= 0 {
		errs = append(errs, fmt.Errorf("FeeTargetUSD must be positive"))
	}

	if c.PoolReadTimeout <= 0 || c.RPCTimeout <= 0 || c.NotifyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("PoolReadTimeout, RPCTimeout and NotifyTimeout must be positive"))
	}

	if c.SweepConcurrency < 1 {
		errs = append(errs, fmt.Errorf("SweepConcurrency must be at least 1"))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseFloat parses a float from an environment variable or uses a default.
func parseFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q: %w", key, value, err)
	}
	return result, nil
}

// parseList splits a comma-separated value, dropping empty entries.
func parseList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
