package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testProgramID = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"
	testFeeWallet = "Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo"
)

func setRequiredEnv() {
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("SUBSCRIPTION_PROGRAM_ID", testProgramID)
	os.Setenv("FEE_WALLET", testFeeWallet)
}

func TestLoad_ValidConfig(t *testing.T) {
	setRequiredEnv()
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, testProgramID, cfg.SubscriptionProgramID)
	assert.Equal(t, testFeeWallet, cfg.FeeWallet)
	assert.Equal(t, ":8080", cfg.ServerAddr) // Default
	assert.Equal(t, "info", cfg.LogLevel)    // Default
	assert.Equal(t, []string{DefaultSolanaRPCURL}, cfg.SolanaRPCURLs)
	assert.Equal(t, DefaultPoolAddress, cfg.PoolAddress)
	assert.Equal(t, DefaultUSDCMintAddress, cfg.USDCMintAddress)
	assert.InDelta(t, 0.10, cfg.FeeTargetUSD, 1e-12)
	assert.Equal(t, 10*time.Second, cfg.PoolReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.RPCTimeout)
	assert.Equal(t, time.Duration(0), cfg.QuoteCacheTTL)
	assert.Equal(t, 4, cfg.SweepConcurrency)
	assert.Equal(t, "0 9 * * *", cfg.SweepSchedule)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingRequired(t *testing.T) {
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
	assert.Contains(t, err.Error(), "SUBSCRIPTION_PROGRAM_ID is required")
	assert.Contains(t, err.Error(), "FEE_WALLET is required")
}

func TestLoad_InvalidAddress(t *testing.T) {
	setRequiredEnv()
	os.Setenv("FEE_WALLET", "not-a-base58-address!")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "FEE_WALLET: invalid address")
}

func TestLoad_InvalidDuration(t *testing.T) {
	setRequiredEnv()
	os.Setenv("POOL_READ_TIMEOUT", "invalid")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_InvalidFeeTarget(t *testing.T) {
	setRequiredEnv()
	os.Setenv("FEE_TARGET_USD", "-1")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FEE_TARGET_USD must be positive")
}

func TestLoad_CacheTTLTooLong(t *testing.T) {
	setRequiredEnv()
	os.Setenv("QUOTE_CACHE_TTL", "5m")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot exceed 1m")
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv()
	os.Setenv("SOLANA_RPC_URLS", "https://a.example.com, https://b.example.com,")
	os.Setenv("SERVER_ADDR", ":9090")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("FEE_TARGET_USD", "0.25")
	os.Setenv("QUOTE_CACHE_TTL", "5s")
	os.Setenv("SWEEP_CONCURRENCY", "8")
	os.Setenv("SWEEP_SCHEDULE", "30 6 * * *")
	os.Setenv("HTTP_WRITE_TIMEOUT", "20m")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.SolanaRPCURLs)
	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.InDelta(t, 0.25, cfg.FeeTargetUSD, 1e-12)
	assert.Equal(t, 5*time.Second, cfg.QuoteCacheTTL)
	assert.Equal(t, 8, cfg.SweepConcurrency)
	assert.Equal(t, "30 6 * * *", cfg.SweepSchedule)
	assert.Equal(t, 20*time.Minute, cfg.HTTPWriteTimeout)
}

func TestLoad_HTTPWriteTimeout(t *testing.T) {
	setRequiredEnv()
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.HTTPWriteTimeout)

	os.Setenv("HTTP_WRITE_TIMEOUT", "0s")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_WRITE_TIMEOUT must be positive")
}

func TestValidate(t *testing.T) {
	valid := Config{
		DatabaseURL:           "postgres://localhost/test",
		SolanaRPCURLs:         []string{DefaultSolanaRPCURL},
		SubscriptionProgramID: testProgramID,
		FeeWallet:             testFeeWallet,
		PoolAddress:           DefaultPoolAddress,
		USDCMintAddress:       DefaultUSDCMintAddress,
		FeeTargetUSD:          0.10,
		PoolReadTimeout:       10 * time.Second,
		RPCTimeout:            15 * time.Second,
		NotifyTimeout:         10 * time.Second,
		SweepConcurrency:      1,
		TemporalHost:          "localhost:7233",
		TemporalTaskQueue:     "q",
	}
	require.NoError(t, valid.Validate())

	t.Run("missing fee wallet", func(t *testing.T) {
		c := valid
		c.FeeWallet = ""
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "FeeWallet is required")
	})

	t.Run("zero concurrency", func(t *testing.T) {
		c := valid
		c.SweepConcurrency = 0
		assert.Error(t, c.Validate())
	})

	t.Run("zero timeout", func(t *testing.T) {
		c := valid
		c.RPCTimeout = 0
		assert.Error(t, c.Validate())
	})
}

func cleanupEnv() {
	for _, key := range []string{
		"DATABASE_URL", "SUBSCRIPTION_PROGRAM_ID", "FEE_WALLET", "SOLANA_RPC_URLS",
		"POOL_ADDRESS", "USDC_MINT_ADDRESS", "FEE_TARGET_USD", "POOL_READ_TIMEOUT",
		"RPC_TIMEOUT", "QUOTE_CACHE_TTL", "NOTIFY_TIMEOUT", "EXPLORER_URL",
		"SWEEP_CONCURRENCY", "SWEEP_SCHEDULE", "SERVER_ADDR", "LOG_LEVEL", "METRICS_ADDR",
		"NATS_URL", "HTTP_WRITE_TIMEOUT", "TEMPORAL_HOST", "TEMPORAL_NAMESPACE", "TEMPORAL_TASK_QUEUE",
	} {
		os.Unsetenv(key)
	}
}
