package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/brojonat/subpay/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetAccountInfoWithOpts(
		ctx context.Context,
		account solana.PublicKey,
		opts *rpc.GetAccountInfoOpts,
	) (*rpc.GetAccountInfoResult, error)

	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	GetTokenAccountBalance(
		ctx context.Context,
		account solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetTokenAccountBalanceResult, error)
}

// DefaultRPCTimeout bounds a single ledger call when the caller's context has no earlier deadline.
const DefaultRPCTimeout = 15 * time.Second

// Client provides the ledger reads the payment pipeline needs.
// It wraps the RPC client with domain-specific operations.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "mainnet", rpc host)
	timeout  time.Duration
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling (e.g., "mainnet", "devnet", or RPC hostname).
// A non-positive timeout falls back to DefaultRPCTimeout. If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultRPCTimeout
	}
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
		timeout:  timeout,
	}
}

// GetAccountData returns the raw bytes stored in the account at address.
// A missing account, or one without data, yields ErrAccountNotFound.
func (c *Client) GetAccountData(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	result, err := c.rpc.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	c.record(ctx, "GetAccountInfo", start, err)

	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
		}
		return nil, fmt.Errorf("get account info %s: %w", address, err)
	}
	if result == nil || result.Value == nil || result.Value.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}

	data := result.Value.Data.GetBinary()
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s has no data", ErrAccountNotFound, address)
	}

	c.logger.DebugContext(ctx, "fetched account data",
		"address", address.String(),
		"bytes", len(data),
	)
	return data, nil
}

// GetLatestBlockhash returns a finalized recent blockhash.
func (c *Client) GetLatestBlockhash(ctx context.Context) (*Blockhash, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	result, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	c.record(ctx, "GetLatestBlockhash", start, err)

	if err != nil {
		return nil, fmt.Errorf("get latest blockhash: %w", err)
	}
	if result == nil || result.Value == nil || result.Value.Blockhash.IsZero() {
		return nil, fmt.Errorf("get latest blockhash: empty response")
	}

	return &Blockhash{
		Hash:                 result.Value.Blockhash,
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
	}, nil
}

// GetTokenBalance returns the raw token amount (smallest unit) held by a token account.
func (c *Client) GetTokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	result, err := c.rpc.GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
	c.record(ctx, "GetTokenAccountBalance", start, err)

	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, account)
		}
		return 0, fmt.Errorf("get token balance %s: %w", account, err)
	}
	if result == nil || result.Value == nil {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, account)
	}

	amount, err := strconv.ParseUint(result.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token balance %q for %s: %w", result.Value.Amount, account, err)
	}
	return amount, nil
}

func (c *Client) record(ctx context.Context, method string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		c.logger.WarnContext(ctx, "solana rpc call failed",
			"method", method,
			"endpoint", c.endpoint,
			"error", err,
		)
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall(method, status, c.endpoint, time.Since(start).Seconds())
	}
}
