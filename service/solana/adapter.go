package solana

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// realRPCClient adapts the actual solana-go RPC client to our RPCClient interface.
// This adapter allows us to control the interface and makes testing easier.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates a new RPCClient that wraps the solana-go RPC client.
// For premium RPC endpoints that require API keys, include the key in the URL:
// - Helius: https://mainnet.helius-rpc.com/?api-key=YOUR-KEY
// - QuickNode: https://YOUR-ENDPOINT.quiknode.pro/YOUR-KEY/
func NewRPCClient(rpcURL string) RPCClient {
	return &realRPCClient{
		client: rpc.New(rpcURL),
	}
}

func (r *realRPCClient) GetAccountInfoWithOpts(
	ctx context.Context,
	account solana.PublicKey,
	opts *rpc.GetAccountInfoOpts,
) (*rpc.GetAccountInfoResult, error) {
	return r.client.GetAccountInfoWithOpts(ctx, account, opts)
}

func (r *realRPCClient) GetLatestBlockhash(
	ctx context.Context,
	commitment rpc.CommitmentType,
) (*rpc.GetLatestBlockhashResult, error) {
	return r.client.GetLatestBlockhash(ctx, commitment)
}

func (r *realRPCClient) GetTokenAccountBalance(
	ctx context.Context,
	account solana.PublicKey,
	commitment rpc.CommitmentType,
) (*rpc.GetTokenAccountBalanceResult, error) {
	return r.client.GetTokenAccountBalance(ctx, account, commitment)
}

// SelectRandomEndpoint picks one endpoint uniformly at random.
// Spreading calls across providers keeps a single rate limit from stalling every request.
func SelectRandomEndpoint(endpoints []string) (string, error) {
	if len(endpoints) == 0 {
		return "", fmt.Errorf("no RPC endpoints configured")
	}
	return endpoints[rand.IntN(len(endpoints))], nil
}

// EndpointLabel returns a metrics-safe label for an RPC URL: its host, without
// path or query (which may carry API keys).
func EndpointLabel(rpcURL string) string {
	u, err := url.Parse(rpcURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
