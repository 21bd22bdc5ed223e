package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// FeeQuote is the network fee priced in SOL.
type FeeQuote struct {
	SolNeeded   float64 `json:"sol_needed"`
	SolPriceUSD float64 `json:"sol_price_usdc"`
	Source      string  `json:"source"`
}

// PaymentRequest names the accounts of one subscription payment.
type PaymentRequest struct {
	UserPubkey            string `json:"user_pubkey"`
	SubscriptionPubkey    string `json:"subscription_pubkey"`
	SubscriptionSigner    string `json:"subscription_signer"`
	EscrowTokenAccount    string `json:"escrow_token_account"`
	RecipientTokenAccount string `json:"recipient_token_account"`
	MonthlyUSDCAmount     uint64 `json:"monthly_usdc_amount"`
}

// PaymentTransaction is an unsigned payment transaction for the user's wallet to sign.
type PaymentTransaction struct {
	Transaction          string  `json:"transaction"` // base64 message
	Message              string  `json:"message"`
	FeeLamports          uint64  `json:"fee_lamports"`
	SolNeeded            float64 `json:"sol_needed"`
	SolPriceUSD          float64 `json:"sol_price_usdc"`
	Blockhash            string  `json:"blockhash"`
	LastValidBlockHeight uint64  `json:"last_valid_block_height"`
	MonthlyUSDCAmount    uint64  `json:"monthly_usdc_amount"`
}

// SweepResult summarizes a low balance sweep.
type SweepResult struct {
	Status   string `json:"status"`
	Checked  int    `json:"checked"`
	Notified int    `json:"notified"`
	Failed   int    `json:"failed"`
	Skipped  int    `json:"skipped"`
}

// Receipt is a settled payment to confirm to a subscriber.
type Receipt struct {
	Email       string `json:"email"`
	Wallet      string `json:"wallet"`
	USDCAmount  uint64 `json:"usdc_amount"`
	TxSignature string `json:"tx_signature"`
}

// Health is the server health report.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

// Client is the HTTP client for the subscription payment service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new payment service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		// Matches the server's default write timeout; sweeps are synchronous.
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// QuoteFee returns the current network fee in SOL.
func (c *Client) QuoteFee(ctx context.Context) (*FeeQuote, error) {
	var quote FeeQuote
	if err := c.do(ctx, http.MethodGet, "/api/v1/fee-quote", nil, &quote); err != nil {
		return nil, err
	}
	c.logger.Debug("fee quoted", "sol_needed", quote.SolNeeded, "sol_price_usdc", quote.SolPriceUSD)
	return &quote, nil
}

// CreatePaymentTransaction asks the server to build an unsigned payment transaction.
func (c *Client) CreatePaymentTransaction(ctx context.Context, req PaymentRequest) (*PaymentTransaction, error) {
	var tx PaymentTransaction
	if err := c.do(ctx, http.MethodPost, "/api/v1/payments/transaction", req, &tx); err != nil {
		return nil, err
	}
	c.logger.Debug("payment transaction built",
		"user", req.UserPubkey,
		"fee_lamports", tx.FeeLamports,
		"blockhash", tx.Blockhash,
	)
	return &tx, nil
}

// SweepLowBalances runs a balance sweep and returns its summary.
func (c *Client) SweepLowBalances(ctx context.Context) (*SweepResult, error) {
	var result SweepResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/notifications/low-balance", nil, &result); err != nil {
		return nil, err
	}
	c.logger.Debug("balance sweep completed", "checked", result.Checked, "notified", result.Notified)
	return &result, nil
}

// NotifyPaymentFailed sends the payment failed notification for one subscription.
func (c *Client) NotifyPaymentFailed(ctx context.Context, wallet string) error {
	body := map[string]string{"wallet": wallet}
	if err := c.do(ctx, http.MethodPost, "/api/v1/notifications/payment-failed", body, nil); err != nil {
		return err
	}
	c.logger.Debug("payment failed notification sent", "wallet", wallet)
	return nil
}

// SendReceipt sends a payment receipt.
func (c *Client) SendReceipt(ctx context.Context, r Receipt) error {
	if err := c.do(ctx, http.MethodPost, "/api/v1/notifications/receipt", r, nil); err != nil {
		return err
	}
	c.logger.Debug("receipt sent", "wallet", r.Wallet, "tx_signature", r.TxSignature)
	return nil
}

// Health returns the server health report.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// do sends a JSON request and decodes a 200 response into out, if non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}
