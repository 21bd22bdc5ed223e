package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/brojonat/subpay/service/metrics"
	"github.com/brojonat/subpay/service/monitor"
	"github.com/brojonat/subpay/service/oracle"
	"github.com/brojonat/subpay/service/payment"
	"github.com/brojonat/subpay/service/solana"
	"github.com/brojonat/subpay/service/txbuilder"
)

const maxRequestBodySize = 1 << 20 // 1MB - payment requests are a handful of addresses

// errInvalidBody marks request decoding failures.
var errInvalidBody = errors.New("invalid request body")

// PaymentService builds fee-bearing payment transactions and quotes the fee.
type PaymentService interface {
	QuoteFee(ctx context.Context) (*oracle.FeeQuote, error)
	CreatePaymentTransaction(ctx context.Context, req payment.PaymentRequest) (*payment.PaymentTransaction, error)
}

// BalanceService runs balance sweeps and single-subscription notifications.
type BalanceService interface {
	Sweep(ctx context.Context) (*monitor.SweepSummary, error)
	NotifyPaymentFailed(ctx context.Context, wallet string) error
	SendReceipt(ctx context.Context, r monitor.Receipt) error
}

// transactionResponse is the JSON response for a built payment transaction.
type transactionResponse struct {
	Transaction          string  `json:"transaction"`
	Message              string  `json:"message"`
	FeeLamports          uint64  `json:"fee_lamports"`
	SolNeeded            float64 `json:"sol_needed"`
	SolPriceUSD          float64 `json:"sol_price_usdc"`
	Blockhash            string  `json:"blockhash"`
	LastValidBlockHeight uint64  `json:"last_valid_block_height"`
	MonthlyUSDCAmount    uint64  `json:"monthly_usdc_amount"`
}

// handleCreatePaymentTransaction returns a handler that builds an unsigned payment transaction.
// POST /api/v1/payments/transaction
func handleCreatePaymentTransaction(payments PaymentService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req payment.PaymentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			logger.DebugContext(r.Context(), "failed to decode payment request", "error", err)
			writeFailure(w, r, logger, err)
			return
		}

		tx, err := payments.CreatePaymentTransaction(r.Context(), req)
		if err != nil {
			writeFailure(w, r, logger, err)
			return
		}

		rounded := tx.Quote.Rounded()
		writeJSON(w, transactionResponse{
			Transaction:          tx.Transaction.Base64(),
			Message:              tx.Message,
			FeeLamports:          tx.FeeLamports,
			SolNeeded:            rounded.SolNeeded,
			SolPriceUSD:          rounded.SolPriceUSD,
			Blockhash:            tx.Blockhash.String(),
			LastValidBlockHeight: tx.LastValidBlockHeight,
			MonthlyUSDCAmount:    tx.MonthlyUSDCAmount,
		}, http.StatusOK)
	})
}

// handleFeeQuote returns a handler that quotes the network fee in SOL.
// GET|POST /api/v1/fee-quote
func handleFeeQuote(payments PaymentService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		quote, err := payments.QuoteFee(r.Context())
		if err != nil {
			writeFailure(w, r, logger, err)
			return
		}
		writeJSON(w, quote.Rounded(), http.StatusOK)
	})
}

// handleLowBalanceSweep returns a handler that checks every escrow and notifies low balances.
// GET|POST /api/v1/notifications/low-balance
func handleLowBalanceSweep(balances BalanceService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		summary, err := balances.Sweep(r.Context())
		if err != nil {
			writeFailure(w, r, logger, err)
			return
		}

		writeJSON(w, map[string]interface{}{
			"status":   "completed",
			"checked":  summary.Checked,
			"notified": summary.Notified,
			"failed":   summary.Failed,
			"skipped":  summary.Skipped,
		}, http.StatusOK)
	})
}

// handlePaymentFailed returns a handler that notifies one subscriber of a failed payment.
// POST /api/v1/notifications/payment-failed
func handlePaymentFailed(balances BalanceService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Wallet string `json:"wallet"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeFailure(w, r, logger, err)
			return
		}
		req.Wallet = strings.TrimSpace(req.Wallet)

		if err := balances.NotifyPaymentFailed(r.Context(), req.Wallet); err != nil {
			writeFailure(w, r, logger, err)
			return
		}

		writeJSON(w, map[string]string{
			"status": "email sent",
			"wallet": req.Wallet,
		}, http.StatusOK)
	})
}

// handleReceipt returns a handler that sends a payment receipt.
// POST /api/v1/notifications/receipt
func handleReceipt(balances BalanceService, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req monitor.Receipt
		if err := decodeJSON(w, r, &req); err != nil {
			writeFailure(w, r, logger, err)
			return
		}

		if err := balances.SendReceipt(r.Context(), req); err != nil {
			writeFailure(w, r, logger, err)
			return
		}

		writeJSON(w, map[string]string{"status": "sent"}, http.StatusOK)
	})
}

// decodeJSON decodes a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%w: body is empty", errInvalidBody)
	case strings.Contains(err.Error(), "http: request body too large"):
		return fmt.Errorf("%w: maximum size is 1MB", errInvalidBody)
	default:
		return fmt.Errorf("%w: must be valid JSON", errInvalidBody)
	}
}

// Error classes reported to HTTP metrics.
const (
	errorClassInvalidRequest   = "invalid_request"
	errorClassNotFound         = "not_found"
	errorClassDegenerateLedger = "degenerate_state"
	errorClassUpstream         = "upstream"
)

// classifyError maps the error taxonomy onto an HTTP status, a metrics error
// class and the client message.
func classifyError(err error) (status int, class, message string) {
	switch {
	case errors.Is(err, errInvalidBody),
		errors.Is(err, txbuilder.ErrInvalidAccount),
		errors.Is(err, monitor.ErrMissingWallet),
		errors.Is(err, monitor.ErrEmailNotSet),
		errors.Is(err, monitor.ErrInvalidReceipt):
		return http.StatusBadRequest, errorClassInvalidRequest, err.Error()

	case errors.Is(err, monitor.ErrSubscriptionNotFound):
		return http.StatusNotFound, errorClassNotFound, err.Error()

	// Degenerate ledger state is a data-integrity problem, not an outage.
	case errors.Is(err, oracle.ErrZeroReserve),
		errors.Is(err, solana.ErrMalformedAccountData),
		errors.Is(err, solana.ErrAccountNotFound):
		return http.StatusInternalServerError, errorClassDegenerateLedger, "degenerate ledger state: " + err.Error()

	default:
		return http.StatusInternalServerError, errorClassUpstream, err.Error()
	}
}

// writeFailure logs err at a level matching its class, tags the request's
// metrics with the class and writes the error response.
func writeFailure(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, class, message := classifyError(err)
	metrics.SetErrorClass(w, class)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"status", status,
			"error_class", class,
			"error", err,
		)
	} else {
		logger.DebugContext(r.Context(), "request rejected",
			"path", r.URL.Path,
			"status", status,
			"error_class", class,
			"error", err,
		)
	}
	writeError(w, message, status)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
