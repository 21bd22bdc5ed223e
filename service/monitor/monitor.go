// Package monitor checks escrow balances against committed monthly amounts and
// sends subscriber notifications.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/subpay/service/db"
	"github.com/brojonat/subpay/service/metrics"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of records checked in parallel during a sweep.
const DefaultConcurrency = 4

var (
	// ErrMissingWallet is returned when a request names no wallet.
	ErrMissingWallet = errors.New("missing 'wallet'")

	// ErrSubscriptionNotFound is returned when no record exists for a wallet.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrEmailNotSet is returned when a record has no email to notify.
	ErrEmailNotSet = errors.New("email not set for this subscription")

	// ErrInvalidReceipt is returned when a receipt lacks a required field.
	ErrInvalidReceipt = errors.New("invalid receipt")
)

// SubscriptionStore reads subscription records.
type SubscriptionStore interface {
	ListSubscriptions(ctx context.Context) ([]*db.Subscription, error)
	// GetSubscription returns nil, nil when the record does not exist.
	GetSubscription(ctx context.Context, wallet string) (*db.Subscription, error)
}

// BalanceReader reads token account balances from the ledger.
type BalanceReader interface {
	GetTokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// Notifier delivers subscriber notifications.
type Notifier interface {
	SendLowBalance(ctx context.Context, email, wallet string) error
	SendPaymentFailed(ctx context.Context, email, wallet string) error
	SendReceipt(ctx context.Context, email, wallet string, usdcAmount uint64, txSignature string) error
}

// BalanceCheckResult is the outcome of checking one escrow.
type BalanceCheckResult struct {
	Wallet        string `json:"wallet"`
	EscrowBalance uint64 `json:"escrow_balance"`
	Required      uint64 `json:"required"`
	Sufficient    bool   `json:"sufficient"`
	Notified      bool   `json:"notified"`
	Error         string `json:"error,omitempty"`
}

// SweepSummary aggregates one sweep. Checked counts records whose balance was
// classified; Failed counts records that errored; Skipped counts incomplete records.
type SweepSummary struct {
	Checked  int                   `json:"checked"`
	Notified int                   `json:"notified"`
	Failed   int                   `json:"failed"`
	Skipped  int                   `json:"skipped"`
	Results  []*BalanceCheckResult `json:"results,omitempty"`
}

// Receipt is a settled payment to confirm to the subscriber.
type Receipt struct {
	Email       string `json:"email"`
	Wallet      string `json:"wallet"`
	USDCAmount  uint64 `json:"usdc_amount"`
	TxSignature string `json:"tx_signature"`
}

// Config configures a Monitor.
type Config struct {
	Concurrency int
}

// Monitor runs balance sweeps and single-subscription notifications.
type Monitor struct {
	store    SubscriptionStore
	balances BalanceReader
	notifier Notifier
	cfg      Config
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Monitor. If metrics is nil, no metrics will be recorded.
func New(store SubscriptionStore, balances BalanceReader, notifier Notifier, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Monitor {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Monitor{
		store:    store,
		balances: balances,
		notifier: notifier,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
	}
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeChecked
	outcomeFailed
)

// Sweep checks every complete subscription record and notifies subscribers whose
// escrow holds less than their monthly amount. A record that fails is logged and
// counted; it never stops the sweep. Only a failure to list records is returned.
func (m *Monitor) Sweep(ctx context.Context) (*SweepSummary, error) {
	start := time.Now()

	subs, err := m.store.ListSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	outcomes := make([]outcome, len(subs))
	results := make([]*BalanceCheckResult, len(subs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)
	for i, sub := range subs {
		g.Go(func() error {
			outcomes[i], results[i] = m.checkRecord(gctx, sub)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	summary := &SweepSummary{}
	for i, o := range outcomes {
		switch o {
		case outcomeSkipped:
			summary.Skipped++
			m.recordSweep("skipped")
		case outcomeFailed:
			summary.Failed++
			m.recordSweep("failed")
		case outcomeChecked:
			summary.Checked++
			if results[i].Sufficient {
				m.recordSweep("sufficient")
			} else {
				m.recordSweep("insufficient")
			}
		}
		if results[i] != nil {
			if results[i].Notified {
				summary.Notified++
			}
			summary.Results = append(summary.Results, results[i])
		}
	}

	if m.metrics != nil {
		m.metrics.RecordSweepDuration(time.Since(start).Seconds())
	}
	m.logger.InfoContext(ctx, "balance sweep completed",
		"records", len(subs),
		"checked", summary.Checked,
		"notified", summary.Notified,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration", time.Since(start),
	)

	return summary, nil
}

func (m *Monitor) checkRecord(ctx context.Context, sub *db.Subscription) (outcome, *BalanceCheckResult) {
	if sub == nil || !sub.Complete() {
		return outcomeSkipped, nil
	}

	escrow, err := solana.PublicKeyFromBase58(sub.EscrowAddress)
	if err != nil {
		m.logger.WarnContext(ctx, "invalid escrow address, skipping record",
			"wallet", sub.Wallet,
			"escrow", sub.EscrowAddress,
			"error", err,
		)
		return outcomeFailed, nil
	}

	balance, err := m.balances.GetTokenBalance(ctx, escrow)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to read escrow balance, skipping record",
			"wallet", sub.Wallet,
			"escrow", sub.EscrowAddress,
			"error", err,
		)
		return outcomeFailed, nil
	}

	result := &BalanceCheckResult{
		Wallet:        sub.Wallet,
		EscrowBalance: balance,
		Required:      sub.MonthlyAmount,
		Sufficient:    balance >= sub.MonthlyAmount,
	}
	if result.Sufficient {
		return outcomeChecked, result
	}

	if err := m.notifier.SendLowBalance(ctx, sub.Email, sub.Wallet); err != nil {
		m.logger.WarnContext(ctx, "failed to send low balance notification",
			"wallet", sub.Wallet,
			"error", err,
		)
		result.Error = err.Error()
		return outcomeFailed, result
	}
	result.Notified = true

	m.logger.InfoContext(ctx, "escrow balance below monthly amount",
		"wallet", sub.Wallet,
		"balance", balance,
		"required", sub.MonthlyAmount,
	)
	return outcomeChecked, result
}

// NotifyPaymentFailed sends the payment failed notification for one subscription.
func (m *Monitor) NotifyPaymentFailed(ctx context.Context, wallet string) error {
	if wallet == "" {
		return ErrMissingWallet
	}

	sub, err := m.store.GetSubscription(ctx, wallet)
	if err != nil {
		return fmt.Errorf("get subscription %s: %w", wallet, err)
	}
	if sub == nil {
		return ErrSubscriptionNotFound
	}
	if sub.Email == "" {
		return ErrEmailNotSet
	}

	if err := m.notifier.SendPaymentFailed(ctx, sub.Email, wallet); err != nil {
		return fmt.Errorf("send payment failed notification: %w", err)
	}

	m.logger.InfoContext(ctx, "sent payment failed notification", "wallet", wallet)
	return nil
}

// SendReceipt sends a payment receipt to the subscriber.
func (m *Monitor) SendReceipt(ctx context.Context, r Receipt) error {
	var missing []string
	if r.Email == "" {
		missing = append(missing, "email")
	}
	if r.Wallet == "" {
		missing = append(missing, "wallet")
	}
	if r.USDCAmount == 0 {
		missing = append(missing, "usdc_amount")
	}
	if r.TxSignature == "" {
		missing = append(missing, "tx_signature")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", ErrInvalidReceipt, missing)
	}

	if err := m.notifier.SendReceipt(ctx, r.Email, r.Wallet, r.USDCAmount, r.TxSignature); err != nil {
		return fmt.Errorf("send receipt: %w", err)
	}

	m.logger.InfoContext(ctx, "sent payment receipt",
		"wallet", r.Wallet,
		"tx_signature", r.TxSignature,
	)
	return nil
}

func (m *Monitor) recordSweep(result string) {
	if m.metrics != nil {
		m.metrics.RecordSweepRecord(result)
	}
}
