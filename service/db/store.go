package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/brojonat/subpay/service/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Store provides database operations for subscription records.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If metrics is nil, no metrics will be recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		metrics: m,
	}
}

// Subscription is a subscriber's billing record.
// Empty Email or EscrowAddress and a zero MonthlyAmount mean the field is unset.
type Subscription struct {
	Wallet        string    `json:"wallet"`
	Email         string    `json:"email,omitempty"`
	MonthlyAmount uint64    `json:"monthly_amount,omitempty"`
	EscrowAddress string    `json:"escrow_address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Complete reports whether the record carries everything a balance check needs.
func (s *Subscription) Complete() bool {
	return s.Email != "" && s.EscrowAddress != "" && s.MonthlyAmount > 0
}

// UpsertSubscriptionParams contains the parameters for creating or replacing a subscription.
type UpsertSubscriptionParams struct {
	Wallet        string
	Email         *string
	MonthlyAmount *uint64
	EscrowAddress *string
}

const subscriptionColumns = `wallet, email, monthly_amount, escrow_address, created_at, updated_at`

// Migrate applies the embedded schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	start := time.Now()
	_, err := s.pool.Exec(ctx, schemaSQL)
	s.record("migrate", start, err)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// ListSubscriptions returns every subscription record ordered by wallet.
func (s *Store) ListSubscriptions(ctx context.Context) ([]*Subscription, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY wallet`)
	if err != nil {
		s.record("list", start, err)
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			s.record("list", start, err)
			return nil, fmt.Errorf("list subscriptions: scan: %w", err)
		}
		subs = append(subs, sub)
	}
	err = rows.Err()
	s.record("list", start, err)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	return subs, nil
}

// GetSubscription retrieves the record for wallet. It returns nil, nil when none exists.
func (s *Store) GetSubscription(ctx context.Context, wallet string) (*Subscription, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE wallet = $1`, wallet)
	sub, err := scanSubscription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		s.record("get", start, nil)
		return nil, nil
	}
	s.record("get", start, err)
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", wallet, err)
	}
	return sub, nil
}

// UpsertSubscription creates the record or replaces its fields.
func (s *Store) UpsertSubscription(ctx context.Context, params UpsertSubscriptionParams) (*Subscription, error) {
	if params.Wallet == "" {
		return nil, fmt.Errorf("wallet is required")
	}

	var monthly pgtype.Int8
	if params.MonthlyAmount != nil {
		if *params.MonthlyAmount > math.MaxInt64 {
			return nil, fmt.Errorf("monthly amount %d out of range", *params.MonthlyAmount)
		}
		monthly = pgtype.Int8{Int64: int64(*params.MonthlyAmount), Valid: true}
	}

	start := time.Now()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO subscriptions (wallet, email, monthly_amount, escrow_address)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (wallet) DO UPDATE SET
			email = EXCLUDED.email,
			monthly_amount = EXCLUDED.monthly_amount,
			escrow_address = EXCLUDED.escrow_address,
			updated_at = NOW()
		RETURNING `+subscriptionColumns,
		params.Wallet,
		pgtextFromStringPtr(params.Email),
		monthly,
		pgtextFromStringPtr(params.EscrowAddress),
	)
	sub, err := scanSubscription(row)
	s.record("upsert", start, err)
	if err != nil {
		return nil, fmt.Errorf("upsert subscription %s: %w", params.Wallet, err)
	}
	return sub, nil
}

// DeleteSubscription removes the record for wallet. Deleting a missing record is not an error.
func (s *Store) DeleteSubscription(ctx context.Context, wallet string) error {
	start := time.Now()
	_, err := s.pool.Exec(ctx, `DELETE FROM subscriptions WHERE wallet = $1`, wallet)
	s.record("delete", start, err)
	if err != nil {
		return fmt.Errorf("delete subscription %s: %w", wallet, err)
	}
	return nil
}

func (s *Store) record(operation string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery(operation, "subscriptions", time.Since(start).Seconds(), err)
	}
}

// Helper functions to convert between database and domain types

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var (
		sub     Subscription
		email   pgtype.Text
		monthly pgtype.Int8
		escrow  pgtype.Text
		created pgtype.Timestamptz
		updated pgtype.Timestamptz
	)
	if err := row.Scan(&sub.Wallet, &email, &monthly, &escrow, &created, &updated); err != nil {
		return nil, err
	}

	sub.Email = email.String
	sub.EscrowAddress = escrow.String
	if monthly.Valid && monthly.Int64 > 0 {
		sub.MonthlyAmount = uint64(monthly.Int64)
	}
	sub.CreatedAt = created.Time
	sub.UpdatedAt = updated.Time
	return &sub, nil
}

func pgtextFromStringPtr(s *string) pgtype.Text {
	if s == nil || *s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}
