// Package oracle derives the SOL price from on-chain pool reserves and converts
// a fixed USD fee target into a SOL amount.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/brojonat/subpay/service/metrics"
	"github.com/brojonat/subpay/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

const (
	// QuoteDecimals is the smallest-unit exponent of the quote asset (USDC).
	QuoteDecimals = 6

	// DefaultTargetUSD is the fee charged per payment, in USD.
	DefaultTargetUSD = 0.10

	// DefaultPoolReadTimeout bounds the single pool account read.
	DefaultPoolReadTimeout = 10 * time.Second

	// Source identifies where prices come from in API responses.
	Source = "raydium"
)

var (
	// ErrZeroReserve is returned for a degenerate or uninitialized pool.
	ErrZeroReserve = errors.New("pool has zero reserves")

	// ErrOracleUnavailable is returned when the pool account could not be read.
	ErrOracleUnavailable = errors.New("price oracle unavailable")
)

// AccountReader is the slice of the ledger the oracle reads from.
type AccountReader interface {
	GetAccountData(ctx context.Context, address solanago.PublicKey) ([]byte, error)
}

// FeeQuote is the SOL amount matching a USD fee target at the current pool price.
// Values carry full float precision; use Rounded for presentation.
type FeeQuote struct {
	SolNeeded   float64             `json:"sol_needed"`
	SolPriceUSD float64             `json:"sol_price_usd"`
	TargetUSD   float64             `json:"target_usd"`
	Reserves    solana.PoolReserves `json:"reserves"`
	FetchedAt   time.Time           `json:"fetched_at"`
}

// RoundedQuote is a FeeQuote rounded for display: 8 places for the amount, 4 for the price.
type RoundedQuote struct {
	SolNeeded   float64 `json:"sol_needed"`
	SolPriceUSD float64 `json:"sol_price_usdc"`
	Source      string  `json:"source"`
}

// Rounded returns the presentation form of the quote.
func (q *FeeQuote) Rounded() RoundedQuote {
	return RoundedQuote{
		SolNeeded:   decimal.NewFromFloat(q.SolNeeded).Round(8).InexactFloat64(),
		SolPriceUSD: decimal.NewFromFloat(q.SolPriceUSD).Round(4).InexactFloat64(),
		Source:      Source,
	}
}

// Config configures an Oracle.
type Config struct {
	PoolAddress solanago.PublicKey
	ReadTimeout time.Duration // defaults to DefaultPoolReadTimeout
	CacheTTL    time.Duration // zero disables caching
}

// Oracle reads pool reserves and prices fees against them.
type Oracle struct {
	reader  AccountReader
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	cached   solana.PoolReserves
	cachedAt time.Time
}

// New creates an Oracle. If metrics is nil, no metrics will be recorded.
func New(reader AccountReader, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Oracle {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultPoolReadTimeout
	}
	return &Oracle{
		reader:  reader,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// FetchReserves reads and decodes the pool account. With a cache TTL configured,
// reserves younger than the TTL are returned without a ledger read.
func (o *Oracle) FetchReserves(ctx context.Context) (solana.PoolReserves, error) {
	if o.cfg.CacheTTL > 0 {
		o.mu.Lock()
		if !o.cachedAt.IsZero() && o.now().Sub(o.cachedAt) < o.cfg.CacheTTL {
			reserves := o.cached
			o.mu.Unlock()
			o.recordOutcome("cached")
			return reserves, nil
		}
		o.mu.Unlock()
	}

	readCtx, cancel := context.WithTimeout(ctx, o.cfg.ReadTimeout)
	defer cancel()

	data, err := o.reader.GetAccountData(readCtx, o.cfg.PoolAddress)
	if err != nil {
		o.recordOutcome("unavailable")
		return solana.PoolReserves{}, fmt.Errorf("%w: read pool %s: %w", ErrOracleUnavailable, o.cfg.PoolAddress, err)
	}

	reserves, err := solana.DecodeReserves(data)
	if err != nil {
		o.recordOutcome("malformed")
		return solana.PoolReserves{}, fmt.Errorf("decode pool %s: %w", o.cfg.PoolAddress, err)
	}

	if o.cfg.CacheTTL > 0 {
		o.mu.Lock()
		o.cached = reserves
		o.cachedAt = o.now()
		o.mu.Unlock()
	}

	return reserves, nil
}

// QuoteFee prices targetUSD in SOL at the current pool price.
func (o *Oracle) QuoteFee(ctx context.Context, targetUSD float64) (*FeeQuote, error) {
	if targetUSD <= 0 || math.IsNaN(targetUSD) || math.IsInf(targetUSD, 0) {
		return nil, fmt.Errorf("target USD must be a positive number, got %v", targetUSD)
	}

	reserves, err := o.FetchReserves(ctx)
	if err != nil {
		return nil, err
	}

	quote, err := Price(reserves, targetUSD)
	if err != nil {
		o.recordOutcome("zero_reserve")
		o.logger.WarnContext(ctx, "pool reserves are degenerate",
			"pool", o.cfg.PoolAddress.String(),
			"base", reserves.Base,
			"quote", reserves.Quote,
		)
		return nil, err
	}
	quote.FetchedAt = o.now()

	o.recordOutcome("ok")
	if o.metrics != nil {
		o.metrics.RecordSOLPrice(quote.SolPriceUSD)
	}
	o.logger.DebugContext(ctx, "quoted fee",
		"sol_needed", quote.SolNeeded,
		"sol_price_usd", quote.SolPriceUSD,
		"target_usd", targetUSD,
	)

	return quote, nil
}

// Price converts reserves into a FeeQuote for targetUSD. It never divides by zero:
// a zero reserve on either side yields ErrZeroReserve.
func Price(reserves solana.PoolReserves, targetUSD float64) (*FeeQuote, error) {
	if reserves.Base == 0 {
		return nil, fmt.Errorf("%w: base reserve is zero", ErrZeroReserve)
	}
	if reserves.Quote == 0 {
		return nil, fmt.Errorf("%w: quote reserve is zero", ErrZeroReserve)
	}

	price := float64(reserves.Quote) / float64(reserves.Base) / math.Pow10(QuoteDecimals)

	return &FeeQuote{
		SolNeeded:   targetUSD / price,
		SolPriceUSD: price,
		TargetUSD:   targetUSD,
		Reserves:    reserves,
	}, nil
}

func (o *Oracle) recordOutcome(outcome string) {
	if o.metrics != nil {
		o.metrics.RecordFeeQuote(outcome)
	}
}
