// Package payment ties fee pricing to transaction assembly for one payment request.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brojonat/subpay/service/metrics"
	"github.com/brojonat/subpay/service/oracle"
	"github.com/brojonat/subpay/service/solana"
	"github.com/brojonat/subpay/service/txbuilder"
	solanago "github.com/gagliardetto/solana-go"
)

// FeeQuoter prices a USD amount in SOL.
type FeeQuoter interface {
	QuoteFee(ctx context.Context, targetUSD float64) (*oracle.FeeQuote, error)
}

// BlockhashSource supplies recent blockhashes.
type BlockhashSource interface {
	GetLatestBlockhash(ctx context.Context) (*solana.Blockhash, error)
}

// PaymentRequest is the client-supplied account set for one subscription payment.
type PaymentRequest struct {
	UserPubkey            string `json:"user_pubkey"`
	SubscriptionPubkey    string `json:"subscription_pubkey"`
	SubscriptionSigner    string `json:"subscription_signer"`
	EscrowTokenAccount    string `json:"escrow_token_account"`
	RecipientTokenAccount string `json:"recipient_token_account"`
	MonthlyUSDCAmount     uint64 `json:"monthly_usdc_amount"`
}

// PaymentTransaction is a built, unsigned payment ready for the user's wallet.
type PaymentTransaction struct {
	Transaction          *txbuilder.UnsignedTransaction
	Quote                *oracle.FeeQuote
	FeeLamports          uint64
	Blockhash            solanago.Hash
	LastValidBlockHeight uint64
	MonthlyUSDCAmount    uint64
	Message              string
}

// Config configures a Service.
type Config struct {
	TargetUSD float64
	USDCMint  solanago.PublicKey
}

// Service builds fee-bearing payment transactions.
type Service struct {
	quoter      FeeQuoter
	blockhashes BlockhashSource
	builder     *txbuilder.Builder
	cfg         Config
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewService creates a Service. If metrics is nil, no metrics will be recorded.
func NewService(quoter FeeQuoter, blockhashes BlockhashSource, builder *txbuilder.Builder, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Service {
	if cfg.TargetUSD <= 0 {
		cfg.TargetUSD = oracle.DefaultTargetUSD
	}
	return &Service{
		quoter:      quoter,
		blockhashes: blockhashes,
		builder:     builder,
		cfg:         cfg,
		metrics:     m,
		logger:      logger,
	}
}

// QuoteFee prices the configured fee target.
func (s *Service) QuoteFee(ctx context.Context) (*oracle.FeeQuote, error) {
	return s.quoter.QuoteFee(ctx, s.cfg.TargetUSD)
}

// CreatePaymentTransaction validates the request, prices the fee, fetches a fresh
// blockhash and builds the unsigned transaction.
func (s *Service) CreatePaymentTransaction(ctx context.Context, req PaymentRequest) (*PaymentTransaction, error) {
	accounts, err := s.parseAccounts(req)
	if err != nil {
		s.recordBuild("invalid", 0)
		return nil, err
	}

	quote, err := s.QuoteFee(ctx)
	if err != nil {
		s.recordBuild("quote_error", 0)
		return nil, err
	}

	lamports, err := txbuilder.LamportsForSOL(quote.SolNeeded)
	if err != nil {
		s.recordBuild("quote_error", 0)
		return nil, err
	}

	// Fetched last so the hash is as fresh as possible when the wallet signs.
	blockhash, err := s.blockhashes.GetLatestBlockhash(ctx)
	if err != nil {
		s.recordBuild("blockhash_error", 0)
		return nil, fmt.Errorf("%w: %w", txbuilder.ErrBlockhashUnavailable, err)
	}

	tx, err := s.builder.Build(txbuilder.BuildParams{
		User:            accounts.User,
		Accounts:        accounts,
		FeeLamports:     lamports,
		RecentBlockhash: blockhash.Hash,
	})
	if err != nil {
		s.recordBuild("build_error", 0)
		return nil, err
	}

	s.recordBuild("success", lamports)
	s.logger.InfoContext(ctx, "built payment transaction",
		"user", accounts.User.String(),
		"subscription", accounts.Subscription.String(),
		"fee_lamports", lamports,
		"sol_needed", quote.SolNeeded,
		"blockhash", blockhash.Hash.String(),
	)

	return &PaymentTransaction{
		Transaction:          tx,
		Quote:                quote,
		FeeLamports:          lamports,
		Blockhash:            blockhash.Hash,
		LastValidBlockHeight: blockhash.LastValidBlockHeight,
		MonthlyUSDCAmount:    req.MonthlyUSDCAmount,
		Message:              fmt.Sprintf("Approve subscription and fee payment of ~%.6f SOL", quote.SolNeeded),
	}, nil
}

func (s *Service) parseAccounts(req PaymentRequest) (txbuilder.SubscriptionAccounts, error) {
	var (
		accounts txbuilder.SubscriptionAccounts
		errs     []error
	)
	parse := func(field, value string, dst *solanago.PublicKey) {
		key, err := txbuilder.ParseAddress(field, value)
		if err != nil {
			errs = append(errs, err)
			return
		}
		*dst = key
	}

	parse("user_pubkey", req.UserPubkey, &accounts.User)
	parse("subscription_pubkey", req.SubscriptionPubkey, &accounts.Subscription)
	parse("subscription_signer", req.SubscriptionSigner, &accounts.SubscriptionSigner)
	parse("escrow_token_account", req.EscrowTokenAccount, &accounts.Escrow)
	parse("recipient_token_account", req.RecipientTokenAccount, &accounts.Recipient)

	if len(errs) > 0 {
		return accounts, errors.Join(errs...)
	}

	accounts.Mint = s.cfg.USDCMint
	accounts.TokenProgram = solanago.TokenProgramID
	return accounts, nil
}

func (s *Service) recordBuild(status string, lamports uint64) {
	if s.metrics != nil {
		s.metrics.RecordTransactionBuilt(status, lamports)
	}
}
