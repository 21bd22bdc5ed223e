// Package txbuilder assembles the unsigned two-instruction subscription payment transaction.
package txbuilder

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

const (
	// LamportsPerSOL is the native subunit scale.
	LamportsPerSOL = 1_000_000_000

	// ProcessPaymentOpcode selects the process_payment variant of the subscription program.
	ProcessPaymentOpcode byte = 0
)

var (
	// ErrInvalidAccount is returned when an address is missing or fails format validation.
	ErrInvalidAccount = errors.New("invalid account")

	// ErrBlockhashUnavailable is returned when no recent blockhash is available for the build.
	ErrBlockhashUnavailable = errors.New("recent blockhash unavailable")

	// ErrInvalidFee is returned when a fee cannot be expressed in lamports.
	ErrInvalidFee = errors.New("invalid fee amount")
)

// SubscriptionAccounts is the account set of the process_payment instruction.
type SubscriptionAccounts struct {
	Subscription       solana.PublicKey
	SubscriptionSigner solana.PublicKey
	User               solana.PublicKey
	Escrow             solana.PublicKey
	Recipient          solana.PublicKey
	Mint               solana.PublicKey
	TokenProgram       solana.PublicKey
}

// Metas returns the accounts in program order with their writable and signer flags.
func (a SubscriptionAccounts) Metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Subscription, true, false),
		solana.NewAccountMeta(a.SubscriptionSigner, false, false),
		solana.NewAccountMeta(a.User, false, true),
		solana.NewAccountMeta(a.Escrow, true, false),
		solana.NewAccountMeta(a.Recipient, true, false),
		solana.NewAccountMeta(a.Mint, false, false),
		solana.NewAccountMeta(a.TokenProgram, false, false),
	}
}

func (a SubscriptionAccounts) validate() error {
	for _, f := range []struct {
		name string
		key  solana.PublicKey
	}{
		{"subscription", a.Subscription},
		{"subscription_signer", a.SubscriptionSigner},
		{"user", a.User},
		{"escrow", a.Escrow},
		{"recipient", a.Recipient},
		{"mint", a.Mint},
		{"token_program", a.TokenProgram},
	} {
		if f.key.IsZero() {
			return fmt.Errorf("%w: %s is required", ErrInvalidAccount, f.name)
		}
	}
	return nil
}

// ParseAddress parses a base58 address, naming the field on failure.
func ParseAddress(field, value string) (solana.PublicKey, error) {
	if value == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: %s is required", ErrInvalidAccount, field)
	}
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %s %q: %v", ErrInvalidAccount, field, value, err)
	}
	return key, nil
}

// LamportsForSOL converts a SOL amount to lamports, rounding to the nearest lamport.
func LamportsForSOL(sol float64) (uint64, error) {
	if math.IsNaN(sol) || math.IsInf(sol, 0) || sol < 0 {
		return 0, fmt.Errorf("%w: %v SOL", ErrInvalidFee, sol)
	}
	lamports := math.Round(sol * LamportsPerSOL)
	if lamports >= math.MaxUint64 {
		return 0, fmt.Errorf("%w: %v SOL overflows lamports", ErrInvalidFee, sol)
	}
	return uint64(lamports), nil
}

// UnsignedTransaction is a built payment transaction awaiting the user's signature.
type UnsignedTransaction struct {
	Instructions    []solana.Instruction
	RecentBlockhash solana.Hash
	FeePayer        solana.PublicKey

	// Message is the serialized legacy message; the bytes a wallet signs.
	Message []byte
}

// Base64 returns the serialized message in transport encoding.
func (t *UnsignedTransaction) Base64() string {
	return base64.StdEncoding.EncodeToString(t.Message)
}

// BuildParams are the per-request inputs to Build.
type BuildParams struct {
	User            solana.PublicKey
	Accounts        SubscriptionAccounts
	FeeLamports     uint64
	RecentBlockhash solana.Hash
}

// Builder composes payment transactions for one subscription program and fee wallet.
type Builder struct {
	programID solana.PublicKey
	feeWallet solana.PublicKey
}

// NewBuilder creates a Builder.
func NewBuilder(programID, feeWallet solana.PublicKey) (*Builder, error) {
	if programID.IsZero() {
		return nil, fmt.Errorf("%w: subscription program id is required", ErrInvalidAccount)
	}
	if feeWallet.IsZero() {
		return nil, fmt.Errorf("%w: fee wallet is required", ErrInvalidAccount)
	}
	return &Builder{programID: programID, feeWallet: feeWallet}, nil
}

// ProgramID returns the subscription program the builder targets.
func (b *Builder) ProgramID() solana.PublicKey { return b.programID }

// FeeWallet returns the address receiving the fee transfer.
func (b *Builder) FeeWallet() solana.PublicKey { return b.feeWallet }

// Build assembles the program call followed by the fee transfer, with the user as fee payer.
// The ledger executes both or neither.
func (b *Builder) Build(params BuildParams) (*UnsignedTransaction, error) {
	if params.User.IsZero() {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidAccount)
	}
	accounts := params.Accounts
	if accounts.User.IsZero() {
		accounts.User = params.User
	}
	if !accounts.User.Equals(params.User) {
		return nil, fmt.Errorf("%w: account set user %s does not match signer %s",
			ErrInvalidAccount, accounts.User, params.User)
	}
	if err := accounts.validate(); err != nil {
		return nil, err
	}
	if params.RecentBlockhash.IsZero() {
		return nil, ErrBlockhashUnavailable
	}

	instructions := []solana.Instruction{
		solana.NewInstruction(b.programID, accounts.Metas(), []byte{ProcessPaymentOpcode}),
		system.NewTransferInstruction(params.FeeLamports, params.User, b.feeWallet).Build(),
	}

	tx, err := solana.NewTransaction(
		instructions,
		params.RecentBlockhash,
		solana.TransactionPayer(params.User),
	)
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize message: %w", err)
	}

	return &UnsignedTransaction{
		Instructions:    instructions,
		RecentBlockhash: params.RecentBlockhash,
		FeePayer:        params.User,
		Message:         message,
	}, nil
}
