package solana

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrMalformedAccountData is returned when pool account bytes are too short to hold reserves.
	ErrMalformedAccountData = errors.New("malformed pool account data")

	// ErrAccountNotFound is returned when the ledger has no account (or no data) at an address.
	ErrAccountNotFound = errors.New("account not found")
)

// PoolReserves are the two raw reserve counters of a constant-product pool.
// Base is the SOL side (lamports), Quote the USDC side (micro-USDC).
type PoolReserves struct {
	Base  uint64 `json:"base"`
	Quote uint64 `json:"quote"`
}

// Blockhash is a recent blockhash together with the last block height at which
// a transaction referencing it is still accepted.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}
