package txbuilder

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	programID solana.PublicKey
	feeWallet solana.PublicKey
	user      solana.PublicKey
	accounts  SubscriptionAccounts
	blockhash solana.Hash
}

func newFixture() fixture {
	user := solana.NewWallet().PublicKey()
	return fixture{
		programID: solana.NewWallet().PublicKey(),
		feeWallet: solana.NewWallet().PublicKey(),
		user:      user,
		accounts: SubscriptionAccounts{
			Subscription:       solana.NewWallet().PublicKey(),
			SubscriptionSigner: solana.NewWallet().PublicKey(),
			User:               user,
			Escrow:             solana.NewWallet().PublicKey(),
			Recipient:          solana.NewWallet().PublicKey(),
			Mint:               solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
			TokenProgram:       solana.TokenProgramID,
		},
		blockhash: solana.Hash(solana.NewWallet().PublicKey()),
	}
}

func (f fixture) build(t *testing.T, lamports uint64) *UnsignedTransaction {
	t.Helper()
	b, err := NewBuilder(f.programID, f.feeWallet)
	require.NoError(t, err)
	tx, err := b.Build(BuildParams{
		User:            f.user,
		Accounts:        f.accounts,
		FeeLamports:     lamports,
		RecentBlockhash: f.blockhash,
	})
	require.NoError(t, err)
	return tx
}

func TestBuildInstructionShape(t *testing.T) {
	f := newFixture()
	tx := f.build(t, 1_234_567)

	require.Len(t, tx.Instructions, 2)

	t.Run("program call comes first", func(t *testing.T) {
		ix := tx.Instructions[0]
		assert.Equal(t, f.programID, ix.ProgramID())

		data, err := ix.Data()
		require.NoError(t, err)
		assert.Equal(t, []byte{0}, data)

		want := []struct {
			key      solana.PublicKey
			writable bool
			signer   bool
		}{
			{f.accounts.Subscription, true, false},
			{f.accounts.SubscriptionSigner, false, false},
			{f.user, false, true},
			{f.accounts.Escrow, true, false},
			{f.accounts.Recipient, true, false},
			{f.accounts.Mint, false, false},
			{solana.TokenProgramID, false, false},
		}
		metas := ix.Accounts()
		require.Len(t, metas, len(want))
		for i, w := range want {
			assert.Equal(t, w.key, metas[i].PublicKey, "account %d", i)
			assert.Equal(t, w.writable, metas[i].IsWritable, "account %d writable", i)
			assert.Equal(t, w.signer, metas[i].IsSigner, "account %d signer", i)
		}
	})

	t.Run("fee transfer comes second", func(t *testing.T) {
		ix := tx.Instructions[1]
		assert.Equal(t, solana.SystemProgramID, ix.ProgramID())

		metas := ix.Accounts()
		require.Len(t, metas, 2)
		assert.Equal(t, f.user, metas[0].PublicKey)
		assert.True(t, metas[0].IsSigner)
		assert.True(t, metas[0].IsWritable)
		assert.Equal(t, f.feeWallet, metas[1].PublicKey)
		assert.True(t, metas[1].IsWritable)

		data, err := ix.Data()
		require.NoError(t, err)
		require.Len(t, data, 12)
		assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[:4]), "system transfer discriminator")
		assert.Equal(t, uint64(1_234_567), binary.LittleEndian.Uint64(data[4:]))
	})
}

func TestBuildFeePayerIsUser(t *testing.T) {
	for i := 0; i < 5; i++ {
		f := newFixture()
		tx := f.build(t, uint64(i)*1000+1)
		assert.Equal(t, f.user, tx.FeePayer)
		assert.Equal(t, f.blockhash, tx.RecentBlockhash)
	}
}

func TestBuildMessageDecodes(t *testing.T) {
	f := newFixture()
	tx := f.build(t, 500)

	raw, err := base64.StdEncoding.DecodeString(tx.Base64())
	require.NoError(t, err)
	assert.Equal(t, tx.Message, raw)

	var msg solana.Message
	require.NoError(t, msg.UnmarshalWithDecoder(bin.NewBinDecoder(raw)))

	require.NotEmpty(t, msg.AccountKeys)
	assert.Equal(t, f.user, msg.AccountKeys[0], "fee payer is the first account key")
	assert.Equal(t, f.blockhash, msg.RecentBlockhash)
	assert.Equal(t, uint8(1), msg.Header.NumRequiredSignatures, "only the user signs")
	assert.Equal(t, uint8(0), msg.Header.NumReadonlySignedAccounts)

	// user, 4 writable unsigned, 5 read-only unsigned (signer PDA, mint, token program, both program ids)
	assert.Len(t, msg.AccountKeys, 10)
	assert.Equal(t, uint8(5), msg.Header.NumReadonlyUnsignedAccounts)

	require.Len(t, msg.Instructions, 2)
	assert.Equal(t, f.programID, msg.AccountKeys[msg.Instructions[0].ProgramIDIndex])
	assert.Equal(t, solana.SystemProgramID, msg.AccountKeys[msg.Instructions[1].ProgramIDIndex])

	order := []solana.PublicKey{
		f.accounts.Subscription,
		f.accounts.SubscriptionSigner,
		f.user,
		f.accounts.Escrow,
		f.accounts.Recipient,
		f.accounts.Mint,
		solana.TokenProgramID,
	}
	require.Len(t, msg.Instructions[0].Accounts, len(order))
	for i, idx := range msg.Instructions[0].Accounts {
		assert.Equal(t, order[i], msg.AccountKeys[idx], "account %d", i)
	}
}

func TestBuildErrors(t *testing.T) {
	f := newFixture()
	b, err := NewBuilder(f.programID, f.feeWallet)
	require.NoError(t, err)

	valid := BuildParams{
		User:            f.user,
		Accounts:        f.accounts,
		FeeLamports:     1,
		RecentBlockhash: f.blockhash,
	}

	t.Run("zero user", func(t *testing.T) {
		p := valid
		p.User = solana.PublicKey{}
		_, err := b.Build(p)
		assert.ErrorIs(t, err, ErrInvalidAccount)
	})

	t.Run("user mismatch", func(t *testing.T) {
		p := valid
		p.User = solana.NewWallet().PublicKey()
		_, err := b.Build(p)
		assert.ErrorIs(t, err, ErrInvalidAccount)
	})

	t.Run("missing escrow", func(t *testing.T) {
		p := valid
		p.Accounts.Escrow = solana.PublicKey{}
		_, err := b.Build(p)
		assert.ErrorIs(t, err, ErrInvalidAccount)
		assert.Contains(t, err.Error(), "escrow")
	})

	t.Run("account set user defaults to signer", func(t *testing.T) {
		p := valid
		p.Accounts.User = solana.PublicKey{}
		tx, err := b.Build(p)
		require.NoError(t, err)
		assert.Equal(t, f.user, tx.Instructions[0].Accounts()[2].PublicKey)
	})

	t.Run("zero blockhash", func(t *testing.T) {
		p := valid
		p.RecentBlockhash = solana.Hash{}
		_, err := b.Build(p)
		assert.ErrorIs(t, err, ErrBlockhashUnavailable)
	})

	t.Run("builder requires program and fee wallet", func(t *testing.T) {
		_, err := NewBuilder(solana.PublicKey{}, f.feeWallet)
		assert.ErrorIs(t, err, ErrInvalidAccount)
		_, err = NewBuilder(f.programID, solana.PublicKey{})
		assert.ErrorIs(t, err, ErrInvalidAccount)
	})
}

func TestParseAddress(t *testing.T) {
	key, err := ParseAddress("escrow", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	require.NoError(t, err)
	assert.Equal(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", key.String())

	_, err = ParseAddress("escrow", "")
	assert.ErrorIs(t, err, ErrInvalidAccount)

	_, err = ParseAddress("escrow", "not-base58-0OIl")
	assert.ErrorIs(t, err, ErrInvalidAccount)
	assert.Contains(t, err.Error(), "escrow")
}

func TestLamportsForSOL(t *testing.T) {
	tests := []struct {
		sol  float64
		want uint64
	}{
		{0, 0},
		{1, 1_000_000_000},
		{0.000000001, 1},
		{0.0000000014, 1},
		{0.0000000016, 2},
		{0.00066666666, 666_667},
		{1_000_000, 1_000_000_000_000_000},
	}
	for _, tt := range tests {
		got, err := LamportsForSOL(tt.sol)
		require.NoError(t, err, "sol %v", tt.sol)
		assert.Equal(t, tt.want, got, "sol %v", tt.sol)
	}

	for _, bad := range []float64{-0.1, math.NaN(), math.Inf(1), 1e11} {
		_, err := LamportsForSOL(bad)
		assert.ErrorIs(t, err, ErrInvalidFee, "sol %v", bad)
	}
}
