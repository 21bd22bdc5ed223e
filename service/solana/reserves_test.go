package solana

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// poolAccount builds a fake pool account buffer of the given size with reserves at the decoder offsets.
func poolAccount(size int, base, quote uint64) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0xAB
	}
	binary.LittleEndian.PutUint64(buf[BaseReserveOffset:], base)
	binary.LittleEndian.PutUint64(buf[QuoteReserveOffset:], quote)
	return buf
}

func TestDecodeReserves(t *testing.T) {
	t.Run("minimum length buffer", func(t *testing.T) {
		buf := poolAccount(MinPoolAccountLen, 500_000_000_000, 50_000_000_000)

		reserves, err := DecodeReserves(buf)
		require.NoError(t, err)
		assert.Equal(t, uint64(500_000_000_000), reserves.Base)
		assert.Equal(t, uint64(50_000_000_000), reserves.Quote)
	})

	t.Run("trailing bytes are ignored", func(t *testing.T) {
		// Real Raydium AMM accounts are 752 bytes
		buf := poolAccount(752, 1, 2)

		reserves, err := DecodeReserves(buf)
		require.NoError(t, err)
		assert.Equal(t, PoolReserves{Base: 1, Quote: 2}, reserves)
	})

	t.Run("little endian byte order", func(t *testing.T) {
		buf := make([]byte, MinPoolAccountLen)
		buf[BaseReserveOffset] = 0x01
		buf[QuoteReserveOffset+7] = 0x01

		reserves, err := DecodeReserves(buf)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), reserves.Base)
		assert.Equal(t, uint64(1)<<56, reserves.Quote)
	})

	t.Run("max values", func(t *testing.T) {
		buf := poolAccount(MinPoolAccountLen, ^uint64(0), ^uint64(0))

		reserves, err := DecodeReserves(buf)
		require.NoError(t, err)
		assert.Equal(t, ^uint64(0), reserves.Base)
		assert.Equal(t, ^uint64(0), reserves.Quote)
	})

	t.Run("short buffers are rejected", func(t *testing.T) {
		for _, size := range []int{0, 1, 64, 72, MinPoolAccountLen - 1} {
			_, err := DecodeReserves(make([]byte, size))
			assert.ErrorIs(t, err, ErrMalformedAccountData, "size %d", size)
		}
	})

	t.Run("nil buffer", func(t *testing.T) {
		_, err := DecodeReserves(nil)
		assert.ErrorIs(t, err, ErrMalformedAccountData)
	})
}
