package solana

import (
	"encoding/binary"
	"fmt"
)

// Byte layout of the AMM pool account. Both counters are little-endian u64.
const (
	BaseReserveOffset  = 64
	QuoteReserveOffset = 72

	// MinPoolAccountLen is the smallest buffer that holds both counters.
	MinPoolAccountLen = QuoteReserveOffset + 8
)

// DecodeReserves reads the base and quote reserves out of raw pool account data.
// Bytes outside the two counters are ignored.
func DecodeReserves(buf []byte) (PoolReserves, error) {
	if len(buf) < MinPoolAccountLen {
		return PoolReserves{}, fmt.Errorf("%w: got %d bytes, need at least %d",
			ErrMalformedAccountData, len(buf), MinPoolAccountLen)
	}

	return PoolReserves{
		Base:  binary.LittleEndian.Uint64(buf[BaseReserveOffset : BaseReserveOffset+8]),
		Quote: binary.LittleEndian.Uint64(buf[QuoteReserveOffset : QuoteReserveOffset+8]),
	}, nil
}
