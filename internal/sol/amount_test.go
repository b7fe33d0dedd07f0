package sol

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLamports(t *testing.T) {
	got, err := ToLamports(decimal.RequireFromString("1.5"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), got)

	got, err = ToLamports(decimal.RequireFromString("0.000000001"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got)

	got, err = ToLamports(decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got)

	_, err = ToLamports(decimal.RequireFromString("-1"))
	assert.Error(t, err)

	_, err = ToLamports(decimal.RequireFromString("0.0000000001"))
	assert.Error(t, err, "sub-lamport precision must be rejected, not rounded")

	_, err = ToLamports(decimal.RequireFromString("20000000000"))
	assert.Error(t, err)
}

func TestToSOLRoundTrip(t *testing.T) {
	for _, lamports := range []uint64{0, 1, 5000, 1_000_000_000, 123_456_789_012} {
		back, err := ToLamports(ToSOL(lamports))
		require.NoError(t, err)
		assert.Equal(t, lamports, back)
	}
}
