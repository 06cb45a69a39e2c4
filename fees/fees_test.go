package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetFee_Range(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.SetFee("BSV", 0))
	require.NoError(t, r.SetFee("BSV", 10000))
	assert.ErrorIs(t, r.SetFee("BSV", 10001), ErrInvalidBasisPoints)
	assert.ErrorIs(t, r.SetFee("", 100), ErrEmptyCurrency)

	// The failed update left the last valid value in place.
	bps, err := r.Fee("BSV")
	require.NoError(t, err)
	assert.Equal(t, uint64(10000), bps)
}

func TestFee_UnsupportedCurrency(t *testing.T) {
	r := NewRegistry()

	_, err := r.Fee("XYZ")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)

	err = r.SetFloor("XYZ", 50)
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)

	_, err = r.Negotiate(1000, "XYZ", 1)
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestCurrencies_Sorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.SetFee("USD", 100))
	require.NoError(t, r.SetFee("BSV", 200))
	require.NoError(t, r.SetFee("EUR", 300))

	assert.Equal(t, []string{"BSV", "EUR", "USD"}, r.Currencies())
}

func TestNegotiate_PercentageDominates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.SetFee("BSV", 1000)) // 10%
	require.NoError(t, r.SetFloor("BSV", 5))

	got, err := r.Negotiate(10000, "BSV", 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), got) // 10% of 10000 beats the floor
}

func TestNegotiate_FloorAdjustment(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.SetFee("BSV", 100)) // 1%
	require.NoError(t, r.SetFloor("BSV", 100))

	tests := []struct {
		name         string
		custodyCount uint64
		want         uint64
	}{
		{"count 0 treated as 1", 0, 100}, // log2(1)=0
		{"count 1", 1, 100},
		{"count 2", 2, 110},  // 100 + 100*1/10
		{"count 4", 4, 120},  // 100 + 100*2/10
		{"count 7", 7, 120},  // log2(7)=2
		{"count 8", 8, 130},  // 100 + 100*3/10
		{"count 1024", 1024, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Negotiate(100, "BSV", tt.custodyCount) // 1% of 100 = 1, floor wins
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNegotiate_MonotoneInCustodyCount(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.SetFee("BSV", 250))
	require.NoError(t, r.SetFloor("BSV", 77))

	prev := uint64(0)
	for n := uint64(1); n <= 4096; n *= 2 {
		got, err := r.Negotiate(500, "BSV", n)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, prev, "custodyCount %d", n)
		prev = got
	}
}

func TestNegotiate_ZeroFloorIndependentOfCount(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.SetFee("BSV", 300))

	base, err := r.Negotiate(1000, "BSV", 1)
	require.NoError(t, err)
	for _, n := range []uint64{0, 1, 2, 16, 1 << 40} {
		got, err := r.Negotiate(1000, "BSV", n)
		require.NoError(t, err)
		assert.Equal(t, base, got)
	}
}

func TestLog2(t *testing.T) {
	assert.Equal(t, uint64(0), log2(1))
	assert.Equal(t, uint64(1), log2(2))
	assert.Equal(t, uint64(1), log2(3))
	assert.Equal(t, uint64(2), log2(4))
	assert.Equal(t, uint64(10), log2(1024))
	assert.Equal(t, uint64(63), log2(1<<63))
}
