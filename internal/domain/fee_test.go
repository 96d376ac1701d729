package domain_test

import (
	"testing"

	"github.com/alejandrodnm/hipodromo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFee_SplitsExactly(t *testing.T) {
	cases := []struct {
		name    string
		amount  uint64
		bps     uint64
		wantFee uint64
	}{
		{"500bps_100", 100, 500, 5},
		{"500bps_300", 300, 500, 15},
		{"zero_fee", 1000, 0, 0},
		{"full_fee", 1000, 10_000, 1000},
		{"truncates_down", 99, 500, 4}, // floor(99*500/10000) = 4
		{"one_unit", 1, 9_999, 0},
		{"large_amount", 1 << 62, 250, (1 << 62) / 40},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fee, net, err := domain.ApplyFee(tc.amount, tc.bps)
			require.NoError(t, err)
			assert.Equal(t, tc.wantFee, fee)
			// Invariante: fee + net == amount, siempre.
			assert.Equal(t, tc.amount, fee+net)
		})
	}
}

func TestApplyFee_RejectsOutOfRangeBps(t *testing.T) {
	_, _, err := domain.ApplyFee(100, 10_001)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestValidateFeeBps(t *testing.T) {
	assert.NoError(t, domain.ValidateFeeBps(0))
	assert.NoError(t, domain.ValidateFeeBps(500))
	assert.NoError(t, domain.ValidateFeeBps(10_000))

	// 20000 bps es un error de configuración, sin clamping.
	err := domain.ValidateFeeBps(20_000)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestCheckedArithmetic(t *testing.T) {
	const max = ^uint64(0)

	_, err := domain.CheckedAdd(max, 1)
	assert.ErrorIs(t, err, domain.ErrOverflow)

	sum, err := domain.CheckedAdd(max-1, 1)
	require.NoError(t, err)
	assert.Equal(t, max, sum)

	_, err = domain.CheckedSub(0, 1)
	assert.ErrorIs(t, err, domain.ErrOverflow)

	_, err = domain.CheckedMul(1<<33, 1<<33)
	assert.ErrorIs(t, err, domain.ErrOverflow)

	_, err = domain.CheckedDiv(1, 0)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestMulDiv_WideIntermediate(t *testing.T) {
	// a*b desborda uint64 pero el resultado cabe: (2^63)*10000/10000.
	const a = uint64(1) << 63
	got, err := domain.MulDiv(a, 10_000, 10_000)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	_, err = domain.MulDiv(a, 3, 1)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}
