package cli

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oasis.ledger/oasis/internal/types"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want *uint256.Int
	}{
		{"12", types.Tokens(12)},
		{"0", uint256.NewInt(0)},
		{"0.5", new(uint256.Int).Div(types.Unit(), uint256.NewInt(2))},
		{".25", new(uint256.Int).Div(types.Unit(), uint256.NewInt(4))},
		{"1.000000000000000001", new(uint256.Int).AddUint64(types.Unit(), 1)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAmountErrors(t *testing.T) {
	for _, in := range []string{"", ".", "abc", "-1", "1.0000000000000000001"} {
		_, err := parseAmount(in)
		assert.Error(t, err, in)
	}

	huge := "115792089237316195423570985008687907853269984665640564039457584007913129639935"
	_, err := parseAmount(huge)
	assert.ErrorIs(t, err, types.ErrOverflow)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", formatAmount(nil))
	assert.Equal(t, "12", formatAmount(types.Tokens(12)))
	assert.Equal(t, "0.5", formatAmount(new(uint256.Int).Div(types.Unit(), uint256.NewInt(2))))

	for _, s := range []string{"1", "0.000000000000000001", "864.25", "50000"} {
		a, err := parseAmount(s)
		require.NoError(t, err)
		assert.Equal(t, s, formatAmount(a))
	}
}
