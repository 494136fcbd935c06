package cli

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"oasis.ledger/oasis/internal/types"
)

const decimals = 18

// parseAmount reads a token amount written in whole tokens with up to 18
// fractional digits, e.g. "12" or "0.5", and returns base units.
func parseAmount(s string) (*uint256.Int, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(s), ".")
	if whole == "" && frac == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	if whole == "" {
		whole = "0"
	}
	w, err := uint256.FromDecimal(whole)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", s, err)
	}
	amount, overflow := new(uint256.Int).MulOverflow(w, types.Unit())
	if overflow {
		return nil, fmt.Errorf("amount %q: %w", s, types.ErrOverflow)
	}
	if frac != "" {
		f, err := uint256.FromDecimal(frac + strings.Repeat("0", decimals-len(frac)))
		if err != nil {
			return nil, fmt.Errorf("amount %q: %w", s, err)
		}
		if _, overflow := amount.AddOverflow(amount, f); overflow {
			return nil, fmt.Errorf("amount %q: %w", s, types.ErrOverflow)
		}
	}
	return amount, nil
}

// formatAmount renders base units as whole tokens without trailing zeros.
func formatAmount(a *uint256.Int) string {
	if a == nil {
		return "0"
	}
	whole := new(uint256.Int).Div(a, types.Unit())
	frac := new(uint256.Int).Mod(a, types.Unit())
	if frac.IsZero() {
		return whole.Dec()
	}
	digits := frac.Dec()
	digits = strings.Repeat("0", decimals-len(digits)) + digits
	return whole.Dec() + "." + strings.TrimRight(digits, "0")
}
