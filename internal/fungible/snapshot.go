package fungible

import (
	"fmt"

	"github.com/holiman/uint256"

	"oasis.ledger/oasis/internal/access"
	"oasis.ledger/oasis/internal/types"
)

// BookSnapshot is the serialisable form of one token's book.
type BookSnapshot struct {
	Balances map[types.Address]*uint256.Int `json:"balances"`
	Supply   *uint256.Int                   `json:"supply"`
	Minted   *uint256.Int                   `json:"minted"`
	Burned   *uint256.Int                   `json:"burned"`
}

// Snapshot maps each token to its book.
type Snapshot map[types.Token]BookSnapshot

// Snapshot copies every book. encoding/json sorts map keys, so the encoded
// form is deterministic.
func (l *Ledger) Snapshot() Snapshot {
	out := make(Snapshot, len(l.books))
	for token, b := range l.books {
		bs := BookSnapshot{
			Balances: make(map[types.Address]*uint256.Int, len(b.balances)),
			Supply:   b.supply.Clone(),
			Minted:   b.minted.Clone(),
			Burned:   b.burned.Clone(),
		}
		for a, bal := range b.balances {
			bs.Balances[a] = bal.Clone()
		}
		out[token] = bs
	}
	return out
}

// Restore rebuilds a ledger and checks that balances add up to supply.
func Restore(roles *access.Roles, s Snapshot) (*Ledger, error) {
	l := New(roles)
	for token, bs := range s {
		b, err := l.book(token)
		if err != nil {
			return nil, err
		}
		sum := new(uint256.Int)
		for a, bal := range bs.Balances {
			if bal == nil || bal.IsZero() {
				continue
			}
			if _, overflow := sum.AddOverflow(sum, bal); overflow {
				return nil, fmt.Errorf("restore %s: %w", token, types.ErrOverflow)
			}
			b.balances[a] = bal.Clone()
		}
		if bs.Supply != nil {
			b.supply = bs.Supply.Clone()
		}
		if bs.Minted != nil {
			b.minted = bs.Minted.Clone()
		}
		if bs.Burned != nil {
			b.burned = bs.Burned.Clone()
		}
		if !sum.Eq(b.supply) {
			return nil, fmt.Errorf("restore %s: balances total %s but supply is %s", token, sum.Dec(), b.supply.Dec())
		}
	}
	return l, nil
}
