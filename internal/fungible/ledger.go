// Package fungible keeps balances and supply counters for the ledger's
// fungible tokens. Minting and burning are gated by roles; transfers move
// value between accounts atomically.
package fungible

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"oasis.ledger/oasis/internal/access"
	"oasis.ledger/oasis/internal/types"
)

type book struct {
	balances map[types.Address]*uint256.Int
	supply   *uint256.Int
	minted   *uint256.Int
	burned   *uint256.Int
}

func newBook() *book {
	return &book{
		balances: make(map[types.Address]*uint256.Int),
		supply:   new(uint256.Int),
		minted:   new(uint256.Int),
		burned:   new(uint256.Int),
	}
}

// Ledger holds one book per token.
type Ledger struct {
	roles *access.Roles
	books map[types.Token]*book
}

// New creates a ledger with empty books for every token.
func New(roles *access.Roles) *Ledger {
	l := &Ledger{roles: roles, books: make(map[types.Token]*book)}
	for _, t := range types.AllTokens {
		l.books[t] = newBook()
	}
	return l
}

func (l *Ledger) book(token types.Token) (*book, error) {
	b, ok := l.books[token]
	if !ok {
		return nil, fmt.Errorf("%s: %w", token, types.ErrUnknownToken)
	}
	return b, nil
}

// CheckMint validates a mint without applying it.
func (l *Ledger) CheckMint(caller types.Address, token types.Token, to types.Address, amount *uint256.Int) error {
	b, err := l.book(token)
	if err != nil {
		return err
	}
	if !l.roles.HasRole(access.TokenMinter(token), caller) {
		return fmt.Errorf("mint %s: %w", token, types.ErrUnauthorized)
	}
	if to == types.ZeroAddress {
		return fmt.Errorf("mint %s to empty address: %w", token, types.ErrUnauthorized)
	}
	if amount == nil || amount.IsZero() {
		return nil
	}
	if _, overflow := new(uint256.Int).AddOverflow(b.supply, amount); overflow {
		return fmt.Errorf("mint %s: %w", token, types.ErrOverflow)
	}
	if _, overflow := new(uint256.Int).AddOverflow(b.minted, amount); overflow {
		return fmt.Errorf("mint %s: %w", token, types.ErrOverflow)
	}
	return nil
}

// Mint credits amount of token to the recipient. Zero amounts are a no-op.
func (l *Ledger) Mint(caller types.Address, token types.Token, to types.Address, amount *uint256.Int) error {
	if err := l.CheckMint(caller, token, to, amount); err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return nil
	}
	b := l.books[token]
	// balance <= supply, so no overflow once supply fits
	b.credit(to, amount)
	b.supply.Add(b.supply, amount)
	b.minted.Add(b.minted, amount)
	return nil
}

// CheckBurn validates a burn without applying it.
func (l *Ledger) CheckBurn(caller types.Address, token types.Token, from types.Address, amount *uint256.Int) error {
	b, err := l.book(token)
	if err != nil {
		return err
	}
	if !l.roles.HasRole(access.TokenBurner(token), caller) {
		return fmt.Errorf("burn %s: %w", token, types.ErrUnauthorized)
	}
	if amount == nil || amount.IsZero() {
		return nil
	}
	if b.balance(from).Lt(amount) {
		return fmt.Errorf("burn %s from %s: %w", token, from, types.ErrInsufficientBalance)
	}
	return nil
}

// Burn removes amount of token from an account.
func (l *Ledger) Burn(caller types.Address, token types.Token, from types.Address, amount *uint256.Int) error {
	if err := l.CheckBurn(caller, token, from, amount); err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return nil
	}
	b := l.books[token]
	b.debit(from, amount)
	b.supply.Sub(b.supply, amount)
	b.burned.Add(b.burned, amount)
	return nil
}

// CheckTransfer validates a transfer without applying it.
func (l *Ledger) CheckTransfer(token types.Token, from, to types.Address, amount *uint256.Int) error {
	b, err := l.book(token)
	if err != nil {
		return err
	}
	if token == types.TokenReceipt {
		return fmt.Errorf("transfer %s: %w", token, types.ErrUnauthorized)
	}
	if to == types.ZeroAddress {
		return fmt.Errorf("transfer %s to empty address: %w", token, types.ErrUnauthorized)
	}
	if amount == nil || amount.IsZero() {
		return nil
	}
	if b.balance(from).Lt(amount) {
		return fmt.Errorf("transfer %s from %s: %w", token, from, types.ErrInsufficientBalance)
	}
	return nil
}

// Transfer moves amount of token between accounts.
func (l *Ledger) Transfer(token types.Token, from, to types.Address, amount *uint256.Int) error {
	if err := l.CheckTransfer(token, from, to, amount); err != nil {
		return err
	}
	if amount == nil || amount.IsZero() || from == to {
		return nil
	}
	b := l.books[token]
	b.debit(from, amount)
	b.credit(to, amount)
	return nil
}

// BalanceOf returns a copy of the account's balance.
func (l *Ledger) BalanceOf(token types.Token, account types.Address) *uint256.Int {
	b, ok := l.books[token]
	if !ok {
		return new(uint256.Int)
	}
	return b.balance(account).Clone()
}

// TotalSupply returns the circulating supply of token.
func (l *Ledger) TotalSupply(token types.Token) *uint256.Int {
	if b, ok := l.books[token]; ok {
		return b.supply.Clone()
	}
	return new(uint256.Int)
}

// Minted returns the cumulative amount of token ever minted.
func (l *Ledger) Minted(token types.Token) *uint256.Int {
	if b, ok := l.books[token]; ok {
		return b.minted.Clone()
	}
	return new(uint256.Int)
}

// Burned returns the cumulative amount of token ever burned.
func (l *Ledger) Burned(token types.Token) *uint256.Int {
	if b, ok := l.books[token]; ok {
		return b.burned.Clone()
	}
	return new(uint256.Int)
}

// Holders returns every account with a non-zero balance of token, sorted.
func (l *Ledger) Holders(token types.Token) []types.Address {
	b, ok := l.books[token]
	if !ok {
		return nil
	}
	out := make([]types.Address, 0, len(b.balances))
	for a := range b.balances {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (b *book) balance(a types.Address) *uint256.Int {
	if bal, ok := b.balances[a]; ok {
		return bal
	}
	return new(uint256.Int)
}

func (b *book) credit(a types.Address, amount *uint256.Int) {
	bal, ok := b.balances[a]
	if !ok {
		bal = new(uint256.Int)
		b.balances[a] = bal
	}
	bal.Add(bal, amount)
}

func (b *book) debit(a types.Address, amount *uint256.Int) {
	bal := b.balances[a]
	bal.Sub(bal, amount)
	if bal.IsZero() {
		delete(b.balances, a)
	}
}
