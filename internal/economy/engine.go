// Package economy mints evolved assets with a reward, retires base assets
// for a reward and sells reward tokens for native value.
package economy

import (
	"fmt"

	"github.com/holiman/uint256"

	"oasis.ledger/oasis/internal/access"
	"oasis.ledger/oasis/internal/fungible"
	"oasis.ledger/oasis/internal/registry"
	"oasis.ledger/oasis/internal/types"
)

// Default reward amounts in whole tokens.
const (
	DefaultMintReward = 50000
	DefaultBurnReward = 10000
)

// Params are the economy's amounts, all in base units.
type Params struct {
	MintReward    *uint256.Int `json:"mint_reward"`     // per evolved asset minted
	BurnReward    *uint256.Int `json:"burn_reward"`     // per base asset retired
	PricePerToken *uint256.Int `json:"price_per_token"` // native value per whole reward token
}

// DefaultParams returns the default rewards with a price of one native token.
func DefaultParams() Params {
	return Params{
		MintReward:    types.Tokens(DefaultMintReward),
		BurnReward:    types.Tokens(DefaultBurnReward),
		PricePerToken: types.Tokens(1),
	}
}

func (p Params) clone() Params {
	c := func(v *uint256.Int) *uint256.Int {
		if v == nil {
			return new(uint256.Int)
		}
		return v.Clone()
	}
	return Params{MintReward: c(p.MintReward), BurnReward: c(p.BurnReward), PricePerToken: c(p.PricePerToken)}
}

// Engine is the economy engine. It acts as types.EconomyModule and keeps the
// native value it receives in that account.
type Engine struct {
	roles  *access.Roles
	reg    *registry.Registry
	fung   *fungible.Ledger
	params Params
}

// New creates an economy engine.
func New(roles *access.Roles, reg *registry.Registry, fung *fungible.Ledger, params Params) *Engine {
	return &Engine{roles: roles, reg: reg, fung: fung, params: params.clone()}
}

// Params returns a copy of the engine parameters.
func (e *Engine) Params() Params {
	return e.params.clone()
}

func mulCount(per *uint256.Int, n uint64) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).MulOverflow(per, uint256.NewInt(n))
	if overflow {
		return nil, types.ErrOverflow
	}
	return out, nil
}

// MintAndReward mints quantity evolved assets to caller and pays the mint
// reward for each. Zero quantity does nothing.
func (e *Engine) MintAndReward(caller types.Address, quantity uint64) ([]types.AssetID, *uint256.Int, error) {
	if quantity == 0 {
		return nil, new(uint256.Int), nil
	}
	if err := e.reg.CheckBatch(quantity); err != nil {
		return nil, nil, fmt.Errorf("mint evolved: %w", err)
	}
	reward, err := mulCount(e.params.MintReward, quantity)
	if err != nil {
		return nil, nil, fmt.Errorf("mint reward for %d: %w", quantity, err)
	}
	if err := e.reg.CanMint(types.EconomyModule, types.CollectionEvolved); err != nil {
		return nil, nil, err
	}
	if err := e.fung.CheckMint(types.EconomyModule, types.TokenReward, caller, reward); err != nil {
		return nil, nil, err
	}

	ids, err := e.reg.Mint(types.EconomyModule, types.CollectionEvolved, caller, quantity)
	if err != nil {
		return nil, nil, err
	}
	if err := e.fung.Mint(types.EconomyModule, types.TokenReward, caller, reward); err != nil {
		return nil, nil, err
	}
	return ids, reward, nil
}

// BurnAndReward retires caller's base assets and pays the burn reward for
// each. The whole batch fails if any asset is not Free(caller).
func (e *Engine) BurnAndReward(caller types.Address, ids []types.AssetID) (*uint256.Int, error) {
	if len(ids) == 0 {
		return new(uint256.Int), nil
	}
	if err := e.reg.RequireApproval(caller, types.EconomyModule); err != nil {
		return nil, err
	}
	if err := e.reg.CheckFree(types.CollectionBase, caller, ids); err != nil {
		return nil, err
	}
	reward, err := mulCount(e.params.BurnReward, uint64(len(ids)))
	if err != nil {
		return nil, fmt.Errorf("burn reward for %d: %w", len(ids), err)
	}
	if err := e.fung.CheckMint(types.EconomyModule, types.TokenReward, caller, reward); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if err := e.reg.Retire(types.CollectionBase, id); err != nil {
			return nil, fmt.Errorf("retire after validation: %w", err)
		}
	}
	if err := e.fung.Mint(types.EconomyModule, types.TokenReward, caller, reward); err != nil {
		return nil, err
	}
	return reward, nil
}

// BuyRewardToken sells quantity whole reward tokens for exactly
// quantity*PricePerToken native value.
func (e *Engine) BuyRewardToken(caller types.Address, quantity uint64, paid *uint256.Int) (*uint256.Int, error) {
	if paid == nil {
		paid = new(uint256.Int)
	}
	due, err := mulCount(e.params.PricePerToken, quantity)
	if err != nil {
		return nil, fmt.Errorf("price of %d tokens: %w", quantity, err)
	}
	if !paid.Eq(due) {
		return nil, fmt.Errorf("paid %s, due %s: %w", paid.Dec(), due.Dec(), types.ErrIncorrectPayment)
	}
	amount, overflow := types.TokensOf(uint256.NewInt(quantity))
	if overflow {
		return nil, fmt.Errorf("buy %d tokens: %w", quantity, types.ErrOverflow)
	}
	if err := e.fung.CheckTransfer(types.TokenNative, caller, types.EconomyModule, paid); err != nil {
		return nil, err
	}
	if err := e.fung.CheckMint(types.EconomyModule, types.TokenReward, caller, amount); err != nil {
		return nil, err
	}

	if err := e.fung.Transfer(types.TokenNative, caller, types.EconomyModule, paid); err != nil {
		return nil, err
	}
	if err := e.fung.Mint(types.EconomyModule, types.TokenReward, caller, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// Treasury returns the native value collected by token sales.
func (e *Engine) Treasury() *uint256.Int {
	return e.fung.BalanceOf(types.TokenNative, types.EconomyModule)
}

// Withdraw moves native value out of the treasury. Admin only.
func (e *Engine) Withdraw(caller, to types.Address, amount *uint256.Int) error {
	if !e.roles.IsAdmin(caller) {
		return fmt.Errorf("withdraw treasury: %w", types.ErrUnauthorized)
	}
	return e.fung.Transfer(types.TokenNative, types.EconomyModule, to, amount)
}
