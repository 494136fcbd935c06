package ledger

import (
	"github.com/holiman/uint256"

	"oasis.ledger/oasis/internal/types"
)

// AccountView is everything the ledger knows about one account.
type AccountView struct {
	Address  types.Address                        `json:"address"`
	Balances map[types.Token]*uint256.Int         `json:"balances"`
	Owned    map[types.Collection][]types.AssetID `json:"owned"`
	Staked   []types.AssetID                      `json:"staked"`
	Pending  *uint256.Int                         `json:"pending_rewards"`
}

// Account builds the view of an account at the current clock reading.
func (l *Ledger) Account(a types.Address) (AccountView, error) {
	v := AccountView{
		Address:  a,
		Balances: make(map[types.Token]*uint256.Int, len(types.AllTokens)),
		Owned:    make(map[types.Collection][]types.AssetID, len(types.Collections)),
		Staked:   l.staking.StakedAssets(a),
	}
	for _, t := range types.AllTokens {
		v.Balances[t] = l.tokens.BalanceOf(t, a)
	}
	for _, c := range types.Collections {
		v.Owned[c] = l.registry.OwnedBy(c, a)
	}
	pending, err := l.staking.PendingRewards(a, l.clock.Now())
	if err != nil {
		return AccountView{}, err
	}
	v.Pending = pending
	return v, nil
}

// TokenSupply is the supply accounting of one token.
type TokenSupply struct {
	Supply *uint256.Int `json:"supply"`
	Minted *uint256.Int `json:"minted"`
	Burned *uint256.Int `json:"burned"`
}

// CollectionSupply is the issuance of one collection.
type CollectionSupply struct {
	Minted  uint64 `json:"minted"`
	Retired uint64 `json:"retired"`
}

// SupplyView summarises issuance across the ledger.
type SupplyView struct {
	Tokens      map[types.Token]TokenSupply           `json:"tokens"`
	Collections map[types.Collection]CollectionSupply `json:"collections"`
	Listings    uint64                                `json:"listings"`
	Active      int                                   `json:"active_listings"`
	Treasury    *uint256.Int                          `json:"treasury"`
}

// Supply returns the issuance summary.
func (l *Ledger) Supply() SupplyView {
	v := SupplyView{
		Tokens:      make(map[types.Token]TokenSupply, len(types.AllTokens)),
		Collections: make(map[types.Collection]CollectionSupply, len(types.Collections)),
		Listings:    l.market.Count(),
		Active:      len(l.market.ActiveListings()),
		Treasury:    l.economy.Treasury(),
	}
	for _, t := range types.AllTokens {
		v.Tokens[t] = TokenSupply{
			Supply: l.tokens.TotalSupply(t),
			Minted: l.tokens.Minted(t),
			Burned: l.tokens.Burned(t),
		}
	}
	for _, c := range types.Collections {
		v.Collections[c] = CollectionSupply{
			Minted:  l.registry.TotalSupply(c),
			Retired: l.registry.Retired(c),
		}
	}
	return v
}
