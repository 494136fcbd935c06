package ledger

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"oasis.ledger/oasis/internal/types"
)

// ErrInvariant is wrapped by every CheckInvariants failure.
var ErrInvariant = errors.New("ledger invariant violated")

// CheckInvariants verifies custody conservation, receipt parity, token
// supply accounting and listing consistency over the whole state.
func (l *Ledger) CheckInvariants() error {
	if err := l.checkCustody(); err != nil {
		return err
	}
	if err := l.checkReceipts(); err != nil {
		return err
	}
	if err := l.checkSupply(); err != nil {
		return err
	}
	return l.checkListings()
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

func (l *Ledger) checkCustody() error {
	for _, c := range types.Collections {
		var total, free, retired uint64
		var failure error
		l.registry.Each(c, func(a types.Asset) {
			total++
			switch a.Custody.State {
			case types.Free:
				free++
				if a.Custody.Owner == types.ZeroAddress || a.Custody.Holder != a.Custody.Owner {
					failure = violation("%s #%d free without owner", c, a.ID)
				}
			case types.Staked:
				if c != types.CollectionEvolved || a.Custody.Holder != types.StakingModule {
					failure = violation("%s #%d staked outside the pool", c, a.ID)
				}
				if rec, ok := l.staking.Record(a.ID); !ok || rec.Owner != a.Custody.Owner {
					failure = violation("%s #%d staked without record", c, a.ID)
				}
			case types.Listed:
				if a.Custody.Holder != types.MarketModule {
					failure = violation("%s #%d listed outside the pool", c, a.ID)
				}
			case types.Graveyard:
				retired++
			}
		})
		if failure != nil {
			return failure
		}
		if total != l.registry.TotalSupply(c) {
			return violation("%s: %d assets but supply %d", c, total, l.registry.TotalSupply(c))
		}
		if retired != l.registry.Retired(c) {
			return violation("%s: %d retired but counter %d", c, retired, l.registry.Retired(c))
		}
		var indexed uint64
		owners := map[types.Address]struct{}{}
		l.registry.Each(c, func(a types.Asset) {
			if a.Custody.State == types.Free {
				owners[a.Custody.Owner] = struct{}{}
			}
		})
		for owner := range owners {
			indexed += l.registry.BalanceOf(c, owner)
		}
		if indexed != free {
			return violation("%s: %d free assets but %d indexed", c, free, indexed)
		}
	}
	return nil
}

func (l *Ledger) checkReceipts() error {
	stakers := map[types.Address]struct{}{}
	for _, a := range l.staking.Stakers() {
		stakers[a] = struct{}{}
	}
	for _, a := range l.tokens.Holders(types.TokenReceipt) {
		stakers[a] = struct{}{}
	}
	for a := range stakers {
		want := types.Tokens(uint64(l.staking.StakedCount(a)))
		got := l.tokens.BalanceOf(types.TokenReceipt, a)
		if !got.Eq(want) {
			return violation("%s holds %s receipt for %d staked assets", a, got.Dec(), l.staking.StakedCount(a))
		}
		for _, id := range l.staking.StakedAssets(a) {
			if !l.registry.IsStakedBy(types.CollectionEvolved, id, a) {
				return violation("stake record %d of %s has no staked custody", id, a)
			}
		}
	}
	return nil
}

func (l *Ledger) checkSupply() error {
	for _, t := range types.AllTokens {
		sum := new(uint256.Int)
		for _, a := range l.tokens.Holders(t) {
			sum.Add(sum, l.tokens.BalanceOf(t, a))
		}
		if !sum.Eq(l.tokens.TotalSupply(t)) {
			return violation("%s: balances %s, supply %s", t, sum.Dec(), l.tokens.TotalSupply(t).Dec())
		}
		issued := new(uint256.Int).Sub(l.tokens.Minted(t), l.tokens.Burned(t))
		if !issued.Eq(l.tokens.TotalSupply(t)) {
			return violation("%s: minted minus burned %s, supply %s", t, issued.Dec(), l.tokens.TotalSupply(t).Dec())
		}
	}
	return nil
}

func (l *Ledger) checkListings() error {
	active := l.market.ActiveListings()
	listed := 0
	for _, c := range types.Collections {
		l.registry.Each(c, func(a types.Asset) {
			if a.Custody.State == types.Listed {
				listed++
			}
		})
	}
	if listed != len(active) {
		return violation("%d listed assets but %d active listings", listed, len(active))
	}
	for _, lst := range active {
		asset, err := l.registry.Asset(lst.Collection, lst.AssetID)
		if err != nil || asset.Custody.State != types.Listed || asset.Custody.Owner != lst.Seller {
			return violation("listing %d does not hold its asset", lst.ID)
		}
	}
	return nil
}
