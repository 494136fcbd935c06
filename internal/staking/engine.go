// Package staking locks evolved assets in the staking pool, issues one
// receipt token per locked asset and accrues reward tokens per asset per
// second since the asset's last claim checkpoint.
package staking

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"oasis.ledger/oasis/internal/fungible"
	"oasis.ledger/oasis/internal/registry"
	"oasis.ledger/oasis/internal/types"
)

// Collection is the collection the engine stakes.
const Collection = types.CollectionEvolved

// SecondsPerDay converts a daily rate to a per second rate.
const SecondsPerDay = 86400

// RateFromDaily converts whole reward tokens per asset per day into base
// units per asset per second. The remainder of the division is dropped.
func RateFromDaily(tokensPerDay uint64) *uint256.Int {
	daily := types.Tokens(tokensPerDay)
	return daily.Div(daily, uint256.NewInt(SecondsPerDay))
}

// Engine is the staking engine.
type Engine struct {
	reg  *registry.Registry
	fung *fungible.Ledger
	rate *uint256.Int

	records map[types.AssetID]types.StakeRecord
	byOwner map[types.Address]map[types.AssetID]struct{}
}

// New creates a staking engine paying rate base units per asset per second.
func New(reg *registry.Registry, fung *fungible.Ledger, rate *uint256.Int) *Engine {
	if rate == nil {
		rate = new(uint256.Int)
	}
	return &Engine{
		reg:     reg,
		fung:    fung,
		rate:    rate.Clone(),
		records: make(map[types.AssetID]types.StakeRecord),
		byOwner: make(map[types.Address]map[types.AssetID]struct{}),
	}
}

// Rate returns the accrual rate in base units per asset per second.
func (e *Engine) Rate() *uint256.Int {
	return e.rate.Clone()
}

// Stake locks ids for owner and mints one receipt token per asset.
func (e *Engine) Stake(owner types.Address, ids []types.AssetID, now int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := e.reg.RequireApproval(owner, types.StakingModule); err != nil {
		return err
	}
	if err := e.reg.CheckFree(Collection, owner, ids); err != nil {
		return err
	}
	receipts := types.Tokens(uint64(len(ids)))
	if err := e.fung.CheckMint(types.StakingModule, types.TokenReceipt, owner, receipts); err != nil {
		return err
	}

	for _, id := range ids {
		if err := e.reg.Stake(Collection, id, owner, types.StakingModule, now); err != nil {
			return fmt.Errorf("stake after validation: %w", err)
		}
		e.records[id] = types.StakeRecord{Owner: owner, StakedAt: now, LastClaimAt: now}
		e.index(owner, id)
	}
	return e.fung.Mint(types.StakingModule, types.TokenReceipt, owner, receipts)
}

// ClaimRewards mints everything accrued on owner's stakes and moves every
// checkpoint to now. It returns the minted amount.
func (e *Engine) ClaimRewards(owner types.Address, now int64) (*uint256.Int, error) {
	ids := e.StakedAssets(owner)
	total, err := e.accrued(ids, now)
	if err != nil {
		return nil, err
	}
	if err := e.fung.CheckMint(types.StakingModule, types.TokenReward, owner, total); err != nil {
		return nil, err
	}

	for _, id := range ids {
		rec := e.records[id]
		if now > rec.LastClaimAt {
			rec.LastClaimAt = now
			e.records[id] = rec
		}
	}
	if err := e.fung.Mint(types.StakingModule, types.TokenReward, owner, total); err != nil {
		return nil, err
	}
	return total, nil
}

// Unstake settles accrual for ids, burns their receipts and returns the
// assets to owner. It returns the reward minted.
func (e *Engine) Unstake(owner types.Address, ids []types.AssetID, now int64) (*uint256.Int, error) {
	if len(ids) == 0 {
		return new(uint256.Int), nil
	}
	if err := e.reg.CheckBatch(uint64(len(ids))); err != nil {
		return nil, err
	}
	receipts := types.Tokens(uint64(len(ids)))
	if e.fung.BalanceOf(types.TokenReceipt, owner).Lt(receipts) {
		return nil, fmt.Errorf("unstake %d assets: %w", len(ids), types.ErrInsufficientReceipt)
	}
	seen := make(map[types.AssetID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, types.AssetErr(Collection, id, types.ErrDuplicateAsset)
		}
		seen[id] = struct{}{}
		rec, ok := e.records[id]
		if !ok || rec.Owner != owner || !e.reg.IsStakedBy(Collection, id, owner) {
			return nil, types.AssetErr(Collection, id, types.ErrNotStakedByOwner)
		}
	}
	reward, err := e.accrued(ids, now)
	if err != nil {
		return nil, err
	}
	if err := e.fung.CheckMint(types.StakingModule, types.TokenReward, owner, reward); err != nil {
		return nil, err
	}
	if err := e.fung.CheckBurn(types.StakingModule, types.TokenReceipt, owner, receipts); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if err := e.reg.Unstake(Collection, id, owner); err != nil {
			return nil, fmt.Errorf("unstake after validation: %w", err)
		}
		delete(e.records, id)
		e.unindex(owner, id)
	}
	if err := e.fung.Mint(types.StakingModule, types.TokenReward, owner, reward); err != nil {
		return nil, err
	}
	if err := e.fung.Burn(types.StakingModule, types.TokenReceipt, owner, receipts); err != nil {
		return nil, err
	}
	return reward, nil
}

// StakedAssets returns owner's staked ids in ascending order.
func (e *Engine) StakedAssets(owner types.Address) []types.AssetID {
	set := e.byOwner[owner]
	ids := make([]types.AssetID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// StakedCount returns the number of assets owner has staked.
func (e *Engine) StakedCount(owner types.Address) int {
	return len(e.byOwner[owner])
}

// Stakers returns every account with at least one stake, sorted.
func (e *Engine) Stakers() []types.Address {
	out := make([]types.Address, 0, len(e.byOwner))
	for a := range e.byOwner {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Record returns the stake record of an asset.
func (e *Engine) Record(id types.AssetID) (types.StakeRecord, bool) {
	rec, ok := e.records[id]
	return rec, ok
}

// PendingRewards returns what ClaimRewards would mint at now.
func (e *Engine) PendingRewards(owner types.Address, now int64) (*uint256.Int, error) {
	return e.accrued(e.StakedAssets(owner), now)
}

func (e *Engine) accrued(ids []types.AssetID, now int64) (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, id := range ids {
		rec := e.records[id]
		if now <= rec.LastClaimAt {
			continue
		}
		elapsed := uint256.NewInt(uint64(now - rec.LastClaimAt))
		share, overflow := new(uint256.Int).MulOverflow(e.rate, elapsed)
		if overflow {
			return nil, types.AssetErr(Collection, id, types.ErrOverflow)
		}
		if _, overflow := total.AddOverflow(total, share); overflow {
			return nil, fmt.Errorf("accrual: %w", types.ErrOverflow)
		}
	}
	return total, nil
}

func (e *Engine) index(owner types.Address, id types.AssetID) {
	set, ok := e.byOwner[owner]
	if !ok {
		set = make(map[types.AssetID]struct{})
		e.byOwner[owner] = set
	}
	set[id] = struct{}{}
}

func (e *Engine) unindex(owner types.Address, id types.AssetID) {
	if set, ok := e.byOwner[owner]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(e.byOwner, owner)
		}
	}
}

// Snapshot is the serialisable form of the engine.
type Snapshot struct {
	Rate    *uint256.Int                        `json:"rate_per_second"`
	Records map[types.AssetID]types.StakeRecord `json:"records"`
}

// Snapshot copies the stake records.
func (e *Engine) Snapshot() Snapshot {
	out := Snapshot{Rate: e.rate.Clone(), Records: make(map[types.AssetID]types.StakeRecord, len(e.records))}
	for id, rec := range e.records {
		out.Records[id] = rec
	}
	return out
}

// Restore rebuilds an engine, checking each record against registry custody.
func Restore(reg *registry.Registry, fung *fungible.Ledger, s Snapshot) (*Engine, error) {
	e := New(reg, fung, s.Rate)
	for id, rec := range s.Records {
		if !reg.IsStakedBy(Collection, id, rec.Owner) {
			return nil, fmt.Errorf("restore stake %d: asset not staked by %s", id, rec.Owner)
		}
		if rec.LastClaimAt < rec.StakedAt {
			return nil, fmt.Errorf("restore stake %d: checkpoint before stake time", id)
		}
		e.records[id] = rec
		e.index(rec.Owner, id)
	}
	return e, nil
}
