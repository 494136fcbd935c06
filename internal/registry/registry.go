// Package registry is the asset registry: the only owner of custody state for
// collectible assets. Every custody change goes through one of its
// transitions, each of which validates before it mutates so a rejected call
// leaves the registry untouched.
package registry

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"oasis.ledger/oasis/internal/access"
	"oasis.ledger/oasis/internal/types"
)

type collection struct {
	nextID AssetID
	assets map[AssetID]*types.Asset
	// owned indexes Free assets by owner
	owned   map[types.Address]map[AssetID]struct{}
	retired uint64
}

// AssetID is re-exported for brevity inside the package.
type AssetID = types.AssetID

// DefaultMaxBatch is the default limit on assets minted or moved by one
// request.
const DefaultMaxBatch = 500

// Registry tracks every asset of every collection.
type Registry struct {
	roles       *access.Roles
	collections map[types.Collection]*collection
	// approvals[owner][operator] allows operator to move owner's assets
	approvals map[types.Address]map[types.Address]bool
	maxBatch  uint64
}

// New creates an empty registry for the known collections.
func New(roles *access.Roles) *Registry {
	r := &Registry{
		roles:       roles,
		collections: make(map[types.Collection]*collection),
		approvals:   make(map[types.Address]map[types.Address]bool),
		maxBatch:    DefaultMaxBatch,
	}
	for _, c := range types.Collections {
		r.collections[c] = newCollection()
	}
	return r
}

func newCollection() *collection {
	return &collection{
		nextID: 1,
		assets: make(map[AssetID]*types.Asset),
		owned:  make(map[types.Address]map[AssetID]struct{}),
	}
}

func (r *Registry) collection(c types.Collection) (*collection, error) {
	col, ok := r.collections[c]
	if !ok {
		return nil, fmt.Errorf("%s: %w", c, types.ErrUnknownCollection)
	}
	return col, nil
}

func (r *Registry) lookup(c types.Collection, id AssetID) (*collection, *types.Asset, error) {
	col, err := r.collection(c)
	if err != nil {
		return nil, nil, err
	}
	asset, ok := col.assets[id]
	if !ok {
		return nil, nil, types.AssetErr(c, id, types.ErrUnknownAsset)
	}
	return col, asset, nil
}

// SetMaxBatch sets the per-request asset limit. Zero restores the default.
func (r *Registry) SetMaxBatch(n uint64) {
	if n == 0 {
		n = DefaultMaxBatch
	}
	r.maxBatch = n
}

// MaxBatch returns the per-request asset limit.
func (r *Registry) MaxBatch() uint64 {
	return r.maxBatch
}

// CheckBatch rejects a request naming more than MaxBatch assets.
func (r *Registry) CheckBatch(n uint64) error {
	if n > r.maxBatch {
		return fmt.Errorf("%d assets, limit is %d: %w", n, r.maxBatch, types.ErrBatchTooLarge)
	}
	return nil
}

// CanMint reports whether caller may mint assets of collection c.
func (r *Registry) CanMint(caller types.Address, c types.Collection) error {
	if _, err := r.collection(c); err != nil {
		return err
	}
	if !r.roles.HasRole(access.CollectionMinter(c), caller) {
		return fmt.Errorf("mint %s: %w", c, types.ErrUnauthorized)
	}
	return nil
}

// Mint creates count sequential assets in Free(to) and returns their ids.
func (r *Registry) Mint(caller types.Address, c types.Collection, to types.Address, count uint64) ([]AssetID, error) {
	if err := r.CanMint(caller, c); err != nil {
		return nil, err
	}
	if to == types.ZeroAddress {
		return nil, fmt.Errorf("mint %s to empty address: %w", c, types.ErrUnauthorized)
	}
	if err := r.CheckBatch(count); err != nil {
		return nil, fmt.Errorf("mint %s: %w", c, err)
	}
	col := r.collections[c]
	if uint64(col.nextID)+count < uint64(col.nextID) {
		return nil, fmt.Errorf("mint %s: %w", c, types.ErrOverflow)
	}

	ids := make([]AssetID, 0, count)
	for i := uint64(0); i < count; i++ {
		id := col.nextID
		col.nextID++
		col.assets[id] = &types.Asset{
			Collection: c,
			ID:         id,
			Custody:    types.Custody{State: types.Free, Owner: to, Holder: to},
		}
		col.own(to, id)
		ids = append(ids, id)
	}
	return ids, nil
}

// CheckFree validates that every id exists, is Free(owner) and appears once.
// The returned error names the first failing asset.
func (r *Registry) CheckFree(c types.Collection, owner types.Address, ids []AssetID) error {
	col, err := r.collection(c)
	if err != nil {
		return err
	}
	if err := r.CheckBatch(uint64(len(ids))); err != nil {
		return err
	}
	seen := make(map[AssetID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return types.AssetErr(c, id, types.ErrDuplicateAsset)
		}
		seen[id] = struct{}{}

		asset, ok := col.assets[id]
		if !ok {
			return types.AssetErr(c, id, types.ErrUnknownAsset)
		}
		if asset.Custody.State != types.Free || asset.Custody.Owner != owner {
			return types.AssetErr(c, id, types.ErrNotOwner)
		}
	}
	return nil
}

// TransferCustody moves a Free asset from one account to another.
func (r *Registry) TransferCustody(c types.Collection, id AssetID, from, to types.Address) error {
	col, asset, err := r.lookup(c, id)
	if err != nil {
		return err
	}
	if asset.Custody.State != types.Free || asset.Custody.Owner != from {
		return types.AssetErr(c, id, types.ErrNotOwner)
	}
	if to == types.ZeroAddress {
		return types.AssetErr(c, id, types.ErrUnauthorized)
	}
	col.disown(from, id)
	asset.Custody = types.Custody{State: types.Free, Owner: to, Holder: to}
	col.own(to, id)
	return nil
}

// Retire moves a Free asset to the Graveyard. Irreversible.
func (r *Registry) Retire(c types.Collection, id AssetID) error {
	col, asset, err := r.lookup(c, id)
	if err != nil {
		return err
	}
	if asset.Custody.State != types.Free {
		return types.AssetErr(c, id, types.ErrNotFree)
	}
	col.disown(asset.Custody.Owner, id)
	asset.Custody = types.Custody{State: types.Graveyard, Holder: types.GraveyardModule}
	col.retired++
	return nil
}

// Stake moves a Free(owner) asset into Staked(owner, at) held by pool.
func (r *Registry) Stake(c types.Collection, id AssetID, owner, pool types.Address, at int64) error {
	col, asset, err := r.lookup(c, id)
	if err != nil {
		return err
	}
	if asset.Custody.State != types.Free || asset.Custody.Owner != owner {
		return types.AssetErr(c, id, types.ErrNotOwner)
	}
	col.disown(owner, id)
	asset.Custody = types.Custody{State: types.Staked, Owner: owner, Holder: pool, Since: at}
	return nil
}

// IsStakedBy reports whether the asset is Staked(owner, *).
func (r *Registry) IsStakedBy(c types.Collection, id AssetID, owner types.Address) bool {
	col, ok := r.collections[c]
	if !ok {
		return false
	}
	asset, ok := col.assets[id]
	return ok && asset.Custody.State == types.Staked && asset.Custody.Owner == owner
}

// Unstake returns a Staked(owner) asset to Free(owner).
func (r *Registry) Unstake(c types.Collection, id AssetID, owner types.Address) error {
	col, asset, err := r.lookup(c, id)
	if err != nil {
		return err
	}
	if asset.Custody.State != types.Staked || asset.Custody.Owner != owner {
		return types.AssetErr(c, id, types.ErrNotStakedByOwner)
	}
	asset.Custody = types.Custody{State: types.Free, Owner: owner, Holder: owner}
	col.own(owner, id)
	return nil
}

// List moves a Free(seller) asset into Listed(seller, price) held by pool.
func (r *Registry) List(c types.Collection, id AssetID, seller, pool types.Address, price *uint256.Int, at int64) error {
	col, asset, err := r.lookup(c, id)
	if err != nil {
		return err
	}
	if asset.Custody.State != types.Free || asset.Custody.Owner != seller {
		return types.AssetErr(c, id, types.ErrNotOwner)
	}
	col.disown(seller, id)
	asset.Custody = types.Custody{State: types.Listed, Owner: seller, Holder: pool, Since: at, Price: price.Clone()}
	return nil
}

// Deliver releases a Listed asset to buyer as Free(buyer).
func (r *Registry) Deliver(c types.Collection, id AssetID, buyer types.Address) error {
	col, asset, err := r.lookup(c, id)
	if err != nil {
		return err
	}
	if asset.Custody.State != types.Listed {
		return types.AssetErr(c, id, types.ErrListingNotActive)
	}
	asset.Custody = types.Custody{State: types.Free, Owner: buyer, Holder: buyer}
	col.own(buyer, id)
	return nil
}

// SetApprovalForAll lets operator move owner's assets in every collection.
func (r *Registry) SetApprovalForAll(owner, operator types.Address, approved bool) error {
	if owner == types.ZeroAddress || operator == types.ZeroAddress || owner == operator {
		return fmt.Errorf("approve %s for %s: %w", operator, owner, types.ErrUnauthorized)
	}
	if !approved {
		if ops, ok := r.approvals[owner]; ok {
			delete(ops, operator)
			if len(ops) == 0 {
				delete(r.approvals, owner)
			}
		}
		return nil
	}
	ops, ok := r.approvals[owner]
	if !ok {
		ops = make(map[types.Address]bool)
		r.approvals[owner] = ops
	}
	ops[operator] = true
	return nil
}

// IsApprovedForAll reports whether operator may move owner's assets.
func (r *Registry) IsApprovedForAll(owner, operator types.Address) bool {
	return r.approvals[owner][operator]
}

// RequireApproval fails with Unauthorized unless owner approved operator.
func (r *Registry) RequireApproval(owner, operator types.Address) error {
	if !r.IsApprovedForAll(owner, operator) {
		return fmt.Errorf("operator %s not approved by %s: %w", operator, owner, types.ErrUnauthorized)
	}
	return nil
}

// Asset returns a copy of the asset.
func (r *Registry) Asset(c types.Collection, id AssetID) (types.Asset, error) {
	_, asset, err := r.lookup(c, id)
	if err != nil {
		return types.Asset{}, err
	}
	out := *asset
	if out.Custody.Price != nil {
		out.Custody.Price = out.Custody.Price.Clone()
	}
	return out, nil
}

// OwnedBy returns the Free assets owned by owner, sorted.
func (r *Registry) OwnedBy(c types.Collection, owner types.Address) []AssetID {
	col, ok := r.collections[c]
	if !ok {
		return nil
	}
	ids := make([]AssetID, 0, len(col.owned[owner]))
	for id := range col.owned[owner] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// BalanceOf returns the number of Free assets owner holds in c.
func (r *Registry) BalanceOf(c types.Collection, owner types.Address) uint64 {
	col, ok := r.collections[c]
	if !ok {
		return 0
	}
	return uint64(len(col.owned[owner]))
}

// TotalSupply returns the number of assets ever minted in c, retired included.
func (r *Registry) TotalSupply(c types.Collection) uint64 {
	col, ok := r.collections[c]
	if !ok {
		return 0
	}
	return uint64(len(col.assets))
}

// Retired returns the number of assets of c in the Graveyard.
func (r *Registry) Retired(c types.Collection) uint64 {
	col, ok := r.collections[c]
	if !ok {
		return 0
	}
	return col.retired
}

// Each calls fn for every asset of c in id order.
func (r *Registry) Each(c types.Collection, fn func(types.Asset)) {
	col, ok := r.collections[c]
	if !ok {
		return
	}
	ids := make([]AssetID, 0, len(col.assets))
	for id := range col.assets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(*col.assets[id])
	}
}

func (col *collection) own(owner types.Address, id AssetID) {
	set, ok := col.owned[owner]
	if !ok {
		set = make(map[AssetID]struct{})
		col.owned[owner] = set
	}
	set[id] = struct{}{}
}

func (col *collection) disown(owner types.Address, id AssetID) {
	if set, ok := col.owned[owner]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(col.owned, owner)
		}
	}
}
