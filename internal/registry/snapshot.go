package registry

import (
	"fmt"
	"sort"

	"oasis.ledger/oasis/internal/access"
	"oasis.ledger/oasis/internal/types"
)

// CollectionSnapshot is the serialisable form of one collection.
type CollectionSnapshot struct {
	NextID AssetID       `json:"next_id"`
	Assets []types.Asset `json:"assets"`
}

// Snapshot is the serialisable form of the registry.
type Snapshot struct {
	Collections map[types.Collection]CollectionSnapshot `json:"collections"`
	Approvals   map[types.Address][]types.Address       `json:"approvals,omitempty"`
	MaxBatch    uint64                                  `json:"max_batch"`
}

// Snapshot exports the registry in deterministic order.
func (r *Registry) Snapshot() Snapshot {
	out := Snapshot{
		Collections: make(map[types.Collection]CollectionSnapshot, len(r.collections)),
		Approvals:   make(map[types.Address][]types.Address, len(r.approvals)),
		MaxBatch:    r.maxBatch,
	}
	for name, col := range r.collections {
		cs := CollectionSnapshot{NextID: col.nextID, Assets: make([]types.Asset, 0, len(col.assets))}
		r.Each(name, func(a types.Asset) { cs.Assets = append(cs.Assets, a) })
		out.Collections[name] = cs
	}
	for owner, ops := range r.approvals {
		list := make([]types.Address, 0, len(ops))
		for op := range ops {
			list = append(list, op)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		out.Approvals[owner] = list
	}
	return out
}

// Restore rebuilds a registry, including its owner index, from a snapshot.
func Restore(roles *access.Roles, s Snapshot) (*Registry, error) {
	r := New(roles)
	r.SetMaxBatch(s.MaxBatch)
	for name, cs := range s.Collections {
		col, err := r.collection(name)
		if err != nil {
			return nil, err
		}
		if cs.NextID == 0 {
			cs.NextID = 1
		}
		col.nextID = cs.NextID
		for i := range cs.Assets {
			asset := cs.Assets[i]
			if asset.ID == 0 || asset.ID >= cs.NextID {
				return nil, fmt.Errorf("restore %s #%d: id outside issued range", name, asset.ID)
			}
			if _, dup := col.assets[asset.ID]; dup {
				return nil, fmt.Errorf("restore %s #%d: duplicate asset", name, asset.ID)
			}
			asset.Collection = name
			col.assets[asset.ID] = &asset
			switch asset.Custody.State {
			case types.Free:
				col.own(asset.Custody.Owner, asset.ID)
			case types.Graveyard:
				col.retired++
			}
		}
	}
	for owner, ops := range s.Approvals {
		for _, op := range ops {
			if err := r.SetApprovalForAll(owner, op, true); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}
