// Package market is a fixed price marketplace. Sellers deposit a Free asset
// into the market pool at a price in reward tokens; the first buyer who can
// pay takes it.
package market

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"oasis.ledger/oasis/internal/fungible"
	"oasis.ledger/oasis/internal/registry"
	"oasis.ledger/oasis/internal/types"
)

// PaymentToken is the token listings are priced in.
const PaymentToken = types.TokenReward

// Market holds every listing ever made.
type Market struct {
	reg      *registry.Registry
	fung     *fungible.Ledger
	nextID   types.ListingID
	listings map[types.ListingID]*types.Listing
}

// New creates an empty market. Listing ids start at 0.
func New(reg *registry.Registry, fung *fungible.Ledger) *Market {
	return &Market{
		reg:      reg,
		fung:     fung,
		listings: make(map[types.ListingID]*types.Listing),
	}
}

// Deposit lists a Free asset owned by seller at price and returns the
// listing id.
func (m *Market) Deposit(seller types.Address, c types.Collection, id types.AssetID, price *uint256.Int, now int64) (types.ListingID, error) {
	if price == nil || price.IsZero() {
		return 0, types.AssetErr(c, id, types.ErrInvalidPrice)
	}
	if !c.Valid() {
		return 0, fmt.Errorf("%s: %w", c, types.ErrUnknownCollection)
	}
	if err := m.reg.RequireApproval(seller, types.MarketModule); err != nil {
		return 0, err
	}
	if err := m.reg.CheckFree(c, seller, []types.AssetID{id}); err != nil {
		return 0, err
	}

	if err := m.reg.List(c, id, seller, types.MarketModule, price, now); err != nil {
		return 0, err
	}
	lid := m.nextID
	m.nextID++
	m.listings[lid] = &types.Listing{
		ID:         lid,
		Seller:     seller,
		Collection: c,
		AssetID:    id,
		Price:      price.Clone(),
		Active:     true,
		ListedAt:   now,
	}
	return lid, nil
}

// Buy pays the listing price from buyer to seller and releases the asset to
// buyer. A listing can be bought once.
func (m *Market) Buy(buyer types.Address, lid types.ListingID) (types.Listing, error) {
	l, ok := m.listings[lid]
	if !ok || !l.Active {
		return types.Listing{}, fmt.Errorf("listing %d: %w", lid, types.ErrListingNotActive)
	}
	if err := m.fung.CheckTransfer(PaymentToken, buyer, l.Seller, l.Price); err != nil {
		return types.Listing{}, err
	}

	if err := m.fung.Transfer(PaymentToken, buyer, l.Seller, l.Price); err != nil {
		return types.Listing{}, err
	}
	if err := m.reg.Deliver(l.Collection, l.AssetID, buyer); err != nil {
		return types.Listing{}, fmt.Errorf("deliver listing %d: %w", lid, err)
	}
	l.Active = false
	l.Buyer = buyer
	return copyListing(l), nil
}

// Listing returns a listing by id.
func (m *Market) Listing(lid types.ListingID) (types.Listing, bool) {
	l, ok := m.listings[lid]
	if !ok {
		return types.Listing{}, false
	}
	return copyListing(l), true
}

// ActiveListings returns every open listing ordered by id.
func (m *Market) ActiveListings() []types.Listing {
	out := make([]types.Listing, 0)
	for _, l := range m.listings {
		if l.Active {
			out = append(out, copyListing(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of listings ever made.
func (m *Market) Count() uint64 {
	return uint64(m.nextID)
}

func copyListing(l *types.Listing) types.Listing {
	out := *l
	if l.Price != nil {
		out.Price = l.Price.Clone()
	}
	return out
}

// Snapshot is the serialisable form of the market.
type Snapshot struct {
	NextID   types.ListingID `json:"next_id"`
	Listings []types.Listing `json:"listings"`
}

// Snapshot exports every listing ordered by id.
func (m *Market) Snapshot() Snapshot {
	out := Snapshot{NextID: m.nextID, Listings: make([]types.Listing, 0, len(m.listings))}
	for _, l := range m.listings {
		out.Listings = append(out.Listings, copyListing(l))
	}
	sort.Slice(out.Listings, func(i, j int) bool { return out.Listings[i].ID < out.Listings[j].ID })
	return out
}

// Restore rebuilds a market, checking active listings against custody.
func Restore(reg *registry.Registry, fung *fungible.Ledger, s Snapshot) (*Market, error) {
	m := New(reg, fung)
	m.nextID = s.NextID
	for i := range s.Listings {
		l := copyListing(&s.Listings[i])
		if l.ID >= s.NextID {
			return nil, fmt.Errorf("restore listing %d: id outside issued range", l.ID)
		}
		if l.Active {
			asset, err := reg.Asset(l.Collection, l.AssetID)
			if err != nil {
				return nil, fmt.Errorf("restore listing %d: %w", l.ID, err)
			}
			if asset.Custody.State != types.Listed || asset.Custody.Owner != l.Seller {
				return nil, fmt.Errorf("restore listing %d: asset not listed by %s", l.ID, l.Seller)
			}
		}
		m.listings[l.ID] = &l
	}
	return m, nil
}
