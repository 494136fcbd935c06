package market

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oasis.ledger/oasis/internal/access"
	"oasis.ledger/oasis/internal/fungible"
	"oasis.ledger/oasis/internal/registry"
	"oasis.ledger/oasis/internal/types"
)

const (
	admin  types.Address = "admin"
	seller types.Address = "seller"
	buyer  types.Address = "buyer"
	other  types.Address = "other"
)

type fixture struct {
	reg    *registry.Registry
	fung   *fungible.Ledger
	market *Market
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	roles := access.NewRoles(admin)
	roles.Setup(access.CollectionMinter(types.CollectionBase), admin)
	roles.Setup(access.TokenMinter(types.TokenReward), admin)

	reg := registry.New(roles)
	fung := fungible.New(roles)
	_, err := reg.Mint(admin, types.CollectionBase, seller, 2)
	require.NoError(t, err)
	require.NoError(t, reg.SetApprovalForAll(seller, types.MarketModule, true))
	require.NoError(t, fung.Mint(admin, PaymentToken, buyer, types.Tokens(100)))

	return &fixture{reg: reg, fung: fung, market: New(reg, fung)}
}

func (f *fixture) balance(a types.Address) *uint256.Int {
	return f.fung.BalanceOf(PaymentToken, a)
}

func TestDepositStartsAtZero(t *testing.T) {
	f := newFixture(t)

	lid, err := f.market.Deposit(seller, types.CollectionBase, 1, types.Tokens(10), 5)
	require.NoError(t, err)
	assert.Equal(t, types.ListingID(0), lid)

	lid, err = f.market.Deposit(seller, types.CollectionBase, 2, types.Tokens(20), 6)
	require.NoError(t, err)
	assert.Equal(t, types.ListingID(1), lid)

	asset, err := f.reg.Asset(types.CollectionBase, 1)
	require.NoError(t, err)
	assert.Equal(t, types.Listed, asset.Custody.State)
	assert.Equal(t, types.MarketModule, asset.Custody.Holder)
	assert.Len(t, f.market.ActiveListings(), 2)
}

func TestDepositValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.market.Deposit(seller, types.CollectionBase, 1, new(uint256.Int), 0)
	assert.ErrorIs(t, err, types.ErrInvalidPrice)

	_, err = f.market.Deposit(other, types.CollectionBase, 1, types.Tokens(1), 0)
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	require.NoError(t, f.reg.SetApprovalForAll(other, types.MarketModule, true))
	_, err = f.market.Deposit(other, types.CollectionBase, 1, types.Tokens(1), 0)
	assert.ErrorIs(t, err, types.ErrNotOwner)

	_, err = f.market.Deposit(seller, types.CollectionBase, 9, types.Tokens(1), 0)
	assert.ErrorIs(t, err, types.ErrUnknownAsset)

	_, err = f.market.Deposit(seller, types.Collection("gold"), 1, types.Tokens(1), 0)
	assert.ErrorIs(t, err, types.ErrUnknownCollection)

	assert.Empty(t, f.market.ActiveListings())
	assert.Zero(t, f.market.Count())
}

func TestBuyMovesExactlyThePrice(t *testing.T) {
	f := newFixture(t)
	price := types.Tokens(40)
	lid, err := f.market.Deposit(seller, types.CollectionBase, 1, price, 0)
	require.NoError(t, err)

	sold, err := f.market.Buy(buyer, lid)
	require.NoError(t, err)
	assert.False(t, sold.Active)
	assert.Equal(t, buyer, sold.Buyer)

	assert.True(t, f.balance(buyer).Eq(types.Tokens(60)))
	assert.True(t, f.balance(seller).Eq(types.Tokens(40)))
	assert.True(t, f.fung.TotalSupply(PaymentToken).Eq(types.Tokens(100)))
	assert.Equal(t, []types.AssetID{1}, f.reg.OwnedBy(types.CollectionBase, buyer))

	_, err = f.market.Buy(buyer, lid)
	assert.ErrorIs(t, err, types.ErrListingNotActive)
	assert.True(t, f.balance(buyer).Eq(types.Tokens(60)))
	assert.Empty(t, f.market.ActiveListings())
}

func TestBuyUnknownListing(t *testing.T) {
	f := newFixture(t)
	_, err := f.market.Buy(buyer, 42)
	assert.ErrorIs(t, err, types.ErrListingNotActive)
}

func TestBuyWithoutFundsLeavesListingOpen(t *testing.T) {
	f := newFixture(t)
	lid, err := f.market.Deposit(seller, types.CollectionBase, 1, types.Tokens(1), 0)
	require.NoError(t, err)

	_, err = f.market.Buy(other, lid)
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)

	l, ok := f.market.Listing(lid)
	require.True(t, ok)
	assert.True(t, l.Active)
	asset, _ := f.reg.Asset(types.CollectionBase, 1)
	assert.Equal(t, types.Listed, asset.Custody.State)
}

func TestSellerMayBuyOwnListing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.fung.Transfer(PaymentToken, buyer, seller, types.Tokens(5)))
	lid, err := f.market.Deposit(seller, types.CollectionBase, 2, types.Tokens(5), 0)
	require.NoError(t, err)

	_, err = f.market.Buy(seller, lid)
	require.NoError(t, err)
	assert.True(t, f.balance(seller).Eq(types.Tokens(5)))
	assert.Equal(t, []types.AssetID{1, 2}, f.reg.OwnedBy(types.CollectionBase, seller))
}

func TestSnapshotRestore(t *testing.T) {
	f := newFixture(t)
	lid, err := f.market.Deposit(seller, types.CollectionBase, 1, types.Tokens(3), 0)
	require.NoError(t, err)
	_, err = f.market.Deposit(seller, types.CollectionBase, 2, types.Tokens(4), 0)
	require.NoError(t, err)
	_, err = f.market.Buy(buyer, lid)
	require.NoError(t, err)

	snap := f.market.Snapshot()
	restored, err := Restore(f.reg, f.fung, snap)
	require.NoError(t, err)
	assert.Equal(t, snap, restored.Snapshot())
	assert.Len(t, restored.ActiveListings(), 1)

	next, err := restored.Deposit(buyer, types.CollectionBase, 1, types.Tokens(1), 0)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	require.NoError(t, f.reg.SetApprovalForAll(buyer, types.MarketModule, true))
	next, err = restored.Deposit(buyer, types.CollectionBase, 1, types.Tokens(1), 0)
	require.NoError(t, err)
	assert.Equal(t, types.ListingID(2), next)
}
