package economy

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
	admin types.Address = "admin"
	alice types.Address = "alice"
	bob   types.Address = "bob"
)

type fixture struct {
	roles  *access.Roles
	reg    *registry.Registry
	fung   *fungible.Ledger
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	roles := access.NewRoles(admin)
	roles.Setup(access.CollectionMinter(types.CollectionBase), admin)
	roles.Setup(access.CollectionMinter(types.CollectionEvolved), types.EconomyModule)
	roles.Setup(access.TokenMinter(types.TokenReward), types.EconomyModule)
	roles.Setup(access.TokenBurner(types.TokenReward), types.EconomyModule)
	roles.Setup(access.TokenMinter(types.TokenNative), admin)

	reg := registry.New(roles)
	fung := fungible.New(roles)
	return &fixture{roles: roles, reg: reg, fung: fung, engine: New(roles, reg, fung, DefaultParams())}
}

func (f *fixture) rewards(a types.Address) *uint256.Int {
	return f.fung.BalanceOf(types.TokenReward, a)
}

func TestMintTenEvolved(t *testing.T) {
	f := newFixture(t)

	ids, reward, err := f.engine.MintAndReward(alice, 10)
	require.NoError(t, err)
	assert.Len(t, ids, 10)
	assert.Equal(t, types.AssetID(1), ids[0])
	assert.True(t, reward.Eq(types.Tokens(10*DefaultMintReward)))
	assert.True(t, f.rewards(alice).Eq(types.Tokens(500000)))
	assert.Equal(t, uint64(10), f.reg.TotalSupply(types.CollectionEvolved))
	assert.Equal(t, uint64(10), f.reg.BalanceOf(types.CollectionEvolved, alice))
}

func TestMintZeroIsNoop(t *testing.T) {
	f := newFixture(t)
	ids, reward, err := f.engine.MintAndReward(alice, 0)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.True(t, reward.IsZero())
	assert.Zero(t, f.reg.TotalSupply(types.CollectionEvolved))
}

func TestMintWithoutCollectionRolePaysNothing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.roles.Revoke(admin, access.CollectionMinter(types.CollectionEvolved), types.EconomyModule))

	_, _, err := f.engine.MintAndReward(alice, 2)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	assert.True(t, f.rewards(alice).IsZero())
	assert.Zero(t, f.reg.TotalSupply(types.CollectionEvolved))
}

func TestMintOverBatchLimitPaysNothing(t *testing.T) {
	f := newFixture(t)
	f.reg.SetMaxBatch(8)

	_, _, err := f.engine.MintAndReward(alice, 9)
	assert.ErrorIs(t, err, types.ErrBatchTooLarge)
	_, _, err = f.engine.MintAndReward(alice, 1<<62)
	assert.ErrorIs(t, err, types.ErrBatchTooLarge)
	assert.True(t, f.rewards(alice).IsZero())
	assert.Zero(t, f.reg.TotalSupply(types.CollectionEvolved))

	ids, _, err := f.engine.MintAndReward(alice, 8)
	require.NoError(t, err)
	assert.Len(t, ids, 8)
}

func TestBurnFiveBase(t *testing.T) {
	f := newFixture(t)
	_, err := f.reg.Mint(admin, types.CollectionBase, alice, 6)
	require.NoError(t, err)
	require.NoError(t, f.reg.SetApprovalForAll(alice, types.EconomyModule, true))

	reward, err := f.engine.BurnAndReward(alice, []types.AssetID{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.True(t, reward.Eq(types.Tokens(5*DefaultBurnReward)))
	assert.True(t, f.rewards(alice).Eq(types.Tokens(50000)))
	assert.Equal(t, uint64(5), f.reg.Retired(types.CollectionBase))
	assert.Equal(t, []types.AssetID{6}, f.reg.OwnedBy(types.CollectionBase, alice))

	for id := types.AssetID(1); id <= 5; id++ {
		asset, err := f.reg.Asset(types.CollectionBase, id)
		require.NoError(t, err)
		assert.Equal(t, types.Graveyard, asset.Custody.State)
	}
}

func TestBurnBatchIsAtomic(t *testing.T) {
	f := newFixture(t)
	_, err := f.reg.Mint(admin, types.CollectionBase, alice, 3)
	require.NoError(t, err)
	_, err = f.reg.Mint(admin, types.CollectionBase, bob, 1)
	require.NoError(t, err)

	_, err = f.engine.BurnAndReward(alice, []types.AssetID{1, 2})
	assert.ErrorIs(t, err, types.ErrUnauthorized, "missing approval")

	require.NoError(t, f.reg.SetApprovalForAll(alice, types.EconomyModule, true))
	_, err = f.engine.BurnAndReward(alice, []types.AssetID{1, 2, 4})
	assert.ErrorIs(t, err, types.ErrNotOwner)
	_, id, _ := types.FailingAsset(err)
	assert.Equal(t, types.AssetID(4), id)

	assert.Zero(t, f.reg.Retired(types.CollectionBase))
	assert.True(t, f.rewards(alice).IsZero())
}

func TestBuyRewardTokenExactPayment(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.fung.Mint(admin, types.TokenNative, alice, types.Tokens(100)))

	_, err := f.engine.BuyRewardToken(alice, 10, types.Tokens(9))
	assert.ErrorIs(t, err, types.ErrIncorrectPayment)
	_, err = f.engine.BuyRewardToken(alice, 10, types.Tokens(11))
	assert.ErrorIs(t, err, types.ErrIncorrectPayment)

	bought, err := f.engine.BuyRewardToken(alice, 10, types.Tokens(10))
	require.NoError(t, err)
	assert.True(t, bought.Eq(types.Tokens(10)))
	assert.True(t, f.rewards(alice).Eq(types.Tokens(10)))
	assert.True(t, f.fung.BalanceOf(types.TokenNative, alice).Eq(types.Tokens(90)))
	assert.True(t, f.engine.Treasury().Eq(types.Tokens(10)))
}

func TestBuyRewardTokenNeedsFunds(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.BuyRewardToken(bob, 1, types.Tokens(1))
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)
	assert.True(t, f.rewards(bob).IsZero())
}

func TestWithdrawIsAdminOnly(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.fung.Mint(admin, types.TokenNative, alice, types.Tokens(5)))
	_, err := f.engine.BuyRewardToken(alice, 5, types.Tokens(5))
	require.NoError(t, err)

	assert.ErrorIs(t, f.engine.Withdraw(alice, alice, types.Tokens(5)), types.ErrUnauthorized)
	assert.ErrorIs(t, f.engine.Withdraw(admin, admin, types.Tokens(6)), types.ErrInsufficientBalance)

	require.NoError(t, f.engine.Withdraw(admin, bob, types.Tokens(5)))
	assert.True(t, f.engine.Treasury().IsZero())
	assert.True(t, f.fung.BalanceOf(types.TokenNative, bob).Eq(types.Tokens(5)))
}

func TestParamsAreCopied(t *testing.T) {
	params := DefaultParams()
	f := newFixture(t)
	e := New(f.roles, f.reg, f.fung, params)
	params.MintReward.SetUint64(1)
	assert.True(t, e.Params().MintReward.Eq(types.Tokens(DefaultMintReward)))
}
