package fungible

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oasis.ledger/oasis/internal/access"
	"oasis.ledger/oasis/internal/types"
)

const (
	minter types.Address = "minter"
	alice  types.Address = "alice"
	bob    types.Address = "bob"
)

func newLedger() *Ledger {
	roles := access.NewRoles("admin")
	roles.Setup(access.TokenMinter(types.TokenReward), minter)
	roles.Setup(access.TokenBurner(types.TokenReward), minter)
	roles.Setup(access.TokenMinter(types.TokenReceipt), minter)
	roles.Setup(access.TokenMinter(types.TokenNative), minter)
	return New(roles)
}

func TestMintAndBurnUpdateCounters(t *testing.T) {
	l := newLedger()

	require.NoError(t, l.Mint(minter, types.TokenReward, alice, types.Tokens(100)))
	require.NoError(t, l.Burn(minter, types.TokenReward, alice, types.Tokens(30)))

	assert.True(t, l.BalanceOf(types.TokenReward, alice).Eq(types.Tokens(70)))
	assert.True(t, l.TotalSupply(types.TokenReward).Eq(types.Tokens(70)))
	assert.True(t, l.Minted(types.TokenReward).Eq(types.Tokens(100)))
	assert.True(t, l.Burned(types.TokenReward).Eq(types.Tokens(30)))
}

func TestMintAndBurnRequireRoles(t *testing.T) {
	l := newLedger()

	assert.ErrorIs(t, l.Mint(alice, types.TokenReward, alice, types.Tokens(1)), types.ErrUnauthorized)
	require.NoError(t, l.Mint(minter, types.TokenReceipt, alice, types.Tokens(1)))
	assert.ErrorIs(t, l.Burn(minter, types.TokenReceipt, alice, types.Tokens(1)), types.ErrUnauthorized)
	assert.ErrorIs(t, l.Mint(minter, types.Token("gold"), alice, types.Tokens(1)), types.ErrUnknownToken)
	assert.True(t, l.TotalSupply(types.TokenReward).IsZero())
}

func TestBurnMoreThanBalanceFails(t *testing.T) {
	l := newLedger()
	require.NoError(t, l.Mint(minter, types.TokenReward, alice, types.Tokens(1)))

	err := l.Burn(minter, types.TokenReward, alice, types.Tokens(2))
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)
	assert.True(t, l.BalanceOf(types.TokenReward, alice).Eq(types.Tokens(1)))
}

func TestZeroAmountsAreNoops(t *testing.T) {
	l := newLedger()
	zero := new(uint256.Int)

	require.NoError(t, l.Mint(minter, types.TokenReward, alice, zero))
	require.NoError(t, l.Burn(minter, types.TokenReward, alice, zero))
	require.NoError(t, l.Transfer(types.TokenReward, alice, bob, zero))
	assert.Empty(t, l.Holders(types.TokenReward))
}

func TestTransfer(t *testing.T) {
	l := newLedger()
	require.NoError(t, l.Mint(minter, types.TokenReward, alice, types.Tokens(10)))

	assert.ErrorIs(t, l.Transfer(types.TokenReward, alice, bob, types.Tokens(11)), types.ErrInsufficientBalance)

	require.NoError(t, l.Transfer(types.TokenReward, alice, bob, types.Tokens(10)))
	assert.True(t, l.BalanceOf(types.TokenReward, alice).IsZero())
	assert.True(t, l.BalanceOf(types.TokenReward, bob).Eq(types.Tokens(10)))
	assert.True(t, l.TotalSupply(types.TokenReward).Eq(types.Tokens(10)))
	assert.Equal(t, []types.Address{bob}, l.Holders(types.TokenReward))

	// self transfer leaves the balance alone
	require.NoError(t, l.Transfer(types.TokenReward, bob, bob, types.Tokens(4)))
	assert.True(t, l.BalanceOf(types.TokenReward, bob).Eq(types.Tokens(10)))
}

func TestReceiptIsNotTransferable(t *testing.T) {
	l := newLedger()
	require.NoError(t, l.Mint(minter, types.TokenReceipt, alice, types.Tokens(1)))

	assert.ErrorIs(t, l.Transfer(types.TokenReceipt, alice, bob, types.Tokens(1)), types.ErrUnauthorized)
	assert.True(t, l.BalanceOf(types.TokenReceipt, alice).Eq(types.Tokens(1)))
}

func TestBalanceOfReturnsCopy(t *testing.T) {
	l := newLedger()
	require.NoError(t, l.Mint(minter, types.TokenReward, alice, types.Tokens(1)))

	bal := l.BalanceOf(types.TokenReward, alice)
	bal.SetUint64(0)
	assert.True(t, l.BalanceOf(types.TokenReward, alice).Eq(types.Tokens(1)))
}

func TestMintOverflowRejected(t *testing.T) {
	l := newLedger()
	max := new(uint256.Int).SetAllOne()
	require.NoError(t, l.Mint(minter, types.TokenNative, alice, max))

	err := l.Mint(minter, types.TokenNative, bob, uint256.NewInt(1))
	assert.ErrorIs(t, err, types.ErrOverflow)
	assert.True(t, l.BalanceOf(types.TokenNative, bob).IsZero())
}

func TestSnapshotRestore(t *testing.T) {
	l := newLedger()
	require.NoError(t, l.Mint(minter, types.TokenReward, alice, types.Tokens(8)))
	require.NoError(t, l.Transfer(types.TokenReward, alice, bob, types.Tokens(3)))
	require.NoError(t, l.Burn(minter, types.TokenReward, bob, types.Tokens(1)))

	snap := l.Snapshot()
	restored, err := Restore(l.roles, snap)
	require.NoError(t, err)
	assert.Equal(t, snap, restored.Snapshot())
	assert.True(t, restored.BalanceOf(types.TokenReward, bob).Eq(types.Tokens(2)))

	bad := l.Snapshot()
	bs := bad[types.TokenReward]
	bs.Supply = types.Tokens(1)
	bad[types.TokenReward] = bs
	_, err = Restore(l.roles, bad)
	assert.Error(t, err)
}
