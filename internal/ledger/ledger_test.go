package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oasis.ledger/oasis/internal/access"
	"oasis.ledger/oasis/internal/clock"
	"oasis.ledger/oasis/internal/economy"
	"oasis.ledger/oasis/internal/events"
	"oasis.ledger/oasis/internal/types"
)

const (
	admin types.Address = "admin"
	alice types.Address = "alice"
	bob   types.Address = "bob"
)

type harness struct {
	t      *testing.T
	ledger *Ledger
	clock  *clock.ManualClock
	bus    *events.Bus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	g := DefaultGenesis(admin)
	g.Staking.RewardPerDay = 86400 // one token per asset per second
	g.Balances = []GenesisBalance{
		{Account: alice, Token: types.TokenNative, Amount: 1000},
		{Account: bob, Token: types.TokenReward, Amount: 500},
	}
	g.BaseMints = []GenesisMint{{To: alice, Count: 6}}

	h := &harness{t: t, clock: clock.NewManual(1_700_000_000), bus: events.NewBus(64)}
	l, err := New(g, WithClock(h.clock), WithEvents(h.bus))
	require.NoError(t, err)
	h.ledger = l
	return h
}

func (h *harness) apply(caller types.Address, typ types.TransactionType, payload any) (Result, error) {
	h.t.Helper()
	tx := &types.Transaction{ID: string(typ), Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(h.t, err)
		tx.Payload = raw
	}
	return h.ledger.Apply(caller, tx)
}

func (h *harness) mustApply(caller types.Address, typ types.TransactionType, payload any) Result {
	h.t.Helper()
	res, err := h.apply(caller, typ, payload)
	require.NoError(h.t, err)
	require.NoError(h.t, h.ledger.CheckInvariants())
	return res
}

func (h *harness) approve(owner, operator types.Address) {
	h.mustApply(owner, types.TxApproveCustody, types.ApproveCustodyPayload{Operator: operator, Approved: true})
}

func (h *harness) balance(token types.Token, a types.Address) *uint256.Int {
	return h.ledger.Tokens().BalanceOf(token, a)
}

func TestGenesis(t *testing.T) {
	h := newHarness(t)
	l := h.ledger

	assert.True(t, h.balance(types.TokenNative, alice).Eq(types.Tokens(1000)))
	assert.True(t, h.balance(types.TokenReward, bob).Eq(types.Tokens(500)))
	assert.Equal(t, uint64(6), l.Registry().BalanceOf(types.CollectionBase, alice))
	assert.True(t, l.Roles().HasRole(access.CollectionMinter(types.CollectionEvolved), types.EconomyModule))
	assert.False(t, l.Roles().HasRole(access.TokenMinter(types.TokenNative), genesisMinter))
	assert.Equal(t, economy.DefaultParams().MintReward, l.Economy().Params().MintReward)
	require.NoError(t, l.CheckInvariants())

	_, err := New(Genesis{})
	assert.Error(t, err)
}

func TestMintTenEvolvedThroughApply(t *testing.T) {
	h := newHarness(t)

	res := h.mustApply(alice, types.TxMintEvolved, types.QuantityPayload{Quantity: 10})
	ids, ok := res.Data.([]types.AssetID)
	require.True(t, ok)
	assert.Len(t, ids, 10)

	assert.True(t, h.balance(types.TokenReward, alice).Eq(types.Tokens(500000)))
	assert.Equal(t, uint64(10), h.ledger.Registry().TotalSupply(types.CollectionEvolved))
}

func TestBurnFiveBaseThroughApply(t *testing.T) {
	h := newHarness(t)

	_, err := h.apply(alice, types.TxBurnBase, types.AssetBatchPayload{AssetIDs: []types.AssetID{1, 2, 3, 4, 5}})
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	h.approve(alice, types.EconomyModule)
	h.mustApply(alice, types.TxBurnBase, types.AssetBatchPayload{AssetIDs: []types.AssetID{1, 2, 3, 4, 5}})

	assert.True(t, h.balance(types.TokenReward, alice).Eq(types.Tokens(50000)))
	assert.Equal(t, uint64(5), h.ledger.Registry().Retired(types.CollectionBase))
	assert.Equal(t, []types.AssetID{6}, h.ledger.Registry().OwnedBy(types.CollectionBase, alice))
}

func TestStakeClaimUnstake(t *testing.T) {
	h := newHarness(t)
	h.mustApply(alice, types.TxMintEvolved, types.QuantityPayload{Quantity: 3})
	h.approve(alice, types.StakingModule)
	start := h.balance(types.TokenReward, alice)

	h.mustApply(alice, types.TxStake, types.AssetBatchPayload{AssetIDs: []types.AssetID{1, 2, 3}})
	assert.True(t, h.balance(types.TokenReceipt, alice).Eq(types.Tokens(3)))

	h.clock.Advance(10 * time.Second)
	res := h.mustApply(alice, types.TxClaimRewards, nil)
	claimed := res.Data.(*uint256.Int)
	assert.True(t, claimed.Eq(types.Tokens(30)))

	h.clock.Advance(5 * time.Second)
	res = h.mustApply(alice, types.TxUnstake, types.AssetBatchPayload{AssetIDs: []types.AssetID{2}})
	assert.True(t, res.Data.(*uint256.Int).Eq(types.Tokens(5)))

	assert.Equal(t, []types.AssetID{1, 3}, h.ledger.Staking().StakedAssets(alice))
	assert.True(t, h.balance(types.TokenReceipt, alice).Eq(types.Tokens(2)))
	want := new(uint256.Int).Add(start, types.Tokens(35))
	assert.True(t, h.balance(types.TokenReward, alice).Eq(want))

	view, err := h.ledger.Account(alice)
	require.NoError(t, err)
	assert.True(t, view.Pending.Eq(types.Tokens(10)))
	assert.Equal(t, []types.AssetID{2}, view.Owned[types.CollectionEvolved])
}

func TestReceiptsCannotBeMovedToBreakParity(t *testing.T) {
	h := newHarness(t)
	h.mustApply(alice, types.TxMintEvolved, types.QuantityPayload{Quantity: 1})
	h.approve(alice, types.StakingModule)
	h.mustApply(alice, types.TxStake, types.AssetBatchPayload{AssetIDs: []types.AssetID{1}})

	_, err := h.apply(alice, types.TxTransferToken, types.TransferTokenPayload{
		Token: types.TokenReceipt, To: bob, Amount: types.Tokens(1),
	})
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	require.NoError(t, h.ledger.CheckInvariants())
}

func TestBatchFailureLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	h.mustApply(alice, types.TxMintEvolved, types.QuantityPayload{Quantity: 4})
	h.mustApply(alice, types.TxTransferAsset, types.TransferAssetPayload{Collection: types.CollectionEvolved, AssetID: 4, To: bob})
	h.approve(alice, types.StakingModule)

	before, err := h.ledger.Export()
	require.NoError(t, err)

	_, err = h.apply(alice, types.TxStake, types.AssetBatchPayload{AssetIDs: []types.AssetID{1, 2, 4}})
	require.Error(t, err)
	_, id, ok := types.FailingAsset(err)
	require.True(t, ok)
	assert.Equal(t, types.AssetID(4), id)

	after, err := h.ledger.Export()
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestBuyRewardTokenUsesAttachedValue(t *testing.T) {
	h := newHarness(t)
	payload, err := json.Marshal(types.QuantityPayload{Quantity: 100})
	require.NoError(t, err)

	tx := &types.Transaction{ID: "buy", Type: types.TxBuyRewardToken, Payload: payload, Value: types.Tokens(99)}
	_, err = h.ledger.Apply(alice, tx)
	assert.ErrorIs(t, err, types.ErrIncorrectPayment)

	tx.Value = types.Tokens(100)
	_, err = h.ledger.Apply(alice, tx)
	require.NoError(t, err)
	assert.True(t, h.balance(types.TokenReward, alice).Eq(types.Tokens(100)))
	assert.True(t, h.balance(types.TokenNative, alice).Eq(types.Tokens(900)))

	_, err = h.apply(alice, types.TxWithdrawTreasury, types.WithdrawPayload{To: alice, Amount: types.Tokens(100)})
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	h.mustApply(admin, types.TxWithdrawTreasury, types.WithdrawPayload{To: admin, Amount: types.Tokens(100)})
	assert.True(t, h.balance(types.TokenNative, admin).Eq(types.Tokens(100)))
}

func TestMarketplacePurchase(t *testing.T) {
	h := newHarness(t)
	h.approve(alice, types.MarketModule)
	price := types.Tokens(120)

	res := h.mustApply(alice, types.TxListAsset, types.ListAssetPayload{Collection: types.CollectionBase, AssetID: 2, Price: price})
	lid := res.Data.(types.ListingID)
	assert.Equal(t, types.ListingID(0), lid)

	h.mustApply(bob, types.TxBuyAsset, types.BuyAssetPayload{ListingID: lid})
	assert.True(t, h.balance(types.TokenReward, bob).Eq(types.Tokens(380)))
	assert.True(t, h.balance(types.TokenReward, alice).Eq(types.Tokens(120)))
	assert.Equal(t, []types.AssetID{2}, h.ledger.Registry().OwnedBy(types.CollectionBase, bob))

	_, err := h.apply(bob, types.TxBuyAsset, types.BuyAssetPayload{ListingID: lid})
	assert.ErrorIs(t, err, types.ErrListingNotActive)
}

func TestRoleAdministration(t *testing.T) {
	h := newHarness(t)
	role := string(access.CollectionMinter(types.CollectionBase))

	_, err := h.apply(alice, types.TxMintBase, types.MintBasePayload{To: alice, Count: 1})
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	_, err = h.apply(alice, types.TxGrantRole, types.RolePayload{Role: role, Account: alice})
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	h.mustApply(admin, types.TxGrantRole, types.RolePayload{Role: role, Account: alice})
	res := h.mustApply(alice, types.TxMintBase, types.MintBasePayload{To: bob, Count: 2})
	assert.Equal(t, []types.AssetID{7, 8}, res.Data)

	h.mustApply(admin, types.TxRevokeRole, types.RolePayload{Role: role, Account: alice})
	_, err = h.apply(alice, types.TxMintBase, types.MintBasePayload{To: alice, Count: 1})
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestRejectsUnknownAndMalformed(t *testing.T) {
	h := newHarness(t)

	_, err := h.ledger.Apply(alice, &types.Transaction{Type: "teleport"})
	assert.ErrorIs(t, err, ErrUnknownTransaction)
	assert.False(t, Supported("teleport"))
	assert.True(t, Supported(types.TxStake))

	_, err = h.ledger.Apply(alice, &types.Transaction{Type: types.TxStake, Payload: []byte("{")})
	assert.ErrorIs(t, err, ErrBadPayload)
}

func TestEventsArePublishedWithContext(t *testing.T) {
	h := newHarness(t)
	h.ledger.SetHeight(12)

	var got []events.Event
	unsubscribe, err := h.bus.Subscribe(func(e events.Event) { got = append(got, e) })
	require.NoError(t, err)
	defer unsubscribe()

	h.mustApply(alice, types.TxMintEvolved, types.QuantityPayload{Quantity: 1})
	_, _ = h.apply(alice, types.TxMintEvolved, types.QuantityPayload{Quantity: 0})
	_, _ = h.apply(bob, types.TxBuyAsset, types.BuyAssetPayload{ListingID: 9})

	require.Len(t, got, 2, "rejected transactions publish nothing")
	assert.Equal(t, events.KindAssetMinted, got[0].Kind)
	assert.Equal(t, string(alice), got[0].Caller)
	assert.Equal(t, int64(12), got[0].Height)
	assert.Equal(t, string(types.TxMintEvolved), got[0].TxID)
}

func TestExportImportRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.mustApply(alice, types.TxMintEvolved, types.QuantityPayload{Quantity: 2})
	h.approve(alice, types.StakingModule)
	h.approve(alice, types.MarketModule)
	h.mustApply(alice, types.TxStake, types.AssetBatchPayload{AssetIDs: []types.AssetID{1}})
	h.mustApply(alice, types.TxListAsset, types.ListAssetPayload{Collection: types.CollectionEvolved, AssetID: 2, Price: types.Tokens(3)})
	h.ledger.SetHeight(4)

	data, err := h.ledger.Export()
	require.NoError(t, err)
	hash, err := h.ledger.AppHash()
	require.NoError(t, err)

	restored, err := Import(data, WithClock(h.clock))
	require.NoError(t, err)
	again, err := restored.Export()
	require.NoError(t, err)
	assert.Equal(t, data, again)

	restoredHash, err := restored.AppHash()
	require.NoError(t, err)
	assert.Equal(t, hash, restoredHash)
	assert.Equal(t, int64(4), restored.Height())

	// the restored ledger keeps accruing where the original left off
	h.clock.Advance(7 * time.Second)
	pending, err := restored.Staking().PendingRewards(alice, h.clock.Now())
	require.NoError(t, err)
	assert.True(t, pending.Eq(types.Tokens(7)))
}

func TestImportRejectsInconsistentState(t *testing.T) {
	h := newHarness(t)
	h.mustApply(alice, types.TxMintEvolved, types.QuantityPayload{Quantity: 1})
	h.approve(alice, types.StakingModule)
	h.mustApply(alice, types.TxStake, types.AssetBatchPayload{AssetIDs: []types.AssetID{1}})

	snap := h.ledger.Snapshot()
	receipt := snap.Tokens[types.TokenReceipt]
	receipt.Balances[alice] = types.Tokens(2)
	receipt.Supply = types.Tokens(2)
	receipt.Minted = types.Tokens(2)
	snap.Tokens[types.TokenReceipt] = receipt

	_, err := Restore(snap)
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestOversizedBatchesAreRejectedBeforeAllocating(t *testing.T) {
	h := newHarness(t)
	before, err := h.ledger.Export()
	require.NoError(t, err)

	_, err = h.apply(alice, types.TxMintEvolved, types.QuantityPayload{Quantity: 1 << 62})
	assert.ErrorIs(t, err, types.ErrBatchTooLarge)

	_, err = h.apply(admin, types.TxMintBase, types.MintBasePayload{To: bob, Count: 1 << 62})
	assert.ErrorIs(t, err, types.ErrBatchTooLarge)

	ids := make([]types.AssetID, h.ledger.Registry().MaxBatch()+1)
	for i := range ids {
		ids[i] = types.AssetID(i + 1)
	}
	h.approve(alice, types.StakingModule)
	h.approve(alice, types.EconomyModule)
	for _, typ := range []types.TransactionType{types.TxStake, types.TxUnstake, types.TxBurnBase} {
		_, err = h.apply(alice, typ, types.AssetBatchPayload{AssetIDs: ids})
		assert.ErrorIs(t, err, types.ErrBatchTooLarge, typ)
	}

	after, err := h.ledger.Export()
	require.NoError(t, err)
	var b, a Snapshot
	require.NoError(t, json.Unmarshal(before, &b))
	require.NoError(t, json.Unmarshal(after, &a))
	assert.Equal(t, b.Tokens, a.Tokens)
	assert.Equal(t, b.Registry.Collections, a.Registry.Collections)
}

func TestGenesisMaxBatch(t *testing.T) {
	g := DefaultGenesis(admin)
	g.MaxBatch = 4
	g.BaseMints = []GenesisMint{{To: alice, Count: 10}}
	l, err := New(g, WithClock(clock.NewManual(0)))
	require.NoError(t, err)
	assert.Equal(t, uint64(10), l.Registry().BalanceOf(types.CollectionBase, alice))
	assert.Equal(t, uint64(4), l.Registry().MaxBatch())

	_, err = l.Apply(alice, &types.Transaction{Type: types.TxMintEvolved, Payload: []byte(`{"quantity":5}`)})
	assert.ErrorIs(t, err, types.ErrBatchTooLarge)

	data, err := l.Export()
	require.NoError(t, err)
	restored, err := Import(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), restored.Registry().MaxBatch())
}

func TestMintTokenFollowsMinterRole(t *testing.T) {
	h := newHarness(t)
	role := string(access.TokenMinter(types.TokenReward))
	mint := types.MintTokenPayload{Token: types.TokenReward, To: bob, Amount: types.Tokens(40)}

	_, err := h.apply(alice, types.TxMintToken, mint)
	assert.ErrorIs(t, err, types.ErrUnauthorized)

	h.mustApply(admin, types.TxGrantRole, types.RolePayload{Role: role, Account: alice})
	res := h.mustApply(alice, types.TxMintToken, mint)
	require.Len(t, res.Events, 1)
	assert.Equal(t, events.KindTokenMinted, res.Events[0].Kind)
	assert.True(t, h.balance(types.TokenReward, bob).Eq(types.Tokens(540)))

	h.mustApply(admin, types.TxRevokeRole, types.RolePayload{Role: role, Account: alice})
	_, err = h.apply(alice, types.TxMintToken, mint)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	assert.True(t, h.balance(types.TokenReward, bob).Eq(types.Tokens(540)))
}

func TestBurnTokenChecksBalance(t *testing.T) {
	h := newHarness(t)
	h.mustApply(admin, types.TxGrantRole, types.RolePayload{Role: string(access.TokenBurner(types.TokenReward)), Account: alice})
	supply := h.ledger.Tokens().TotalSupply(types.TokenReward)

	_, err := h.apply(alice, types.TxBurnToken, types.BurnTokenPayload{Token: types.TokenReward, From: bob, Amount: types.Tokens(501)})
	assert.ErrorIs(t, err, types.ErrInsufficientBalance)
	assert.True(t, h.balance(types.TokenReward, bob).Eq(types.Tokens(500)))

	res := h.mustApply(alice, types.TxBurnToken, types.BurnTokenPayload{Token: types.TokenReward, From: bob, Amount: types.Tokens(200)})
	assert.Equal(t, events.KindTokenBurned, res.Events[0].Kind)
	assert.True(t, h.balance(types.TokenReward, bob).Eq(types.Tokens(300)))
	want := new(uint256.Int).Sub(supply, types.Tokens(200))
	assert.True(t, h.ledger.Tokens().TotalSupply(types.TokenReward).Eq(want))

	_, err = h.apply(bob, types.TxBurnToken, types.BurnTokenPayload{Token: types.TokenReward, From: bob, Amount: types.Tokens(1)})
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestReceiptSupplyCannotBeSetDirectly(t *testing.T) {
	h := newHarness(t)
	h.mustApply(admin, types.TxGrantRole, types.RolePayload{Role: string(access.TokenMinter(types.TokenReceipt)), Account: alice})

	_, err := h.apply(alice, types.TxMintToken, types.MintTokenPayload{Token: types.TokenReceipt, To: alice, Amount: types.Tokens(1)})
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	_, err = h.apply(types.StakingModule, types.TxBurnToken, types.BurnTokenPayload{Token: types.TokenReceipt, From: alice, Amount: types.Tokens(1)})
	assert.ErrorIs(t, err, types.ErrUnauthorized)
	require.NoError(t, h.ledger.CheckInvariants())
}

func TestRestoreSeedsBlockClock(t *testing.T) {
	h := newHarness(t)
	h.mustApply(alice, types.TxMintEvolved, types.QuantityPayload{Quantity: 1})
	h.approve(alice, types.StakingModule)
	h.mustApply(alice, types.TxStake, types.AssetBatchPayload{AssetIDs: []types.AssetID{1}})
	h.clock.Advance(30 * time.Second)

	data, err := h.ledger.Export()
	require.NoError(t, err)
	restored, err := Import(data, WithClock(clock.NewBlockClock(time.Unix(0, 0))))
	require.NoError(t, err)

	assert.Equal(t, h.clock.Now(), restored.Now())
	view, err := restored.Account(alice)
	require.NoError(t, err)
	assert.True(t, view.Pending.Eq(types.Tokens(30)))
}
