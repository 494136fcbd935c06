package ledger

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"oasis.ledger/oasis/internal/access"
	"oasis.ledger/oasis/internal/events"
	"oasis.ledger/oasis/internal/types"
)

// ErrUnknownTransaction is returned for transaction types the ledger does not
// handle.
var ErrUnknownTransaction = errors.New("unknown transaction type")

// ErrBadPayload wraps payload decoding failures.
var ErrBadPayload = errors.New("malformed payload")

// Result describes an applied transaction.
type Result struct {
	Events []events.Event `json:"events"`
	Data   any            `json:"data,omitempty"`
}

type handler func(l *Ledger, caller types.Address, tx *types.Transaction, now int64) (Result, error)

var handlers = map[types.TransactionType]handler{
	types.TxApproveCustody:   applyApproveCustody,
	types.TxTransferAsset:    applyTransferAsset,
	types.TxTransferToken:    applyTransferToken,
	types.TxMintBase:         applyMintBase,
	types.TxStake:            applyStake,
	types.TxUnstake:          applyUnstake,
	types.TxClaimRewards:     applyClaimRewards,
	types.TxMintEvolved:      applyMintEvolved,
	types.TxBurnBase:         applyBurnBase,
	types.TxBuyRewardToken:   applyBuyRewardToken,
	types.TxWithdrawTreasury: applyWithdraw,
	types.TxListAsset:        applyListAsset,
	types.TxBuyAsset:         applyBuyAsset,
	types.TxGrantRole:        applyGrantRole,
	types.TxRevokeRole:       applyRevokeRole,
	types.TxMintToken:        applyMintToken,
	types.TxBurnToken:        applyBurnToken,
}

// Supported reports whether the ledger handles the transaction type.
func Supported(t types.TransactionType) bool {
	_, ok := handlers[t]
	return ok
}

// Apply executes tx on behalf of caller at the current clock reading. A
// rejected transaction leaves the ledger unchanged and returns the reason.
func (l *Ledger) Apply(caller types.Address, tx *types.Transaction) (Result, error) {
	h, ok := handlers[tx.Type]
	if !ok {
		return Result{}, fmt.Errorf("%s: %w", tx.Type, ErrUnknownTransaction)
	}
	now := l.clock.Now()
	res, err := h(l, caller, tx, now)
	if err != nil {
		l.log.Debug("transaction rejected",
			zap.String("tx", tx.ID),
			zap.String("type", string(tx.Type)),
			zap.String("caller", string(caller)),
			zap.Error(err))
		return Result{}, err
	}

	for i := range res.Events {
		e := &res.Events[i]
		e.TxID = tx.ID
		e.Caller = string(caller)
		e.Height = l.height
		l.events.Publish(*e)
	}
	l.log.Info("transaction applied",
		zap.String("tx", tx.ID),
		zap.String("type", string(tx.Type)),
		zap.String("caller", string(caller)),
		zap.Int64("time", now))
	return res, nil
}

func decode(tx *types.Transaction, v any) error {
	if err := tx.DecodePayload(v); err != nil {
		return fmt.Errorf("%s: %w: %v", tx.Type, ErrBadPayload, err)
	}
	return nil
}

func emit(kind events.Kind, now int64, data map[string]any) Result {
	return Result{Events: []events.Event{events.New(kind, now, data)}}
}

func applyApproveCustody(l *Ledger, caller types.Address, tx *types.Transaction, now int64) (Result, error) {
	var p types.ApproveCustodyPayload
	if err := decode(tx, &p); err != nil {
		return Result{}, err
	}
	if err := l.registry.SetApprovalForAll(caller, p.Operator, p.Approved); err != nil {
		return Result{}, err
	}
	return emit(events.KindApproval, now, map[string]any{
		"operator": p.Operator, "approved": p.Approved,
	}), nil
}

func applyTransferAsset(l *Ledger, caller types.Address, tx *types.Transaction, now int64) (Result, error) {
	var p types.TransferAssetPayload
	if err := decode(tx, &p); err != nil {
		return Result{}, err
	}
	if err := l.registry.TransferCustody(p.Collection, p.AssetID, caller, p.To); err != nil {
		return Result{}, err
	}
	return emit(events.KindAssetTransfer, now, map[string]any{
		"collection": p.Collection, "asset_id": p.AssetID, "to": p.To,
	}), nil
}

func applyTransferToken(l *Ledger, caller types.Address, tx *types.Transaction, now int64) (Result, error) {
	var p types.TransferTokenPayload
	if err := decode(tx, &p); err != nil {
		return Result{}, err
	}
	if err := l.tokens.Transfer(p.Token, caller, p.To, p.Amount); err != nil {
		return Result{}, err
	}
	return emit(events.KindTokenTransfer, now, map[string]any{
		"token": p.Token, "to": p.To, "amount": p.Amount,
	}), nil
}

// Receipt supply follows the staking engine only; direct role-based minting
// or burning would break receipt parity.
func directSupply(token types.Token) error {
	if token == types.TokenReceipt {
		return fmt.Errorf("%s supply is managed by staking: %w", token, types.ErrUnauthorized)
	}
	return nil
}

func applyMintToken(l *Ledger, caller types.Address, tx *types.Transaction, now int64) (Result, error) {
	var p types.MintTokenPayload
	if err := decode(tx, &p); err != nil {
		return Result{}, err
	}
	if err := directSupply(p.Token); err != nil {
		return Result{}, err
	}
	if err := l.tokens.Mint(caller, p.Token, p.To, p.Amount); err != nil {
		return Result{}, err
	}
	return emit(events.KindTokenMinted, now, map[string]any{
		"token": p.Token, "to": p.To, "amount": p.Amount,
	}), nil
}

func applyBurnToken(l *Ledger, caller types.Address, tx *types.Transaction, now int64) (Result, error) {
	var p types.BurnTokenPayload
	if err := decode(tx, &p); err != nil {
		return Result{}, err
	}
	if err := directSupply(p.Token); err != nil {
		return Result{}, err
	}
	if err := l.tokens.Burn(caller, p.Token, p.From, p.Amount); err != nil {
		return Result{}, err
	}
	return emit(events.KindTokenBurned, now, map[string]any{
		"token": p.Token, "from": p.From, "amount": p.Amount,
	}), nil
}

func applyMintBase(l *Ledger, caller types.Address, tx *types.Transaction, now int64) (Result, error) {
	var p types.MintBasePayload
	if err := decode(tx, &p); err != nil {
		return Result{}, err
	}
	ids, err := l.registry.Mint(caller, types.CollectionBase, p.To, p.Count)
	if err != nil {
		return Result{}, err
	}
	res := emit(events.KindAssetMinted, now, map[string]any{
		"collection": types.CollectionBase, "to": p.To, "asset_ids": ids,
	})
	res.Data = ids
	return res, nil
}

func applyStake(l *Ledger, caller types.Address, tx *types.Transaction, now int64) (Result, error) {
	var p types.AssetBatchPayload
	if err := decode(tx, &p); err != nil {
		return Result{}, err
	}
	if err := l.staking.Stake(caller, p.AssetIDs, now); err != nil {
		return Result{}, err
	}
	return emit(events.KindStaked, now, map[string]any{"asset_ids": p.AssetIDs}), nil
}

func applyUnstake(l *Ledger, caller types.Address, tx *types.Transaction, now int64) (Result, error) {
	var p types.AssetBatchPayload
	if err := decode(tx, &p); err != nil {
		return Result{}, err
	}
	reward, err := l.staking.Unstake(caller, p.AssetIDs, now)
	if err != nil {
		return Result{}, err
	}
	res := emit(events.KindUnstaked, now, map[string]any{"asset_ids": p.AssetIDs, "reward": reward})
	res.Data = reward
	return res, nil
}

func applyClaimRewards(l *Ledger, caller types.Address, _ *types.Transaction, now int64) (Result, error) {
	reward, err := l.staking.ClaimRewards(caller, now)
	if err != nil {
		return Result{}, err
	}
	res := emit(events.KindRewardsClaimed, now, map[string]any{"reward": reward})
	res.Data = reward
	return res, nil
}

func applyMintEvolved(l *Ledger, caller types.Address, tx *types.Transaction, now int64) (Result, error) {
	var p types.QuantityPayload
	if err := decode(tx, &p); err != nil {
		return Result{}, err
	}
	ids, reward, err := l.economy.MintAndReward(caller, p.Quantity)
	if err != nil {
		return Result{}, err
	}
	res := emit(events.KindAssetMinted, now, map[string]any{
		"collection": types.CollectionEvolved, "to": caller, "asset_ids": ids, "reward": reward,
	})
	res.Data = ids
	return res, nil
}

func applyBurnBase(l *Ledger, caller types.Address, tx *types.Transaction, now int64) (Result, error) {
	var p types.AssetBatchPayload
	if err := decode(tx, &p); err != nil {
		return Result{}, err
	}
	reward, err := l.economy.BurnAndReward(caller, p.AssetIDs)
	if err != nil {
		return Result{}, err
	}
	res := emit(events.KindAssetRetired, now, map[string]any{
		"collection": types.CollectionBase, "asset_ids": p.AssetIDs, "reward": reward,
	})
	res.Data = reward
	return res, nil
}

func applyBuyRewardToken(l *Ledger, caller types.Address, tx *types.Transaction, now int64) (Result, error) {
	var p types.QuantityPayload
	if err := decode(tx, &p); err != nil {
		return Result{}, err
	}
	amount, err := l.economy.BuyRewardToken(caller, p.Quantity, tx.Value)
	if err != nil {
		return Result{}, err
	}
	res := emit(events.KindTokensPurchased, now, map[string]any{"amount": amount, "paid": tx.Value})
	res.Data = amount
	return res, nil
}

func applyWithdraw(l *Ledger, caller types.Address, tx *types.Transaction, now int64) (Result, error) {
	var p types.WithdrawPayload
	if err := decode(tx, &p); err != nil {
		return Result{}, err
	}
	if err := l.economy.Withdraw(caller, p.To, p.Amount); err != nil {
		return Result{}, err
	}
	return emit(events.KindWithdrawal, now, map[string]any{"to": p.To, "amount": p.Amount}), nil
}

func applyListAsset(l *Ledger, caller types.Address, tx *types.Transaction, now int64) (Result, error) {
	var p types.ListAssetPayload
	if err := decode(tx, &p); err != nil {
		return Result{}, err
	}
	lid, err := l.market.Deposit(caller, p.Collection, p.AssetID, p.Price, now)
	if err != nil {
		return Result{}, err
	}
	res := emit(events.KindListed, now, map[string]any{
		"listing_id": lid, "collection": p.Collection, "asset_id": p.AssetID, "price": p.Price,
	})
	res.Data = lid
	return res, nil
}

func applyBuyAsset(l *Ledger, caller types.Address, tx *types.Transaction, now int64) (Result, error) {
	var p types.BuyAssetPayload
	if err := decode(tx, &p); err != nil {
		return Result{}, err
	}
	sold, err := l.market.Buy(caller, p.ListingID)
	if err != nil {
		return Result{}, err
	}
	res := emit(events.KindSold, now, map[string]any{
		"listing_id": sold.ID, "seller": sold.Seller, "collection": sold.Collection,
		"asset_id": sold.AssetID, "price": sold.Price,
	})
	res.Data = sold
	return res, nil
}

func applyGrantRole(l *Ledger, caller types.Address, tx *types.Transaction, now int64) (Result, error) {
	var p types.RolePayload
	if err := decode(tx, &p); err != nil {
		return Result{}, err
	}
	if err := l.roles.Grant(caller, access.Role(p.Role), p.Account); err != nil {
		return Result{}, err
	}
	return emit(events.KindRole, now, map[string]any{"role": p.Role, "account": p.Account, "granted": true}), nil
}

func applyRevokeRole(l *Ledger, caller types.Address, tx *types.Transaction, now int64) (Result, error) {
	var p types.RolePayload
	if err := decode(tx, &p); err != nil {
		return Result{}, err
	}
	if err := l.roles.Revoke(caller, access.Role(p.Role), p.Account); err != nil {
		return Result{}, err
	}
	return emit(events.KindRole, now, map[string]any{"role": p.Role, "account": p.Account, "granted": false}), nil
}
