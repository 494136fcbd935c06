package types

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/holiman/uint256"
)

// TransactionType names the ledger operation a transaction requests.
type TransactionType string

const (
	TxApproveCustody   TransactionType = "approve_custody"
	TxTransferAsset    TransactionType = "transfer_asset"
	TxTransferToken    TransactionType = "transfer_token"
	TxMintBase         TransactionType = "mint_base"
	TxStake            TransactionType = "stake"
	TxUnstake          TransactionType = "unstake"
	TxClaimRewards     TransactionType = "claim_rewards"
	TxMintEvolved      TransactionType = "mint_evolved"
	TxBurnBase         TransactionType = "burn_base"
	TxBuyRewardToken   TransactionType = "buy_reward_token"
	TxWithdrawTreasury TransactionType = "withdraw_treasury"
	TxListAsset        TransactionType = "list_asset"
	TxBuyAsset         TransactionType = "buy_asset"
	TxGrantRole        TransactionType = "grant_role"
	TxRevokeRole       TransactionType = "revoke_role"
	TxMintToken        TransactionType = "mint_token"
	TxBurnToken        TransactionType = "burn_token"
)

// Transaction is a single request to the ledger. Value carries the native
// amount attached to the request (base units), used by buy_reward_token.
type Transaction struct {
	ID        string          `json:"id"`
	Type      TransactionType `json:"type"`
	Nonce     uint64          `json:"nonce"`
	Timestamp time.Time       `json:"timestamp"`
	Value     *uint256.Int    `json:"value,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Signer is anything able to sign transaction bytes.
type Signer interface {
	Sign(message []byte) []byte
	PublicKey() ed25519.PublicKey
}

// SignedTransaction is the wire envelope delivered to the ABCI application.
type SignedTransaction struct {
	Tx        []byte `json:"tx"`
	Signature []byte `json:"signature"`
	PublicKey []byte `json:"public_key"`
}

// Sign serialises the transaction and signs it.
func (tx *Transaction) Sign(signer Signer) (*SignedTransaction, error) {
	raw, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}
	return &SignedTransaction{
		Tx:        raw,
		Signature: signer.Sign(raw),
		PublicKey: signer.PublicKey(),
	}, nil
}

// Verify checks the signature against the embedded public key.
func (stx *SignedTransaction) Verify() bool {
	if len(stx.PublicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(stx.PublicKey, stx.Tx, stx.Signature)
}

// Signer returns the address of the account that signed the transaction.
func (stx *SignedTransaction) Signer() Address {
	return Address(hex.EncodeToString(stx.PublicKey))
}

// GetTransaction decodes the inner transaction.
func (stx *SignedTransaction) GetTransaction() (*Transaction, error) {
	if len(stx.Tx) == 0 {
		return nil, errors.New("empty transaction")
	}
	var tx Transaction
	if err := json.Unmarshal(stx.Tx, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// DecodePayload unmarshals the transaction payload into v.
func (tx *Transaction) DecodePayload(v any) error {
	if len(tx.Payload) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(tx.Payload, v)
}

// Payloads for each transaction type.

// ApproveCustodyPayload covers every collection the signer owns assets in.
type ApproveCustodyPayload struct {
	Operator Address `json:"operator"`
	Approved bool    `json:"approved"`
}

type TransferAssetPayload struct {
	Collection Collection `json:"collection"`
	AssetID    AssetID    `json:"asset_id"`
	To         Address    `json:"to"`
}

type TransferTokenPayload struct {
	Token  Token        `json:"token"`
	To     Address      `json:"to"`
	Amount *uint256.Int `json:"amount"`
}

// MintTokenPayload is executed by a holder of the token's minter role.
type MintTokenPayload struct {
	Token  Token        `json:"token"`
	To     Address      `json:"to"`
	Amount *uint256.Int `json:"amount"`
}

// BurnTokenPayload is executed by a holder of the token's burner role.
type BurnTokenPayload struct {
	Token  Token        `json:"token"`
	From   Address      `json:"from"`
	Amount *uint256.Int `json:"amount"`
}

type MintBasePayload struct {
	To    Address `json:"to"`
	Count uint64  `json:"count"`
}

type AssetBatchPayload struct {
	AssetIDs []AssetID `json:"asset_ids"`
}

type QuantityPayload struct {
	Quantity uint64 `json:"quantity"`
}

type WithdrawPayload struct {
	To     Address      `json:"to"`
	Amount *uint256.Int `json:"amount"`
}

type ListAssetPayload struct {
	Collection Collection   `json:"collection"`
	AssetID    AssetID      `json:"asset_id"`
	Price      *uint256.Int `json:"price"`
}

type BuyAssetPayload struct {
	ListingID ListingID `json:"listing_id"`
}

type RolePayload struct {
	Role    string  `json:"role"`
	Account Address `json:"account"`
}
