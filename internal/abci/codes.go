package abci

import (
	"errors"

	"oasis.ledger/oasis/internal/ledger"
	"oasis.ledger/oasis/internal/types"
)

// Response codes. Zero is success; every rejected ledger transition maps to
// a stable non-zero code so clients can branch without parsing logs.
const (
	CodeTypeOK                  uint32 = 0
	CodeTypeEncodingError       uint32 = 1
	CodeTypeAuthError           uint32 = 2
	CodeTypeInvalidTx           uint32 = 3
	CodeTypeBadNonce            uint32 = 4
	CodeTypeUnauthorized        uint32 = 5
	CodeTypeUnknownAsset        uint32 = 6
	CodeTypeNotOwner            uint32 = 7
	CodeTypeNotFree             uint32 = 8
	CodeTypeNotStakedByOwner    uint32 = 9
	CodeTypeInsufficientBalance uint32 = 10
	CodeTypeInsufficientReceipt uint32 = 11
	CodeTypeIncorrectPayment    uint32 = 12
	CodeTypeListingNotActive    uint32 = 13
	CodeTypeInvalidPrice        uint32 = 14
	CodeTypeDuplicateAsset      uint32 = 15
	CodeTypeUnknownToken        uint32 = 16
	CodeTypeUnknownCollection   uint32 = 17
	CodeTypeOverflow            uint32 = 18
	CodeTypeNotFound            uint32 = 19
	CodeTypeInternal            uint32 = 20
	CodeTypeBatchTooLarge       uint32 = 21
)

var errorCodes = []struct {
	err  error
	code uint32
}{
	{ledger.ErrBadPayload, CodeTypeEncodingError},
	{ledger.ErrUnknownTransaction, CodeTypeInvalidTx},
	{types.ErrUnauthorized, CodeTypeUnauthorized},
	{types.ErrUnknownAsset, CodeTypeUnknownAsset},
	{types.ErrNotOwner, CodeTypeNotOwner},
	{types.ErrNotFree, CodeTypeNotFree},
	{types.ErrNotStakedByOwner, CodeTypeNotStakedByOwner},
	{types.ErrInsufficientBalance, CodeTypeInsufficientBalance},
	{types.ErrInsufficientReceipt, CodeTypeInsufficientReceipt},
	{types.ErrIncorrectPayment, CodeTypeIncorrectPayment},
	{types.ErrListingNotActive, CodeTypeListingNotActive},
	{types.ErrInvalidPrice, CodeTypeInvalidPrice},
	{types.ErrDuplicateAsset, CodeTypeDuplicateAsset},
	{types.ErrUnknownToken, CodeTypeUnknownToken},
	{types.ErrUnknownCollection, CodeTypeUnknownCollection},
	{types.ErrOverflow, CodeTypeOverflow},
	{types.ErrBatchTooLarge, CodeTypeBatchTooLarge},
}

var codeNames = map[uint32]string{
	CodeTypeOK:                  "ok",
	CodeTypeEncodingError:       "encoding_error",
	CodeTypeAuthError:           "auth_error",
	CodeTypeInvalidTx:           "invalid_tx",
	CodeTypeBadNonce:            "bad_nonce",
	CodeTypeUnauthorized:        "unauthorized",
	CodeTypeUnknownAsset:        "unknown_asset",
	CodeTypeNotOwner:            "not_owner",
	CodeTypeNotFree:             "not_free",
	CodeTypeNotStakedByOwner:    "not_staked_by_owner",
	CodeTypeInsufficientBalance: "insufficient_balance",
	CodeTypeInsufficientReceipt: "insufficient_receipt",
	CodeTypeIncorrectPayment:    "incorrect_payment",
	CodeTypeListingNotActive:    "listing_not_active",
	CodeTypeInvalidPrice:        "invalid_price",
	CodeTypeDuplicateAsset:      "duplicate_asset",
	CodeTypeUnknownToken:        "unknown_token",
	CodeTypeUnknownCollection:   "unknown_collection",
	CodeTypeOverflow:            "overflow",
	CodeTypeNotFound:            "not_found",
	CodeTypeInternal:            "internal",
	CodeTypeBatchTooLarge:       "batch_too_large",
}

// CodeFor maps a ledger error to its response code.
func CodeFor(err error) uint32 {
	if err == nil {
		return CodeTypeOK
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeTypeInternal
}

// CodeName returns the metric label for code.
func CodeName(code uint32) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return "unknown"
}
