package types

import (
	"errors"
	"fmt"
)

// Error kinds reported by rejected state transitions. Callers match them
// with errors.Is; per-asset failures arrive wrapped in an *AssetError.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUnknownAsset        = errors.New("unknown asset")
	ErrNotOwner            = errors.New("not owner")
	ErrNotFree             = errors.New("asset not free")
	ErrNotStakedByOwner    = errors.New("not staked by owner")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientReceipt = errors.New("insufficient staking receipt")
	ErrIncorrectPayment    = errors.New("incorrect payment")
	ErrListingNotActive    = errors.New("listing not active")

	ErrInvalidPrice      = errors.New("price must be positive")
	ErrDuplicateAsset    = errors.New("duplicate asset in batch")
	ErrUnknownToken      = errors.New("unknown token")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrOverflow          = errors.New("amount overflow")
	ErrBatchTooLarge     = errors.New("too many assets in one request")
)

// AssetError reports which asset of a request failed and why.
type AssetError struct {
	Collection Collection
	ID         AssetID
	Err        error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("%s #%d: %v", e.Collection, e.ID, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

// AssetErr wraps kind with the failing asset.
func AssetErr(c Collection, id AssetID, kind error) error {
	return &AssetError{Collection: c, ID: id, Err: kind}
}

// FailingAsset extracts the asset named by err, if any.
func FailingAsset(err error) (Collection, AssetID, bool) {
	var ae *AssetError
	if errors.As(err, &ae) {
		return ae.Collection, ae.ID, true
	}
	return "", 0, false
}
