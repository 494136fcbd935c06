// Package types defines the core domain models for the oasis ledger. It
// contains account addresses, collectible assets and their custody states,
// stake records, marketplace listings and the fungible token identifiers
// shared by every ledger component.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/holiman/uint256"
)

// Version is the current version of the oasis ledger
const Version = "0.3.0"

// BuildTime is set at build time via -ldflags
var BuildTime = "dev"

// Decimals is the number of decimal places used by every fungible token.
const Decimals = 18

// Address identifies an account. User accounts use the hex encoded ed25519
// public key; module accounts use ModuleAddress.
type Address string

// ZeroAddress is the empty address. It never owns anything.
const ZeroAddress Address = ""

// ModuleAddress derives the deterministic account of an internal module
// (staking pool, marketplace escrow, graveyard, ...).
func ModuleAddress(name string) Address {
	sum := sha256.Sum256([]byte("oasis/module/" + name))
	return Address(hex.EncodeToString(sum[:20]))
}

// Module accounts used by the ledger components.
var (
	StakingModule   = ModuleAddress("staking")
	EconomyModule   = ModuleAddress("economy")
	MarketModule    = ModuleAddress("market")
	GraveyardModule = ModuleAddress("graveyard")
)

// Collection names one of the collectible asset collections.
type Collection string

const (
	CollectionBase    Collection = "base"
	CollectionEvolved Collection = "evolved"
)

// Collections lists every collection known to the registry.
var Collections = []Collection{CollectionBase, CollectionEvolved}

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	return c == CollectionBase || c == CollectionEvolved
}

// AssetID is the sequential identifier of an asset within its collection.
type AssetID uint64

func (id AssetID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Token names a fungible token held in the fungible ledger.
type Token string

const (
	TokenReward  Token = "reward"
	TokenReceipt Token = "receipt"
	TokenNative  Token = "native"
)

// AllTokens lists every fungible token.
var AllTokens = []Token{TokenReward, TokenReceipt, TokenNative}

// Valid reports whether t is a known token.
func (t Token) Valid() bool {
	return t == TokenReward || t == TokenReceipt || t == TokenNative
}

// CustodyState is the custody state of a single asset.
type CustodyState uint8

const (
	Free CustodyState = iota
	Staked
	Listed
	Graveyard
)

var custodyNames = map[CustodyState]string{
	Free:      "free",
	Staked:    "staked",
	Listed:    "listed",
	Graveyard: "graveyard",
}

func (s CustodyState) String() string {
	if name, ok := custodyNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the state by name.
func (s CustodyState) MarshalText() ([]byte, error) {
	name, ok := custodyNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown custody state %d", s)
	}
	return []byte(name), nil
}

// UnmarshalText decodes a state name.
func (s *CustodyState) UnmarshalText(text []byte) error {
	for state, name := range custodyNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown custody state %q", string(text))
}

// Custody describes who controls an asset. Owner is the beneficial owner
// (the seller while Listed, empty in the Graveyard); Holder is the account
// that physically holds it (the owner while Free, a module account otherwise).
type Custody struct {
	State  CustodyState `json:"state"`
	Owner  Address      `json:"owner,omitempty"`
	Holder Address      `json:"holder"`
	Since  int64        `json:"since,omitempty"` // unix seconds of the last transition into Staked or Listed
	Price  *uint256.Int `json:"price,omitempty"` // listing price, Listed only
}

// Asset is a single collectible and its custody.
type Asset struct {
	Collection Collection `json:"collection"`
	ID         AssetID    `json:"id"`
	Custody    Custody    `json:"custody"`
}

// StakeRecord tracks accrual for one staked asset.
type StakeRecord struct {
	Owner       Address `json:"owner"`
	StakedAt    int64   `json:"staked_at"`
	LastClaimAt int64   `json:"last_claim_at"`
}

// ListingID identifies a marketplace listing.
type ListingID uint64

// Listing is an offer to sell one asset for reward tokens.
type Listing struct {
	ID         ListingID    `json:"id"`
	Seller     Address      `json:"seller"`
	Collection Collection   `json:"collection"`
	AssetID    AssetID      `json:"asset_id"`
	Price      *uint256.Int `json:"price"`
	Active     bool         `json:"active"`
	ListedAt   int64        `json:"listed_at"`
	Buyer      Address      `json:"buyer,omitempty"`
}

// Tokens converts a whole token count into base units.
func Tokens(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), unit)
}

// TokensOf converts a uint256 whole token count into base units, reporting
// overflow.
func TokensOf(n *uint256.Int) (*uint256.Int, bool) {
	return new(uint256.Int).MulOverflow(n, unit)
}

var unit = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(Decimals))

// Unit returns one whole token in base units.
func Unit() *uint256.Int {
	return unit.Clone()
}
