// Package identity manages account keypairs. An account is an ed25519 key;
// its ledger address is the hex encoded public key. Nodes and CLI users
// keep their key in a PEM file and sign transactions with it.
package identity

import (
	"crypto/ed25519"

	"oasis.ledger/oasis/internal/types"
)

// Identity is an account keypair.
type Identity struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	address    types.Address
}

// NewIdentity wraps a private key.
func NewIdentity(privKey ed25519.PrivateKey) *Identity {
	pubKey := privKey.Public().(ed25519.PublicKey)
	return &Identity{
		privateKey: privKey,
		publicKey:  pubKey,
		address:    AddressOf(pubKey),
	}
}

// Generate creates a fresh identity that is not persisted.
func Generate() (*Identity, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}
	return NewIdentity(priv), nil
}

// Sign signs message with the private key.
func (i *Identity) Sign(message []byte) []byte {
	return ed25519.Sign(i.privateKey, message)
}

// Verify checks a signature made by this identity.
func (i *Identity) Verify(message, signature []byte) bool {
	return ed25519.Verify(i.publicKey, message, signature)
}

// PublicKey returns the raw public key.
func (i *Identity) PublicKey() ed25519.PublicKey {
	return i.publicKey
}

// PrivateKey returns the raw private key.
func (i *Identity) PrivateKey() ed25519.PrivateKey {
	return i.privateKey
}

// Address is the account's ledger address.
func (i *Identity) Address() types.Address {
	return i.address
}

// SignTransaction signs tx as this account.
func (i *Identity) SignTransaction(tx *types.Transaction) (*types.SignedTransaction, error) {
	return tx.Sign(i)
}
