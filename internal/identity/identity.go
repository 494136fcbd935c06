package identity

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"oasis.ledger/oasis/internal/types"
)

// LoadOrCreateIdentity loads the key at keyPath, generating and saving a new
// one when the file is missing or empty. Keys are PKCS8 PEM files with 0600
// permissions.
func LoadOrCreateIdentity(keyPath string) (*Identity, error) {
	info, err := os.Stat(keyPath)
	if os.IsNotExist(err) || (err == nil && info.Size() == 0) {
		return CreateIdentity(keyPath)
	}
	if err != nil {
		return nil, err
	}
	return LoadIdentity(keyPath)
}

// CreateIdentity generates a key and writes it to keyPath, replacing any
// existing file.
func CreateIdentity(keyPath string) (*Identity, error) {
	id, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := save(keyPath, id.privateKey); err != nil {
		return nil, err
	}
	return id, nil
}

// LoadIdentity reads an existing key file.
func LoadIdentity(keyPath string) (*Identity, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	pemBlock, _ := pem.Decode(keyData)
	if pemBlock == nil {
		return nil, errors.New("failed to decode PEM block from key file")
	}

	genericKey, err := x509.ParsePKCS8PrivateKey(pemBlock.Bytes)
	if err != nil {
		return nil, err
	}

	privKey, ok := genericKey.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("key is not an ed25519 private key")
	}
	return NewIdentity(privKey), nil
}

// AddressOf returns the ledger address of a public key.
func AddressOf(pub ed25519.PublicKey) types.Address {
	return types.Address(hex.EncodeToString(pub))
}

// ParseAddress checks that s is a hex encoded ed25519 public key.
func ParseAddress(s string) (types.Address, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return types.ZeroAddress, fmt.Errorf("address %q: %w", s, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return types.ZeroAddress, fmt.Errorf("address %q: want %d bytes, got %d", s, ed25519.PublicKeySize, len(raw))
	}
	return types.Address(s), nil
}

func save(keyPath string, priv ed25519.PrivateKey) error {
	x509Encoded, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(keyPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}

	file, err := os.OpenFile(keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	return pem.Encode(file, &pem.Block{Type: "PRIVATE KEY", Bytes: x509Encoded})
}
