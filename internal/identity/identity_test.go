// Package identity tests cover key file creation, reloading, permissions
// and transaction signing.
package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oasis.ledger/oasis/internal/types"
)

func TestIdentityLifecycle(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "keys", "account.pem")

	first, err := LoadOrCreateIdentity(keyPath)
	require.NoError(t, err)

	second, err := LoadOrCreateIdentity(keyPath)
	require.NoError(t, err)
	assert.Equal(t, first.Address(), second.Address())

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestEmptyKeyFileIsReplaced(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "empty.pem")
	require.NoError(t, os.WriteFile(keyPath, nil, 0600))

	id, err := LoadOrCreateIdentity(keyPath)
	require.NoError(t, err)
	assert.NotEmpty(t, id.Address())
}

func TestLoadRejectsGarbage(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(keyPath, []byte("not a key"), 0600))

	_, err := LoadIdentity(keyPath)
	assert.Error(t, err)
}

func TestSignAndVerify(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)
	other, err := Generate()
	require.NoError(t, err)

	message := []byte("stake 3 assets")
	signature := id.Sign(message)
	assert.True(t, id.Verify(message, signature))
	assert.False(t, other.Verify(message, signature))
}

func TestSignTransactionCarriesAddress(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	stx, err := id.SignTransaction(&types.Transaction{ID: "t", Type: types.TxClaimRewards})
	require.NoError(t, err)
	assert.True(t, stx.Verify())
	assert.Equal(t, id.Address(), stx.Signer())
}

func TestParseAddress(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	addr, err := ParseAddress(string(id.Address()))
	require.NoError(t, err)
	assert.Equal(t, id.Address(), addr)

	_, err = ParseAddress("zz")
	assert.Error(t, err)
	_, err = ParseAddress("abcd")
	assert.Error(t, err)
}
