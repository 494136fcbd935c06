package access

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oasis.ledger/oasis/internal/types"
)

func TestGrantRequiresAdmin(t *testing.T) {
	roles := NewRoles("admin")
	role := TokenMinter(types.TokenReward)

	err := roles.Grant("mallory", role, "mallory")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrUnauthorized))
	assert.False(t, roles.HasRole(role, "mallory"))

	require.NoError(t, roles.Grant("admin", role, "alice"))
	assert.True(t, roles.HasRole(role, "alice"))
	assert.False(t, roles.HasRole(TokenBurner(types.TokenReward), "alice"))
}

func TestRevoke(t *testing.T) {
	roles := NewRoles("admin")
	role := CollectionMinter(types.CollectionBase)
	roles.Setup(role, "alice")

	assert.ErrorIs(t, roles.Revoke("alice", role, "alice"), types.ErrUnauthorized)
	assert.True(t, roles.HasRole(role, "alice"))

	require.NoError(t, roles.Revoke("admin", role, "alice"))
	assert.False(t, roles.HasRole(role, "alice"))

	// revoking an absent grant is harmless
	require.NoError(t, roles.Revoke("admin", role, "bob"))
}

func TestEmptyAdminAdministersNothing(t *testing.T) {
	roles := NewRoles(types.ZeroAddress)
	assert.False(t, roles.IsAdmin(types.ZeroAddress))
	assert.ErrorIs(t, roles.Grant(types.ZeroAddress, MinterRole, "x"), types.ErrUnauthorized)
}

func TestRolesSnapshotRoundTrip(t *testing.T) {
	roles := NewRoles("admin")
	roles.Setup(TokenMinter(types.TokenReward), "zeta")
	roles.Setup(TokenMinter(types.TokenReward), "alpha")
	roles.Setup(TokenBurner(types.TokenReceipt), types.StakingModule)

	snap := roles.Snapshot()
	assert.Equal(t, []types.Address{"alpha", "zeta"}, snap.Grants[TokenMinter(types.TokenReward)])

	restored := RestoreRoles(snap)
	assert.Equal(t, types.Address("admin"), restored.Admin())
	assert.True(t, restored.HasRole(TokenMinter(types.TokenReward), "alpha"))
	assert.True(t, restored.HasRole(TokenBurner(types.TokenReceipt), types.StakingModule))
	assert.Equal(t, snap, restored.Snapshot())
}

func TestRoleNames(t *testing.T) {
	assert.Equal(t, Role("reward/MINTER_ROLE"), TokenMinter(types.TokenReward))
	assert.Equal(t, Role("receipt/BURNER_ROLE"), TokenBurner(types.TokenReceipt))
	assert.Equal(t, Role("collection/evolved/MINTER_ROLE"), CollectionMinter(types.CollectionEvolved))
}
