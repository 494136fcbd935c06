package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oasis.ledger/oasis/internal/ledger"
	"oasis.ledger/oasis/internal/types"
)

func TestLedgerQueries(t *testing.T) {
	env := setupTest(t)
	alice := string(env.alice.Address())

	t.Run("asset", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/asset?collection=base&id=2")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var asset types.Asset
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &asset))
		assert.Equal(t, types.AssetID(2), asset.ID)
		assert.Equal(t, types.Free, asset.Custody.State)
		assert.Equal(t, env.alice.Address(), asset.Custody.Owner)
	})

	t.Run("balance", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/balance?token=native&address="+alice)
		require.Equal(t, http.StatusOK, w.Code)

		var bal uint256.Int
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bal))
		assert.Equal(t, types.Tokens(1000).Dec(), bal.Dec())
	})

	t.Run("account", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/account?address="+alice)
		require.Equal(t, http.StatusOK, w.Code)

		var view ledger.AccountView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
		assert.Equal(t, []types.AssetID{1, 2, 3}, view.Owned[types.CollectionBase])
		assert.Empty(t, view.Staked)
	})

	t.Run("supply", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/supply")
		require.Equal(t, http.StatusOK, w.Code)

		var supply ledger.SupplyView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &supply))
		assert.Equal(t, uint64(3), supply.Collections[types.CollectionBase].Minted)
		assert.Equal(t, 0, supply.Active)
	})

	t.Run("nonce", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/nonce?address="+alice)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "0", w.Body.String())
	})

	t.Run("listings", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/listings")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})
}

func TestLedgerQueryErrors(t *testing.T) {
	env := setupTest(t)

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"missing parameter", http.MethodGet, "/api/account", http.StatusBadRequest},
		{"parameter with slash", http.MethodGet, "/api/staked?address=a/b", http.StatusBadRequest},
		{"unknown token", http.MethodGet, "/api/balance?token=gold&address=x", http.StatusBadRequest},
		{"bad asset id", http.MethodGet, "/api/asset?collection=base&id=one", http.StatusBadRequest},
		{"unknown collection", http.MethodGet, "/api/asset?collection=rare&id=1", http.StatusBadRequest},
		{"unknown asset", http.MethodGet, "/api/asset?collection=base&id=99", http.StatusNotFound},
		{"unknown listing", http.MethodGet, "/api/listing?id=7", http.StatusNotFound},
		{"wrong method", http.MethodPost, "/api/supply", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(tt.method, tt.target)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}
