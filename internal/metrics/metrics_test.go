package metrics

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oasis.ledger/oasis/internal/types"
)

func TestObserveTxAndCommit(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.ObserveTx(types.TxStake, "ok")
	m.ObserveTx(types.TxStake, "ok")
	m.ObserveTx(types.TxStake, "not_owner")
	m.ObserveCommit(42, 3*time.Millisecond)
	m.ObserveEvent()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.txTotal.WithLabelValues("stake", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.txTotal.WithLabelValues("stake", "not_owner")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.blockHeight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events))

	_, err = New(reg)
	assert.Error(t, err, "double registration")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveTx(types.TxStake, "ok")
	m.ObserveCommit(1, time.Second)
	m.ObserveEvent()
}

func TestSupplyCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterSupply(reg, func() Supply {
		return Supply{
			Tokens: map[types.Token]*uint256.Int{types.TokenReward: types.Tokens(5)},
			Assets: map[types.Collection]map[types.CustodyState]uint64{
				types.CollectionBase: {types.Free: 3, types.Graveyard: 2},
			},
			Listings: 1,
		}
	}))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestWholeTokens(t *testing.T) {
	half := new(uint256.Int).Div(types.Unit(), uint256.NewInt(2))
	amount := new(uint256.Int).Add(types.Tokens(3), half)
	assert.InDelta(t, 3.5, WholeTokens(amount), 1e-9)
	assert.Zero(t, WholeTokens(nil))
}
