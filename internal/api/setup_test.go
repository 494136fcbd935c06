package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"oasis.ledger/oasis/internal/abci"
	"oasis.ledger/oasis/internal/events"
	"oasis.ledger/oasis/internal/identity"
	"oasis.ledger/oasis/internal/ledger"
	"oasis.ledger/oasis/internal/logger"
	"oasis.ledger/oasis/internal/store"
	"oasis.ledger/oasis/internal/tendermint"
	"oasis.ledger/oasis/internal/types"
)

// fakeBroadcaster records relayed transactions and answers with a fixed result.
type fakeBroadcaster struct {
	sent   [][]byte
	result *tendermint.Result
	err    error
}

func (f *fakeBroadcaster) BroadcastTxSync(_ context.Context, tx []byte) (*tendermint.Result, error) {
	f.sent = append(f.sent, tx)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type testEnv struct {
	svc   *Service
	app   *abci.ABCIApplication
	store *store.SQLiteStore
	ring  *logger.Ring
	bus   *events.Bus
	bc    *fakeBroadcaster
	alice *identity.Identity
	mux   *http.ServeMux
}

// setupTest creates an application backed by a temporary store and a
// service with every optional endpoint enabled.
func setupTest(t *testing.T) *testEnv {
	t.Helper()

	admin, err := identity.Generate()
	require.NoError(t, err)
	alice, err := identity.Generate()
	require.NoError(t, err)

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	g := ledger.DefaultGenesis(admin.Address())
	g.Balances = []ledger.GenesisBalance{{Account: alice.Address(), Token: types.TokenNative, Amount: 1000}}
	g.BaseMints = []ledger.GenesisMint{{To: alice.Address(), Count: 3}}

	bus := events.NewBus(16)
	app, err := abci.NewABCIApplication(g, abci.WithStore(s, 10), abci.WithEvents(bus))
	require.NoError(t, err)

	ring := logger.NewRing(50)
	log := zap.New(ring.Core(zap.DebugLevel))
	bc := &fakeBroadcaster{result: &tendermint.Result{Hash: "ABCD", Code: abci.CodeTypeOK}}

	svc := NewService(app, ring, log,
		WithBackups(s, 5),
		WithBroadcaster(bc),
		WithEvents(bus))
	mux := http.NewServeMux()
	svc.Routes(mux)

	return &testEnv{svc: svc, app: app, store: s, ring: ring, bus: bus, bc: bc, alice: alice, mux: mux}
}

func (e *testEnv) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}
