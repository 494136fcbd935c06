// Package abci contains the ABCI application that connects the ledger to the
// Tendermint consensus engine. Signatures and per-account nonces are checked
// here, block headers drive the ledger clock, and every commit snapshots the
// ledger into the persistent store.
package abci

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	abci "github.com/tendermint/tendermint/abci/types"
	"go.uber.org/zap"

	"oasis.ledger/oasis/internal/clock"
	"oasis.ledger/oasis/internal/events"
	"oasis.ledger/oasis/internal/ledger"
	"oasis.ledger/oasis/internal/metrics"
	"oasis.ledger/oasis/internal/store"
	"oasis.ledger/oasis/internal/types"
)

// AppVersion is reported to Tendermint in Info.
const AppVersion uint64 = 1

// Version is the human readable application version.
var Version = "dev"

// NodeState is what a commit persists: the ledger and the replay counters.
type NodeState struct {
	Ledger json.RawMessage          `json:"ledger"`
	Nonces map[types.Address]uint64 `json:"nonces"`
}

// ABCIApplication implements the ABCI interface over the ledger.
type ABCIApplication struct {
	abci.BaseApplication

	mu      sync.RWMutex
	ledger  *ledger.Ledger
	clock   *clock.BlockClock
	nonces  map[types.Address]uint64
	height  int64
	appHash []byte
	status  types.NodeStatus

	// committed is a read-only copy of the ledger as of the last commit
	// (or genesis); queries never see a block in progress.
	committed       *ledger.Ledger
	committedNonces map[types.Address]uint64

	store         store.Store
	keepSnapshots int
	publisher     events.Publisher
	metrics       *metrics.Metrics
	log           *zap.Logger
}

// Option configures the application.
type Option func(*ABCIApplication)

// WithStore persists a snapshot on every commit, keeping the newest keep.
func WithStore(s store.Store, keep int) Option {
	return func(app *ABCIApplication) {
		app.store = s
		app.keepSnapshots = keep
	}
}

// WithEvents sets where ledger events are published.
func WithEvents(p events.Publisher) Option {
	return func(app *ABCIApplication) { app.publisher = p }
}

// WithMetrics records transactions and commits.
func WithMetrics(m *metrics.Metrics) Option {
	return func(app *ABCIApplication) { app.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(app *ABCIApplication) { app.log = log }
}

// NewABCIApplication creates the application. When the store holds a
// snapshot the ledger is restored from it and genesis is ignored.
func NewABCIApplication(genesis ledger.Genesis, opts ...Option) (*ABCIApplication, error) {
	app := &ABCIApplication{
		clock:     clock.NewBlockClock(time.Unix(0, 0)),
		nonces:    make(map[types.Address]uint64),
		publisher: events.Discard{},
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(app)
	}
	app.log = app.log.Named("abci")
	app.status.StartedAt = time.Now()

	restored, err := app.restore()
	if err != nil {
		return nil, err
	}
	if restored {
		return app, nil
	}

	l, err := ledger.New(genesis, app.ledgerOptions()...)
	if err != nil {
		return nil, err
	}
	app.ledger = l
	if err := app.refreshCommittedLedger(); err != nil {
		return nil, err
	}
	return app, nil
}

func (app *ABCIApplication) ledgerOptions() []ledger.Option {
	return []ledger.Option{
		ledger.WithClock(app.clock),
		ledger.WithEvents(countingPublisher{next: app.publisher, metrics: app.metrics}),
		ledger.WithLogger(app.log),
	}
}

// restore loads the newest snapshot from the store, if any.
func (app *ABCIApplication) restore() (bool, error) {
	if app.store == nil {
		return false, nil
	}
	rec, err := app.store.Latest()
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load latest snapshot: %w", err)
	}

	var state NodeState
	if err := json.Unmarshal(rec.Data, &state); err != nil {
		return false, fmt.Errorf("decode snapshot %d: %w", rec.Height, err)
	}
	l, err := ledger.Import(state.Ledger, app.ledgerOptions()...)
	if err != nil {
		return false, fmt.Errorf("restore snapshot %d: %w", rec.Height, err)
	}
	app.ledger = l
	if state.Nonces != nil {
		app.nonces = state.Nonces
	}
	if err := app.setCommitted(state.Ledger); err != nil {
		return false, fmt.Errorf("restore snapshot %d: %w", rec.Height, err)
	}
	app.height = rec.Height
	app.appHash = rec.AppHash
	app.status.Height = rec.Height
	app.status.AppHash = hex.EncodeToString(rec.AppHash)
	app.status.RestoredFrom = rec.Height

	app.log.Info("restored ledger from snapshot",
		zap.Int64("height", rec.Height),
		zap.String("app_hash", app.status.AppHash))
	return true, nil
}

// setCommitted rebuilds the read-only query ledger from exported state and
// copies the nonces. Its block clock is seeded from the exported block time.
// Callers hold the write lock or have not yet shared the app.
func (app *ABCIApplication) setCommitted(raw []byte) error {
	l, err := ledger.Import(raw, ledger.WithClock(clock.NewBlockClock(time.Unix(0, 0))))
	if err != nil {
		return fmt.Errorf("build query view: %w", err)
	}
	nonces := make(map[types.Address]uint64, len(app.nonces))
	for a, n := range app.nonces {
		nonces[a] = n
	}
	app.committed = l
	app.committedNonces = nonces
	return nil
}

// refreshCommittedLedger exports the live ledger into the query view. Used
// where no block has been committed yet.
func (app *ABCIApplication) refreshCommittedLedger() error {
	raw, err := app.ledger.Export()
	if err != nil {
		return err
	}
	return app.setCommitted(raw)
}

// View runs fn with read access to the ledger as of the last commit.
func (app *ABCIApplication) View(fn func(l *ledger.Ledger)) {
	app.mu.RLock()
	defer app.mu.RUnlock()
	fn(app.committed)
}

// Nonce returns the next nonce expected from account as of the last commit.
func (app *ABCIApplication) Nonce(account types.Address) uint64 {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.committedNonces[account]
}

// Status reports commit progress.
func (app *ABCIApplication) Status() types.NodeStatus {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.status
}

func (app *ABCIApplication) Info(req abci.RequestInfo) abci.ResponseInfo {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return abci.ResponseInfo{
		Data:             "oasis",
		Version:          Version,
		AppVersion:       AppVersion,
		LastBlockHeight:  app.height,
		LastBlockAppHash: app.appHash,
	}
}

// InitChain replaces the ledger with the chain genesis when one is supplied.
func (app *ABCIApplication) InitChain(req abci.RequestInitChain) abci.ResponseInitChain {
	app.mu.Lock()
	defer app.mu.Unlock()

	app.clock.Set(req.Time)
	if len(req.AppStateBytes) == 0 || app.height > 0 {
		return abci.ResponseInitChain{}
	}
	g, err := ledger.ParseGenesis(req.AppStateBytes)
	if err != nil {
		panic(fmt.Sprintf("invalid genesis app state: %v", err))
	}
	l, err := ledger.New(g, app.ledgerOptions()...)
	if err != nil {
		panic(fmt.Sprintf("cannot initialise ledger: %v", err))
	}
	app.ledger = l
	if err := app.refreshCommittedLedger(); err != nil {
		panic(fmt.Sprintf("cannot initialise ledger: %v", err))
	}
	app.log.Info("chain initialised", zap.String("chain_id", req.ChainId), zap.String("admin", string(g.Admin)))
	return abci.ResponseInitChain{}
}

// BeginBlock moves the ledger clock to the block time.
func (app *ABCIApplication) BeginBlock(req abci.RequestBeginBlock) abci.ResponseBeginBlock {
	app.mu.Lock()
	defer app.mu.Unlock()

	app.clock.Set(req.Header.Time)
	app.ledger.SetHeight(req.Header.Height)
	return abci.ResponseBeginBlock{}
}

// decodeTx unwraps and authenticates a signed transaction.
func decodeTx(raw []byte) (*types.Transaction, types.Address, uint32, string) {
	var signedTx types.SignedTransaction
	if err := json.Unmarshal(raw, &signedTx); err != nil {
		return nil, "", CodeTypeEncodingError, "failed to decode signed tx"
	}
	if !signedTx.Verify() {
		return nil, "", CodeTypeAuthError, "invalid signature"
	}
	tx, err := signedTx.GetTransaction()
	if err != nil {
		return nil, "", CodeTypeEncodingError, "failed to decode inner tx"
	}
	return tx, signedTx.Signer(), CodeTypeOK, ""
}

func (app *ABCIApplication) CheckTx(req abci.RequestCheckTx) abci.ResponseCheckTx {
	tx, signer, code, msg := decodeTx(req.Tx)
	if code != CodeTypeOK {
		return abci.ResponseCheckTx{Code: code, Log: msg}
	}
	if !ledger.Supported(tx.Type) {
		return abci.ResponseCheckTx{Code: CodeTypeInvalidTx, Log: "unknown transaction type"}
	}

	app.mu.RLock()
	expected := app.nonces[signer]
	app.mu.RUnlock()
	if tx.Nonce < expected {
		return abci.ResponseCheckTx{
			Code: CodeTypeBadNonce,
			Log:  fmt.Sprintf("nonce %d already used, next is %d", tx.Nonce, expected),
		}
	}
	return abci.ResponseCheckTx{Code: CodeTypeOK}
}

// DeliverTx applies a transaction. Once the signature and nonce check out
// the nonce is consumed, even if the ledger rejects the transition.
func (app *ABCIApplication) DeliverTx(req abci.RequestDeliverTx) abci.ResponseDeliverTx {
	tx, signer, code, msg := decodeTx(req.Tx)
	if code != CodeTypeOK {
		return abci.ResponseDeliverTx{Code: code, Log: msg}
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	expected := app.nonces[signer]
	if tx.Nonce != expected {
		app.metrics.ObserveTx(tx.Type, CodeName(CodeTypeBadNonce))
		return abci.ResponseDeliverTx{
			Code: CodeTypeBadNonce,
			Log:  fmt.Sprintf("expected nonce %d, got %d", expected, tx.Nonce),
		}
	}
	app.nonces[signer] = expected + 1

	res, err := app.ledger.Apply(signer, tx)
	if err != nil {
		code := CodeFor(err)
		app.metrics.ObserveTx(tx.Type, CodeName(code))
		return abci.ResponseDeliverTx{Code: code, Log: err.Error()}
	}
	app.metrics.ObserveTx(tx.Type, CodeName(CodeTypeOK))

	var data []byte
	if res.Data != nil {
		if data, err = json.Marshal(res.Data); err != nil {
			app.log.Warn("failed to encode result data", zap.String("tx", tx.ID), zap.Error(err))
		}
	}
	return abci.ResponseDeliverTx{Code: CodeTypeOK, Data: data, Events: toABCIEvents(res.Events)}
}

// Commit snapshots the ledger and persists it.
func (app *ABCIApplication) Commit() abci.ResponseCommit {
	app.mu.Lock()
	defer app.mu.Unlock()

	start := time.Now()
	height := app.ledger.Height()
	if height <= app.height {
		height = app.height + 1
		app.ledger.SetHeight(height)
	}

	raw, data, hash, err := app.encodeState()
	if err != nil {
		panic(fmt.Sprintf("cannot snapshot ledger at height %d: %v", height, err))
	}
	if app.store != nil {
		if err := app.store.Save(store.Record{Height: height, AppHash: hash, Data: data}); err != nil {
			panic(fmt.Sprintf("cannot persist snapshot at height %d: %v", height, err))
		}
		if err := app.store.Prune(app.keepSnapshots); err != nil {
			app.log.Warn("failed to prune snapshots", zap.Error(err))
		}
	}

	if err := app.setCommitted(raw); err != nil {
		panic(fmt.Sprintf("cannot snapshot ledger at height %d: %v", height, err))
	}
	app.height = height
	app.appHash = hash
	app.status.Height = height
	app.status.AppHash = hex.EncodeToString(hash)
	app.status.LastCommit = time.Now()

	app.metrics.ObserveCommit(height, time.Since(start))
	app.publisher.Publish(events.New(events.KindCommitted, app.clock.Now(), map[string]any{
		"height":   height,
		"app_hash": app.status.AppHash,
	}))
	app.log.Debug("block committed", zap.Int64("height", height), zap.String("app_hash", app.status.AppHash))
	return abci.ResponseCommit{Data: hash}
}

// encodeState returns the exported ledger, the node state wrapping it and
// the hash of the node state.
func (app *ABCIApplication) encodeState() (raw, data, hash []byte, err error) {
	raw, err = app.ledger.Export()
	if err != nil {
		return nil, nil, nil, err
	}
	data, err = json.Marshal(NodeState{Ledger: raw, Nonces: app.nonces})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode node state: %w", err)
	}
	return raw, data, ledger.Hash(data), nil
}

func toABCIEvents(evs []events.Event) []abci.Event {
	out := make([]abci.Event, 0, len(evs))
	for _, e := range evs {
		attrs := []abci.EventAttribute{
			{Key: []byte("id"), Value: []byte(e.ID)},
			{Key: []byte("caller"), Value: []byte(e.Caller), Index: true},
		}
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			value, err := json.Marshal(e.Data[k])
			if err != nil {
				continue
			}
			attrs = append(attrs, abci.EventAttribute{Key: []byte(k), Value: value})
		}
		out = append(out, abci.Event{Type: string(e.Kind), Attributes: attrs})
	}
	return out
}

// countingPublisher forwards events and counts them.
type countingPublisher struct {
	next    events.Publisher
	metrics *metrics.Metrics
}

func (p countingPublisher) Publish(e events.Event) {
	p.metrics.ObserveEvent()
	p.next.Publish(e)
}
