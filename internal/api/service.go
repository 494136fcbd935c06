package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"oasis.ledger/oasis/internal/abci"
	"oasis.ledger/oasis/internal/events"
	"oasis.ledger/oasis/internal/logger"
	"oasis.ledger/oasis/internal/tendermint"
	"oasis.ledger/oasis/internal/types"
)

// Node is the read side of the ledger node.
type Node interface {
	QueryPath(path string) ([]byte, error)
	Status() types.NodeStatus
}

// Broadcaster relays signed transactions to consensus.
type Broadcaster interface {
	BroadcastTxSync(ctx context.Context, tx []byte) (*tendermint.Result, error)
}

// Backups manages copies of the snapshot database.
type Backups interface {
	BackupCurrent(maxBackups int) (string, error)
	Backups() ([]string, error)
	ExportDatabase() ([]byte, error)
}

// Service handles API requests
type Service struct {
	node        Node
	ring        *logger.Ring
	bus         *events.Bus
	backups     Backups
	broadcaster Broadcaster
	maxBackups  int
	thresholds  types.HealthThresholds
	log         *zap.Logger
}

// Option configures optional parts of the service.
type Option func(*Service)

// WithBackups enables the backup endpoints.
func WithBackups(b Backups, maxBackups int) Option {
	return func(s *Service) {
		s.backups = b
		s.maxBackups = maxBackups
	}
}

// WithBroadcaster enables transaction submission.
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Service) { s.broadcaster = b }
}

// WithEvents enables the recent events endpoint.
func WithEvents(bus *events.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

// NewService creates a new API service
func NewService(node Node, ring *logger.Ring, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		node:       node,
		ring:       ring,
		thresholds: types.DefaultHealthThresholds(),
		log:        log.Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes registers every endpoint on mux.
func (s *Service) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", s.HandleHealth)
	mux.HandleFunc("/api/version", s.HandleVersion)
	mux.HandleFunc("/api/status", s.HandleStatus)
	mux.HandleFunc("/api/logs", s.HandleLogs)
	mux.HandleFunc("/api/events", s.HandleEvents)

	mux.HandleFunc("/api/account", s.HandleAccount)
	mux.HandleFunc("/api/asset", s.HandleAsset)
	mux.HandleFunc("/api/balance", s.HandleBalance)
	mux.HandleFunc("/api/staked", s.HandleStaked)
	mux.HandleFunc("/api/pending", s.HandlePending)
	mux.HandleFunc("/api/listing", s.HandleListing)
	mux.HandleFunc("/api/listings", s.HandleListings)
	mux.HandleFunc("/api/supply", s.HandleSupply)
	mux.HandleFunc("/api/nonce", s.HandleNonce)

	mux.HandleFunc("/api/tx", s.HandleSubmitTx)

	mux.HandleFunc("/api/backup", s.HandleBackup)
	mux.HandleFunc("/api/backups", s.HandleListBackups)
	mux.HandleFunc("/api/backup/download", s.HandleBackupDownload)
}

// writeJSON writes a JSON response
func (s *Service) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeRaw writes an already encoded JSON body.
func (s *Service) writeRaw(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// writeError writes a JSON error response
func (s *Service) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps a query error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, abci.ErrBadQuery),
		errors.Is(err, types.ErrUnknownToken),
		errors.Is(err, types.ErrUnknownCollection):
		return http.StatusBadRequest
	case errors.Is(err, abci.ErrNotFound),
		errors.Is(err, types.ErrUnknownAsset):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
