// Package store persists committed ledger snapshots by block height so a
// node can restart from its last commit. Two backends are available: a
// SQLite file with rotating backups and a Badger key-value directory.
package store

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no snapshot exists for the request.
var ErrNotFound = errors.New("snapshot not found")

// Record is one committed snapshot.
type Record struct {
	Height  int64     `json:"height"`
	AppHash []byte    `json:"app_hash"`
	Data    []byte    `json:"data"`
	SavedAt time.Time `json:"saved_at"`
}

// Store keeps snapshots by height.
type Store interface {
	// Save writes rec, replacing any snapshot at the same height.
	Save(rec Record) error
	// Latest returns the snapshot with the greatest height.
	Latest() (Record, error)
	// Load returns the snapshot at height.
	Load(height int64) (Record, error)
	// Heights lists stored heights in ascending order.
	Heights() ([]int64, error)
	// Prune drops all but the newest keep snapshots.
	Prune(keep int) error
	Close() error
}

// Backend names a storage engine.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendBadger Backend = "badger"
)

// Open opens the store of the given backend at path.
func Open(backend Backend, path string) (Store, error) {
	switch backend {
	case BackendSQLite, "":
		return NewSQLiteStore(path)
	case BackendBadger:
		return NewBadgerStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
