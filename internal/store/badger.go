package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
)

var snapshotPrefix = []byte("snapshot/")

// BadgerStore keeps snapshots in a Badger directory, keyed by big endian
// height so iteration order is height order. An empty path opens an
// in-memory store.
type BadgerStore struct {
	db *badgerdb.DB
}

// NewBadgerStore opens the Badger directory at dataDir.
func NewBadgerStore(dataDir string) (*BadgerStore, error) {
	opts := badgerdb.DefaultOptions(dataDir)
	if dataDir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.SyncWrites = true
	opts.Logger = nil

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func snapshotKey(height int64) []byte {
	key := make([]byte, len(snapshotPrefix)+8)
	copy(key, snapshotPrefix)
	binary.BigEndian.PutUint64(key[len(snapshotPrefix):], uint64(height))
	return key
}

// Save writes rec, replacing any snapshot at the same height.
func (s *BadgerStore) Save(rec Record) error {
	if rec.SavedAt.IsZero() {
		rec.SavedAt = time.Now()
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode snapshot %d: %w", rec.Height, err)
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(snapshotKey(rec.Height), value)
	})
}

// Load returns the snapshot at height.
func (s *BadgerStore) Load(height int64) (Record, error) {
	var rec Record
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(snapshotKey(height))
		if err != nil {
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(value, &rec)
	})
	return rec, err
}

// Latest returns the snapshot with the greatest height.
func (s *BadgerStore) Latest() (Record, error) {
	var rec Record
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = snapshotPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(snapshotKey(-1))
		if !it.ValidForPrefix(snapshotPrefix) {
			return ErrNotFound
		}
		value, err := it.Item().ValueCopy(nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(value, &rec)
	})
	return rec, err
}

// Heights lists stored heights in ascending order.
func (s *BadgerStore) Heights() ([]int64, error) {
	var heights []int64
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(snapshotPrefix); it.ValidForPrefix(snapshotPrefix); it.Next() {
			key := it.Item().Key()
			heights = append(heights, int64(binary.BigEndian.Uint64(key[len(snapshotPrefix):])))
		}
		return nil
	})
	return heights, err
}

// Prune drops all but the newest keep snapshots.
func (s *BadgerStore) Prune(keep int) error {
	if keep <= 0 {
		return nil
	}
	heights, err := s.Heights()
	if err != nil {
		return err
	}
	if len(heights) <= keep {
		return nil
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		for _, h := range heights[:len(heights)-keep] {
			if err := txn.Delete(snapshotKey(h)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
