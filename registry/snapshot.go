package registry

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/lineagedb/lineage/wire"
)

// Hint is a warm-start suggestion for one (partitionKey, objectID) pair: the
// leaf versions and last-seen metadata as of whenever the hint was written.
// It is never treated as authoritative — replay from the log always wins.
type Hint struct {
	Leaves []wire.UUID `json:"leaves"`
	Meta   wire.Meta   `json:"meta"`
}

// SnapshotCache persists warm-start hints to a Badger database, the same
// embedded-KV choice the teacher uses for its own persistent storage engine.
// Unlike that engine, SnapshotCache is explicitly an optimization: a missing
// or corrupt entry degrades silently to a cold start, never an error that
// blocks replay.
type SnapshotCache struct {
	db *badger.DB
}

// SnapshotOptions configures the underlying Badger database.
type SnapshotOptions struct {
	// DataDir is where hint data is stored on disk. Required unless
	// InMemory is set.
	DataDir string

	// InMemory runs Badger with no on-disk footprint, for tests.
	InMemory bool
}

// OpenSnapshotCache opens (or creates) the warm-start hint store.
func OpenSnapshotCache(opts SnapshotOptions) (*SnapshotCache, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir).WithLogger(nil)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	// Hints are small and disposable; keep the footprint modest regardless
	// of host environment, the same trade-off the teacher's engine makes
	// for containerized deployments.
	badgerOpts = badgerOpts.
		WithMemTableSize(8 << 20).
		WithValueLogFileSize(16 << 20)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("registry: open snapshot cache: %w", err)
	}
	return &SnapshotCache{db: db}, nil
}

// Close releases the underlying database.
func (s *SnapshotCache) Close() error {
	return s.db.Close()
}

// Put stores the current hint for (partitionKey, objectID).
func (s *SnapshotCache) Put(partitionKey string, objectID wire.UUID, hint Hint) error {
	payload, err := json.Marshal(hint)
	if err != nil {
		return fmt.Errorf("registry: marshal snapshot hint: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(hintKey(partitionKey, objectID), payload)
	})
}

// Hint returns the stored hint for (partitionKey, objectID), if any. Any
// error reading or decoding the entry (missing key, corrupt value,
// unreadable database) is reported as ok == false rather than an error:
// callers treat a hint as advisory only.
func (s *SnapshotCache) Hint(partitionKey string, objectID wire.UUID) (Hint, bool) {
	var hint Hint
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(hintKey(partitionKey, objectID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &hint)
		})
	})
	if err != nil {
		return Hint{}, false
	}
	return hint, true
}

func hintKey(partitionKey string, objectID wire.UUID) []byte {
	return []byte("hint:" + partitionKey + ":" + objectID.String())
}
