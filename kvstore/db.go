package kvstore

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// DB owns the on-disk (or in-memory) pebble store backing every namespace.
type DB struct {
	pdb *pebble.DB
}

// Open opens (creating if necessary) a persistent store at dir.
func Open(dir string) (*DB, error) {
	pdb, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", dir, err)
	}
	return &DB{pdb: pdb}, nil
}

// OpenMem opens an in-memory store, handy for tests and short-lived indices.
func OpenMem() (*DB, error) {
	pdb, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("kvstore: open in-memory store: %w", err)
	}
	return &DB{pdb: pdb}, nil
}

// Close releases the underlying pebble handle.
func (db *DB) Close() error {
	if err := db.pdb.Close(); err != nil {
		return fmt.Errorf("kvstore: close: %w", err)
	}
	return nil
}

// View runs fn against a consistent read-only snapshot: readers never
// block and are never blocked by a concurrent writer. The snapshot is
// released when fn returns.
func (db *DB) View(fn func(txn *ReadTxn) error) error {
	snap := db.pdb.NewSnapshot()
	defer snap.Close()
	return fn(&ReadTxn{snap: snap})
}

// Update runs fn against a single exclusive write batch. If fn returns a
// non-nil error the batch is discarded with no persisted changes; otherwise
// the batch commits atomically and becomes visible to readers started after
// the call returns.
func (db *DB) Update(fn func(txn *WriteTxn) error) error {
	batch := db.pdb.NewIndexedBatch()
	wtxn := &WriteTxn{db: db.pdb, batch: batch}
	if err := fn(wtxn); err != nil {
		_ = batch.Close()
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("kvstore: commit: %w", err)
	}
	return nil
}
