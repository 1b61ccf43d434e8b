package kvstore

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// ReadTxn is a read-only view over a consistent snapshot.
type ReadTxn struct {
	snap *pebble.Snapshot
}

// Get returns the value for key in ns, or (nil, false) if absent.
func (t *ReadTxn) Get(ns Namespace, key []byte) ([]byte, bool, error) {
	return get(t.snap, ns, key)
}

// RangeIter returns an iterator over [from, to) in ns. A nil from means
// "before any key"; a nil to means "after all keys" (unbounded endpoints).
func (t *ReadTxn) RangeIter(ns Namespace, from, to []byte) (*Iterator, error) {
	return rangeIter(t.snap, ns, from, to)
}

// PrefixIter returns an iterator over every key in ns with the given prefix.
func (t *ReadTxn) PrefixIter(ns Namespace, prefix []byte) (*Iterator, error) {
	return prefixIter(t.snap, ns, prefix)
}

// WriteTxn is the single exclusive write transaction. All edits
// are buffered in the underlying pebble batch and become visible only when
// the enclosing DB.Update call commits.
type WriteTxn struct {
	db    *pebble.DB
	batch *pebble.Batch
}

// Get reads the current value for key in ns, reflecting this transaction's
// own uncommitted writes (read-your-writes), since WriteTxn is backed by an
// indexed batch.
func (t *WriteTxn) Get(ns Namespace, key []byte) ([]byte, bool, error) {
	return get(t.batch, ns, key)
}

// Put writes key -> value in ns.
func (t *WriteTxn) Put(ns Namespace, key, value []byte) error {
	if err := t.batch.Set(namespacedKey(ns, key), value, nil); err != nil {
		return fmt.Errorf("kvstore: put: %w", err)
	}
	return nil
}

// Delete removes key from ns.
func (t *WriteTxn) Delete(ns Namespace, key []byte) error {
	if err := t.batch.Delete(namespacedKey(ns, key), nil); err != nil {
		return fmt.Errorf("kvstore: delete: %w", err)
	}
	return nil
}

// Clear removes every key in ns, used by the normalized-mirror rebuild to
// drop every prior entry before repopulating it from scratch.
func (t *WriteTxn) Clear(ns Namespace) error {
	lower := []byte{byte(ns)}
	upper := prefixUpperBound(lower)
	if err := t.batch.DeleteRange(lower, upper, nil); err != nil {
		return fmt.Errorf("kvstore: clear namespace %d: %w", ns, err)
	}
	return nil
}

// RangeIter returns an iterator over [from, to) in ns, reflecting this
// transaction's own writes.
func (t *WriteTxn) RangeIter(ns Namespace, from, to []byte) (*Iterator, error) {
	return rangeIter(t.batch, ns, from, to)
}

// PrefixIter returns an iterator over every key in ns with the given prefix,
// reflecting this transaction's own writes.
func (t *WriteTxn) PrefixIter(ns Namespace, prefix []byte) (*Iterator, error) {
	return prefixIter(t.batch, ns, prefix)
}

func get(r pebble.Reader, ns Namespace, key []byte) ([]byte, bool, error) {
	v, closer, err := r.Get(namespacedKey(ns, key))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kvstore: get: %w", err)
	}
	out := make([]byte, len(v))
	copy(out, v)
	if err := closer.Close(); err != nil {
		return nil, false, fmt.Errorf("kvstore: close value handle: %w", err)
	}
	return out, true, nil
}

func rangeIter(r pebble.Reader, ns Namespace, from, to []byte) (*Iterator, error) {
	lower := namespacedKey(ns, from)
	upper := prefixUpperBound([]byte{byte(ns)})
	if to != nil {
		upper = namespacedKey(ns, to)
	}
	return newIterator(r, ns, lower, upper)
}

func prefixIter(r pebble.Reader, ns Namespace, prefix []byte) (*Iterator, error) {
	lower := namespacedKey(ns, prefix)
	upper := prefixUpperBound(lower)
	return newIterator(r, ns, lower, upper)
}
