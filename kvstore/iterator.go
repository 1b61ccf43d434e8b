package kvstore

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Iterator walks a bounded range of keys within one namespace, in
// lexicographic order, with the namespace tag already stripped from Key().
type Iterator struct {
	it *pebble.Iterator
	ns Namespace
}

func newIterator(r pebble.Reader, ns Namespace, lower, upper []byte) (*Iterator, error) {
	it, err := r.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("kvstore: new iterator: %w", err)
	}
	return &Iterator{it: it, ns: ns}, nil
}

// First positions the iterator at the first key in range.
func (it *Iterator) First() bool { return it.it.First() }

// Next advances the iterator.
func (it *Iterator) Next() bool { return it.it.Next() }

// Prev moves the iterator backward.
func (it *Iterator) Prev() bool { return it.it.Prev() }

// Last positions the iterator at the last key in range, used by the tree
// reader's backward "highest level" scan.
func (it *Iterator) Last() bool { return it.it.Last() }

// SeekGE seeks to the first key >= key (namespace-relative).
func (it *Iterator) SeekGE(key []byte) bool {
	return it.it.SeekGE(namespacedKey(it.ns, key))
}

// SeekLT seeks to the last key < key (namespace-relative).
func (it *Iterator) SeekLT(key []byte) bool {
	return it.it.SeekLT(namespacedKey(it.ns, key))
}

// Valid reports whether the iterator currently points at a usable entry.
func (it *Iterator) Valid() bool { return it.it.Valid() }

// Key returns the current key with the namespace tag stripped.
func (it *Iterator) Key() []byte {
	k := it.it.Key()
	if len(k) <= 1 {
		return nil
	}
	out := make([]byte, len(k)-1)
	copy(out, k[1:])
	return out
}

// Value returns a copy of the current value (pebble's buffer is reused
// across iterator steps, so the caller must not hold onto it.it.Value()).
func (it *Iterator) Value() []byte {
	v := it.it.Value()
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

// Close releases the iterator.
func (it *Iterator) Close() error {
	if err := it.it.Close(); err != nil {
		return fmt.Errorf("kvstore: close iterator: %w", err)
	}
	return nil
}
