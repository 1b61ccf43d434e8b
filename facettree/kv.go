package facettree

import "facetcore/kvstore"

// KV is the read surface the tree reader needs. Both kvstore.ReadTxn and
// kvstore.WriteTxn satisfy it, so read-side queries work unmodified inside
// an in-progress write transaction (the incremental updater reads its own
// uncommitted edits this way).
type KV interface {
	Get(ns kvstore.Namespace, key []byte) ([]byte, bool, error)
	RangeIter(ns kvstore.Namespace, from, to []byte) (*kvstore.Iterator, error)
	PrefixIter(ns kvstore.Namespace, prefix []byte) (*kvstore.Iterator, error)
}

// KVWriter extends KV with the mutations the bulk builder and incremental
// updater need.
type KVWriter interface {
	KV
	Put(ns kvstore.Namespace, key, value []byte) error
	Delete(ns kvstore.Namespace, key []byte) error
	Clear(ns kvstore.Namespace) error
}

var (
	_ KV       = (*kvstore.ReadTxn)(nil)
	_ KVWriter = (*kvstore.WriteTxn)(nil)
)
