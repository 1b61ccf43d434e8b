// Package kvstore is the ordered byte-key/byte-value store facade the rest
// of the facet core is built on. It wraps github.com/cockroachdb/pebble, an
// LSM-tree KV engine whose snapshot iterators and single-writer batches map
// directly onto the facet core's single-writer/many-reader model: a read
// transaction is a pebble Snapshot, a write transaction is a pebble Batch
// committed atomically on success.
//
// Pebble has no notion of named sub-databases, so each logical database
// (e.g. "facet_id_string_docids") is a Namespace: a one-byte tag prepended
// to every key, keeping distinct keyspaces from colliding while still
// living in one pebble.DB.
package kvstore

// Namespace tags a logical database within the single underlying pebble.DB.
type Namespace byte

const (
	// NSFacetString is the primary tree keyspace for string-typed fields.
	NSFacetString Namespace = iota + 1
	// NSFacetF64 is the primary tree keyspace for float-typed fields.
	NSFacetF64
	// NSMirror holds FID || NORMALIZED_UTF8 -> sorted-set(original) entries.
	NSMirror
	// NSPrefixSet holds FID -> opaque per-field prefix-set blob.
	NSPrefixSet
)

func namespacedKey(ns Namespace, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = byte(ns)
	copy(out[1:], key)
	return out
}

// prefixUpperBound returns the smallest key that sorts strictly after every
// key with the given prefix, or nil if the prefix is all 0xFF bytes (no
// finite upper bound exists, so the caller should leave the scan unbounded).
func prefixUpperBound(prefix []byte) []byte {
	out := append([]byte(nil), prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}
