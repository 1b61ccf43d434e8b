// Package facettree implements the layered facet tree: the packed,
// multi-level index and its reader, bulk builder, incremental updater and
// update selector.
package facettree

import (
	"facetcore/codec"
	"facetcore/kvstore"
)

// Config holds the tuning constants of the tree layout, exposed as explicit
// configuration rather than hard-coded globals so tests can shrink the
// tree for easier reasoning.
type Config struct {
	GroupSize           uint8 // target fan-out during bulk build
	MinLevelSize        int   // threshold for creating a higher level
	MaxGroupSize        uint8 // incremental split threshold
	MaxFacetValueLength int   // max bytes for an encoded string bound
}

// DefaultConfig returns the project's default tree-layout constants.
func DefaultConfig() Config {
	return Config{
		GroupSize:           4,
		MinLevelSize:        5,
		MaxGroupSize:        8,
		MaxFacetValueLength: 1000,
	}
}

// NamespaceFor maps a facet value type to its primary-tree keyspace.
func NamespaceFor(valueType codec.ValueType) kvstore.Namespace {
	if valueType == codec.TF64 {
		return kvstore.NSFacetF64
	}
	return kvstore.NSFacetString
}
