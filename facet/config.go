// Package facet is the public entry point of the faceted value index: it
// wires the KV store, the per-field layered tree, and the normalized
// search mirror behind a single Index type.
package facet

import (
	"go.uber.org/zap"

	"facetcore/codec"
	"facetcore/facettree"
)

// MatchingStrategy controls how FacetSearch folds multiple query words
// into one candidate set.
type MatchingStrategy uint8

const (
	// MatchLast requires every query word but the last to match a
	// candidate value's word exactly; only the last word gets
	// prefix-or-typo leniency.
	MatchLast MatchingStrategy = iota
	// MatchAll requires every query word to match, each with its own
	// prefix-or-typo leniency.
	MatchAll
)

// SortFacetValuesBy controls the default ordering of Distribution results.
type SortFacetValuesBy uint8

const (
	SortAlpha SortFacetValuesBy = iota
	SortCount
)

// FieldConfig declares how one named field participates in the index.
type FieldConfig struct {
	Filterable  bool
	FacetSearch bool
	ValueType   codec.ValueType
}

// Config is the full configuration of an Index.
type Config struct {
	// Dir is the on-disk path for the backing store; empty opens an
	// in-memory store, handy for tests and short-lived indices.
	Dir string

	// Tree tunes the layered tree's fan-out; the zero value is replaced
	// with facettree.DefaultConfig() in Open.
	Tree facettree.Config

	// SearchDisabled switches off FacetSearch index-wide, independent of
	// any individual field's FacetSearch flag.
	SearchDisabled bool

	MatchingStrategy  MatchingStrategy
	DisabledTypoWords []string
	MaxValuesPerFacet int
	SortFacetValuesBy SortFacetValuesBy

	Fields map[string]FieldConfig

	// Logger receives the one diagnostic the core logs unprompted:
	// ERR_CORRUPT_TREE detection during reads. Defaults to a no-op
	// logger; set it to surface corruption into the embedding
	// application's own logging.
	Logger *zap.SugaredLogger
}
