package mirror

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strings"
)

// PrefixSet is a per-field ordered immutable set of normalized facet
// values supporting prefix enumeration and fuzzy lookup. A single sorted
// slice with binary search covers a per-field facet vocabulary well: the
// set is rebuilt wholesale with its mirror, so there is nothing to gain
// from an incrementally updatable structure.
//
// Built once per normalized-mirror rebuild and replaced atomically; never
// mutated in place.
type PrefixSet struct {
	values []string // sorted ascending, deduplicated
}

// BuildPrefixSet constructs a PrefixSet from an already-sorted,
// deduplicated list of normalized values. Rebuild supplies its own sorted
// grouping keys here, so no further sort happens inside.
func BuildPrefixSet(sortedValues []string) *PrefixSet {
	return &PrefixSet{values: append([]string(nil), sortedValues...)}
}

// Len reports the number of distinct normalized values in the set.
func (s *PrefixSet) Len() int { return len(s.values) }

// Encode serializes the set as COUNT(4) || (LEN(4) || UTF8BYTES)*, the
// opaque per-field blob stored under the NSPrefixSet key.
func (s *PrefixSet) Encode() []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(s.values)))
	for _, v := range s.values {
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(v)))
		buf.WriteString(v)
	}
	return buf.Bytes()
}

// DecodePrefixSet parses a blob written by Encode.
func DecodePrefixSet(b []byte) (*PrefixSet, error) {
	r := bytes.NewReader(b)
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("mirror: decode prefix set count: %w", err)
	}
	values := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		var l uint32
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return nil, fmt.Errorf("mirror: decode prefix set entry length: %w", err)
		}
		buf := make([]byte, l)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("mirror: decode prefix set entry: %w", err)
		}
		values = append(values, string(buf))
	}
	return &PrefixSet{values: values}, nil
}

// PrefixMatches returns every value in the set starting with prefix, in
// ascending order, located by binary search for the lower bound rather
// than a linear scan: the "fast prefix enumeration" this structure exists
// to provide.
func (s *PrefixSet) PrefixMatches(prefix string) []string {
	lo := sort.SearchStrings(s.values, prefix)
	var out []string
	for i := lo; i < len(s.values) && strings.HasPrefix(s.values[i], prefix); i++ {
		out = append(out, s.values[i])
	}
	return out
}

// FuzzyMatches returns every value within budget edits of query, in
// ascending order. Lacking an automaton-based FST, this walks the whole
// set; the point of keeping facet search typo-tolerant rests on
// correctness of the edit-distance check, not on the asymptotic cost of
// enumerating a single field's (typically modest) value vocabulary.
func (s *PrefixSet) FuzzyMatches(query string, budget int) []string {
	var out []string
	for _, v := range s.values {
		if levenshtein(query, v, budget+1) <= budget {
			out = append(out, v)
		}
	}
	return out
}
