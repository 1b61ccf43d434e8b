// Package mirror builds and queries the normalized-value mirror used for
// facet search: a per-field (fid, normalized_value) -> sorted set of
// original values, plus a simple typo-tolerant lookup over it. Original
// values are normalized with golang.org/x/text so accent, case and width
// variants (e.g. "SciFi", "SCIFI", "ｓｃｉｆｉ") collapse onto the same
// entry before prefix or fuzzy matching ever runs. Punctuation is kept, so
// "Sci-Fi" normalizes to "sci-fi", a separate entry.
package mirror

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"facetcore/codec"
	"facetcore/kvstore"
)

var fold = cases.Fold()

// Normalize lowercases, case-folds, widens/narrows full- and half-width
// runes to their canonical form, and decomposes accents, so visually or
// typographically equivalent values compare equal. It never fails: any
// input string has a normalized form.
func Normalize(s string) string {
	s = width.Fold.String(s)
	s = fold.String(s)
	s = norm.NFKD.String(s)
	return stripAccents(s)
}

// stripAccents drops the combining-mark runes NFKD decomposition exposes,
// completing the fold (e.g. "café" -> "cafe").
func stripAccents(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isCombiningMark(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isCombiningMark(r rune) bool {
	return r >= 0x0300 && r <= 0x036F
}

// Entry is one normalized mirror row: every distinct original value that
// normalizes to the same key, in ascending order.
type Entry struct {
	Normalized string
	Originals  []string
}

// Rebuild replaces fid's entire mirror with one entry per distinct
// normalized form of originals, matching the primary tree's
// clear-then-rewrite rebuild semantics: facet search is always consistent
// with whatever the last full mirror rebuild saw, never a partial edit.
func Rebuild(txn *kvstore.WriteTxn, fid uint16, maxValueLen int, originals []string) error {
	if err := clearField(txn, fid); err != nil {
		return err
	}

	groups := make(map[string][]string)
	for _, o := range originals {
		normalized := codec.TruncateStringBound(Normalize(o), maxValueLen)
		groups[normalized] = append(groups[normalized], o)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		originals := groups[k]
		sort.Strings(originals)
		val, err := encodeOriginals(originals)
		if err != nil {
			return err
		}
		if err := txn.Put(kvstore.NSMirror, mirrorKey(fid, k), val); err != nil {
			return fmt.Errorf("mirror: write entry: %w", err)
		}
	}

	set := BuildPrefixSet(keys)
	if err := txn.Put(kvstore.NSPrefixSet, codec.FieldPrefix(fid), set.Encode()); err != nil {
		return fmt.Errorf("mirror: write prefix set: %w", err)
	}
	return nil
}

func clearField(txn *kvstore.WriteTxn, fid uint16) error {
	prefix := codec.FieldPrefix(fid)
	it, err := txn.PrefixIter(kvstore.NSMirror, prefix)
	if err != nil {
		return fmt.Errorf("mirror: scan for clear: %w", err)
	}
	var keys [][]byte
	for ok := it.First(); ok; ok = it.Next() {
		keys = append(keys, it.Key())
	}
	if err := it.Close(); err != nil {
		return err
	}
	for _, k := range keys {
		if err := txn.Delete(kvstore.NSMirror, k); err != nil {
			return fmt.Errorf("mirror: delete stale entry: %w", err)
		}
	}
	return nil
}

func mirrorKey(fid uint16, normalized string) []byte {
	out := make([]byte, 2+len(normalized))
	binary.BigEndian.PutUint16(out[0:2], fid)
	copy(out[2:], normalized)
	return out
}

func encodeOriginals(originals []string) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint16(len(originals))); err != nil {
		return nil, fmt.Errorf("mirror: encode count: %w", err)
	}
	for _, o := range originals {
		if err := binary.Write(&buf, binary.LittleEndian, uint16(len(o))); err != nil {
			return nil, fmt.Errorf("mirror: encode length: %w", err)
		}
		buf.WriteString(o)
	}
	return buf.Bytes(), nil
}

func decodeOriginals(b []byte) ([]string, error) {
	r := bytes.NewReader(b)
	var count uint16
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("mirror: decode count: %w", err)
	}
	out := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		var l uint16
		if err := binary.Read(r, binary.LittleEndian, &l); err != nil {
			return nil, fmt.Errorf("mirror: decode length: %w", err)
		}
		buf := make([]byte, l)
		if _, err := r.Read(buf); err != nil {
			return nil, fmt.Errorf("mirror: decode string: %w", err)
		}
		out = append(out, string(buf))
	}
	return out, nil
}

// reader is the minimal read surface Prefix and FuzzySearch need.
type reader interface {
	Get(ns kvstore.Namespace, key []byte) ([]byte, bool, error)
	PrefixIter(ns kvstore.Namespace, prefix []byte) (*kvstore.Iterator, error)
}

// loadPrefixSet reads and decodes fid's prefix set. A missing set (no
// entries were ever rebuilt for this field) decodes as empty rather than
// an error, since an un-searched field has nothing to match against yet.
func loadPrefixSet(txn reader, fid uint16) (*PrefixSet, error) {
	raw, ok, err := txn.Get(kvstore.NSPrefixSet, codec.FieldPrefix(fid))
	if err != nil {
		return nil, fmt.Errorf("mirror: load prefix set: %w", err)
	}
	if !ok {
		return BuildPrefixSet(nil), nil
	}
	set, err := DecodePrefixSet(raw)
	if err != nil {
		return nil, fmt.Errorf("mirror: decode prefix set for field %d: %w", fid, err)
	}
	return set, nil
}

// resolveEntries fetches the mirror row for each normalized value and
// assembles the matching Entry slice, in the order normalized was given.
func resolveEntries(txn reader, fid uint16, normalized []string) ([]Entry, error) {
	out := make([]Entry, 0, len(normalized))
	for _, n := range normalized {
		raw, ok, err := txn.Get(kvstore.NSMirror, mirrorKey(fid, n))
		if err != nil {
			return nil, fmt.Errorf("mirror: resolve entry: %w", err)
		}
		if !ok {
			continue
		}
		originals, err := decodeOriginals(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Normalized: n, Originals: originals})
	}
	return out, nil
}

// Prefix returns every mirror entry for fid whose normalized form starts
// with Normalize(prefix), in ascending normalized order, enumerated via
// fid's prefix set rather than a raw keyspace scan.
func Prefix(txn reader, fid uint16, prefix string) ([]Entry, error) {
	set, err := loadPrefixSet(txn, fid)
	if err != nil {
		return nil, err
	}
	return resolveEntries(txn, fid, set.PrefixMatches(Normalize(prefix)))
}

// FuzzySearch returns every mirror entry for fid whose normalized form is
// within the query's typo budget: one typo for queries of 1-4 runes after
// normalization, two for longer ones. Words in disabledTypoWords (already
// normalized) are matched exactly only, never fuzzily.
func FuzzySearch(txn reader, fid uint16, query string, disabledTypoWords map[string]bool) ([]Entry, error) {
	nq := Normalize(query)
	budget := typoBudget(nq)
	if disabledTypoWords[nq] {
		budget = 0
	}

	set, err := loadPrefixSet(txn, fid)
	if err != nil {
		return nil, err
	}
	matches := set.FuzzyMatches(nq, budget)
	out, err := resolveEntries(txn, fid, matches)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Normalized < out[j].Normalized })
	return out, nil
}

// All returns every mirror entry for fid, in ascending normalized order.
// Used by multi-word facet search matching, where every word of a query
// may need to be checked against every value's own word tokens.
func All(txn reader, fid uint16) ([]Entry, error) {
	set, err := loadPrefixSet(txn, fid)
	if err != nil {
		return nil, err
	}
	return resolveEntries(txn, fid, set.PrefixMatches(""))
}

// Words splits a normalized value into its whitespace-separated tokens,
// the unit facet search's multi-word matching strategies compare against.
func Words(normalized string) []string {
	return strings.Fields(normalized)
}

// MatchToken reports whether a single (already-normalized) query token
// matches a candidate word exactly, as a prefix, or within its typo
// budget, unless the token is exempted from typo tolerance.
func MatchToken(token, candidate string, disabledTypoWords map[string]bool) bool {
	if strings.HasPrefix(candidate, token) {
		return true
	}
	budget := typoBudget(token)
	if disabledTypoWords[token] {
		budget = 0
	}
	return levenshtein(token, candidate, budget+1) <= budget
}

func typoBudget(normalized string) int {
	n := len([]rune(normalized))
	if n <= 4 {
		return 1
	}
	return 2
}

// levenshtein computes edit distance, but gives up and returns cutoff+1 as
// soon as every remaining cell in the current row exceeds cutoff, since
// FuzzySearch only cares whether the distance is within a small budget.
func levenshtein(a, b string, cutoff int) int {
	ra, rb := []rune(a), []rune(b)
	if abs(len(ra)-len(rb)) > cutoff {
		return cutoff + 1
	}

	prev := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur := make([]int, len(rb)+1)
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			if cur[j] < rowMin {
				rowMin = cur[j]
			}
		}
		if rowMin > cutoff {
			return cutoff + 1
		}
		prev = cur
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
