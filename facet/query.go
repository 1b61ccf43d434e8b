package facet

import (
	"fmt"
	"sort"
	"strings"

	"facetcore/bitmap"
	"facetcore/codec"
	"facetcore/errs"
	"facetcore/facettree"
	"facetcore/kvstore"
	"facetcore/mirror"
)

// Filter returns the document ids whose value for fieldName falls within r.
func (ix *Index) Filter(fieldName string, r facettree.Range) (*bitmap.Set, error) {
	fid, fc, err := ix.checkFilterable(fieldName)
	if err != nil {
		return nil, err
	}
	ns := facettree.NamespaceFor(fc.ValueType)

	var out *bitmap.Set
	err = ix.db.View(func(txn *kvstore.ReadTxn) error {
		out, err = facettree.Filter(txn, ns, fid, r)
		return err
	})
	if errs.Is(err, errs.KindCorruptTree) {
		ix.logCorruptTree("Filter", fid, err)
	}
	return out, err
}

// FilterFloatRange is a typed convenience over Filter: it encodes the
// inclusive [lo, hi] numeric range and refuses a field that isn't
// float-typed with a wrong-type error.
func (ix *Index) FilterFloatRange(fieldName string, lo, hi float64) (*bitmap.Set, error) {
	_, fc, err := ix.checkFilterable(fieldName)
	if err != nil {
		return nil, err
	}
	if fc.ValueType != codec.TF64 {
		return nil, errs.New(errs.KindWrongType, fmt.Sprintf("field %q is not float-typed, numeric range filter needs a float field", fieldName))
	}
	loB, err := codec.EncodeF64Bound(lo)
	if err != nil {
		return nil, err
	}
	hiB, err := codec.EncodeF64Bound(hi)
	if err != nil {
		return nil, err
	}
	return ix.Filter(fieldName, facettree.Range{Lo: loB, LoSet: true, Hi: hiB, HiSet: true})
}

// FilterStringRange is the string-typed counterpart of FilterFloatRange.
func (ix *Index) FilterStringRange(fieldName, lo, hi string) (*bitmap.Set, error) {
	_, fc, err := ix.checkFilterable(fieldName)
	if err != nil {
		return nil, err
	}
	if fc.ValueType != codec.TString {
		return nil, errs.New(errs.KindWrongType, fmt.Sprintf("field %q is not string-typed, string range filter needs a string field", fieldName))
	}
	maxLen := ix.treeCfg.MaxFacetValueLength
	return ix.Filter(fieldName, facettree.Range{
		Lo: codec.EncodeStringBound(lo, maxLen), LoSet: true,
		Hi: codec.EncodeStringBound(hi, maxLen), HiSet: true,
	})
}

// MinMax returns the smallest (findMax=false) or largest facet value for
// fieldName among candidates.
func (ix *Index) MinMax(fieldName string, candidates *bitmap.Set, findMax bool) ([]byte, bool, error) {
	fid, fc, err := ix.checkFilterable(fieldName)
	if err != nil {
		return nil, false, err
	}
	ns := facettree.NamespaceFor(fc.ValueType)

	var bound []byte
	var ok bool
	err = ix.db.View(func(txn *kvstore.ReadTxn) error {
		bound, ok, err = facettree.MinMax(txn, ns, fid, candidates, findMax)
		return err
	})
	if errs.Is(err, errs.KindCorruptTree) {
		ix.logCorruptTree("MinMax", fid, err)
	}
	return bound, ok, err
}

// Sort returns every leaf of fieldName's tree in ascending value order.
func (ix *Index) Sort(fieldName string) ([]facettree.LeafEntry, error) {
	fid, fc, err := ix.checkFilterable(fieldName)
	if err != nil {
		return nil, err
	}
	ns := facettree.NamespaceFor(fc.ValueType)

	var out []facettree.LeafEntry
	err = ix.db.View(func(txn *kvstore.ReadTxn) error {
		out, err = facettree.Sort(txn, ns, fid)
		return err
	})
	if errs.Is(err, errs.KindCorruptTree) {
		ix.logCorruptTree("Sort", fid, err)
	}
	return out, err
}

// Distribution reports how many documents in candidates carry each
// distinct value of fieldName. The index's MaxValuesPerFacet applies unless
// cfg sets its own MaxValues; results are count-ordered when either the
// index's SortFacetValuesBy is SortCount or cfg.SortByCount is set.
func (ix *Index) Distribution(fieldName string, candidates *bitmap.Set, cfg facettree.DistributionConfig) ([]facettree.ValueCount, error) {
	fid, fc, err := ix.checkFilterable(fieldName)
	if err != nil {
		return nil, err
	}
	ns := facettree.NamespaceFor(fc.ValueType)

	if cfg.MaxValues == 0 && ix.cfg.MaxValuesPerFacet > 0 {
		cfg.MaxValues = ix.cfg.MaxValuesPerFacet
	}
	if ix.cfg.SortFacetValuesBy == SortCount {
		cfg.SortByCount = true
	}

	var out []facettree.ValueCount
	err = ix.db.View(func(txn *kvstore.ReadTxn) error {
		out, err = facettree.Distribution(txn, ns, fid, candidates, cfg)
		return err
	})
	if errs.Is(err, errs.KindCorruptTree) {
		ix.logCorruptTree("Distribution", fid, err)
	}
	return out, err
}

// Hit is one facet-search result: a distinct original value of the
// searched field and how many candidate documents carry it.
type Hit struct {
	Value string
	Count int
}

// FacetSearch returns hits for every distinct value of fieldName that
// matches query, restricted to values carried by at least one document
// in candidates (every document in the field, if candidates is nil).
// Multi-word queries are resolved against the index's MatchingStrategy;
// a single-word query always gets prefix-or-typo matching against the
// whole normalized value regardless of strategy. Hits are ordered and
// capped per the index's SortFacetValuesBy and MaxValuesPerFacet config.
func (ix *Index) FacetSearch(fieldName, query string, candidates *bitmap.Set) ([]Hit, error) {
	fid, _, err := ix.checkSearchable(fieldName)
	if err != nil {
		return nil, err
	}
	ns := facettree.NamespaceFor(codec.TString)

	queryWords := strings.Fields(mirror.Normalize(query))
	if len(queryWords) == 0 {
		return nil, nil
	}

	var hits []Hit
	err = ix.db.View(func(txn *kvstore.ReadTxn) error {
		entries, merr := ix.matchingEntries(txn, fid, queryWords)
		if merr != nil {
			return merr
		}
		for _, e := range entries {
			for _, orig := range e.Originals {
				bound := codec.EncodeStringBound(orig, ix.treeCfg.MaxFacetValueLength)
				docids, ferr := facettree.Filter(txn, ns, fid, facettree.Exact(bound))
				if ferr != nil {
					return fmt.Errorf("facet: facet search candidate check: %w", ferr)
				}
				count := docids.Cardinality()
				if candidates != nil {
					count = docids.IntersectionCardinality(candidates)
				}
				if count == 0 {
					continue
				}
				hits = append(hits, Hit{Value: orig, Count: count})
			}
		}
		return nil
	})
	if errs.Is(err, errs.KindCorruptTree) {
		ix.logCorruptTree("FacetSearch", fid, err)
	}
	if err != nil {
		return nil, err
	}

	sortHits(hits, ix.cfg.SortFacetValuesBy)
	if ix.cfg.MaxValuesPerFacet > 0 && len(hits) > ix.cfg.MaxValuesPerFacet {
		hits = hits[:ix.cfg.MaxValuesPerFacet]
	}
	return hits, nil
}

func sortHits(hits []Hit, by SortFacetValuesBy) {
	sort.Slice(hits, func(i, j int) bool {
		if by == SortCount && hits[i].Count != hits[j].Count {
			return hits[i].Count > hits[j].Count
		}
		return hits[i].Value < hits[j].Value
	})
}

// matchingEntries resolves queryWords against fid's mirror.
func (ix *Index) matchingEntries(txn *kvstore.ReadTxn, fid uint16, queryWords []string) ([]mirror.Entry, error) {
	if len(queryWords) == 1 {
		prefixed, err := mirror.Prefix(txn, fid, queryWords[0])
		if err != nil {
			return nil, err
		}
		fuzzy, err := mirror.FuzzySearch(txn, fid, queryWords[0], ix.disabledTypoWords)
		if err != nil {
			return nil, err
		}
		return mergeEntries(prefixed, fuzzy), nil
	}

	all, err := mirror.All(txn, fid)
	if err != nil {
		return nil, err
	}
	var out []mirror.Entry
	for _, e := range all {
		if ix.entryMatchesWords(e, queryWords) {
			out = append(out, e)
		}
	}
	return out, nil
}

// entryMatchesWords applies the index's MatchingStrategy to a multi-word
// query against one mirror entry's own normalized word tokens. MatchAll
// requires every query word to match some word of the entry; MatchLast
// requires every word but the last to match exactly, giving only the
// last word prefix-or-typo leniency.
func (ix *Index) entryMatchesWords(e mirror.Entry, queryWords []string) bool {
	candidateWords := mirror.Words(e.Normalized)
	if len(candidateWords) == 0 {
		return false
	}

	if ix.cfg.MatchingStrategy == MatchAll {
		for _, qw := range queryWords {
			if !anyTokenMatches(qw, candidateWords, ix.disabledTypoWords) {
				return false
			}
		}
		return true
	}

	for _, qw := range queryWords[:len(queryWords)-1] {
		exact := false
		for _, cw := range candidateWords {
			if cw == qw {
				exact = true
				break
			}
		}
		if !exact {
			return false
		}
	}
	last := queryWords[len(queryWords)-1]
	return anyTokenMatches(last, candidateWords, ix.disabledTypoWords)
}

func anyTokenMatches(token string, candidateWords []string, disabledTypoWords map[string]bool) bool {
	for _, cw := range candidateWords {
		if mirror.MatchToken(token, cw, disabledTypoWords) {
			return true
		}
	}
	return false
}

func mergeEntries(groups ...[]mirror.Entry) []mirror.Entry {
	seen := make(map[string]mirror.Entry)
	var order []string
	for _, g := range groups {
		for _, e := range g {
			if _, ok := seen[e.Normalized]; !ok {
				order = append(order, e.Normalized)
			}
			seen[e.Normalized] = e
		}
	}
	out := make([]mirror.Entry, len(order))
	for i, k := range order {
		out[i] = seen[k]
	}
	return out
}
