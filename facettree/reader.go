package facettree

import (
	"container/heap"
	"fmt"
	"sort"

	"facetcore/bitmap"
	"facetcore/codec"
	"facetcore/kvstore"
)

// Range is the public range-query shape: an inclusive [Lo, Hi] window over
// encoded facet-value bounds. LoSet/HiSet false mean that side is
// unbounded, mirroring an open-ended filter clause such as "price >= 10"
// or "price <= 99".
type Range struct {
	Lo    []byte
	LoSet bool
	Hi    []byte
	HiSet bool
}

func (r Range) toQuery() rangeQuery {
	return rangeQuery{Lo: r.Lo, LoSet: r.LoSet, Hi: r.Hi, HiSet: r.HiSet}
}

// Exact builds a Range matching exactly one bound.
func Exact(bound []byte) Range { return Range{Lo: bound, LoSet: true, Hi: bound, HiSet: true} }

// HighestLevel reports the highest populated level for fid, and whether
// the field has any data at all.
func HighestLevel(txn KV, ns kvstore.Namespace, fid uint16) (uint8, bool, error) {
	return highestLevel(txn, ns, fid)
}

// Filter returns the union of document ids whose facet value for fid falls
// within r, descending the tree from its highest level and only opening a
// node's children when the node is not already fully contained in r.
func Filter(txn KV, ns kvstore.Namespace, fid uint16, r Range) (*bitmap.Set, error) {
	out := bitmap.New()
	level, exists, err := highestLevel(txn, ns, fid)
	if err != nil {
		return nil, err
	}
	if !exists {
		return out, nil
	}
	if err := filterWithinWindow(txn, ns, fid, level, fullWindow(), r.toQuery(), out); err != nil {
		return nil, err
	}
	return out, nil
}

func filterWithinWindow(txn KV, ns kvstore.Namespace, fid uint16, level uint8, win window, q rangeQuery, out *bitmap.Set) error {
	ls, err := scanLevel(txn, ns, fid, level, win)
	if err != nil {
		return err
	}

	if level == 0 {
		for _, n := range ls.nodes {
			if q.containsBound(n.Key.Bound) {
				out.UnionInPlace(n.Value.DocIDs)
			}
		}
		return nil
	}

	for i, n := range ls.nodes {
		hiBound, hasHi := ls.nextBound(i)
		if !nodeOverlapsQuery(n.Key.Bound, hasHi, hiBound, q) {
			continue
		}
		if nodeFullyContained(n.Key.Bound, hasHi, hiBound, q) {
			out.UnionInPlace(n.Value.DocIDs)
			continue
		}
		sub := window{Lo: n.Key.Bound, LoSet: true, Hi: hiBound, HiSet: hasHi}
		if err := filterWithinWindow(txn, ns, fid, level-1, sub, q, out); err != nil {
			return err
		}
	}
	return nil
}

// MinMax returns the smallest (findMax=false) or largest (findMax=true)
// facet value for fid among documents in candidates, descending only the
// branch of the tree whose docids intersect candidates.
func MinMax(txn KV, ns kvstore.Namespace, fid uint16, candidates *bitmap.Set, findMax bool) ([]byte, bool, error) {
	level, exists, err := highestLevel(txn, ns, fid)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, nil
	}

	win := fullWindow()
	for {
		ls, err := scanLevel(txn, ns, fid, level, win)
		if err != nil {
			return nil, false, err
		}

		idx := -1
		if findMax {
			for i := len(ls.nodes) - 1; i >= 0; i-- {
				if ls.nodes[i].Value.DocIDs.IntersectionCardinality(candidates) > 0 {
					idx = i
					break
				}
			}
		} else {
			for i := range ls.nodes {
				if ls.nodes[i].Value.DocIDs.IntersectionCardinality(candidates) > 0 {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			return nil, false, nil
		}
		if level == 0 {
			return ls.nodes[idx].Key.Bound, true, nil
		}

		hiBound, hasHi := ls.nextBound(idx)
		win = window{Lo: ls.nodes[idx].Key.Bound, LoSet: true, Hi: hiBound, HiSet: hasHi}
		level--
	}
}

// LeafEntry is one in-order (value, docids) pair produced by Sort.
type LeafEntry struct {
	Bound  []byte
	DocIDs *bitmap.Set
}

// Sort returns every leaf of fid's tree in ascending value order. The
// relative order of documents sharing a value is unspecified, matching
// how a single leaf bundles them into one unordered bitmap.
func Sort(txn KV, ns kvstore.Namespace, fid uint16) ([]LeafEntry, error) {
	it, err := txn.PrefixIter(ns, codec.FieldLevelPrefix(fid, 0))
	if err != nil {
		return nil, fmt.Errorf("facettree: sort scan: %w", err)
	}
	defer it.Close()

	var out []LeafEntry
	for ok := it.First(); ok; ok = it.Next() {
		key, err := codec.DecodeNodeKey(it.Key())
		if err != nil {
			return nil, fmt.Errorf("facettree: decode leaf key: %w", err)
		}
		val, err := codec.DecodeNodeValue(it.Value())
		if err != nil {
			return nil, fmt.Errorf("facettree: decode leaf value: %w", err)
		}
		out = append(out, LeafEntry{Bound: key.Bound, DocIDs: val.DocIDs})
	}
	return out, nil
}

// ValueCount is one entry of a facet value distribution: a value and how
// many documents in the candidate set carry it.
type ValueCount struct {
	Bound []byte
	Count int
}

// DistributionConfig bounds and orders a Distribution call.
type DistributionConfig struct {
	MaxValues   int  // 0 means unlimited
	SortByCount bool // false sorts alphabetically by Bound (the default)
}

// Distribution reports, for every distinct facet value of fid that at
// least one document in candidates carries, how many of those documents
// carry it. Whole subtrees whose docids don't intersect candidates at all
// are pruned without being read.
func Distribution(txn KV, ns kvstore.Namespace, fid uint16, candidates *bitmap.Set, cfg DistributionConfig) ([]ValueCount, error) {
	level, exists, err := highestLevel(txn, ns, fid)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	var alpha []ValueCount
	stop := fmt.Errorf("facettree: distribution max values reached")

	var walk func(level uint8, win window) error
	walk = func(level uint8, win window) error {
		ls, err := scanLevel(txn, ns, fid, level, win)
		if err != nil {
			return err
		}
		for i, n := range ls.nodes {
			c := n.Value.DocIDs.IntersectionCardinality(candidates)
			if c == 0 {
				continue
			}
			if level == 0 {
				alpha = append(alpha, ValueCount{Bound: n.Key.Bound, Count: c})
				if !cfg.SortByCount && cfg.MaxValues > 0 && len(alpha) >= cfg.MaxValues {
					return stop
				}
				continue
			}
			hiBound, hasHi := ls.nextBound(i)
			sub := window{Lo: n.Key.Bound, LoSet: true, Hi: hiBound, HiSet: hasHi}
			if err := walk(level-1, sub); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(level, fullWindow()); err != nil && err != stop {
		return nil, err
	}

	if !cfg.SortByCount {
		if cfg.MaxValues > 0 && len(alpha) > cfg.MaxValues {
			alpha = alpha[:cfg.MaxValues]
		}
		return alpha, nil
	}
	return topByCount(alpha, cfg.MaxValues), nil
}

// countHeap is a bounded min-heap ordered by (Count asc, Bound desc) so the
// weakest entry is always at the root and gets evicted first, the same
// shape as a top-k selection with container/heap.
type countHeap []ValueCount

func (h countHeap) Len() int { return len(h) }
func (h countHeap) Less(i, j int) bool {
	if h[i].Count != h[j].Count {
		return h[i].Count < h[j].Count
	}
	return cmpBound(h[i].Bound, h[j].Bound) > 0
}
func (h countHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *countHeap) Push(x any)        { *h = append(*h, x.(ValueCount)) }
func (h *countHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

func topByCount(all []ValueCount, maxValues int) []ValueCount {
	if maxValues <= 0 || maxValues >= len(all) {
		sorted := append([]ValueCount(nil), all...)
		sortByCountDesc(sorted)
		return sorted
	}
	h := make(countHeap, 0, maxValues)
	for _, vc := range all {
		if h.Len() < maxValues {
			heap.Push(&h, vc)
			continue
		}
		if vc.Count > h[0].Count || (vc.Count == h[0].Count && cmpBound(vc.Bound, h[0].Bound) < 0) {
			heap.Pop(&h)
			heap.Push(&h, vc)
		}
	}
	out := make([]ValueCount, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(ValueCount)
	}
	return out
}

func sortByCountDesc(vs []ValueCount) {
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].Count != vs[j].Count {
			return vs[i].Count > vs[j].Count
		}
		return cmpBound(vs[i].Bound, vs[j].Bound) < 0
	})
}
