package facettree

import (
	"fmt"

	"facetcore/codec"
	"facetcore/errs"
	"facetcore/kvstore"
)

// node is one decoded (key, value) pair read from a level of the tree.
type node struct {
	Key   codec.NodeKey
	Value codec.NodeValue
}

// window restricts a level scan to the half-open key range [Lo, Hi) within
// one (fid, level). LoSet/HiSet false mean "unbounded on this side", i.e.
// scan from the start (resp. to the end) of that level.
type window struct {
	Lo    []byte
	LoSet bool
	Hi    []byte
	HiSet bool
}

func fullWindow() window { return window{} }

// levelScan is the ordered list of nodes found within a window, plus enough
// information to compute the exclusive upper bound of the last node's
// range (needed to tell whether it is fully contained in a query range).
type levelScan struct {
	nodes []node
	// hiBound is the left_bound of the node immediately following the scan
	// window, if any; hiIsOpen is false when the scan reached the end of
	// the level with no such following node.
	hiBound  []byte
	hiIsOpen bool
}

// nextBound returns the left_bound of the node following nodes[i] within
// this scan (the exclusive upper edge of nodes[i]'s value range), and
// whether such a bound exists at all.
func (ls *levelScan) nextBound(i int) ([]byte, bool) {
	if i+1 < len(ls.nodes) {
		return ls.nodes[i+1].Key.Bound, true
	}
	return ls.hiBound, ls.hiIsOpen
}

// scanLevel reads every node at (fid, level) whose key falls in win, plus
// the left_bound of the node immediately following the window (if the
// window's own upper edge doesn't already supply it), so callers can
// determine whether the window's last node is fully contained in a larger
// range without a second round trip.
func scanLevel(txn KV, ns kvstore.Namespace, fid uint16, level uint8, win window) (*levelScan, error) {
	from := codec.FieldLevelPrefix(fid, level)
	if win.LoSet {
		from = codec.NodeKey{FID: fid, Level: level, Bound: win.Lo}.Encode()
	}
	to := codec.FieldLevelPrefix(fid, level+1)
	if win.HiSet {
		to = codec.NodeKey{FID: fid, Level: level, Bound: win.Hi}.Encode()
	}

	it, err := txn.RangeIter(ns, from, to)
	if err != nil {
		return nil, fmt.Errorf("facettree: scan level %d: %w", level, err)
	}
	defer it.Close()

	ls := &levelScan{}
	for ok := it.First(); ok; ok = it.Next() {
		key, err := codec.DecodeNodeKey(it.Key())
		if err != nil {
			return nil, errs.Wrap(errs.KindCorruptTree, "decode node key during level scan", err)
		}
		val, err := codec.DecodeNodeValue(it.Value())
		if err != nil {
			return nil, errs.Wrap(errs.KindCorruptTree, "decode node value during level scan", err)
		}
		ls.nodes = append(ls.nodes, node{Key: key, Value: val})
	}

	if win.HiSet {
		ls.hiBound, ls.hiIsOpen = win.Hi, true
	} else {
		// The window's own upper edge was unbounded within this field's
		// level, so there is no following node at all.
		ls.hiBound, ls.hiIsOpen = nil, false
	}
	return ls, nil
}

// highestLevel finds the greatest level with at least one node for fid, by
// seeking to the last key under the field's prefix: since keys sort by
// FID then LEVEL then BOUND, the last key under a field prefix always
// belongs to its highest populated level.
func highestLevel(txn KV, ns kvstore.Namespace, fid uint16) (uint8, bool, error) {
	it, err := txn.PrefixIter(ns, codec.FieldPrefix(fid))
	if err != nil {
		return 0, false, fmt.Errorf("facettree: highest level scan: %w", err)
	}
	defer it.Close()

	if !it.Last() {
		return 0, false, nil
	}
	key, err := codec.DecodeNodeKey(it.Key())
	if err != nil {
		return 0, false, errs.Wrap(errs.KindCorruptTree, "decode node key during highest-level scan", err)
	}
	return key.Level, true, nil
}

// cmpBound orders two bounds the same way the underlying keys compare.
func cmpBound(a, b []byte) int { return codec.CompareBounds(a, b) }

// rangeQuery describes an inclusive [Lo, Hi] facet value range, with LoSet
// / HiSet false meaning "unbounded" on that side.
type rangeQuery struct {
	Lo    []byte
	LoSet bool
	Hi    []byte
	HiSet bool
}

func fullRange() rangeQuery { return rangeQuery{} }

// containsBound reports whether v falls within q (inclusive both ends).
func (q rangeQuery) containsBound(v []byte) bool {
	if q.LoSet && cmpBound(v, q.Lo) < 0 {
		return false
	}
	if q.HiSet && cmpBound(v, q.Hi) > 0 {
		return false
	}
	return true
}

// nodeOverlapsQuery reports whether the half-open value range [lo, hiBound)
// (hiBound exclusive, or +inf if !hasHi) intersects q.
func nodeOverlapsQuery(lo []byte, hasHi bool, hiBound []byte, q rangeQuery) bool {
	if q.HiSet && cmpBound(lo, q.Hi) > 0 {
		return false
	}
	if q.LoSet && hasHi && cmpBound(hiBound, q.Lo) <= 0 {
		return false
	}
	return true
}

// nodeFullyContained reports whether the half-open value range
// [lo, hiBound) is entirely within q, so its docids can be used directly
// without descending into its children.
func nodeFullyContained(lo []byte, hasHi bool, hiBound []byte, q rangeQuery) bool {
	if q.LoSet && cmpBound(lo, q.Lo) < 0 {
		return false
	}
	if !q.HiSet {
		return true
	}
	return hasHi && cmpBound(hiBound, q.Hi) <= 0
}
