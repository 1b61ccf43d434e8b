package facettree

import (
	"fmt"
	"sort"

	"facetcore/bitmap"
	"facetcore/codec"
	"facetcore/kvstore"
)

// LeafInput is one (value, docids) pair supplied to BulkBuild. Bulk build
// replaces the entire leaf level for fid with exactly this set, so callers
// must pass the complete post-update leaf contents, not a delta.
type LeafInput struct {
	Bound  []byte
	DocIDs *bitmap.Set
}

// groupNode is a node awaiting a NodeKey: either a leaf about to be written
// at level 0, or a parent summarizing a group of nodes at the level below.
type groupNode struct {
	Bound  []byte
	Size   uint8
	DocIDs *bitmap.Set
}

// BulkBuild replaces fid's entire tree (every level) from a freshly sorted
// set of leaves, the cheap path for large batches: it touches every leaf
// exactly once and then groups bottom-up, rather than editing an existing
// structure one tuple at a time.
func BulkBuild(txn KVWriter, ns kvstore.Namespace, fid uint16, cfg Config, leaves []LeafInput) error {
	sorted := append([]LeafInput(nil), leaves...)
	sort.Slice(sorted, func(i, j int) bool {
		return cmpBound(sorted[i].Bound, sorted[j].Bound) < 0
	})

	if err := clearField(txn, ns, fid); err != nil {
		return err
	}
	if len(sorted) == 0 {
		return nil
	}

	leafNodes := make([]groupNode, len(sorted))
	for i, l := range sorted {
		docids := l.DocIDs
		if docids == nil {
			docids = bitmap.New()
		}
		leafNodes[i] = groupNode{Bound: l.Bound, Size: 0, DocIDs: docids}
	}
	if err := writeLevel(txn, ns, fid, 0, leafNodes); err != nil {
		return err
	}
	return buildAncestorsFromLevel0(txn, ns, fid, cfg)
}

// buildAncestorsFromLevel0 reads back fid's current level-0 leaves, discards
// every level above it, and regroups bottom-up: each level's nodes are
// chunked into cfg.GroupSize-sized groups to form the level above, stopping
// once a level's node count falls below cfg.MinLevelSize (that level
// becomes the root; HighestLevel finds it by scanning for whatever is
// actually present, so no separate "root" pointer is needed).
func buildAncestorsFromLevel0(txn KVWriter, ns kvstore.Namespace, fid uint16, cfg Config) error {
	if err := clearLevelsAbove(txn, ns, fid, 0); err != nil {
		return err
	}

	current, err := readLevelAsGroupNodes(txn, ns, fid, 0)
	if err != nil {
		return err
	}

	level := uint8(0)
	for len(current) >= cfg.MinLevelSize {
		level++
		next := groupInto(current, cfg.GroupSize)
		if err := writeLevel(txn, ns, fid, level, next); err != nil {
			return err
		}
		current = next
	}
	return nil
}

// groupInto chunks nodes into groupSize-sized runs and summarizes each run
// as one parent node: its bound is the run's first child's bound (the
// invariant that a node's key equals its leftmost child's key), its size is
// the run length, and its docids are the union of the run's docids.
func groupInto(nodes []groupNode, groupSize uint8) []groupNode {
	var out []groupNode
	for i := 0; i < len(nodes); i += int(groupSize) {
		end := i + int(groupSize)
		if end > len(nodes) {
			end = len(nodes)
		}
		run := nodes[i:end]
		union := bitmap.New()
		for _, n := range run {
			union.UnionInPlace(n.DocIDs)
		}
		out = append(out, groupNode{Bound: run[0].Bound, Size: uint8(len(run)), DocIDs: union})
	}
	return out
}

func writeLevel(txn KVWriter, ns kvstore.Namespace, fid uint16, level uint8, nodes []groupNode) error {
	for _, n := range nodes {
		key := codec.NodeKey{FID: fid, Level: level, Bound: n.Bound}.Encode()
		val, err := codec.NodeValue{Size: n.Size, DocIDs: n.DocIDs}.Encode()
		if err != nil {
			return fmt.Errorf("facettree: encode node at level %d: %w", level, err)
		}
		if err := txn.Put(ns, key, val); err != nil {
			return fmt.Errorf("facettree: write node at level %d: %w", level, err)
		}
	}
	return nil
}

func readLevelAsGroupNodes(txn KV, ns kvstore.Namespace, fid uint16, level uint8) ([]groupNode, error) {
	ls, err := scanLevel(txn, ns, fid, level, fullWindow())
	if err != nil {
		return nil, err
	}
	out := make([]groupNode, len(ls.nodes))
	for i, n := range ls.nodes {
		out[i] = groupNode{Bound: n.Key.Bound, Size: n.Value.Size, DocIDs: n.Value.DocIDs}
	}
	return out, nil
}

// clearField deletes every node of fid at every level.
func clearField(txn KVWriter, ns kvstore.Namespace, fid uint16) error {
	return deletePrefix(txn, ns, codec.FieldPrefix(fid))
}

// clearLevelsAbove deletes every node of fid at a level strictly greater
// than keepLevel, leaving keepLevel (typically the leaves) untouched.
func clearLevelsAbove(txn KVWriter, ns kvstore.Namespace, fid uint16, keepLevel uint8) error {
	if keepLevel == 255 {
		return nil
	}
	from := codec.FieldLevelPrefix(fid, keepLevel+1)
	to := codec.FieldLevelPrefix(fid+1, 0)
	it, err := txn.RangeIter(ns, from, to)
	if err != nil {
		return fmt.Errorf("facettree: scan levels above %d: %w", keepLevel, err)
	}
	var keys [][]byte
	for ok := it.First(); ok; ok = it.Next() {
		keys = append(keys, it.Key())
	}
	if err := it.Close(); err != nil {
		return err
	}
	for _, k := range keys {
		if err := txn.Delete(ns, k); err != nil {
			return fmt.Errorf("facettree: delete stale ancestor node: %w", err)
		}
	}
	return nil
}

func deletePrefix(txn KVWriter, ns kvstore.Namespace, prefix []byte) error {
	it, err := txn.PrefixIter(ns, prefix)
	if err != nil {
		return fmt.Errorf("facettree: scan prefix for delete: %w", err)
	}
	var keys [][]byte
	for ok := it.First(); ok; ok = it.Next() {
		keys = append(keys, it.Key())
	}
	if err := it.Close(); err != nil {
		return err
	}
	for _, k := range keys {
		if err := txn.Delete(ns, k); err != nil {
			return fmt.Errorf("facettree: delete during prefix clear: %w", err)
		}
	}
	return nil
}
