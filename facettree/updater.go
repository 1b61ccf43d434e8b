package facettree

import (
	"fmt"
	"sort"

	"facetcore/bitmap"
	"facetcore/codec"
	"facetcore/errs"
	"facetcore/kvstore"
)

// Edit is one document-to-value tuple change: add DocID to (or remove it
// from) the facet value Bound.
type Edit struct {
	Bound []byte
	DocID uint32
	Add   bool // false means remove
}

// leafOutcome classifies what a single leaf edit did to level 0.
type leafOutcome uint8

const (
	leafNoop     leafOutcome = iota // removing from a value that doesn't exist
	leafModified                    // toggled a docid on an existing leaf
	leafInserted                    // created a new distinct value
	leafDeleted                     // emptied a value out
)

// ApplyIncremental applies a batch of single-document edits to fid's
// existing tree in place, the cheap path for small deltas chosen by
// ShouldBulkRebuild. Edits are processed in ascending value order; each
// one touches its leaf and then walks the ancestor path upward, keeping
// every node's size, key and docids consistent with its children. A node
// whose child count exceeds cfg.MaxGroupSize is split at the median
// child; a node left with fewer than two children is merged into its
// smaller adjacent sibling. Splits and merges propagate upward, and the
// set of levels itself grows or shrinks once the path is settled.
func ApplyIncremental(txn KVWriter, ns kvstore.Namespace, fid uint16, cfg Config, edits []Edit) error {
	sorted := append([]Edit(nil), edits...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return cmpBound(sorted[i].Bound, sorted[j].Bound) < 0
	})

	for _, e := range sorted {
		outcome, err := applyLeafEdit(txn, ns, fid, e)
		if err != nil {
			return err
		}
		if outcome == leafNoop {
			continue
		}
		if err := rebalance(txn, ns, fid, cfg, e.Bound); err != nil {
			return err
		}
	}
	return nil
}

// applyLeafEdit updates the single leaf node for e.Bound and reports what
// kind of change it made.
func applyLeafEdit(txn KVWriter, ns kvstore.Namespace, fid uint16, e Edit) (leafOutcome, error) {
	key := codec.NodeKey{FID: fid, Level: 0, Bound: e.Bound}.Encode()
	raw, ok, err := txn.Get(ns, key)
	if err != nil {
		return leafNoop, fmt.Errorf("facettree: read leaf: %w", err)
	}

	var leaf codec.NodeValue
	if ok {
		leaf, err = codec.DecodeNodeValue(raw)
		if err != nil {
			return leafNoop, errs.Wrap(errs.KindCorruptTree, "decode leaf during incremental edit", err)
		}
	} else {
		leaf = codec.NodeValue{Size: 0, DocIDs: bitmap.New()}
	}

	if e.Add {
		leaf.DocIDs.Add(e.DocID)
		if err := putLeaf(txn, ns, key, leaf); err != nil {
			return leafNoop, err
		}
		if ok {
			return leafModified, nil
		}
		return leafInserted, nil
	}

	if !ok {
		return leafNoop, nil
	}
	leaf.DocIDs.Remove(e.DocID)
	if leaf.DocIDs.IsEmpty() {
		if err := txn.Delete(ns, key); err != nil {
			return leafNoop, fmt.Errorf("facettree: delete emptied leaf: %w", err)
		}
		return leafDeleted, nil
	}
	if err := putLeaf(txn, ns, key, leaf); err != nil {
		return leafNoop, err
	}
	return leafModified, nil
}

func putLeaf(txn KVWriter, ns kvstore.Namespace, key []byte, leaf codec.NodeValue) error {
	val, err := leaf.Encode()
	if err != nil {
		return fmt.Errorf("facettree: encode leaf: %w", err)
	}
	if err := txn.Put(ns, key, val); err != nil {
		return fmt.Errorf("facettree: write leaf: %w", err)
	}
	return nil
}

// rebalance walks the ancestor path of one settled leaf edit from level 1
// to the top, refitting the node covering each dirty bound against its
// actual children. A refit that changes the level's key set (split, merge,
// subtree deletion, key rewrite) marks the affected bounds dirty for the
// level above, so structural changes propagate as far as they need to and
// no further. Once the path is consistent, adjustHeight settles how many
// levels the field should have.
func rebalance(txn KVWriter, ns kvstore.Namespace, fid uint16, cfg Config, editBound []byte) error {
	top, exists, err := highestLevel(txn, ns, fid)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	dirty := [][]byte{editBound}
	for level := uint8(1); level <= top; level++ {
		var next [][]byte
		seen := make(map[string]bool)
		for _, b := range dirty {
			out, err := refitCovering(txn, ns, fid, cfg, level, b)
			if err != nil {
				return err
			}
			for _, nb := range out {
				if !seen[string(nb)] {
					seen[string(nb)] = true
					next = append(next, nb)
				}
			}
		}
		dirty = next
	}
	return adjustHeight(txn, ns, fid, cfg)
}

// refitCovering brings the node covering bound at level back in line with
// its children and returns the bounds the level above must refit against.
// Covering means the greatest key with left_bound <= bound; a bound below
// every key is absorbed by the level's first node, whose key is then
// rewritten downward to keep left_bound(node) == left_bound(first child).
func refitCovering(txn KVWriter, ns kvstore.Namespace, fid uint16, cfg Config, level uint8, bound []byte) ([][]byte, error) {
	ls, err := scanLevel(txn, ns, fid, level, fullWindow())
	if err != nil {
		return nil, err
	}
	nodes := ls.nodes
	if len(nodes) == 0 {
		// The level emptied out from under us; keep propagating so higher
		// levels still get their refit before adjustHeight drops them.
		return [][]byte{bound}, nil
	}

	idx := coveringIndex(nodes, bound)
	if idx < 0 {
		idx = 0
	}

	old := nodes[idx]
	winLo := old.Key.Bound
	if cmpBound(bound, winLo) < 0 {
		winLo = bound
	}
	hiBound, hasHi := boundAfter(nodes, idx)
	children, err := childWindow(txn, ns, fid, level-1, winLo, hiBound, hasHi)
	if err != nil {
		return nil, err
	}

	switch {
	case len(children) == 0:
		// The whole subtree emptied: the node goes with it.
		if err := deleteNode(txn, ns, fid, level, old.Key.Bound); err != nil {
			return nil, err
		}
		return [][]byte{old.Key.Bound}, nil

	case len(children) > int(cfg.MaxGroupSize):
		return splitNode(txn, ns, fid, level, old, children)

	case len(children) < 2 && len(nodes) > 1:
		return mergeWithSibling(txn, ns, fid, cfg, level, nodes, idx, children)

	default:
		fresh := summarize(children)
		if err := replaceNode(txn, ns, fid, level, old.Key.Bound, fresh); err != nil {
			return nil, err
		}
		// The fresh bound goes first: when a key moved down (a new smallest
		// value), the parent must be refit against the new bound before the
		// stale one, or its child window briefly misses the moved node.
		return [][]byte{fresh.Bound, old.Key.Bound}, nil
	}
}

// splitNode replaces old with two nodes cut at the median child: the lower
// half keeps old's position, the upper half starts at the median child's
// bound. The level gains a key, which the caller propagates as an
// insertion into the parent's range.
func splitNode(txn KVWriter, ns kvstore.Namespace, fid uint16, level uint8, old node, children []groupNode) ([][]byte, error) {
	half := len(children) / 2
	lower := summarize(children[:half])
	upper := summarize(children[half:])
	if err := replaceNode(txn, ns, fid, level, old.Key.Bound, lower); err != nil {
		return nil, err
	}
	if err := writeLevel(txn, ns, fid, level, []groupNode{upper}); err != nil {
		return nil, err
	}
	return [][]byte{lower.Bound, upper.Bound}, nil
}

// mergeWithSibling absorbs an underfull node into its smaller adjacent
// sibling. Both old keys are dropped and the combined children are
// re-summarized under the leftmost position; a combination that overshoots
// cfg.MaxGroupSize is split again immediately. The merged pair may have
// belonged to two different parents, so both old bounds go back to the
// caller for refitting.
func mergeWithSibling(txn KVWriter, ns kvstore.Namespace, fid uint16, cfg Config, level uint8, nodes []node, idx int, children []groupNode) ([][]byte, error) {
	sibIdx := idx - 1
	if sibIdx < 0 {
		sibIdx = idx + 1
	} else if idx+1 < len(nodes) && nodes[idx+1].Value.Size < nodes[sibIdx].Value.Size {
		sibIdx = idx + 1
	}
	left, right := idx, sibIdx
	if sibIdx < idx {
		left, right = sibIdx, idx
	}

	hiBound, hasHi := boundAfter(nodes, right)
	combined, err := childWindow(txn, ns, fid, level-1, nodes[left].Key.Bound, hiBound, hasHi)
	if err != nil {
		return nil, err
	}
	if len(combined) == 0 {
		return nil, errs.New(errs.KindCorruptTree, "merge found no children under either sibling")
	}

	if err := deleteNode(txn, ns, fid, level, nodes[left].Key.Bound); err != nil {
		return nil, err
	}
	if err := deleteNode(txn, ns, fid, level, nodes[right].Key.Bound); err != nil {
		return nil, err
	}

	var merged []groupNode
	if len(combined) > int(cfg.MaxGroupSize) {
		half := len(combined) / 2
		merged = []groupNode{summarize(combined[:half]), summarize(combined[half:])}
	} else {
		merged = []groupNode{summarize(combined)}
	}
	if err := writeLevel(txn, ns, fid, level, merged); err != nil {
		return nil, err
	}
	return [][]byte{nodes[left].Key.Bound, nodes[right].Key.Bound}, nil
}

// adjustHeight settles how many levels the field has once the ancestor
// path is consistent: the top level is dropped while the level below it
// has shrunk under cfg.MinLevelSize, and a new top is grouped from the
// current one while it has grown to cfg.MinLevelSize keys or more (the
// "root split" case, and the first promotion of a leaf-only field).
func adjustHeight(txn KVWriter, ns kvstore.Namespace, fid uint16, cfg Config) error {
	top, exists, err := highestLevel(txn, ns, fid)
	if err != nil || !exists {
		return err
	}

	for top > 0 {
		below, err := countLevel(txn, ns, fid, top-1)
		if err != nil {
			return err
		}
		if below >= cfg.MinLevelSize {
			break
		}
		if err := deletePrefix(txn, ns, codec.FieldLevelPrefix(fid, top)); err != nil {
			return err
		}
		top--
	}

	for top < 255 {
		nodes, err := readLevelAsGroupNodes(txn, ns, fid, top)
		if err != nil {
			return err
		}
		if len(nodes) < cfg.MinLevelSize {
			break
		}
		top++
		if err := writeLevel(txn, ns, fid, top, groupInto(nodes, cfg.GroupSize)); err != nil {
			return err
		}
	}
	return nil
}

// coveringIndex returns the index of the greatest node with
// left_bound <= bound, or -1 when bound sorts before every node.
func coveringIndex(nodes []node, bound []byte) int {
	i := sort.Search(len(nodes), func(i int) bool {
		return cmpBound(nodes[i].Key.Bound, bound) > 0
	})
	return i - 1
}

// boundAfter returns the left_bound of the node following nodes[idx], the
// exclusive upper edge of nodes[idx]'s value range within its level.
func boundAfter(nodes []node, idx int) ([]byte, bool) {
	if idx+1 < len(nodes) {
		return nodes[idx+1].Key.Bound, true
	}
	return nil, false
}

// childWindow reads the nodes of childLevel whose keys fall in
// [lo, hi) (unbounded above when hasHi is false): exactly the children of
// the node whose range that window is.
func childWindow(txn KV, ns kvstore.Namespace, fid uint16, childLevel uint8, lo, hi []byte, hasHi bool) ([]groupNode, error) {
	win := window{Lo: lo, LoSet: true}
	if hasHi {
		win.Hi, win.HiSet = hi, true
	}
	ls, err := scanLevel(txn, ns, fid, childLevel, win)
	if err != nil {
		return nil, err
	}
	out := make([]groupNode, len(ls.nodes))
	for i, n := range ls.nodes {
		out[i] = groupNode{Bound: n.Key.Bound, Size: n.Value.Size, DocIDs: n.Value.DocIDs}
	}
	return out, nil
}

// summarize collapses a run of children into their parent node: the run's
// first bound, its length, and the union of its docids.
func summarize(children []groupNode) groupNode {
	union := bitmap.New()
	for _, c := range children {
		union.UnionInPlace(c.DocIDs)
	}
	return groupNode{Bound: children[0].Bound, Size: uint8(len(children)), DocIDs: union}
}

// replaceNode writes fresh at its own bound, dropping the key at oldBound
// first when the node's position moved (its first child changed).
func replaceNode(txn KVWriter, ns kvstore.Namespace, fid uint16, level uint8, oldBound []byte, fresh groupNode) error {
	if cmpBound(fresh.Bound, oldBound) != 0 {
		if err := deleteNode(txn, ns, fid, level, oldBound); err != nil {
			return err
		}
	}
	return writeLevel(txn, ns, fid, level, []groupNode{fresh})
}

func deleteNode(txn KVWriter, ns kvstore.Namespace, fid uint16, level uint8, bound []byte) error {
	key := codec.NodeKey{FID: fid, Level: level, Bound: bound}.Encode()
	if err := txn.Delete(ns, key); err != nil {
		return fmt.Errorf("facettree: delete node at level %d: %w", level, err)
	}
	return nil
}

func countLevel(txn KV, ns kvstore.Namespace, fid uint16, level uint8) (int, error) {
	ls, err := scanLevel(txn, ns, fid, level, fullWindow())
	if err != nil {
		return 0, err
	}
	return len(ls.nodes), nil
}
