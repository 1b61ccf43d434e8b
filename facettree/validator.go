package facettree

import (
	"fmt"

	"facetcore/bitmap"
	"facetcore/errs"
	"facetcore/kvstore"
)

// Validate walks fid's entire tree and checks the structural invariants a
// well-formed tree must hold: levels are contiguous from 0 to the highest
// populated level, each non-leaf node's Size matches its actual child
// count, each non-leaf node's docids equal the union of its children's
// docids, and the highest level holds fewer than cfg.MinLevelSize nodes
// (otherwise a level above it should exist). It returns a *errs.Error with
// Kind KindCorruptTree describing the first violation found, or nil.
func Validate(txn KV, ns kvstore.Namespace, fid uint16, cfg Config) error {
	top, exists, err := highestLevel(txn, ns, fid)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	levels := make([][]node, top+1)
	for level := uint8(0); level <= top; level++ {
		ls, err := scanLevel(txn, ns, fid, level, fullWindow())
		if err != nil {
			return err
		}
		levels[level] = ls.nodes
		if level > 0 && len(ls.nodes) == 0 {
			return errs.New(errs.KindCorruptTree, fmt.Sprintf("level %d is empty but level %d has nodes", level, level-1))
		}
	}

	if len(levels[top]) >= cfg.MinLevelSize && top < 255 {
		extra, err := scanLevel(txn, ns, fid, top+1, fullWindow())
		if err != nil {
			return err
		}
		if len(extra.nodes) == 0 {
			return errs.New(errs.KindCorruptTree, fmt.Sprintf(
				"top level %d has %d nodes (>= MinLevelSize %d) but no level above it exists",
				top, len(levels[top]), cfg.MinLevelSize))
		}
	}

	for level := uint8(1); level <= top; level++ {
		children := levels[level-1]
		ci := 0
		for _, parent := range levels[level] {
			if int(parent.Value.Size) == 0 {
				return errs.New(errs.KindCorruptTree, fmt.Sprintf(
					"non-leaf node at level %d bound %x has size 0", level, parent.Key.Bound))
			}
			if ci >= len(children) {
				return errs.New(errs.KindCorruptTree, fmt.Sprintf(
					"level %d node at bound %x has no matching children", level, parent.Key.Bound))
			}
			group := children[ci : ci+min(int(parent.Value.Size), len(children)-ci)]
			if len(group) != int(parent.Value.Size) {
				return errs.New(errs.KindCorruptTree, fmt.Sprintf(
					"level %d node at bound %x expects %d children, only %d remain",
					level, parent.Key.Bound, parent.Value.Size, len(group)))
			}
			if cmpBound(group[0].Key.Bound, parent.Key.Bound) != 0 {
				return errs.New(errs.KindCorruptTree, fmt.Sprintf(
					"level %d node bound %x does not match its first child's bound %x",
					level, parent.Key.Bound, group[0].Key.Bound))
			}
			union := unionOf(group)
			if union.Cardinality() != parent.Value.DocIDs.Cardinality() || union.Difference(parent.Value.DocIDs).Cardinality() != 0 {
				return errs.New(errs.KindCorruptTree, fmt.Sprintf(
					"level %d node at bound %x has docids not equal to the union of its children", level, parent.Key.Bound))
			}
			ci += int(parent.Value.Size)
		}
		if ci != len(children) {
			return errs.New(errs.KindCorruptTree, fmt.Sprintf(
				"level %d accounts for %d of %d children at level %d", level, ci, len(children), level-1))
		}
	}
	return nil
}

func unionOf(nodes []node) *bitmap.Set {
	out := bitmap.New()
	for _, n := range nodes {
		out.UnionInPlace(n.Value.DocIDs)
	}
	return out
}
