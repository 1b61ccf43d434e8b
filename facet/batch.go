package facet

import (
	"fmt"

	"facetcore/bitmap"
	"facetcore/codec"
	"facetcore/facettree"
	"facetcore/kvstore"
	"facetcore/mirror"
)

// ApplyBatch applies a set of (value, docid, add/remove) tuple edits to one
// field. It runs the update selector to choose between a full rebuild and
// an incremental edit, applies it, and — for fields with facet search
// enabled — rebuilds the normalized mirror from the field's post-edit
// values, all inside a single write transaction.
func (ix *Index) ApplyBatch(fieldName string, edits []facettree.Edit) error {
	fid, fc, err := ix.checkFilterable(fieldName)
	if err != nil {
		return err
	}
	if len(edits) == 0 {
		return nil
	}
	ns := facettree.NamespaceFor(fc.ValueType)

	return ix.db.Update(func(txn *kvstore.WriteTxn) error {
		existing, err := facettree.Distinct(txn, ns, fid)
		if err != nil {
			return err
		}

		touched := make(map[string]bool, len(edits))
		for _, e := range edits {
			touched[string(e.Bound)] = true
		}

		if facettree.ShouldBulkRebuild(existing, len(touched)) {
			if err := bulkRebuildWithEdits(txn, ns, fid, ix.treeCfg, edits); err != nil {
				return err
			}
		} else if err := facettree.ApplyIncremental(txn, ns, fid, ix.treeCfg, edits); err != nil {
			return err
		}

		if fc.FacetSearch && fc.ValueType == codec.TString {
			if err := rebuildMirrorFromTree(txn, ns, fid, ix.treeCfg.MaxFacetValueLength); err != nil {
				return err
			}
		}
		return nil
	})
}

// bulkRebuildWithEdits reads fid's current complete leaf set, applies
// edits to it in memory, and rebuilds the whole tree from the result.
func bulkRebuildWithEdits(txn *kvstore.WriteTxn, ns kvstore.Namespace, fid uint16, cfg facettree.Config, edits []facettree.Edit) error {
	current, err := facettree.Sort(txn, ns, fid)
	if err != nil {
		return err
	}

	byBound := make(map[string]*bitmap.Set, len(current))
	order := make([]string, 0, len(current))
	for _, l := range current {
		byBound[string(l.Bound)] = l.DocIDs
		order = append(order, string(l.Bound))
	}

	for _, e := range edits {
		key := string(e.Bound)
		set, ok := byBound[key]
		if !ok {
			set = bitmap.New()
			byBound[key] = set
			order = append(order, key)
		}
		if e.Add {
			set.Add(e.DocID)
		} else {
			set.Remove(e.DocID)
		}
	}

	leaves := make([]facettree.LeafInput, 0, len(order))
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		if seen[k] {
			continue
		}
		seen[k] = true
		set := byBound[k]
		if set.IsEmpty() {
			continue
		}
		leaves = append(leaves, facettree.LeafInput{Bound: []byte(k), DocIDs: set})
	}

	return facettree.BulkBuild(txn, ns, fid, cfg, leaves)
}

func rebuildMirrorFromTree(txn *kvstore.WriteTxn, ns kvstore.Namespace, fid uint16, maxValueLen int) error {
	leaves, err := facettree.Sort(txn, ns, fid)
	if err != nil {
		return err
	}
	originals := make([]string, len(leaves))
	for i, l := range leaves {
		originals[i] = codec.DecodeStringBound(l.Bound)
	}
	if err := mirror.Rebuild(txn, fid, maxValueLen, originals); err != nil {
		return fmt.Errorf("facet: rebuild mirror for field %d: %w", fid, err)
	}
	return nil
}
