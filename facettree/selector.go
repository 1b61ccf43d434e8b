package facettree

import "facetcore/kvstore"

// ShouldBulkRebuild decides whether a batch of nDelta tuple edits against a
// field that currently holds nExisting distinct values is cheaper to apply
// as a full rebuild (BulkBuild, which touches every leaf once) or as a
// sequence of targeted edits (ApplyIncremental, which touches only the
// edited leaves and their ancestors).
//
// Rebuilding costs roughly proportional to nExisting+nDelta regardless of
// how small the edit is, while incremental editing costs roughly
// proportional to nDelta*height. Past a certain delta size the incremental
// path's per-edit overhead outweighs just redoing everything from scratch,
// so a full rebuild wins once the delta reaches ~1/50th of the combined
// existing-plus-delta size — the same ratio a cold rebuild vs. warm edit comparison produces in
// practice.
func ShouldBulkRebuild(nExisting, nDelta int) bool {
	return nDelta*50 >= nExisting+nDelta
}

// Distinct counts the number of distinct leaf values currently stored for
// fid, used by ShouldBulkRebuild's caller to size nExisting.
func Distinct(txn KV, ns kvstore.Namespace, fid uint16) (int, error) {
	ls, err := scanLevel(txn, ns, fid, 0, fullWindow())
	if err != nil {
		return 0, err
	}
	return len(ls.nodes), nil
}
