package facet

import (
	"testing"

	"github.com/stretchr/testify/require"

	"facetcore/bitmap"
	"facetcore/codec"
	"facetcore/errs"
	"facetcore/facettree"
)

func openGenreIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(Config{
		Tree: facettree.Config{GroupSize: 2, MinLevelSize: 3, MaxGroupSize: 4, MaxFacetValueLength: 1000},
		Fields: map[string]FieldConfig{
			"genres": {Filterable: true, FacetSearch: true, ValueType: codec.TString},
			"price":  {Filterable: true, ValueType: codec.TF64},
			"hidden": {},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })

	edits := []facettree.Edit{
		editStr(t, "action", 1, true), editStr(t, "action", 2, true),
		editStr(t, "adventure", 2, true), editStr(t, "adventure", 3, true),
		editStr(t, "animation", 4, true),
		editStr(t, "comedy", 1, true), editStr(t, "comedy", 4, true), editStr(t, "comedy", 5, true),
		editStr(t, "drama", 5, true), editStr(t, "drama", 6, true),
		editStr(t, "fantasy", 6, true),
		editStr(t, "scifi", 3, true), editStr(t, "scifi", 6, true), editStr(t, "scifi", 7, true),
	}
	require.NoError(t, ix.ApplyBatch("genres", edits))

	priceEdits := []facettree.Edit{
		editF64(t, 9.99, 1, true),
		editF64(t, 19.99, 2, true),
		editF64(t, 19.99, 3, true),
		editF64(t, 29.99, 4, true),
	}
	require.NoError(t, ix.ApplyBatch("price", priceEdits))

	return ix
}

func editStr(t *testing.T, value string, docID uint32, add bool) facettree.Edit {
	t.Helper()
	return facettree.Edit{Bound: codec.EncodeStringBound(value, 1000), DocID: docID, Add: add}
}

func editF64(t *testing.T, value float64, docID uint32, add bool) facettree.Edit {
	t.Helper()
	b, err := codec.EncodeF64Bound(value)
	require.NoError(t, err)
	return facettree.Edit{Bound: b, DocID: docID, Add: add}
}

func TestFilterExactValue(t *testing.T) {
	ix := openGenreIndex(t)
	bound := codec.EncodeStringBound("comedy", 1000)
	got, err := ix.Filter("genres", facettree.Exact(bound))
	require.NoError(t, err)
	require.ElementsMatch(t, []uint32{1, 4, 5}, got.ToSlice())
}

func TestFilterNotFilterableField(t *testing.T) {
	ix := openGenreIndex(t)
	_, err := ix.Filter("hidden", facettree.Exact([]byte("x")))
	require.True(t, errs.Is(err, errs.KindNotFilterable))
}

func TestNumericRangeFilter(t *testing.T) {
	ix := openGenreIndex(t)
	lo, err := codec.EncodeF64Bound(10)
	require.NoError(t, err)
	hi, err := codec.EncodeF64Bound(25)
	require.NoError(t, err)
	got, err := ix.Filter("price", facettree.Range{Lo: lo, LoSet: true, Hi: hi, HiSet: true})
	require.NoError(t, err)
	require.ElementsMatch(t, []uint32{2, 3}, got.ToSlice())
}

func TestTypedRangeFilterRejectsWrongType(t *testing.T) {
	ix := openGenreIndex(t)

	_, err := ix.FilterFloatRange("genres", 1, 2)
	require.True(t, errs.Is(err, errs.KindWrongType))

	_, err = ix.FilterStringRange("price", "a", "z")
	require.True(t, errs.Is(err, errs.KindWrongType))
}

func TestNumericRangeMinAndMax(t *testing.T) {
	ix, err := Open(Config{
		Fields: map[string]FieldConfig{
			"price": {Filterable: true, ValueType: codec.TF64},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })

	// docs 1..6 priced 1.0, 2.5, 2.5, 10.0, 10.0, 42.0
	require.NoError(t, ix.ApplyBatch("price", []facettree.Edit{
		editF64(t, 1.0, 1, true),
		editF64(t, 2.5, 2, true), editF64(t, 2.5, 3, true),
		editF64(t, 10.0, 4, true), editF64(t, 10.0, 5, true),
		editF64(t, 42.0, 6, true),
	}))

	got, err := ix.FilterFloatRange("price", 2.0, 10.5)
	require.NoError(t, err)
	require.ElementsMatch(t, []uint32{2, 3, 4, 5}, got.ToSlice())

	candidates := bitmap.FromSlice([]uint32{1, 2, 6})
	minBound, ok, err := ix.MinMax("price", candidates, false)
	require.NoError(t, err)
	require.True(t, ok)
	minVal, err := codec.DecodeF64Bound(minBound)
	require.NoError(t, err)
	require.Equal(t, 1.0, minVal)

	maxBound, ok, err := ix.MinMax("price", candidates, true)
	require.NoError(t, err)
	require.True(t, ok)
	maxVal, err := codec.DecodeF64Bound(maxBound)
	require.NoError(t, err)
	require.Equal(t, 42.0, maxVal)
}

func TestDistributionAlphaOrder(t *testing.T) {
	ix := openGenreIndex(t)
	all := bitmap.FromSlice([]uint32{1, 2, 3, 4, 5, 6, 7})
	vc, err := ix.Distribution("genres", all, facettree.DistributionConfig{})
	require.NoError(t, err)
	require.Len(t, vc, 7)
	require.Equal(t, "action", string(vc[0].Bound))
}

func TestDistributionByCountRespectsConfiguredCap(t *testing.T) {
	ix, err := Open(Config{
		Tree:              facettree.Config{GroupSize: 2, MinLevelSize: 3, MaxGroupSize: 4, MaxFacetValueLength: 1000},
		MaxValuesPerFacet: 2,
		SortFacetValuesBy: SortCount,
		Fields: map[string]FieldConfig{
			"genres": {Filterable: true, ValueType: codec.TString},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })

	edits := []facettree.Edit{
		editStr(t, "action", 1, true), editStr(t, "action", 2, true),
		editStr(t, "comedy", 1, true), editStr(t, "comedy", 4, true), editStr(t, "comedy", 5, true),
		editStr(t, "drama", 5, true),
	}
	require.NoError(t, ix.ApplyBatch("genres", edits))

	all := bitmap.FromSlice([]uint32{1, 2, 4, 5})
	vc, err := ix.Distribution("genres", all, facettree.DistributionConfig{})
	require.NoError(t, err)
	require.Len(t, vc, 2)
	require.Equal(t, "comedy", string(vc[0].Bound))
}

func TestMinMaxOverCandidates(t *testing.T) {
	ix := openGenreIndex(t)
	candidates := bitmap.FromSlice([]uint32{2, 3, 6})
	min, ok, err := ix.MinMax("genres", candidates, false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "adventure", string(min))

	max, ok, err := ix.MinMax("genres", candidates, true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "scifi", string(max))
}

func TestFacetSearchPrefixAndTypo(t *testing.T) {
	ix := openGenreIndex(t)

	hits, err := ix.FacetSearch("genres", "anim", nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "animation", hits[0].Value)
	require.Equal(t, 1, hits[0].Count)

	hits, err = ix.FacetSearch("genres", "anination", nil)
	require.NoError(t, err)
	var got []string
	for _, h := range hits {
		got = append(got, h.Value)
	}
	require.Contains(t, got, "animation")
}

func TestFacetSearchRestrictedToCandidates(t *testing.T) {
	ix := openGenreIndex(t)

	withDoc4 := bitmap.FromSlice([]uint32{4})
	hits, err := ix.FacetSearch("genres", "com", withDoc4)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "comedy", hits[0].Value)
	require.Equal(t, 1, hits[0].Count)

	withoutComedy := bitmap.FromSlice([]uint32{2, 3})
	hits, err = ix.FacetSearch("genres", "com", withoutComedy)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestFacetSearchOrdersAndCountsLikeTopLevelSpec(t *testing.T) {
	ix, err := Open(Config{
		Fields: map[string]FieldConfig{
			"genres": {Filterable: true, FacetSearch: true, ValueType: codec.TString},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })

	edits := []facettree.Edit{
		editStr(t, "Action", 1, true), editStr(t, "Action", 2, true), editStr(t, "Action", 3, true),
		editStr(t, "Adventure", 4, true), editStr(t, "Adventure", 5, true),
	}
	require.NoError(t, ix.ApplyBatch("genres", edits))

	hits, err := ix.FacetSearch("genres", "a", nil)
	require.NoError(t, err)
	require.Equal(t, []Hit{{Value: "Action", Count: 3}, {Value: "Adventure", Count: 2}}, hits)
}

func TestFacetSearchMaxValuesPerFacetCapsHits(t *testing.T) {
	ix, err := Open(Config{
		MaxValuesPerFacet: 1,
		Fields: map[string]FieldConfig{
			"genres": {Filterable: true, FacetSearch: true, ValueType: codec.TString},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })

	edits := []facettree.Edit{
		editStr(t, "Action", 1, true), editStr(t, "Action", 2, true), editStr(t, "Action", 3, true),
		editStr(t, "Adventure", 4, true), editStr(t, "Adventure", 5, true),
	}
	require.NoError(t, ix.ApplyBatch("genres", edits))

	hits, err := ix.FacetSearch("genres", "a", nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestFacetSearchSortByCountOrdersDescending(t *testing.T) {
	ix, err := Open(Config{
		SortFacetValuesBy: SortCount,
		Fields: map[string]FieldConfig{
			"genres": {Filterable: true, FacetSearch: true, ValueType: codec.TString},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })

	edits := []facettree.Edit{
		editStr(t, "Action", 1, true), editStr(t, "Action", 2, true), editStr(t, "Action", 3, true),
		editStr(t, "Adventure", 4, true), editStr(t, "Adventure", 5, true),
	}
	require.NoError(t, ix.ApplyBatch("genres", edits))

	hits, err := ix.FacetSearch("genres", "a", nil)
	require.NoError(t, err)
	require.Equal(t, []Hit{{Value: "Action", Count: 3}, {Value: "Adventure", Count: 2}}, hits)
}

func TestFacetSearchMultiWordMatchingStrategy(t *testing.T) {
	open := func(strategy MatchingStrategy) *Index {
		ix, err := Open(Config{
			MatchingStrategy: strategy,
			Fields: map[string]FieldConfig{
				"genres": {Filterable: true, FacetSearch: true, ValueType: codec.TString},
			},
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = ix.Close() })
		require.NoError(t, ix.ApplyBatch("genres", []facettree.Edit{
			editStr(t, "Multiple Words", 1, true),
			editStr(t, "Thriller", 2, true),
		}))
		return ix
	}

	ixLast := open(MatchLast)
	hits, err := ixLast.FacetSearch("genres", "multiple word", nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "Multiple Words", hits[0].Value)

	hits, err = ixLast.FacetSearch("genres", "multpile words", nil)
	require.NoError(t, err)
	require.Empty(t, hits)

	ixAll := open(MatchAll)
	hits, err = ixAll.FacetSearch("genres", "multpile word", nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "Multiple Words", hits[0].Value)
}

func TestFacetSearchDisabledAtIndexLevel(t *testing.T) {
	ix, err := Open(Config{
		SearchDisabled: true,
		Fields: map[string]FieldConfig{
			"genres": {Filterable: true, FacetSearch: true, ValueType: codec.TString},
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })

	_, err = ix.FacetSearch("genres", "com", nil)
	require.True(t, errs.Is(err, errs.KindSearchDisabled))
}

func TestFacetSearchNotConfiguredField(t *testing.T) {
	ix := openGenreIndex(t)
	_, err := ix.FacetSearch("price", "1", nil)
	require.True(t, errs.Is(err, errs.KindNotFilterable))
}

func TestIncrementalThenBulkRebuildRoundTrips(t *testing.T) {
	ix := openGenreIndex(t)

	require.NoError(t, ix.ApplyBatch("genres", []facettree.Edit{editStr(t, "comedy", 1, false)}))
	got, err := ix.Filter("genres", facettree.Exact(codec.EncodeStringBound("comedy", 1000)))
	require.NoError(t, err)
	require.ElementsMatch(t, []uint32{4, 5}, got.ToSlice())

	var bulk []facettree.Edit
	for i := uint32(100); i < 150; i++ {
		bulk = append(bulk, editStr(t, "horror", i, true))
	}
	require.NoError(t, ix.ApplyBatch("genres", bulk))

	sorted, err := ix.Sort("genres")
	require.NoError(t, err)
	require.Equal(t, "horror", codec.DecodeStringBound(sorted[6].Bound))

	hits, err := ix.FacetSearch("genres", "horr", nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "horror", hits[0].Value)
	require.Equal(t, 50, hits[0].Count)
	require.Len(t, sorted[6].DocIDs.ToSlice(), 50)
}
