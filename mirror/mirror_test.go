package mirror

import (
	"testing"

	"github.com/stretchr/testify/require"

	"facetcore/kvstore"
)

func openTestDB(t *testing.T) *kvstore.DB {
	t.Helper()
	db, err := kvstore.OpenMem()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNormalizeFoldsCaseWidthAndAccents(t *testing.T) {
	require.Equal(t, "scifi", Normalize("SciFi"))
	require.Equal(t, "cafe", Normalize("café"))
	require.Equal(t, "scifi", Normalize("ｓｃｉｆｉ"))
}

func TestRebuildGroupsByNormalizedForm(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Update(func(txn *kvstore.WriteTxn) error {
		return Rebuild(txn, 1, 1000, []string{"Sci-Fi", "SCIFI", "Drama", "drama"})
	}))

	require.NoError(t, db.View(func(txn *kvstore.ReadTxn) error {
		entries, err := Prefix(txn, 1, "dram")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.ElementsMatch(t, []string{"Drama", "drama"}, entries[0].Originals)
		return nil
	}))
}

func TestRebuildClearsPriorEntries(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Update(func(txn *kvstore.WriteTxn) error {
		return Rebuild(txn, 1, 1000, []string{"action", "comedy"})
	}))
	require.NoError(t, db.Update(func(txn *kvstore.WriteTxn) error {
		return Rebuild(txn, 1, 1000, []string{"drama"})
	}))

	require.NoError(t, db.View(func(txn *kvstore.ReadTxn) error {
		entries, err := Prefix(txn, 1, "")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, "drama", entries[0].Normalized)
		return nil
	}))
}

func TestPrefixMatchesOnlyThatField(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Update(func(txn *kvstore.WriteTxn) error {
		if err := Rebuild(txn, 1, 1000, []string{"action", "adventure"}); err != nil {
			return err
		}
		return Rebuild(txn, 2, 1000, []string{"action-figure"})
	}))

	require.NoError(t, db.View(func(txn *kvstore.ReadTxn) error {
		entries, err := Prefix(txn, 1, "adv")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, "adventure", entries[0].Normalized)
		return nil
	}))
}

func TestFuzzySearchFindsOneTypo(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Update(func(txn *kvstore.WriteTxn) error {
		return Rebuild(txn, 1, 1000, []string{"animation", "action", "drama"})
	}))

	require.NoError(t, db.View(func(txn *kvstore.ReadTxn) error {
		entries, err := FuzzySearch(txn, 1, "anination", nil) // one substituted letter
		require.NoError(t, err)
		var got []string
		for _, e := range entries {
			got = append(got, e.Normalized)
		}
		require.Contains(t, got, "animation")
		return nil
	}))
}

func TestFuzzySearchRespectsDisabledWords(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Update(func(txn *kvstore.WriteTxn) error {
		return Rebuild(txn, 1, 1000, []string{"animation", "action"})
	}))

	require.NoError(t, db.View(func(txn *kvstore.ReadTxn) error {
		disabled := map[string]bool{"aniation": true}
		entries, err := FuzzySearch(txn, 1, "aniation", disabled)
		require.NoError(t, err)
		require.Empty(t, entries)
		return nil
	}))
}

func TestLevenshteinExactMatch(t *testing.T) {
	require.Equal(t, 0, levenshtein("drama", "drama", 3))
	require.Equal(t, 1, levenshtein("drama", "drams", 3))
}

func TestPrefixSetEncodeDecodeRoundTrips(t *testing.T) {
	set := BuildPrefixSet([]string{"action", "adventure", "comedy", "drama"})
	decoded, err := DecodePrefixSet(set.Encode())
	require.NoError(t, err)
	require.Equal(t, set.Len(), decoded.Len())
	require.Equal(t, set.PrefixMatches("a"), decoded.PrefixMatches("a"))
}

func TestPrefixSetPrefixMatches(t *testing.T) {
	set := BuildPrefixSet([]string{"action", "adventure", "comedy", "drama"})
	require.Equal(t, []string{"action", "adventure"}, set.PrefixMatches("a"))
	require.Equal(t, []string{"comedy"}, set.PrefixMatches("com"))
	require.Empty(t, set.PrefixMatches("zzz"))
}

func TestPrefixSetFuzzyMatches(t *testing.T) {
	set := BuildPrefixSet([]string{"action", "animation", "drama"})
	require.ElementsMatch(t, []string{"animation"}, set.FuzzyMatches("anination", 2))
	require.Empty(t, set.FuzzyMatches("anination", 0))
}

func TestAllListsEveryValueForField(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Update(func(txn *kvstore.WriteTxn) error {
		return Rebuild(txn, 1, 1000, []string{"Multiple Words", "Thriller"})
	}))

	require.NoError(t, db.View(func(txn *kvstore.ReadTxn) error {
		entries, err := All(txn, 1)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		require.Equal(t, []string{"multiple", "words"}, Words(entries[0].Normalized))
		return nil
	}))
}

func TestMatchTokenPrefixExactAndTypo(t *testing.T) {
	require.True(t, MatchToken("act", "action", nil))
	require.True(t, MatchToken("action", "action", nil))
	require.True(t, MatchToken("actoin", "action", nil))
	require.False(t, MatchToken("drama", "action", nil))
	require.False(t, MatchToken("actoin", "action", map[string]bool{"actoin": true}))
}
