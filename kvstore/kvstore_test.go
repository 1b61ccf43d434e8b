package kvstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMem()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPutGetDelete(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Update(func(txn *WriteTxn) error {
		return txn.Put(NSFacetString, []byte("a"), []byte("1"))
	}))

	require.NoError(t, db.View(func(txn *ReadTxn) error {
		v, ok, err := txn.Get(NSFacetString, []byte("a"))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("1"), v)
		return nil
	}))

	require.NoError(t, db.Update(func(txn *WriteTxn) error {
		return txn.Delete(NSFacetString, []byte("a"))
	}))

	require.NoError(t, db.View(func(txn *ReadTxn) error {
		_, ok, err := txn.Get(NSFacetString, []byte("a"))
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	}))
}

func TestNamespaceIsolation(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Update(func(txn *WriteTxn) error {
		require.NoError(t, txn.Put(NSFacetString, []byte("x"), []byte("string-ns")))
		require.NoError(t, txn.Put(NSFacetF64, []byte("x"), []byte("f64-ns")))
		return nil
	}))

	require.NoError(t, db.View(func(txn *ReadTxn) error {
		v, ok, err := txn.Get(NSFacetString, []byte("x"))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("string-ns"), v)

		v, ok, err = txn.Get(NSFacetF64, []byte("x"))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("f64-ns"), v)
		return nil
	}))
}

func TestPrefixIterOrder(t *testing.T) {
	db := openTestDB(t)
	keys := [][]byte{[]byte("ab1"), []byte("ab2"), []byte("ac1"), []byte("b1")}
	require.NoError(t, db.Update(func(txn *WriteTxn) error {
		for _, k := range keys {
			if err := txn.Put(NSFacetString, k, k); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, db.View(func(txn *ReadTxn) error {
		it, err := txn.PrefixIter(NSFacetString, []byte("ab"))
		require.NoError(t, err)
		defer it.Close()

		var got []string
		for ok := it.First(); ok; ok = it.Next() {
			got = append(got, string(it.Key()))
		}
		require.Equal(t, []string{"ab1", "ab2"}, got)
		return nil
	}))
}

func TestUpdateAbortLeavesNoTrace(t *testing.T) {
	db := openTestDB(t)

	wantErr := require.Error
	err := db.Update(func(txn *WriteTxn) error {
		if putErr := txn.Put(NSFacetString, []byte("z"), []byte("1")); putErr != nil {
			return putErr
		}
		return errAbort
	})
	wantErr(t, err)

	require.NoError(t, db.View(func(txn *ReadTxn) error {
		_, ok, getErr := txn.Get(NSFacetString, []byte("z"))
		require.NoError(t, getErr)
		require.False(t, ok, "aborted transaction must not persist writes")
		return nil
	}))
}

func TestClearNamespace(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Update(func(txn *WriteTxn) error {
		require.NoError(t, txn.Put(NSMirror, []byte("a"), []byte("1")))
		require.NoError(t, txn.Put(NSMirror, []byte("b"), []byte("2")))
		require.NoError(t, txn.Put(NSFacetString, []byte("a"), []byte("untouched")))
		return nil
	}))

	require.NoError(t, db.Update(func(txn *WriteTxn) error {
		return txn.Clear(NSMirror)
	}))

	require.NoError(t, db.View(func(txn *ReadTxn) error {
		_, ok, err := txn.Get(NSMirror, []byte("a"))
		require.NoError(t, err)
		require.False(t, ok)

		v, ok, err := txn.Get(NSFacetString, []byte("a"))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []byte("untouched"), v)
		return nil
	}))
}

type sentinelError struct{ msg string }

func (e *sentinelError) Error() string { return e.msg }

var errAbort = &sentinelError{"injected abort"}
