package bitmap

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetAddContains(t *testing.T) {
	s := New()
	require.True(t, s.IsEmpty())
	s.Add(5)
	s.Add(42)
	require.True(t, s.Contains(5))
	require.True(t, s.Contains(42))
	require.False(t, s.Contains(6))
	require.Equal(t, 2, s.Cardinality())
}

func TestSetRemove(t *testing.T) {
	s := FromSlice([]uint32{1, 2, 3})
	s.Remove(2)
	require.False(t, s.Contains(2))
	require.Equal(t, 2, s.Cardinality())
}

func TestSetUnionIntersectionDifference(t *testing.T) {
	a := FromSlice([]uint32{1, 2, 3, 4})
	b := FromSlice([]uint32{3, 4, 5, 6})

	require.ElementsMatch(t, []uint32{1, 2, 3, 4, 5, 6}, a.Union(b).ToSlice())
	require.ElementsMatch(t, []uint32{3, 4}, a.Intersection(b).ToSlice())
	require.ElementsMatch(t, []uint32{1, 2}, a.Difference(b).ToSlice())
	require.Equal(t, 2, a.IntersectionCardinality(b))
}

func TestSetMinMax(t *testing.T) {
	s := New()
	_, ok := s.Min()
	require.False(t, ok)

	s = FromSlice([]uint32{10, 3, 77, 21})
	min, ok := s.Min()
	require.True(t, ok)
	require.Equal(t, uint32(3), min)

	max, ok := s.Max()
	require.True(t, ok)
	require.Equal(t, uint32(77), max)
}

// TestSetSerializeRoundTrip exercises the length-prefixed wire format
// node payloads rely on, against a random population.
func TestSetSerializeRoundTrip(t *testing.T) {
	ids := make([]uint32, 0, 500)
	seen := map[uint32]bool{}
	for len(ids) < 500 {
		v := rand.Uint32() % 200000
		if !seen[v] {
			seen[v] = true
			ids = append(ids, v)
		}
	}
	s := FromSlice(ids)

	var buf bytes.Buffer
	require.NoError(t, s.Serialize(&buf))

	got, err := Deserialize(&buf)
	require.NoError(t, err)
	require.Equal(t, s.Cardinality(), got.Cardinality())
	require.ElementsMatch(t, s.ToSlice(), got.ToSlice())
}

func TestSetSerializeEmpty(t *testing.T) {
	s := New()
	var buf bytes.Buffer
	require.NoError(t, s.Serialize(&buf))
	got, err := Deserialize(&buf)
	require.NoError(t, err)
	require.True(t, got.IsEmpty())
}
