// Package bitmap implements the compact document-id set codec used as the
// payload of every facet tree node. It wraps github.com/RoaringBitmap/roaring
// so the expensive container arithmetic (array vs bitmap containers, rank,
// union, intersection) comes from a maintained compressed-bitmap library,
// behind a small Serialize/Deserialize(io.Writer/io.Reader) surface that
// round-trips through the exact on-disk layout the facet tree needs.
package bitmap

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring"
)

// Set is the docids payload of a facet tree node. The zero value
// is not usable; construct with New or FromSlice.
type Set struct {
	rb *roaring.Bitmap
}

// New returns an empty Set.
func New() *Set {
	return &Set{rb: roaring.New()}
}

// FromSlice builds a Set containing exactly the given document ids.
func FromSlice(ids []uint32) *Set {
	s := New()
	s.rb.AddMany(ids)
	return s
}

// Add inserts a document id.
func (s *Set) Add(id uint32) { s.rb.Add(id) }

// Remove deletes a document id if present.
func (s *Set) Remove(id uint32) { s.rb.Remove(id) }

// Contains reports whether id is a member.
func (s *Set) Contains(id uint32) bool { return s.rb.Contains(id) }

// Cardinality returns the number of document ids in the set.
func (s *Set) Cardinality() int { return int(s.rb.GetCardinality()) }

// IsEmpty reports whether the set has no members.
func (s *Set) IsEmpty() bool { return s.rb.IsEmpty() }

// Clone returns an independent copy.
func (s *Set) Clone() *Set { return &Set{rb: s.rb.Clone()} }

// Union returns a new Set holding the union of s and other.
func (s *Set) Union(other *Set) *Set {
	return &Set{rb: roaring.Or(s.rb, other.rb)}
}

// UnionInPlace merges other into s without allocating a new bitmap.
func (s *Set) UnionInPlace(other *Set) { s.rb.Or(other.rb) }

// Intersection returns a new Set holding only ids present in both sets.
func (s *Set) Intersection(other *Set) *Set {
	return &Set{rb: roaring.And(s.rb, other.rb)}
}

// IntersectionCardinality is a cheap |s ∩ other| without materializing the
// intersection, used by the tree reader's min/max and distribution walks
// which only need the count, not the member ids.
func (s *Set) IntersectionCardinality(other *Set) int {
	return int(s.rb.AndCardinality(other.rb))
}

// Difference returns a new Set holding ids in s but not in other.
func (s *Set) Difference(other *Set) *Set {
	return &Set{rb: roaring.AndNot(s.rb, other.rb)}
}

// ToSlice materializes the set as a sorted slice of document ids.
func (s *Set) ToSlice() []uint32 { return s.rb.ToArray() }

// Iterator returns an ascending iterator over the set's document ids.
func (s *Set) Iterator() roaring.IntPeekable { return s.rb.Iterator() }

// Min returns the smallest document id; ok is false for an empty set.
func (s *Set) Min() (id uint32, ok bool) {
	if s.rb.IsEmpty() {
		return 0, false
	}
	return s.rb.Minimum(), true
}

// Max returns the largest document id; ok is false for an empty set.
func (s *Set) Max() (id uint32, ok bool) {
	if s.rb.IsEmpty() {
		return 0, false
	}
	return s.rb.Maximum(), true
}

// Serialize writes the set using the roaring library's portable container
// format, length-prefixed so Deserialize knows how many bytes to consume
// from a shared value buffer, since pebble values are opaque byte strings
// with no out-of-band length.
func (s *Set) Serialize(w io.Writer) error {
	buf, err := s.rb.ToBytes()
	if err != nil {
		return fmt.Errorf("serialize bitmap: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(buf))); err != nil {
		return fmt.Errorf("write bitmap length: %w", err)
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write bitmap bytes: %w", err)
	}
	return nil
}

// Deserialize reads a Set previously written by Serialize.
func Deserialize(r io.Reader) (*Set, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, fmt.Errorf("read bitmap length: %w", err)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read bitmap bytes: %w", err)
	}
	rb := roaring.New()
	if err := rb.UnmarshalBinary(buf); err != nil {
		return nil, fmt.Errorf("unmarshal bitmap: %w", err)
	}
	return &Set{rb: rb}, nil
}
