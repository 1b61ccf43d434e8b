package codec

import (
	"encoding/binary"
	"fmt"
)

// NodeKey identifies a facet tree node by (fid, level, left_bound).
type NodeKey struct {
	FID   uint16
	Level uint8
	Bound []byte
}

// Encode produces the on-disk key: FID_BE(2) || LEVEL(1) || BOUND. The
// big-endian FID and level mean a prefix scan on FID||LEVEL yields every
// node at that level in left_bound order, which is what the tree reader
// relies on for its backward/forward prefix walks.
func (k NodeKey) Encode() []byte {
	out := make([]byte, 3+len(k.Bound))
	binary.BigEndian.PutUint16(out[0:2], k.FID)
	out[2] = k.Level
	copy(out[3:], k.Bound)
	return out
}

// DecodeNodeKey parses a key previously produced by NodeKey.Encode.
func DecodeNodeKey(b []byte) (NodeKey, error) {
	if len(b) < 3 {
		return NodeKey{}, fmt.Errorf("codec: node key too short (%d bytes)", len(b))
	}
	bound := make([]byte, len(b)-3)
	copy(bound, b[3:])
	return NodeKey{
		FID:   binary.BigEndian.Uint16(b[0:2]),
		Level: b[2],
		Bound: bound,
	}, nil
}

// FieldLevelPrefix returns the FID||LEVEL prefix shared by every node key at
// that (fid, level), used for prefix_iter(fid || level).
func FieldLevelPrefix(fid uint16, level uint8) []byte {
	out := make([]byte, 3)
	binary.BigEndian.PutUint16(out[0:2], fid)
	out[2] = level
	return out
}

// FieldPrefix returns the FID prefix shared by every node key for that
// field, across all levels. Used to scan backward for the highest level.
func FieldPrefix(fid uint16) []byte {
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, fid)
	return out
}
