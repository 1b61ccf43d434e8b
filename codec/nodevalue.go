package codec

import (
	"bytes"
	"fmt"

	"facetcore/bitmap"
)

// NodeValue is the payload of a facet tree node: SIZE(1) || BITMAP. Size is
// the number of immediate children (0 for leaves).
type NodeValue struct {
	Size   uint8
	DocIDs *bitmap.Set
}

// Encode writes the node value in its on-disk layout.
func (v NodeValue) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := buf.WriteByte(v.Size); err != nil {
		return nil, fmt.Errorf("codec: write node size: %w", err)
	}
	if v.DocIDs == nil {
		v.DocIDs = bitmap.New()
	}
	if err := v.DocIDs.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("codec: serialize node docids: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeNodeValue parses a value previously produced by NodeValue.Encode.
func DecodeNodeValue(b []byte) (NodeValue, error) {
	if len(b) < 1 {
		return NodeValue{}, fmt.Errorf("codec: node value too short (%d bytes)", len(b))
	}
	r := bytes.NewReader(b)
	sizeByte, err := r.ReadByte()
	if err != nil {
		return NodeValue{}, fmt.Errorf("codec: read node size: %w", err)
	}
	docids, err := bitmap.Deserialize(r)
	if err != nil {
		return NodeValue{}, fmt.Errorf("codec: deserialize node docids: %w", err)
	}
	if r.Len() != 0 {
		return NodeValue{}, fmt.Errorf("codec: %d unexpected trailing bytes in node value", r.Len())
	}
	return NodeValue{Size: sizeByte, DocIDs: docids}, nil
}
