package voucher

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// MetadataEntry is one issuer-defined key/value pair.
type MetadataEntry struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// Metadata is an insertion-ordered set of issuer-defined key/value pairs. A
// plain Go map would lose the insertion order, and the order participates in
// the canonical bytes, so the pairs are kept as a slice. Keys are unique; Set
// replaces in place.
type Metadata []MetadataEntry

// Set appends the pair, or replaces the value in place when the key exists.
func (m Metadata) Set(key string, value interface{}) Metadata {
	for i := range m {
		if m[i].Key == key {
			m[i].Value = value
			return m
		}
	}
	return append(m, MetadataEntry{Key: key, Value: value})
}

// Get returns the value for key, and whether it was present.
func (m Metadata) Get(key string) (interface{}, bool) {
	for i := range m {
		if m[i].Key == key {
			return m[i].Value, true
		}
	}
	return nil, false
}

// MarshalCBOR encodes the pairs as a definite-length CBOR map in insertion
// order.
func (m Metadata) MarshalCBOR() ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(mapHeader(len(m)))
	for _, e := range m {
		k, err := canonicalEnc.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := canonicalEnc.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("metadata value for %q: %w", e.Key, err)
		}
		buf.Write(k)
		buf.Write(v)
	}
	return buf.Bytes(), nil
}

// UnmarshalCBOR decodes a definite-length CBOR map, preserving key order.
func (m *Metadata) UnmarshalCBOR(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("metadata: empty input")
	}
	n, body, err := parseMapHeader(data)
	if err != nil {
		return err
	}
	dec := cbor.NewDecoder(bytes.NewReader(body))
	out := make(Metadata, 0, n)
	for i := 0; i < n; i++ {
		var key string
		if err := dec.Decode(&key); err != nil {
			return fmt.Errorf("metadata key %d: %w", i, err)
		}
		var val interface{}
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("metadata value for %q: %w", key, err)
		}
		out = append(out, MetadataEntry{Key: key, Value: val})
	}
	*m = out
	return nil
}

// mapHeader builds the initial bytes of a definite-length CBOR map of n pairs.
func mapHeader(n int) []byte {
	switch {
	case n < 24:
		return []byte{0xa0 | byte(n)}
	case n < 0x100:
		return []byte{0xb8, byte(n)}
	default:
		hdr := []byte{0xb9, 0, 0}
		binary.BigEndian.PutUint16(hdr[1:], uint16(n))
		return hdr
	}
}

// parseMapHeader reads a definite-length map header and returns the pair count
// and the remaining body bytes.
func parseMapHeader(data []byte) (int, []byte, error) {
	b := data[0]
	if b>>5 != 5 {
		return 0, nil, fmt.Errorf("metadata: not a CBOR map (initial byte 0x%02x)", b)
	}
	switch info := b & 0x1f; {
	case info < 24:
		return int(info), data[1:], nil
	case info == 24:
		if len(data) < 2 {
			return 0, nil, fmt.Errorf("metadata: truncated map header")
		}
		return int(data[1]), data[2:], nil
	case info == 25:
		if len(data) < 3 {
			return 0, nil, fmt.Errorf("metadata: truncated map header")
		}
		return int(binary.BigEndian.Uint16(data[1:3])), data[3:], nil
	default:
		return 0, nil, fmt.Errorf("metadata: unsupported map header 0x%02x", b)
	}
}
