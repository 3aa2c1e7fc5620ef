package voucher

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataPreservesInsertionOrder(t *testing.T) {
	var m Metadata
	m = m.Set("zebra", "first")
	m = m.Set("alpha", "second")
	m = m.Set("mike", "third")

	raw, err := cbor.Marshal(m)
	require.NoError(t, err)

	var decoded Metadata
	require.NoError(t, cbor.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, "zebra", decoded[0].Key)
	assert.Equal(t, "alpha", decoded[1].Key)
	assert.Equal(t, "mike", decoded[2].Key)
}

func TestMetadataSetReplacesInPlace(t *testing.T) {
	var m Metadata
	m = m.Set("a", 1)
	m = m.Set("b", 2)
	m = m.Set("a", 3)

	require.Len(t, m, 2)
	assert.Equal(t, "a", m[0].Key)
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestMetadataEmptyEncodesAsEmptyMap(t *testing.T) {
	raw, err := cbor.Marshal(Metadata{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xa0}, raw)

	var decoded Metadata
	require.NoError(t, cbor.Unmarshal(raw, &decoded))
	assert.Len(t, decoded, 0)
}

func TestMetadataRejectsNonMap(t *testing.T) {
	var decoded Metadata
	err := cbor.Unmarshal([]byte{0x81, 0x01}, &decoded) // CBOR array [1]
	assert.Error(t, err)
}
