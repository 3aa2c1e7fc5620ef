package voucher

import (
	"bytes"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// canonicalEnc is the single encoder used for every signed or replicated
// payload. Definite lengths only and struct fields in declaration order, so
// the same input always yields the same bytes. Changing any option here is a
// breaking protocol change.
var canonicalEnc cbor.EncMode

func init() {
	var err error
	canonicalEnc, err = cbor.EncOptions{
		Sort:        cbor.SortNone,
		IndefLength: cbor.IndefLengthForbidden,
		TimeTag:     cbor.EncTagNone,
	}.EncMode()
	if err != nil {
		panic(err)
	}
}

// encodeCanonical serializes the business fields of a secret. Optional fields
// (expiry, memo, metadata) are omitted entirely when absent, never
// null-encoded. The outer map is written by hand: struct-tag omitempty never
// fires for a type with a custom marshaler, so an empty Metadata would leak
// into the signed bytes as {}.
func encodeCanonical(s *Secret) ([]byte, error) {
	n := 7
	if s.Expiry > 0 {
		n++
	}
	if s.Memo != "" {
		n++
	}
	if len(s.Metadata) > 0 {
		n++
	}

	var buf bytes.Buffer
	buf.Write(mapHeader(n))
	if err := writePair(&buf, "backing", s.Backing); err != nil {
		return nil, err
	}
	if s.Expiry > 0 {
		if err := writePair(&buf, "expiry", s.Expiry); err != nil {
			return nil, err
		}
	}
	if err := writePair(&buf, "decimals", s.Decimals); err != nil {
		return nil, err
	}
	if err := writePair(&buf, "faceValue", s.FaceValue); err != nil {
		return nil, err
	}
	if err := writePair(&buf, "ratio", s.Ratio); err != nil {
		return nil, err
	}
	if err := writePair(&buf, "issuer", s.Issuer); err != nil {
		return nil, err
	}
	if s.Memo != "" {
		if err := writePair(&buf, "memo", s.Memo); err != nil {
			return nil, err
		}
	}
	if len(s.Metadata) > 0 {
		if err := writePair(&buf, "metadata", s.Metadata); err != nil {
			return nil, err
		}
	}
	if err := writePair(&buf, "unit", s.Unit); err != nil {
		return nil, err
	}
	if err := writePair(&buf, "id", s.ID); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePair(buf *bytes.Buffer, key string, value interface{}) error {
	k, err := canonicalEnc.Marshal(key)
	if err != nil {
		return err
	}
	v, err := canonicalEnc.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	buf.Write(k)
	buf.Write(v)
	return nil
}

// DecodeSecret rebuilds a Secret from its canonical bytes. The result goes
// back through New so the invariants are re-checked and the canonical cache is
// repopulated; round-tripping valid bytes is the identity.
func DecodeSecret(data []byte) (*Secret, error) {
	var raw Secret
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decode voucher secret")
	}
	return New(Params{
		ID:        raw.ID,
		Issuer:    raw.Issuer,
		Unit:      raw.Unit,
		FaceValue: raw.FaceValue,
		Expiry:    raw.Expiry,
		Memo:      raw.Memo,
		Backing:   raw.Backing,
		Ratio:     raw.Ratio,
		Decimals:  raw.Decimals,
		Metadata:  raw.Metadata,
	})
}
