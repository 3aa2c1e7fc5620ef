package voucher

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Secret carries the business fields of a voucher. It is immutable after
// construction; the signature and public key live in Envelope, never here, so
// the whole struct is what gets canonically encoded and signed.
//
// The field declaration order below is the canonical wire order and must not
// be rearranged: encodeCanonical writes the fields in this order, and the
// resulting bytes are pinned by signature interoperability.
type Secret struct {
	Backing   Strategy `cbor:"backing" json:"backing"`
	Expiry    int64    `cbor:"expiry,omitempty" json:"expiry,omitempty"`
	Decimals  uint32   `cbor:"decimals" json:"decimals"`
	FaceValue uint64   `cbor:"faceValue" json:"faceValue"`
	Ratio     float64  `cbor:"ratio" json:"ratio"`
	Issuer    string   `cbor:"issuer" json:"issuer"`
	Memo      string   `cbor:"memo,omitempty" json:"memo,omitempty"`
	Metadata  Metadata `cbor:"metadata,omitempty" json:"metadata,omitempty"`
	Unit      string   `cbor:"unit" json:"unit"`
	ID        string   `cbor:"id" json:"id"`

	canonical []byte
}

// Params are the inputs to New. Expiry is a unix timestamp in seconds; zero
// means the voucher never expires.
type Params struct {
	ID        string
	Issuer    string
	Unit      string
	FaceValue uint64
	Expiry    int64
	Memo      string
	Backing   Strategy
	Ratio     float64
	Decimals  uint32
	Metadata  Metadata
}

// New validates the params, normalizes them, and returns a Secret with its
// canonical bytes already computed and cached.
func New(p Params) (*Secret, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, errors.New("voucher identity must not be blank")
	}
	if strings.TrimSpace(p.Issuer) == "" {
		return nil, errors.New("issuer identity must not be blank")
	}
	if strings.TrimSpace(p.Unit) == "" {
		return nil, errors.New("currency unit must not be blank")
	}
	if p.FaceValue == 0 {
		return nil, errors.New("face value must be positive")
	}
	if !(p.Ratio > 0) {
		return nil, errors.Errorf("issuance ratio must be positive, got %v", p.Ratio)
	}
	if !p.Backing.Valid() {
		return nil, errors.Errorf("unknown backing strategy %q", p.Backing)
	}
	if p.Expiry < 0 {
		return nil, errors.Errorf("expiry must not be negative, got %d", p.Expiry)
	}
	// Blank memos are treated as absent so they never reach the signed bytes.
	if strings.TrimSpace(p.Memo) == "" {
		p.Memo = ""
	}

	s := &Secret{
		Backing:   p.Backing,
		Expiry:    p.Expiry,
		Decimals:  p.Decimals,
		FaceValue: p.FaceValue,
		Ratio:     p.Ratio,
		Issuer:    p.Issuer,
		Memo:      p.Memo,
		Metadata:  p.Metadata,
		Unit:      p.Unit,
		ID:        p.ID,
	}
	canonical, err := encodeCanonical(s)
	if err != nil {
		return nil, errors.Wrap(err, "encode canonical bytes")
	}
	s.canonical = canonical
	return s, nil
}

// CanonicalBytes returns the deterministic serialization of the business
// fields — the exact message that gets signed. The bytes are computed once in
// New and cached; secrets rebuilt by a decoder recompute lazily.
func (s *Secret) CanonicalBytes() []byte {
	if s.canonical == nil {
		canonical, err := encodeCanonical(s)
		if err != nil {
			// Only reachable for a Secret built without New holding an
			// unencodable metadata value.
			panic(errors.Wrap(err, "encode canonical bytes"))
		}
		s.canonical = canonical
	}
	return s.canonical
}

// HasExpiry reports whether the voucher carries an expiry at all.
func (s *Secret) HasExpiry() bool { return s.Expiry > 0 }

// ExpiredAt reports whether the voucher is expired at the given instant. A
// voucher whose expiry equals the instant is still live; it expires one second
// later.
func (s *Secret) ExpiredAt(now time.Time) bool {
	return s.HasExpiry() && now.Unix() > s.Expiry
}
