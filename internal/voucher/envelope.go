package voucher

import (
	"bytes"
	"encoding/hex"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

const (
	// SignatureSize is the fixed width of a detached Schnorr signature.
	SignatureSize = 64
	// PublicKeySize is the fixed width of an x-only curve point encoding.
	PublicKeySize = 32
)

// Envelope is a signed voucher: the secret plus a detached signature and the
// issuer's public key. Keeping the signature outside Secret means the signed
// message never contains signature material, so there is no field-exclusion
// rule anywhere in the codec.
type Envelope struct {
	Secret    *Secret
	Signature []byte
	PublicKey []byte
}

// NewEnvelope wraps a secret with its signature material, rejecting
// wrong-width inputs up front.
func NewEnvelope(secret *Secret, signature, publicKey []byte) (*Envelope, error) {
	if secret == nil {
		return nil, errors.New("envelope requires a secret")
	}
	if len(signature) != SignatureSize {
		return nil, errors.Errorf("signature must be %d bytes, got %d", SignatureSize, len(signature))
	}
	if len(publicKey) != PublicKeySize {
		return nil, errors.Errorf("public key must be %d bytes, got %d", PublicKeySize, len(publicKey))
	}
	return &Envelope{Secret: secret, Signature: signature, PublicKey: publicKey}, nil
}

// PublicKeyHex is the hex form of the issuer key, used as a record address.
func (e *Envelope) PublicKeyHex() string {
	return hex.EncodeToString(e.PublicKey)
}

// envelopeWire carries the envelope across the ledger and backup records. The
// secret travels as its canonical bytes, so the exact signed message is what
// reaches the verifier on the other side.
type envelopeWire struct {
	Payload   []byte `cbor:"payload"`
	Signature []byte `cbor:"sig"`
	PublicKey []byte `cbor:"pubkey"`
}

// Marshal serializes the envelope for a record payload.
func (e *Envelope) Marshal() ([]byte, error) {
	return canonicalEnc.Marshal(envelopeWire{
		Payload:   e.Secret.CanonicalBytes(),
		Signature: e.Signature,
		PublicKey: e.PublicKey,
	})
}

// DecodeEnvelope rebuilds an envelope from a record payload.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var w envelopeWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, errors.Wrap(err, "decode voucher envelope")
	}
	secret, err := DecodeSecret(w.Payload)
	if err != nil {
		return nil, err
	}
	env, err := NewEnvelope(secret, w.Signature, w.PublicKey)
	if err != nil {
		return nil, err
	}
	// The canonical cache must match the transported payload bit for bit, or
	// a later verify would check a different message than the one signed.
	if !bytes.Equal(secret.CanonicalBytes(), w.Payload) {
		return nil, errors.New("canonical bytes diverge from transported payload")
	}
	return env, nil
}
