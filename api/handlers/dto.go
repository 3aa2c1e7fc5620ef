package handlers

import (
	"encoding/hex"
	"math"

	"github.com/pkg/errors"

	"voucher-node/internal/voucher"
)

// SecretDTO is the JSON form of a voucher's business fields.
type SecretDTO struct {
	Backing   string                  `json:"backing"`
	Expiry    int64                   `json:"expiry,omitempty"`
	Decimals  uint32                  `json:"decimals"`
	FaceValue uint64                  `json:"faceValue"`
	Ratio     float64                 `json:"ratio"`
	Issuer    string                  `json:"issuer"`
	Memo      string                  `json:"memo,omitempty"`
	Metadata  []voucher.MetadataEntry `json:"metadata,omitempty"`
	Unit      string                  `json:"unit"`
	ID        string                  `json:"id"`
}

// EnvelopeDTO is the JSON form of a signed voucher.
type EnvelopeDTO struct {
	Voucher   SecretDTO `json:"voucher"`
	Signature string    `json:"signature"` // hex, 64 bytes
	PublicKey string    `json:"publicKey"` // hex, 32 bytes
}

func toSecretDTO(s *voucher.Secret) SecretDTO {
	return SecretDTO{
		Backing:   string(s.Backing),
		Expiry:    s.Expiry,
		Decimals:  s.Decimals,
		FaceValue: s.FaceValue,
		Ratio:     s.Ratio,
		Issuer:    s.Issuer,
		Memo:      s.Memo,
		Metadata:  s.Metadata,
		Unit:      s.Unit,
		ID:        s.ID,
	}
}

func toEnvelopeDTO(env *voucher.Envelope) EnvelopeDTO {
	return EnvelopeDTO{
		Voucher:   toSecretDTO(env.Secret),
		Signature: hex.EncodeToString(env.Signature),
		PublicKey: env.PublicKeyHex(),
	}
}

func fromEnvelopeDTO(dto EnvelopeDTO) (*voucher.Envelope, error) {
	secret, err := voucher.New(voucher.Params{
		ID:        dto.Voucher.ID,
		Issuer:    dto.Voucher.Issuer,
		Unit:      dto.Voucher.Unit,
		FaceValue: dto.Voucher.FaceValue,
		Expiry:    dto.Voucher.Expiry,
		Memo:      dto.Voucher.Memo,
		Backing:   voucher.Strategy(dto.Voucher.Backing),
		Ratio:     dto.Voucher.Ratio,
		Decimals:  dto.Voucher.Decimals,
		Metadata:  normalizeMetadata(dto.Voucher.Metadata),
	})
	if err != nil {
		return nil, err
	}
	sig, err := hex.DecodeString(dto.Signature)
	if err != nil {
		return nil, errors.Wrap(err, "signature is not valid hex")
	}
	pub, err := hex.DecodeString(dto.PublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "public key is not valid hex")
	}
	return voucher.NewEnvelope(secret, sig, pub)
}

// normalizeMetadata undoes the JSON decoder's habit of turning every number
// into a float64. Integral values go back to int64 so the canonical bytes
// match what was signed before the voucher crossed the JSON boundary.
func normalizeMetadata(entries []voucher.MetadataEntry) voucher.Metadata {
	if len(entries) == 0 {
		return nil
	}
	out := make(voucher.Metadata, 0, len(entries))
	for _, e := range entries {
		if f, ok := e.Value.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			e.Value = int64(f)
		}
		out = append(out, e)
	}
	return out
}
