package sign

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/pkg/errors"
)

const privateKeySize = 32

// GenerateKey creates a fresh secp256k1 keypair. The same curve backs the
// ledger identities, so voucher issuer keys double as record-author keys.
func GenerateKey() (*btcec.PrivateKey, error) {
	return btcec.NewPrivateKey()
}

// PublicKeyBytes returns the 32-byte x-only encoding of the key's public
// point.
func PublicKeyBytes(priv *btcec.PrivateKey) []byte {
	return schnorr.SerializePubKey(priv.PubKey())
}

// ParsePrivateKeyHex decodes a hex-encoded 32-byte private key.
func ParsePrivateKeyHex(s string) (*btcec.PrivateKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "private key is not valid hex")
	}
	if len(raw) != privateKeySize {
		return nil, errors.Errorf("private key must be %d bytes, got %d", privateKeySize, len(raw))
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	if priv.Key.IsZero() {
		return nil, errors.New("private key must not be zero")
	}
	return priv, nil
}
