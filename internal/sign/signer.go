// Package sign produces and checks detached BIP-340 Schnorr signatures over a
// voucher's canonical bytes. Everything here is stateless and safe for
// unlimited concurrent calls.
package sign

import (
	"crypto/rand"
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/pkg/errors"

	"voucher-node/internal/logger"
	"voucher-node/internal/voucher"
)

// Sign hashes the secret's canonical bytes and signs the digest. Fresh
// auxiliary randomness is mixed into every call, so re-signing the same
// voucher yields a different but equally valid signature.
func Sign(secret *voucher.Secret, priv *btcec.PrivateKey) ([]byte, error) {
	if secret == nil {
		return nil, errors.New("nothing to sign")
	}
	if priv == nil {
		return nil, errors.New("signing requires a private key")
	}
	var aux [32]byte
	if _, err := rand.Read(aux[:]); err != nil {
		return nil, errors.Wrap(err, "read auxiliary randomness")
	}
	digest := sha256.Sum256(secret.CanonicalBytes())
	sig, err := schnorr.Sign(priv, digest[:], schnorr.CustomNonce(aux))
	if err != nil {
		return nil, errors.Wrap(err, "schnorr sign")
	}
	return sig.Serialize(), nil
}

// Verify checks a detached signature against the secret's canonical bytes.
// Malformed input never panics or errors: the result is simply false, with the
// reason visible only in the logs. A false result on well-formed input is a
// valid negative, not a failure.
func Verify(secret *voucher.Secret, signature, publicKey []byte) bool {
	if secret == nil {
		return false
	}
	if len(signature) != voucher.SignatureSize {
		logger.Log.Debugf("verify %s: signature is %d bytes, want %d", secret.ID, len(signature), voucher.SignatureSize)
		return false
	}
	if len(publicKey) != voucher.PublicKeySize {
		logger.Log.Debugf("verify %s: public key is %d bytes, want %d", secret.ID, len(publicKey), voucher.PublicKeySize)
		return false
	}
	pub, err := schnorr.ParsePubKey(publicKey)
	if err != nil {
		logger.Log.Debugf("verify %s: malformed public key: %v", secret.ID, err)
		return false
	}
	sig, err := schnorr.ParseSignature(signature)
	if err != nil {
		logger.Log.Debugf("verify %s: malformed signature: %v", secret.ID, err)
		return false
	}
	digest := sha256.Sum256(secret.CanonicalBytes())
	return sig.Verify(digest[:], pub)
}
