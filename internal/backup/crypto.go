package backup

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// keySalt pins the derivation context; changing it orphans every existing
// backup.
const keySalt = "voucher-backup-v1"

// deriveKey produces the symmetric backup key from the owner's own keypair:
// ECDH of the private key against its own public point, stretched through
// HKDF-SHA256. Self-addressed, so nobody without the private key — relay
// operators included — can read the contents.
func deriveKey(owner *btcec.PrivateKey) ([]byte, error) {
	if owner == nil {
		return nil, errors.New("backup key derivation requires the owner key")
	}
	shared := secp256k1.GenerateSharedSecret(owner, owner.PubKey())
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, []byte(keySalt), nil), key); err != nil {
		return nil, errors.Wrap(err, "derive backup key")
	}
	return key, nil
}

// seal encrypts the plaintext with XChaCha20-Poly1305, prefixing the random
// nonce to the ciphertext.
func seal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "read nonce")
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// open decrypts a sealed blob, authenticating it in the process.
func open(key, blob []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(blob) < aead.NonceSize() {
		return nil, errors.New("blob shorter than nonce")
	}
	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(err, "authenticated decryption failed")
	}
	return plaintext, nil
}
