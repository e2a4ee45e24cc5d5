// Package crypto seals caller PII for storage. Phone numbers are the
// only plaintext persisted today; lookups never touch the ciphertext
// and go through the phone hash instead.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

// KeySize is the required length of CRYPTO_ENCRYPTION_KEY.
const KeySize = 32

// Encryptor seals and opens PII column values with AES-256-GCM.
// Every Encrypt draws a fresh nonce, so two callers with the same
// number never share a stored byte sequence.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor builds an encryptor from the configured key.
func NewEncryptor(key string) (*Encryptor, error) {
	if len(key) != KeySize {
		return nil, errors.New("encryption key must be exactly 32 bytes for AES-256")
	}

	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Encryptor{aead: aead}, nil
}

// Encrypt seals one value for the phone_encrypted column. The stored
// layout is nonce || ciphertext || tag.
func (e *Encryptor) Encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return e.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens a stored value. Fails when the value is truncated,
// tampered with, or was sealed under a different key.
func (e *Encryptor) Decrypt(stored []byte) (string, error) {
	if len(stored) < e.aead.NonceSize() {
		return "", errors.New("stored ciphertext too short")
	}

	nonce, ciphertext := stored[:e.aead.NonceSize()], stored[e.aead.NonceSize():]
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}
