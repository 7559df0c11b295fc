// internal/crypto/crypto.go (ChaCha20-Poly1305 content encryption)
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrAuthentication is returned when a ciphertext fails AEAD verification:
// the ciphertext or nonce was tampered with, or the key is wrong.
var ErrAuthentication = errors.New("ciphertext authentication failed")

// KeySize is the required length of the service encryption key in bytes.
const KeySize = chacha20poly1305.KeySize

// Engine encrypts and decrypts secret content with a single service-wide
// key held only in memory. The key never reaches durable storage.
type Engine struct {
	aead cipher.AEAD
}

func NewEngine(key []byte) (*Engine, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("cipher creation failed: %w", err)
	}
	return &Engine{aead: aead}, nil
}

// GenerateKey produces a fresh random service key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return key, nil
}

// ParseKey decodes a base64-encoded service key and checks its length.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding encryption key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// EncodeKey is the inverse of ParseKey, used to print a generated key once
// at startup so it can be persisted in configuration.
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// Encrypt seals plaintext under a fresh random nonce. The nonce is returned
// separately and must be stored alongside the ciphertext.
func (e *Engine) Encrypt(plaintext []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("nonce generation failed: %w", err)
	}
	return e.aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Decrypt opens a ciphertext produced by Encrypt. Any tampering with the
// ciphertext or nonce surfaces as ErrAuthentication.
func (e *Engine) Decrypt(ciphertext, nonce []byte) ([]byte, error) {
	if len(nonce) != e.aead.NonceSize() {
		return nil, ErrAuthentication
	}
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}
