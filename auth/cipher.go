package auth

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// TokenCipher encrypts token strings at rest with XChaCha20-Poly1305.
// A nil *TokenCipher passes values through unchanged, so callers can treat
// encryption as optional.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher builds a cipher from a base64-encoded 32-byte key, or a raw
// 32-character key.
func NewTokenCipher(key string) (*TokenCipher, error) {
	keyBytes, err := base64.StdEncoding.DecodeString(key)
	if err != nil || len(keyBytes) != chacha20poly1305.KeySize {
		keyBytes = []byte(key)
	}
	if len(keyBytes) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(keyBytes))
	}
	aead, err := chacha20poly1305.NewX(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	return &TokenCipher{aead: aead}, nil
}

// Encrypt seals a value and returns it base64-encoded with the nonce
// prepended.
func (c *TokenCipher) Encrypt(value string) (string, error) {
	if c == nil {
		return value, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(value), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *TokenCipher) Decrypt(value string) (string, error) {
	if c == nil {
		return value, nil
	}
	sealed, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting value: %w", err)
	}
	return string(plain), nil
}
