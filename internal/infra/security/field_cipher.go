// File: internal/infra/security/field_cipher.go
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"coop-voucher/internal/domain"
)

// FieldCipher encrypts single PII columns (holder phone numbers) with AES-GCM.
// The row id is passed as additional data, so a ciphertext copied onto
// another row fails to open.
type FieldCipher struct {
	gcm cipher.AEAD
}

// NewFieldCipher accepts a 16, 24 or 32 byte key (AES-128/192/256).
func NewFieldCipher(key []byte) (*FieldCipher, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: field key must be 16, 24, or 32 bytes; got %d", domain.ErrInvalidArgument, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &FieldCipher{gcm: gcm}, nil
}

// Seal returns base64(nonce || ciphertext).
func (c *FieldCipher) Seal(plaintext, rowID string) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := c.gcm.Seal(nonce, nonce, []byte(plaintext), []byte(rowID))
	return base64.StdEncoding.EncodeToString(ct), nil
}

// Open reverses Seal for the same row id.
func (c *FieldCipher) Open(sealed, rowID string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	ns := c.gcm.NonceSize()
	if len(data) < ns {
		return "", fmt.Errorf("ciphertext too short")
	}
	pt, err := c.gcm.Open(nil, data[:ns], data[ns:], []byte(rowID))
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}
