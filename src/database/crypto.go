package database

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// sealedPrefix marks payloads written by PayloadCipher. JSON text never starts
// with a NUL byte, so unmarked rows are plaintext.
var sealedPrefix = []byte{0x00, 'w', 'h', '1'}

// ErrPayloadSealed is returned when a sealed payload cannot be opened,
// either because no key is configured or the key does not match.
var ErrPayloadSealed = errors.New("payload is encrypted and cannot be opened with the configured key")

// PayloadCipher seals event payloads at rest with AES-256-GCM.
// A nil *PayloadCipher stores payloads as plaintext.
type PayloadCipher struct {
	gcm cipher.AEAD
}

// NewPayloadCipher creates a cipher from a hex-encoded 32-byte key.
// Returns nil if hexKey is empty (encryption disabled).
func NewPayloadCipher(hexKey string) (*PayloadCipher, error) {
	if hexKey == "" {
		return nil, nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid encryption key: must be 32 bytes (64 hex chars), got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &PayloadCipher{gcm: gcm}, nil
}

// Seal returns prefix || nonce || ciphertext, or the payload unchanged when
// encryption is disabled.
func (pc *PayloadCipher) Seal(payload []byte) ([]byte, error) {
	if pc == nil {
		return payload, nil
	}

	nonce := make([]byte, pc.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(sealedPrefix)+len(nonce)+len(payload)+pc.gcm.Overhead())
	out = append(out, sealedPrefix...)
	out = append(out, nonce...)
	return pc.gcm.Seal(out, nonce, payload, nil), nil
}

// Open reverses Seal. Unmarked data is returned as-is so rows written before
// encryption was enabled stay readable.
func (pc *PayloadCipher) Open(stored []byte) ([]byte, error) {
	if !bytes.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	if pc == nil {
		return nil, ErrPayloadSealed
	}

	body := stored[len(sealedPrefix):]
	nonceSize := pc.gcm.NonceSize()
	if len(body) < nonceSize+pc.gcm.Overhead() {
		return nil, fmt.Errorf("%w: truncated payload", ErrPayloadSealed)
	}

	plaintext, err := pc.gcm.Open(nil, body[:nonceSize], body[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadSealed, err)
	}
	return plaintext, nil
}
