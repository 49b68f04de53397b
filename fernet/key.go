package fernet

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the raw key length: a 32-byte signing key followed by a
	// 32-byte encryption key.
	KeySize = 64

	subkeySize = 32

	// defaultKDFIterations is used by DeriveKey when the caller passes a
	// non-positive iteration count.
	defaultKDFIterations = 600_000
)

// GenerateKey returns a fresh 64-byte key drawn from crypto/rand, encoded in
// URL-safe base64. The result is accepted by New.
func GenerateKey() (string, error) {
	return generateKey(rand.Reader)
}

func generateKey(r io.Reader) (string, error) {
	raw := make([]byte, KeySize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", fmt.Errorf("fernet: read key material: %w", err)
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

// DeriveKey produces an encoded 64-byte key from a passphrase using
// PBKDF2-HMAC-SHA256. The same passphrase, salt, and iteration count always
// yield the same key. iterations <= 0 selects a current-practice default.
func DeriveKey(passphrase, salt []byte, iterations int) (string, error) {
	if len(passphrase) == 0 {
		return "", errors.New("fernet: passphrase is required")
	}
	if len(salt) == 0 {
		return "", errors.New("fernet: salt is required")
	}
	if iterations <= 0 {
		iterations = defaultKDFIterations
	}
	raw := pbkdf2.Key(passphrase, salt, iterations, KeySize, sha256.New)
	return base64.URLEncoding.EncodeToString(raw), nil
}

// decodeKey accepts padded and unpadded URL-safe base64 and enforces the
// 64-byte raw length.
func decodeKey(encoded string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return nil, ErrInvalidKey
	}
	if len(raw) != KeySize {
		return nil, ErrInvalidKey
	}
	return raw, nil
}
