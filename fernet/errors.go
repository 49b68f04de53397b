package fernet

import "errors"

var (
	// ErrInvalidKey is returned when key material does not decode to exactly 64 bytes.
	ErrInvalidKey = errors.New("fernet: key must decode to exactly 64 bytes")
	// ErrMalformedToken is returned when a token fails transport decoding, has a
	// wrong length or block alignment, or carries an unknown version byte.
	ErrMalformedToken = errors.New("fernet: malformed token")
	// ErrInvalidToken is returned when authentication fails. It deliberately does
	// not distinguish a MAC mismatch from bad padding or a wrong key.
	ErrInvalidToken = errors.New("fernet: invalid token")
	// ErrExpiredToken is returned when a token verified correctly but its age
	// exceeds the caller-supplied TTL.
	ErrExpiredToken = errors.New("fernet: token has expired")
	// ErrNoKeys is returned when a MultiFernet256 is built from an empty key list.
	ErrNoKeys = errors.New("fernet: at least one key is required")
	// ErrPlaintextTooLong is returned by Encrypt when the plaintext exceeds
	// MaxPlaintextLen and the resulting token could not travel within the
	// transport size bound.
	ErrPlaintextTooLong = errors.New("fernet: plaintext too long")
)
