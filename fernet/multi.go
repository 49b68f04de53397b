package fernet

import (
	"errors"
	"time"
)

// MultiFernet256 wraps an ordered, immutable list of ciphers for zero-downtime
// key rotation. The first cipher is primary: it produces all new tokens.
// Decryption tries every cipher in order, so tokens minted under any listed
// key stay readable while traffic migrates to the primary.
type MultiFernet256 struct {
	fernets []*Fernet256
}

// NewMulti builds a multi-key cipher. Returns ErrNoKeys for an empty list.
func NewMulti(fernets ...*Fernet256) (*MultiFernet256, error) {
	list := make([]*Fernet256, 0, len(fernets))
	for _, f := range fernets {
		if f != nil {
			list = append(list, f)
		}
	}
	if len(list) == 0 {
		return nil, ErrNoKeys
	}
	return &MultiFernet256{fernets: list}, nil
}

// Encrypt seals plaintext under the primary key.
func (m *MultiFernet256) Encrypt(plaintext []byte) (string, error) {
	return m.fernets[0].Encrypt(plaintext)
}

// EncryptAt seals plaintext under the primary key at an explicit time.
func (m *MultiFernet256) EncryptAt(plaintext []byte, at time.Time) (string, error) {
	return m.fernets[0].EncryptAt(plaintext, at)
}

// Decrypt opens a token with no age limit, trying each key in order.
func (m *MultiFernet256) Decrypt(token string) ([]byte, error) {
	return m.DecryptAt(token, 0, m.fernets[0].nowFn())
}

// DecryptWithTTL opens a token with an age limit, trying each key in order.
func (m *MultiFernet256) DecryptWithTTL(token string, ttl time.Duration) ([]byte, error) {
	return m.DecryptAt(token, ttl, m.fernets[0].nowFn())
}

// DecryptAt tries fernets in order and returns the first success. When every
// key fails the result is the bare ErrInvalidToken: which key came closest is
// never revealed. Framing errors are key-independent and surface directly, and
// an expired verdict is final since only the producing key can verify the MAC.
func (m *MultiFernet256) DecryptAt(token string, ttl time.Duration, now time.Time) ([]byte, error) {
	for _, f := range m.fernets {
		msg, err := f.DecryptAt(token, ttl, now)
		if err == nil {
			return msg, nil
		}
		if errors.Is(err, ErrMalformedToken) || errors.Is(err, ErrExpiredToken) {
			return nil, err
		}
	}
	return nil, ErrInvalidToken
}

// ExtractTimestamp returns the issuance time of a token minted under any key
// in the list.
func (m *MultiFernet256) ExtractTimestamp(token string) (time.Time, error) {
	for _, f := range m.fernets {
		ts, err := f.ExtractTimestamp(token)
		if err == nil {
			return ts, nil
		}
		if errors.Is(err, ErrMalformedToken) {
			return time.Time{}, err
		}
	}
	return time.Time{}, ErrInvalidToken
}

// Rotate re-encrypts a token under the primary key while preserving its
// original issuance timestamp, so rotation never resets token age. The input
// may have been produced by any key in the list; ErrInvalidToken is returned
// when none can open it.
func (m *MultiFernet256) Rotate(token string) (string, error) {
	for _, f := range m.fernets {
		ts, err := f.ExtractTimestamp(token)
		if err != nil {
			if errors.Is(err, ErrMalformedToken) {
				return "", err
			}
			continue
		}
		msg, err := f.Decrypt(token)
		if err != nil {
			return "", ErrInvalidToken
		}
		rotated, err := m.fernets[0].EncryptAt(msg, ts)
		for i := range msg {
			msg[i] = 0
		}
		return rotated, err
	}
	return "", ErrInvalidToken
}
