// Package fernet implements the Fernet256 authenticated-encryption token
// format: AES-256-CBC with HMAC-SHA256 over a fixed binary layout, carried as
// URL-safe base64 text. A 64-byte key splits into a signing half and an
// encryption half, so tokens are both confidential and tamper-evident, and
// each token carries its issuance time for TTL enforcement.
package fernet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// Fernet256 encrypts and decrypts tokens under a single 64-byte key. It holds
// only immutable state after construction and is safe for concurrent use.
type Fernet256 struct {
	signingKey    [subkeySize]byte
	encryptionKey [subkeySize]byte

	skew  time.Duration
	nowFn func() time.Time
	rand  io.Reader
}

// Option customizes a Fernet256 at construction time.
type Option func(*Fernet256)

// WithClockSkew allows timestamps up to d in the future during TTL checks.
// The default is zero: a future-dated token is rejected outright.
func WithClockSkew(d time.Duration) Option {
	return func(f *Fernet256) {
		if d > 0 {
			f.skew = d
		}
	}
}

// WithClock injects a clock source for Encrypt and Decrypt. Tests that need
// full determinism should prefer the explicit EncryptAt/DecryptAt variants.
func WithClock(fn func() time.Time) Option {
	return func(f *Fernet256) {
		if fn != nil {
			f.nowFn = fn
		}
	}
}

// WithRandReader injects the entropy source used for IV generation.
func WithRandReader(r io.Reader) Option {
	return func(f *Fernet256) {
		if r != nil {
			f.rand = r
		}
	}
}

// New builds a cipher from an encoded key, as produced by GenerateKey or
// DeriveKey. Returns ErrInvalidKey unless the key decodes to 64 bytes.
func New(encodedKey string, opts ...Option) (*Fernet256, error) {
	raw, err := decodeKey(encodedKey)
	if err != nil {
		return nil, err
	}
	return NewFromBytes(raw, opts...)
}

// NewFromBytes builds a cipher from 64 raw key bytes. The first 32 bytes sign,
// the last 32 encrypt. The input slice is copied and may be reused.
func NewFromBytes(raw []byte, opts ...Option) (*Fernet256, error) {
	if len(raw) != KeySize {
		return nil, ErrInvalidKey
	}
	f := &Fernet256{
		nowFn: func() time.Time { return time.Now().UTC() },
		rand:  rand.Reader,
	}
	copy(f.signingKey[:], raw[:subkeySize])
	copy(f.encryptionKey[:], raw[subkeySize:])
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Encrypt seals plaintext into a token stamped with the current time.
// Any byte sequence up to MaxPlaintextLen is accepted, including empty.
func (f *Fernet256) Encrypt(plaintext []byte) (string, error) {
	return f.EncryptAt(plaintext, f.nowFn())
}

// EncryptAt seals plaintext with an explicit issuance time. Besides testing,
// this is what key rotation uses to preserve a token's original age.
func (f *Fernet256) EncryptAt(plaintext []byte, at time.Time) (string, error) {
	if len(plaintext) > MaxPlaintextLen {
		return "", ErrPlaintextTooLong
	}
	tb := acquireBuffer(msgOffset + paddedLen(len(plaintext)) + macLen)
	defer tb.Release()
	tok := tb.Bytes()

	tok[0] = tokenVersion
	binary.BigEndian.PutUint64(tok[tsOffset:ivOffset], uint64(at.Unix()))
	if _, err := io.ReadFull(f.rand, tok[ivOffset:msgOffset]); err != nil {
		return "", fmt.Errorf("fernet: generate IV: %w", err)
	}

	text := pad(tok[msgOffset:], plaintext)
	block, _ := aes.NewCipher(f.encryptionKey[:])
	cipher.NewCBCEncrypter(block, tok[ivOffset:msgOffset]).CryptBlocks(text, text)

	macOffset := len(tok) - macLen
	h := hmac.New(sha256.New, f.signingKey[:])
	_, _ = h.Write(tok[:macOffset])
	h.Sum(tok[macOffset:macOffset])

	return encodeTransport(tok), nil
}

// Decrypt opens a token with no age limit.
func (f *Fernet256) Decrypt(token string) ([]byte, error) {
	return f.DecryptAt(token, 0, f.nowFn())
}

// DecryptWithTTL opens a token and rejects it with ErrExpiredToken when older
// than ttl. A non-positive ttl disables the age check.
func (f *Fernet256) DecryptWithTTL(token string, ttl time.Duration) ([]byte, error) {
	return f.DecryptAt(token, ttl, f.nowFn())
}

// DecryptAt is DecryptWithTTL against an explicit current time.
//
// The validation pipeline is ordered and short-circuits: transport decode,
// field parse, version byte, MAC (constant time), TTL, decrypt, unpad. The MAC
// is always verified before any decryption so padding behavior can never act
// as a tamper oracle.
func (f *Fernet256) DecryptAt(token string, ttl time.Duration, now time.Time) ([]byte, error) {
	fl, err := f.verify(token)
	if err != nil {
		return nil, err
	}
	if ttl > 0 {
		issued := time.Unix(int64(fl.timestamp), 0)
		if now.Sub(issued) > ttl {
			return nil, ErrExpiredToken
		}
		if issued.After(now.Add(f.skew)) {
			return nil, ErrInvalidToken
		}
	}
	if len(fl.ciphertext) == 0 {
		// Structurally allowed but unproducible: a padded plaintext is
		// never empty, so a verified token always has at least one block.
		return nil, ErrInvalidToken
	}

	plaintext := make([]byte, len(fl.ciphertext))
	block, _ := aes.NewCipher(f.encryptionKey[:])
	cipher.NewCBCDecrypter(block, fl.iv).CryptBlocks(plaintext, fl.ciphertext)
	msg := unpad(plaintext)
	if msg == nil {
		for i := range plaintext {
			plaintext[i] = 0
		}
		return nil, ErrInvalidToken
	}
	return msg, nil
}

// ExtractTimestamp authenticates a token and returns its issuance time without
// decrypting. TTL is never evaluated here.
func (f *Fernet256) ExtractTimestamp(token string) (time.Time, error) {
	fl, err := f.verify(token)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(fl.timestamp), 0).UTC(), nil
}

// verify runs the key-dependent front half of the pipeline: decode, parse,
// version check, MAC check.
func (f *Fernet256) verify(token string) (tokenFields, error) {
	tok, err := decodeTransport(token)
	if err != nil {
		return tokenFields{}, err
	}
	fl, err := parseFields(tok)
	if err != nil {
		return tokenFields{}, err
	}
	if fl.version != tokenVersion {
		return tokenFields{}, ErrMalformedToken
	}
	macOffset := len(tok) - macLen
	h := hmac.New(sha256.New, f.signingKey[:])
	_, _ = h.Write(tok[:macOffset])
	if !hmac.Equal(fl.mac, h.Sum(nil)) {
		return tokenFields{}, ErrInvalidToken
	}
	return fl, nil
}

// pad writes p into q with PKCS#7 block padding and returns the padded slice.
func pad(q, p []byte) []byte {
	copy(q, p)
	n := paddedLen(len(p))
	c := byte(n - len(p))
	for i := len(p); i < n; i++ {
		q[i] = c
	}
	return q[:n]
}

// paddedLen returns len(pad(p)) for len(p) == n. Always a full block longer
// when n is already block-aligned.
func paddedLen(n int) int {
	const k = aes.BlockSize
	return k*(n/k) + k
}

// unpad reverses pad. Returns nil if any padding byte is invalid.
func unpad(p []byte) []byte {
	if len(p) == 0 {
		return nil
	}
	c := p[len(p)-1]
	if c == 0 || int(c) > len(p) || int(c) > aes.BlockSize {
		return nil
	}
	for i := len(p) - int(c); i < len(p); i++ {
		if p[i] != c {
			return nil
		}
	}
	return p[:len(p)-int(c)]
}
