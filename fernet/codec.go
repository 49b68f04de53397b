package fernet

import (
	"crypto/aes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"strings"
)

// Token wire layout, all offsets fixed:
//
//	version   1 byte   0x81
//	timestamp 8 bytes  big-endian unsigned seconds since epoch
//	IV        16 bytes
//	ciphertext 16*k bytes
//	MAC       32 bytes HMAC-SHA256 over everything before it
const (
	tokenVersion byte = 0x81

	tsOffset  = 1
	tsLen     = 8
	ivOffset  = tsOffset + tsLen
	ivLen     = aes.BlockSize
	msgOffset = ivOffset + ivLen
	macLen    = sha256.Size

	// minTokenLen is the size of a token with an empty ciphertext field.
	minTokenLen = msgOffset + macLen

	// maxEncodedLen bounds transport input to prevent resource exhaustion.
	maxEncodedLen = 8192

	// maxTokenLen is the largest raw token whose padded base64 encoding still
	// fits in maxEncodedLen.
	maxTokenLen = maxEncodedLen / 4 * 3
)

// MaxPlaintextLen is the largest plaintext Encrypt accepts. It is derived from
// the transport bound so that every minted token is guaranteed to decode:
// anything longer would encode past maxEncodedLen and be rejected on the way
// back in.
const MaxPlaintextLen = (maxTokenLen-minTokenLen)/aes.BlockSize*aes.BlockSize - 1

// tokenFields is the parsed view of a decoded token. All slices alias the
// underlying token buffer.
type tokenFields struct {
	version    byte
	timestamp  uint64
	iv         []byte
	ciphertext []byte
	mac        []byte
}

// parseFields splits a raw token into its fixed-layout fields. Only length and
// alignment are checked here; version and MAC are the caller's pipeline steps.
func parseFields(tok []byte) (tokenFields, error) {
	if len(tok) < minTokenLen || (len(tok)-minTokenLen)%aes.BlockSize != 0 {
		return tokenFields{}, ErrMalformedToken
	}
	macOffset := len(tok) - macLen
	return tokenFields{
		version:    tok[0],
		timestamp:  binary.BigEndian.Uint64(tok[tsOffset:ivOffset]),
		iv:         tok[ivOffset:msgOffset],
		ciphertext: tok[msgOffset:macOffset],
		mac:        tok[macOffset:],
	}, nil
}

// encodeTransport renders a raw token in URL-safe base64.
func encodeTransport(tok []byte) string {
	return base64.URLEncoding.EncodeToString(tok)
}

// decodeTransport reverses encodeTransport. Padding is optional on input.
func decodeTransport(encoded string) ([]byte, error) {
	if len(encoded) > maxEncodedLen {
		return nil, ErrMalformedToken
	}
	tok, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return nil, ErrMalformedToken
	}
	return tok, nil
}
