package fernet_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/oddbit-project/fernet256/fernet"
)

func TestNewMultiRequiresKeys(t *testing.T) {
	if _, err := fernet.NewMulti(); !errors.Is(err, fernet.ErrNoKeys) {
		t.Fatalf("expected ErrNoKeys, got %v", err)
	}
	if _, err := fernet.NewMulti(nil, nil); !errors.Is(err, fernet.ErrNoKeys) {
		t.Fatalf("expected ErrNoKeys for all-nil list, got %v", err)
	}
}

func TestMultiEncryptUsesPrimary(t *testing.T) {
	primary := newCipher(t)
	legacy := newCipher(t)
	multi, err := fernet.NewMulti(primary, legacy)
	if err != nil {
		t.Fatalf("NewMulti failed: %v", err)
	}

	token, err := multi.Encrypt([]byte("fresh"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := primary.Decrypt(token); err != nil {
		t.Fatalf("primary cannot decrypt its own token: %v", err)
	}
	if _, err := legacy.Decrypt(token); !errors.Is(err, fernet.ErrInvalidToken) {
		t.Fatal("legacy key unexpectedly decrypted a primary token")
	}
}

func TestMultiDecryptFallback(t *testing.T) {
	a := newCipher(t)
	b := newCipher(t)
	c := newCipher(t)
	ciphers := []*fernet.Fernet256{a, b, c}

	orders := [][]*fernet.Fernet256{
		{a, b, c},
		{c, b, a},
		{b, c, a},
	}
	for _, producer := range ciphers {
		token, err := producer.Encrypt([]byte("shared payload"))
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		for _, order := range orders {
			multi, err := fernet.NewMulti(order...)
			if err != nil {
				t.Fatalf("NewMulti failed: %v", err)
			}
			got, err := multi.Decrypt(token)
			if err != nil {
				t.Fatalf("Decrypt failed for some ordering: %v", err)
			}
			if string(got) != "shared payload" {
				t.Fatalf("got %q", got)
			}
		}
	}
}

func TestMultiDecryptAllFail(t *testing.T) {
	multi, err := fernet.NewMulti(newCipher(t), newCipher(t))
	if err != nil {
		t.Fatalf("NewMulti failed: %v", err)
	}
	outsider := newCipher(t)
	token, err := outsider.Encrypt([]byte("foreign"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	// aggregate failure is the bare sentinel, never a per-key detail
	if _, err := multi.Decrypt(token); !errors.Is(err, fernet.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := multi.Decrypt("@@@"); !errors.Is(err, fernet.ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken for garbage, got %v", err)
	}
}

func TestMultiDecryptExpired(t *testing.T) {
	producer := newCipher(t)
	multi, err := fernet.NewMulti(newCipher(t), producer)
	if err != nil {
		t.Fatalf("NewMulti failed: %v", err)
	}
	token, err := producer.EncryptAt([]byte("stale"), issued)
	if err != nil {
		t.Fatalf("EncryptAt failed: %v", err)
	}
	_, err = multi.DecryptAt(token, time.Minute, issued.Add(time.Hour))
	if !errors.Is(err, fernet.ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestRotatePreservesAge(t *testing.T) {
	k1, err := fernet.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	k2, err := fernet.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	old, err := fernet.New(k1)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	next, err := fernet.New(k2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	p := []byte("rotate me")
	token, err := old.EncryptAt(p, issued)
	if err != nil {
		t.Fatalf("EncryptAt failed: %v", err)
	}

	multi, err := fernet.NewMulti(next, old)
	if err != nil {
		t.Fatalf("NewMulti failed: %v", err)
	}
	rotated, err := multi.Rotate(token)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}

	ts, err := multi.ExtractTimestamp(rotated)
	if err != nil {
		t.Fatalf("ExtractTimestamp failed: %v", err)
	}
	if !ts.Equal(issued) {
		t.Fatalf("rotation reset token age: got %v, want %v", ts, issued)
	}
	got, err := next.Decrypt(rotated)
	if err != nil {
		t.Fatalf("new key cannot decrypt rotated token: %v", err)
	}
	if !bytes.Equal(got, p) {
		t.Fatalf("rotated plaintext mismatch: got %q", got)
	}
	if _, err := old.Decrypt(rotated); !errors.Is(err, fernet.ErrInvalidToken) {
		t.Fatal("rotated token still decryptable under the retired key")
	}
}

func TestRotateUnknownToken(t *testing.T) {
	multi, err := fernet.NewMulti(newCipher(t))
	if err != nil {
		t.Fatalf("NewMulti failed: %v", err)
	}
	outsider := newCipher(t)
	token, err := outsider.Encrypt([]byte("foreign"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := multi.Rotate(token); !errors.Is(err, fernet.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestMultiExtractTimestampFallback(t *testing.T) {
	producer := newCipher(t)
	multi, err := fernet.NewMulti(newCipher(t), producer)
	if err != nil {
		t.Fatalf("NewMulti failed: %v", err)
	}
	token, err := producer.EncryptAt([]byte("when"), issued)
	if err != nil {
		t.Fatalf("EncryptAt failed: %v", err)
	}
	ts, err := multi.ExtractTimestamp(token)
	if err != nil {
		t.Fatalf("ExtractTimestamp failed: %v", err)
	}
	if !ts.Equal(issued) {
		t.Fatalf("timestamp mismatch: got %v, want %v", ts, issued)
	}
}
