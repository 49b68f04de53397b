package fernet_test

import (
	"errors"
	"testing"
	"time"

	"github.com/oddbit-project/fernet256/fernet"
)

func newManager(t *testing.T, cacheLimit int) *fernet.KeyManager {
	t.Helper()
	km, err := fernet.NewKeyManager(time.Hour, cacheLimit, 5, 3)
	if err != nil {
		t.Fatalf("NewKeyManager failed: %v", err)
	}
	t.Cleanup(km.Close)
	return km
}

func TestKeyManagerValidation(t *testing.T) {
	if _, err := fernet.NewKeyManager(0, 1, 5, 3); err == nil {
		t.Fatal("zero rotation period accepted")
	}
	if _, err := fernet.NewKeyManager(time.Hour, 0, 5, 3); err == nil {
		t.Fatal("zero cache limit accepted")
	}
}

func TestKeyManagerEncryptDecrypt(t *testing.T) {
	km := newManager(t, 3)

	token, err := km.Encrypt([]byte("ring payload"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	got, err := km.Decrypt(token)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if string(got) != "ring payload" {
		t.Fatalf("got %q", got)
	}
}

func TestKeyManagerRotationKeepsOldTokensReadable(t *testing.T) {
	km := newManager(t, 3)

	oldID, _ := km.Primary()
	token, err := km.Encrypt([]byte("pre-rotation"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if err := km.Rotate(); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	newID, _ := km.Primary()
	if newID == oldID {
		t.Fatal("rotation did not change the primary key")
	}
	if _, ok := km.Lookup(oldID); !ok {
		t.Fatal("previous key missing from ring after rotation")
	}
	if _, err := km.Decrypt(token); err != nil {
		t.Fatalf("old token unreadable after rotation: %v", err)
	}
}

func TestKeyManagerPrunesBeyondCacheLimit(t *testing.T) {
	km := newManager(t, 2)

	firstID, _ := km.Primary()
	token, err := km.Encrypt([]byte("doomed"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := km.Rotate(); err != nil {
			t.Fatalf("Rotate failed: %v", err)
		}
	}
	if _, ok := km.Lookup(firstID); ok {
		t.Fatal("pruned key still present in ring")
	}
	if _, err := km.Decrypt(token); !errors.Is(err, fernet.ErrInvalidToken) {
		t.Fatalf("token under pruned key: expected ErrInvalidToken, got %v", err)
	}
}

func TestKeyManagerRotateTokenPreservesTimestamp(t *testing.T) {
	km := newManager(t, 3)

	token, err := km.Encrypt([]byte("long lived"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	multi, err := km.MultiView()
	if err != nil {
		t.Fatalf("MultiView failed: %v", err)
	}
	before, err := multi.ExtractTimestamp(token)
	if err != nil {
		t.Fatalf("ExtractTimestamp failed: %v", err)
	}

	if err := km.Rotate(); err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	rotated, err := km.RotateToken(token)
	if err != nil {
		t.Fatalf("RotateToken failed: %v", err)
	}

	_, primary := km.Primary()
	got, err := primary.Decrypt(rotated)
	if err != nil {
		t.Fatalf("rotated token unreadable under new primary: %v", err)
	}
	if string(got) != "long lived" {
		t.Fatalf("got %q", got)
	}
	ts, err := primary.ExtractTimestamp(rotated)
	if err != nil {
		t.Fatalf("ExtractTimestamp failed: %v", err)
	}
	if !ts.Equal(before) {
		t.Fatalf("rotation reset token age: got %v, want %v", ts, before)
	}
}

func TestKeyManagerSharesRoundTrip(t *testing.T) {
	km := newManager(t, 3)

	keyID, primary := km.Primary()
	token, err := primary.Encrypt([]byte("escrowed"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	shares := km.SharesForKey(keyID)
	if len(shares) != 5 {
		t.Fatalf("share count = %d, want 5", len(shares))
	}

	// a threshold quorum of shares reconstructs the key in a fresh manager
	other := newManager(t, 3)
	if err := other.ImportKeyFromShares(keyID, shares[:3], time.Now()); err != nil {
		t.Fatalf("ImportKeyFromShares failed: %v", err)
	}
	got, err := other.Decrypt(token)
	if err != nil {
		t.Fatalf("decrypt with reconstructed key failed: %v", err)
	}
	if string(got) != "escrowed" {
		t.Fatalf("got %q", got)
	}
}

func TestKeyManagerCloseIdempotent(t *testing.T) {
	km := newManager(t, 1)
	km.Close()
	km.Close()
	// the ring stays usable after Close
	if _, err := km.Encrypt([]byte("still works")); err != nil {
		t.Fatalf("Encrypt after Close failed: %v", err)
	}
}
