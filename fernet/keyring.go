package fernet

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oarkflow/shamir"
)

// KeyManager maintains a small ring of Fernet256 keys for operational
// rotation: new tokens are minted under the newest key while older ring
// members stay available for decryption until pruned. Every generated key is
// split into Shamir shares at creation so it can be escrowed and later
// reconstructed without ever persisting the raw key whole.
type KeyManager struct {
	mu sync.RWMutex

	ring           map[string]ringEntry
	sharesMap      map[string][][]byte
	rotationPeriod time.Duration
	cacheLimit     int
	totalShares    int
	threshold      int

	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

type ringEntry struct {
	cipher    *Fernet256
	createdAt time.Time
}

// NewKeyManager creates a manager holding at most cacheLimit keys, rotating
// every rotationPeriod. totalShares and threshold configure the Shamir split
// of each generated key. The first key is generated immediately.
func NewKeyManager(rotationPeriod time.Duration, cacheLimit, totalShares, threshold int) (*KeyManager, error) {
	if rotationPeriod <= 0 {
		return nil, errors.New("fernet: rotation period must be positive")
	}
	if cacheLimit < 1 {
		return nil, errors.New("fernet: cache limit must be at least 1")
	}

	km := &KeyManager{
		ring:           make(map[string]ringEntry),
		sharesMap:      make(map[string][][]byte),
		rotationPeriod: rotationPeriod,
		cacheLimit:     cacheLimit,
		totalShares:    totalShares,
		threshold:      threshold,
		done:           make(chan struct{}),
	}
	if err := km.rotateInternal(); err != nil {
		return nil, err
	}

	km.ticker = time.NewTicker(rotationPeriod)
	go func() {
		for {
			select {
			case <-km.ticker.C:
				_ = km.rotateInternal()
			case <-km.done:
				return
			}
		}
	}()

	return km, nil
}

// Close stops the background rotation goroutine. Keys already in the ring
// remain usable.
func (km *KeyManager) Close() {
	km.once.Do(func() {
		if km.ticker != nil {
			km.ticker.Stop()
		}
		close(km.done)
	})
}

// Rotate generates a fresh key immediately, independent of the timer.
func (km *KeyManager) Rotate() error {
	return km.rotateInternal()
}

func (km *KeyManager) rotateInternal() error {
	raw := make([]byte, KeySize)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("fernet: generate ring key: %w", err)
	}
	cipher, err := NewFromBytes(raw)
	if err != nil {
		return err
	}
	shares, err := shamir.Split(raw, km.threshold, km.totalShares)
	if err != nil {
		return fmt.Errorf("fernet: split ring key: %w", err)
	}
	for i := range raw {
		raw[i] = 0
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	now := time.Now().UTC()
	keyID := fmt.Sprintf("%d", now.UnixNano())
	km.ring[keyID] = ringEntry{cipher: cipher, createdAt: now}
	km.sharesMap[keyID] = shares
	km.pruneLocked()
	return nil
}

// pruneLocked drops the oldest entries beyond cacheLimit. Callers hold mu.
func (km *KeyManager) pruneLocked() {
	if len(km.ring) <= km.cacheLimit {
		return
	}
	ids := km.sortedIDsLocked()
	for _, id := range ids[km.cacheLimit:] {
		delete(km.ring, id)
		delete(km.sharesMap, id)
	}
}

// sortedIDsLocked returns key IDs newest first. Callers hold mu.
func (km *KeyManager) sortedIDsLocked() []string {
	ids := make([]string, 0, len(km.ring))
	for id := range km.ring {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return km.ring[ids[i]].createdAt.After(km.ring[ids[j]].createdAt)
	})
	return ids
}

// Primary returns the newest key's ID and cipher, used for all new tokens.
func (km *KeyManager) Primary() (string, *Fernet256) {
	km.mu.RLock()
	defer km.mu.RUnlock()
	ids := km.sortedIDsLocked()
	if len(ids) == 0 {
		return "", nil
	}
	return ids[0], km.ring[ids[0]].cipher
}

// Lookup returns the cipher for a key ID still present in the ring.
func (km *KeyManager) Lookup(keyID string) (*Fernet256, bool) {
	km.mu.RLock()
	defer km.mu.RUnlock()
	entry, ok := km.ring[keyID]
	if !ok {
		return nil, false
	}
	return entry.cipher, true
}

// MultiView snapshots the ring as a MultiFernet256 ordered newest first, so
// callers can decrypt and rotate across every key still held.
func (km *KeyManager) MultiView() (*MultiFernet256, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()
	ids := km.sortedIDsLocked()
	fernets := make([]*Fernet256, 0, len(ids))
	for _, id := range ids {
		fernets = append(fernets, km.ring[id].cipher)
	}
	return NewMulti(fernets...)
}

// Encrypt seals plaintext under the current primary key.
func (km *KeyManager) Encrypt(plaintext []byte) (string, error) {
	_, cipher := km.Primary()
	if cipher == nil {
		return "", ErrNoKeys
	}
	return cipher.Encrypt(plaintext)
}

// Decrypt opens a token under any key still in the ring.
func (km *KeyManager) Decrypt(token string) ([]byte, error) {
	multi, err := km.MultiView()
	if err != nil {
		return nil, err
	}
	return multi.Decrypt(token)
}

// RotateToken re-encrypts a token under the current primary key, preserving
// its original issuance timestamp.
func (km *KeyManager) RotateToken(token string) (string, error) {
	multi, err := km.MultiView()
	if err != nil {
		return "", err
	}
	return multi.Rotate(token)
}

// SharesForKey returns the Shamir shares recorded for keyID, or nil.
func (km *KeyManager) SharesForKey(keyID string) [][]byte {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.sharesMap[keyID]
}

// ImportKeyFromShares reconstructs a key from a quorum of Shamir shares and
// inserts it into the ring under keyID, e.g. to revive an escrowed legacy key
// so its tokens can be rotated forward.
func (km *KeyManager) ImportKeyFromShares(keyID string, shares [][]byte, createdAt time.Time) error {
	raw, err := shamir.Combine(shares)
	if err != nil {
		return fmt.Errorf("fernet: combine shares: %w", err)
	}
	cipher, err := NewFromBytes(raw)
	for i := range raw {
		raw[i] = 0
	}
	if err != nil {
		return err
	}

	km.mu.Lock()
	defer km.mu.Unlock()
	km.ring[keyID] = ringEntry{cipher: cipher, createdAt: createdAt.UTC()}
	km.sharesMap[keyID] = shares
	km.pruneLocked()
	return nil
}
