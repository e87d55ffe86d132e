package signing

import (
	"crypto/sha256"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"
)

// KeyStore resolves a keyId to its shared secret.
type KeyStore interface {
	Secret(keyID string) ([]byte, bool)
}

// StaticKeyStore is a map-backed KeyStore for the fixed Client/C2 role
// secrets configured out-of-band at deployment time.
type StaticKeyStore struct {
	mu      sync.RWMutex
	secrets map[string][]byte
}

// NewStaticKeyStore creates a StaticKeyStore seeded from secrets.
func NewStaticKeyStore(secrets map[string]string) *StaticKeyStore {
	s := &StaticKeyStore{secrets: make(map[string][]byte, len(secrets))}
	for keyID, secret := range secrets {
		s.secrets[keyID] = []byte(secret)
	}
	return s
}

// Secret implements KeyStore.
func (s *StaticKeyStore) Secret(keyID string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.secrets[keyID]
	return v, ok
}

// Set adds or replaces the secret for keyID.
func (s *StaticKeyStore) Set(keyID, secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[keyID] = []byte(secret)
}

// Delete removes the secret for keyID.
func (s *StaticKeyStore) Delete(keyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, keyID)
}

// DerivedKeyStore derives per-node secrets from a single C2 master
// secret via HKDF-SHA256, keyed by keyId — the concrete mechanism
// behind spec.md §4.1's "Nodes may have per-node secrets keyed by
// keyId" without requiring the C2 to persist one secret per node.
type DerivedKeyStore struct {
	master []byte
	salt   []byte
}

// NewDerivedKeyStore creates a DerivedKeyStore. salt is deployment-wide
// (e.g. a fixed deployment identifier) and may be nil.
func NewDerivedKeyStore(master, salt []byte) *DerivedKeyStore {
	return &DerivedKeyStore{master: master, salt: salt}
}

// Secret derives the 32-byte secret for keyID. It never fails: every
// keyID maps to some secret, so "unknown keyId" (spec.md §4.1) must be
// enforced by the caller via an allow-list, not by this store.
func (d *DerivedKeyStore) Secret(keyID string) ([]byte, bool) {
	r := hkdf.New(sha256.New, d.master, d.salt, []byte("secchiware-node:"+keyID))
	out := make([]byte, 32)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, false
	}
	return out, true
}
