// Package sessionstore is the durable per-attempt store that carries the
// ephemeral credentials across the provider redirect. Exactly two entries
// live here; both are destroyed together on sign-out.
package sessionstore

import "sync"

// Fixed entry names. The values are an exported ephemeral private key and
// the attempt randomness.
const (
	KeyEphemeralKeyPair = "ephemeral_keypair"
	KeyRandomness       = "randomness"
)

// Store is the two-entry durable key-value store of one login attempt.
type Store interface {
	Put(key, value string) error
	Get(key string) (string, bool)
	// Clear removes every entry; after Clear a reload finds nothing.
	Clear() error
}

// MemoryStore is a Store without durability, for tests and hosts that keep
// their own session lifetime.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (s *MemoryStore) Put(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]string)
	return nil
}
