package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store with the same TTL semantics as JSONStore.
// Tests inject it to exercise caching policy without touching disk; Clock is
// overridable so expiry can be driven deterministically.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]storeEntry
	hits    int64
	misses  int64
	expired int64

	// Clock supplies the current time; defaults to time.Now.
	Clock func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]storeEntry),
		Clock:   time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

// Get decodes the live entry for key into value.
func (s *MemoryStore) Get(key string, value any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		s.misses++
		return false, nil
	}
	if entry.ExpiresAt != nil && !s.Clock().Before(*entry.ExpiresAt) {
		delete(s.entries, key)
		s.expired++
		s.misses++
		return false, nil
	}
	if err := json.Unmarshal(entry.Value, value); err != nil {
		return false, fmt.Errorf("decoding cache entry %q: %w", key, err)
	}
	s.hits++
	return true, nil
}

// Put stores value under key.
func (s *MemoryStore) Put(key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding cache entry %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := storeEntry{Value: raw, CachedAt: s.Clock()}
	if ttl > 0 {
		exp := s.Clock().Add(ttl)
		entry.ExpiresAt = &exp
	}
	s.entries[key] = entry
	return nil
}

// Delete removes key if present.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Stats reports counters for the life of the store.
func (s *MemoryStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Entries: len(s.entries),
		Hits:    s.hits,
		Misses:  s.misses,
		Expired: s.expired,
	}
	for _, e := range s.entries {
		if e.ExpiresAt == nil {
			st.Permanent++
		} else {
			st.Expiring++
		}
	}
	return st
}
