package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// JSONStore is a file-backed Store. The whole document is read on open and
// rewritten on every mutation (read-modify-write; single writer process).
// Writes go to a temp file first and are renamed into place so a crash never
// leaves a torn document.
type JSONStore struct {
	mu       sync.RWMutex
	filepath string
	data     *storeDocument
	hits     int64
	misses   int64
	expired  int64
	now      func() time.Time
}

type storeDocument struct {
	Entries map[string]storeEntry `json:"entries"`
	Meta    storeMeta             `json:"meta"`
}

type storeEntry struct {
	Value     json.RawMessage `json:"value"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

type storeMeta struct {
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
	Stats   Stats     `json:"stats"`
}

// NewJSONStore opens (or creates) the store backed by path.
func NewJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{
		filepath: path,
		now:      time.Now,
		data: &storeDocument{
			Entries: make(map[string]storeEntry),
			Meta:    storeMeta{Created: time.Now()},
		},
	}

	if _, err := os.Stat(path); err == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("loading cache %s: %w", path, err)
		}
	}

	return s, nil
}

var _ Store = (*JSONStore)(nil)

func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.filepath)
	if err != nil {
		return err
	}
	var doc storeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Entries == nil {
		doc.Entries = make(map[string]storeEntry)
	}
	s.data = &doc
	return nil
}

// save must be called with the write lock held.
func (s *JSONStore) save() error {
	s.data.Meta.Updated = s.now()
	s.data.Meta.Stats = s.statsLocked()

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	tmpFile := s.filepath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpFile, s.filepath)
}

// Get decodes the live entry for key into value. Expired entries are pruned
// on access and the file rewritten without them.
func (s *JSONStore) Get(key string, value any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data.Entries[key]
	if !ok {
		s.misses++
		return false, nil
	}
	if entry.ExpiresAt != nil && !s.now().Before(*entry.ExpiresAt) {
		delete(s.data.Entries, key)
		s.expired++
		s.misses++
		if err := s.save(); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := json.Unmarshal(entry.Value, value); err != nil {
		return false, fmt.Errorf("decoding cache entry %q: %w", key, err)
	}
	s.hits++
	return true, nil
}

// Put stores value under key, persisting immediately.
func (s *JSONStore) Put(key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding cache entry %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := storeEntry{Value: raw, CachedAt: s.now()}
	if ttl > 0 {
		exp := s.now().Add(ttl)
		entry.ExpiresAt = &exp
	}
	s.data.Entries[key] = entry
	return s.save()
}

// Delete removes key and persists the change.
func (s *JSONStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Entries[key]; !ok {
		return nil
	}
	delete(s.data.Entries, key)
	return s.save()
}

// Stats reports entry counts and hit/miss counters for this process.
func (s *JSONStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsLocked()
}

func (s *JSONStore) statsLocked() Stats {
	st := Stats{
		Entries: len(s.data.Entries),
		Hits:    s.hits,
		Misses:  s.misses,
		Expired: s.expired,
	}
	for _, e := range s.data.Entries {
		if e.ExpiresAt == nil {
			st.Permanent++
		} else {
			st.Expiring++
		}
	}
	return st
}
