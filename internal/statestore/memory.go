package statestore

import (
	"context"
	"sync"
	"time"
)

// memEntry is a value with an optional expiry deadline.
type memEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is an in-process Store for tests and single-run invocations.
// Expired entries are dropped lazily on read; there is no background sweep
// because the store dies with the process anyway.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry

	// now is overridable so TTL behavior is testable without sleeping.
	now func() time.Time
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memEntry),
		now:     time.Now,
	}
}

// Get returns the value for key, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return "", ErrNotFound
	}

	if entry.expired(s.now()) {
		delete(s.entries, key)
		return "", ErrNotFound
	}

	return entry.value, nil
}

// Put stores value under key. A zero ttl stores without expiry.
func (s *MemoryStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}

	s.entries[key] = entry

	return nil
}

// Forget removes key.
func (s *MemoryStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)

	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
