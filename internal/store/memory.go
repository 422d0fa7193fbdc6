package store

import (
	"context"
	"sync"
	"time"
)

// entry is one counter window: a count plus the instant it expires.
type entry struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounterStore is a process-local counter store with the same
// increment-with-TTL contract as the Redis store. Windows expire lazily on
// access; Sweep clears leftovers from long-idle keys.
type MemoryCounterStore struct {
	mu      sync.Mutex
	entries map[string]entry
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{entries: make(map[string]entry)}
}

// Increment atomically adds one to key. The TTL is set to window only when
// the increment opens a fresh window.
func (s *MemoryCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || now.After(e.expiresAt) {
		s.entries[key] = entry{count: 1, expiresAt: now.Add(window)}
		return 1, nil
	}
	e.count++
	s.entries[key] = e
	return e.count, nil
}

// Get reports the current count and whether the key has a live window.
func (s *MemoryCounterStore) Get(ctx context.Context, key string) (int64, bool, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return 0, false, nil
	}
	if now.After(e.expiresAt) {
		delete(s.entries, key)
		return 0, false, nil
	}
	return e.count, true, nil
}

// Sweep removes expired windows.
func (s *MemoryCounterStore) Sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}
