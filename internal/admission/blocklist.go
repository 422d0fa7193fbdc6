package admission

import (
	"context"
	"sync"
	"time"
)

// MemoryBlocklist is the in-process TemporaryBlocklist. Expiry is checked
// lazily on every lookup; UnblockExpired is an optional sweep that bounds
// memory. Entries are local to one process, so multi-replica deployments
// should use the shared-store implementation instead.
type MemoryBlocklist struct {
	mu      sync.RWMutex
	entries map[string]time.Time // identity → expiry
}

var _ TemporaryBlocklist = (*MemoryBlocklist)(nil)

func NewMemoryBlocklist() *MemoryBlocklist {
	return &MemoryBlocklist{entries: make(map[string]time.Time)}
}

// IsBlocked reports whether identity is under an unexpired block and how
// long the block has left.
func (b *MemoryBlocklist) IsBlocked(ctx context.Context, identity string) (bool, time.Duration, error) {
	b.mu.RLock()
	expires, ok := b.entries[identity]
	b.mu.RUnlock()
	if !ok {
		return false, 0, nil
	}

	remaining := time.Until(expires)
	if remaining > 0 {
		return true, remaining, nil
	}

	// Lazy removal. Re-check under the write lock: another request may
	// have re-blocked the identity in between.
	b.mu.Lock()
	if expires, ok := b.entries[identity]; ok && !expires.After(time.Now()) {
		delete(b.entries, identity)
	}
	b.mu.Unlock()
	return false, 0, nil
}

// Block inserts identity for duration. An existing unexpired block is left
// untouched: the block window is fixed from the first trigger.
func (b *MemoryBlocklist) Block(ctx context.Context, identity string, duration time.Duration) error {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	if expires, ok := b.entries[identity]; ok && expires.After(now) {
		return nil
	}
	b.entries[identity] = now.Add(duration)
	return nil
}

// UnblockExpired removes every expired entry.
func (b *MemoryBlocklist) UnblockExpired(ctx context.Context) {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	for identity, expires := range b.entries {
		if !expires.After(now) {
			delete(b.entries, identity)
		}
	}
}

// Len reports the number of entries, including not-yet-swept expired ones.
func (b *MemoryBlocklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
