package admission

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryBlocklistBlockAndExpiry(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBlocklist()

	blocked, _, err := b.IsBlocked(ctx, "10.0.0.5")
	if err != nil {
		t.Fatalf("IsBlocked: %v", err)
	}
	if blocked {
		t.Fatal("fresh blocklist reports blocked")
	}

	if err := b.Block(ctx, "10.0.0.5", 50*time.Millisecond); err != nil {
		t.Fatalf("Block: %v", err)
	}

	blocked, remaining, err := b.IsBlocked(ctx, "10.0.0.5")
	if err != nil {
		t.Fatalf("IsBlocked: %v", err)
	}
	if !blocked {
		t.Fatal("identity not blocked after Block")
	}
	if remaining <= 0 || remaining > 50*time.Millisecond {
		t.Errorf("remaining = %s, want within (0, 50ms]", remaining)
	}

	time.Sleep(60 * time.Millisecond)

	blocked, _, err = b.IsBlocked(ctx, "10.0.0.5")
	if err != nil {
		t.Fatalf("IsBlocked: %v", err)
	}
	if blocked {
		t.Error("identity still blocked after TTL elapsed")
	}
	if got := b.Len(); got != 0 {
		t.Errorf("Len = %d after lazy removal, want 0", got)
	}
}

func TestMemoryBlocklistDoesNotExtendExistingBlock(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBlocklist()

	if err := b.Block(ctx, "10.0.0.5", 50*time.Millisecond); err != nil {
		t.Fatalf("Block: %v", err)
	}
	// A re-trigger while blocked must not move the expiry.
	if err := b.Block(ctx, "10.0.0.5", time.Hour); err != nil {
		t.Fatalf("Block: %v", err)
	}

	_, remaining, err := b.IsBlocked(ctx, "10.0.0.5")
	if err != nil {
		t.Fatalf("IsBlocked: %v", err)
	}
	if remaining > 50*time.Millisecond {
		t.Errorf("remaining = %s, re-trigger extended the block", remaining)
	}
}

func TestMemoryBlocklistReblockAfterExpiry(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBlocklist()

	if err := b.Block(ctx, "10.0.0.5", 10*time.Millisecond); err != nil {
		t.Fatalf("Block: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if err := b.Block(ctx, "10.0.0.5", time.Hour); err != nil {
		t.Fatalf("Block: %v", err)
	}
	blocked, remaining, err := b.IsBlocked(ctx, "10.0.0.5")
	if err != nil {
		t.Fatalf("IsBlocked: %v", err)
	}
	if !blocked {
		t.Fatal("expired identity could not be blocked again")
	}
	if remaining < 50*time.Minute {
		t.Errorf("remaining = %s, want close to an hour", remaining)
	}
}

func TestMemoryBlocklistSweep(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBlocklist()

	if err := b.Block(ctx, "198.51.100.1", 5*time.Millisecond); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if err := b.Block(ctx, "198.51.100.2", time.Hour); err != nil {
		t.Fatalf("Block: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	b.UnblockExpired(ctx)

	if got := b.Len(); got != 1 {
		t.Errorf("Len = %d after sweep, want 1", got)
	}
	blocked, _, _ := b.IsBlocked(ctx, "198.51.100.2")
	if !blocked {
		t.Error("sweep removed an unexpired entry")
	}
}

func TestMemoryBlocklistConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBlocklist()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = b.Block(ctx, "203.0.113.7", time.Minute)
				_, _, _ = b.IsBlocked(ctx, "203.0.113.7")
				b.UnblockExpired(ctx)
			}
		}()
	}
	wg.Wait()

	blocked, _, err := b.IsBlocked(ctx, "203.0.113.7")
	if err != nil {
		t.Fatalf("IsBlocked: %v", err)
	}
	if !blocked {
		t.Error("identity not blocked after concurrent writes")
	}
}
