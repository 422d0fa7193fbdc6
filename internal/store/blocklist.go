package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBlocklist keeps temporary blocks in Redis so that every replica
// sees the same entries. SET NX leaves an existing entry's TTL untouched,
// which keeps block windows fixed from their first trigger.
type RedisBlocklist struct {
	client *redis.Client
	prefix string
}

// NewRedisBlocklist wraps client. Keys are namespaced under prefix; empty
// selects "blocklist:".
func NewRedisBlocklist(client *redis.Client, prefix string) *RedisBlocklist {
	if prefix == "" {
		prefix = "blocklist:"
	}
	return &RedisBlocklist{client: client, prefix: prefix}
}

// IsBlocked reports whether identity has a live block and its remaining TTL.
func (b *RedisBlocklist) IsBlocked(ctx context.Context, identity string) (bool, time.Duration, error) {
	remaining, err := b.client.PTTL(ctx, b.prefix+identity).Result()
	if err != nil {
		return false, 0, fmt.Errorf("checking block for %s: %w", identity, err)
	}
	// -2: no entry. -1: no expiry, which Block never writes.
	if remaining < 0 {
		return false, 0, nil
	}
	return true, remaining, nil
}

// Block inserts identity for duration unless an unexpired entry exists.
func (b *RedisBlocklist) Block(ctx context.Context, identity string, duration time.Duration) error {
	if err := b.client.SetNX(ctx, b.prefix+identity, 1, duration).Err(); err != nil {
		return fmt.Errorf("blocking %s: %w", identity, err)
	}
	return nil
}

// UnblockExpired is a no-op: Redis expiry is authoritative.
func (b *RedisBlocklist) UnblockExpired(ctx context.Context) {}
