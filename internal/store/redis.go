package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a client from the REDIS_* configuration values.
// Timeouts are deliberately short: a slow Redis must degrade the admission
// layer into fail-open, not stall the request path.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
}

// RedisCounterStore implements the counter contract on Redis. Increment
// pipelines INCR with a TTL probe and pins the expiry only when the key is
// fresh, so a window's length is fixed by its first request.
type RedisCounterStore struct {
	client *redis.Client
	prefix string
}

// NewRedisCounterStore wraps client. Keys are namespaced under prefix;
// empty selects "admission:".
func NewRedisCounterStore(client *redis.Client, prefix string) *RedisCounterStore {
	if prefix == "" {
		prefix = "admission:"
	}
	return &RedisCounterStore{client: client, prefix: prefix}
}

func (s *RedisCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	full := s.prefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, full)
	ttl := pipe.TTL(ctx, full)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incrementing %s: %w", key, err)
	}

	// TTL of -1 means the key has no expiry yet: this increment opened
	// the window, so pin its length now.
	if ttl.Val() == -1 {
		if err := s.client.Expire(ctx, full, window).Err(); err != nil {
			return 0, fmt.Errorf("setting window on %s: %w", key, err)
		}
	}

	return incr.Val(), nil
}

func (s *RedisCounterStore) Get(ctx context.Context, key string) (int64, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading %s: %w", key, err)
	}
	return val, true, nil
}
