package childchain

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// Counter hands out block numbers. The operator increments it exactly once
// per submitted block, so numbers are monotonically increasing and survive
// restarts when backed by external storage.
type Counter interface {
	// Current returns the number of the block currently being built.
	Current(ctx context.Context) (uint32, error)
	// Increment advances the counter and returns the new value.
	Increment(ctx context.Context) (uint32, error)
}

const blockNumberKey = "blockNumber"

// RedisCounter keeps the block number in Redis under the "blockNumber" key.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter wraps an existing Redis client. The counter is initialized
// to 1 on first use.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Current(ctx context.Context) (uint32, error) {
	value, err := c.client.Get(ctx, blockNumberKey).Uint64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, blockNumberKey, 1, 0).Err(); err != nil {
			return 0, errors.Wrap(err, "could not initialize block counter")
		}
		return 1, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "could not read block counter")
	}
	return uint32(value), nil
}

func (c *RedisCounter) Increment(ctx context.Context) (uint32, error) {
	value, err := c.client.Incr(ctx, blockNumberKey).Result()
	if err != nil {
		return 0, errors.Wrap(err, "could not advance block counter")
	}
	return uint32(value), nil
}

// MemoryCounter is a process-local Counter for tests and single-node runs.
type MemoryCounter struct {
	mu      sync.Mutex
	current uint32
}

// NewMemoryCounter starts counting at start.
func NewMemoryCounter(start uint32) *MemoryCounter {
	if start == 0 {
		start = 1
	}
	return &MemoryCounter{current: start}
}

func (c *MemoryCounter) Current(ctx context.Context) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, nil
}

func (c *MemoryCounter) Increment(ctx context.Context) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current++
	return c.current, nil
}
