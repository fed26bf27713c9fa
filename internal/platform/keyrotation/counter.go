package keyrotation

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Counter is a monotonic counter shared by everything that rotates keys.
type Counter interface {
	Incr(ctx context.Context) (int64, error)
}

// localCounter yields 0, 1, 2, ... for the lifetime of the process.
type localCounter struct {
	mu   sync.Mutex
	next int64
}

func (c *localCounter) Incr(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.next
	c.next++
	return v, nil
}

// RedisCounter is a cluster-wide counter backed by INCR.
type RedisCounter struct {
	rdb     *goredis.Client
	key     string
	timeout time.Duration
}

func NewRedisCounter(redisURL, key string) (*RedisCounter, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisCounterFromClient(rdb, key), nil
}

func NewRedisCounterFromClient(rdb *goredis.Client, key string) *RedisCounter {
	if key == "" {
		key = DefaultCounterKey
	}
	return &RedisCounter{rdb: rdb, key: key, timeout: 500 * time.Millisecond}
}

func (c *RedisCounter) Incr(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.rdb.Incr(ctx, c.key).Result()
}

func (c *RedisCounter) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
