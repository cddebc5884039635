// Package redis provides a thin wrapper around go-redis/v9 with connection
// pooling, cache get/set/delete operations, and pattern-based key invalidation.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a Redis client and verifies the connection with a PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Wrap adopts an existing go-redis client without checking the connection.
func Wrap(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Get returns the string value for the given key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

// Set stores a value with the given TTL.
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Del deletes one or more keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// FlushByPattern scans for keys matching any of the glob patterns and
// deletes them, returning the number of keys removed.
func (c *Client) FlushByPattern(ctx context.Context, patterns ...string) (int64, error) {
	var deleted int64
	for _, pattern := range patterns {
		iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
		batch := make([]string, 0, 100)
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if len(batch) == cap(batch) {
				if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
					return deleted, fmt.Errorf("deleting keys for %s: %w", pattern, err)
				}
				deleted += int64(len(batch))
				batch = batch[:0]
			}
		}
		if err := iter.Err(); err != nil {
			return deleted, fmt.Errorf("scanning pattern %s: %w", pattern, err)
		}
		if len(batch) > 0 {
			if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
				return deleted, fmt.Errorf("deleting keys for %s: %w", pattern, err)
			}
			deleted += int64(len(batch))
		}
	}
	return deleted, nil
}

// IsNilError reports whether err is a Redis nil (key-not-found) error.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping sends a PING to Redis and returns any error.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
