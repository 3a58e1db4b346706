// Package redis caches spot quotes between runs so price refreshes and
// rebalances do not hammer the upstream chart API. The wrapper is nil-safe:
// a nil *Client satisfies every call and behaves like an always-empty cache,
// so the engine runs unchanged when Redis is not deployed.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dansontsui/aistock-analysis/internal/config"
	"github.com/dansontsui/aistock-analysis/internal/models"
)

// Client wraps the Redis client with quote-specific operations
type Client struct {
	rdb *redis.Client
}

// New creates a new Redis client
func New(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

// Ping checks if Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return redis.Nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Quote caching operations

func priceKey(code string) string {
	return fmt.Sprintf("quote:%s:price", models.CanonicalCode(code))
}

// SetPrice caches a spot price with TTL
func (c *Client) SetPrice(ctx context.Context, code string, price float64, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	return c.rdb.Set(ctx, priceKey(code), price, ttl).Err()
}

// GetPrice retrieves a cached spot price. Misses return an error.
func (c *Client) GetPrice(ctx context.Context, code string) (float64, error) {
	if c == nil {
		return 0, redis.Nil
	}
	return c.rdb.Get(ctx, priceKey(code)).Float64()
}

// InvalidatePrice drops a cached quote, used by the manual price refresh.
func (c *Client) InvalidatePrice(ctx context.Context, codes ...string) error {
	if c == nil || len(codes) == 0 {
		return nil
	}
	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = priceKey(code)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// GetRawClient returns the underlying redis client for advanced operations
func (c *Client) GetRawClient() *redis.Client {
	if c == nil {
		return nil
	}
	return c.rdb
}
