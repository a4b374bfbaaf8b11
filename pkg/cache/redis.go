// Package cache holds the storefront's Redis-backed pieces: the product
// listing cache and the per-customer checkout lock.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

const pingTimeout = 5 * time.Second

// RedisClient is the shared connection behind ProductCache and Locker.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient connects to addr and pings it. An empty addr is an error;
// the app treats any error here as "run without cache and lock".
func NewRedisClient(addr, password string) (*RedisClient, error) {
	if addr == "" {
		return nil, fmt.Errorf("REDIS_ADDR environment variable not set")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	slog.Info("connected to redis", "addr", addr)

	return &RedisClient{client: client}, nil
}

// Close releases the connection pool. The product cache and checkout
// locker built on this client must not be used afterwards. Safe on a
// client that failed to connect.
func (c *RedisClient) Close() {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Close(); err != nil {
		slog.Warn("closing redis connection", "error", err)
		return
	}
	slog.Debug("redis connection closed")
}

// GetClient exposes the go-redis client so ProductCache can pipeline its
// product:<id> writes and Locker can run its SET NX and release script.
func (c *RedisClient) GetClient() *redis.Client {
	return c.client
}
