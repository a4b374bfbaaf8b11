package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker is a Redis mutual-exclusion lock keyed by name (SET NX PX with a
// random token). It serializes work across service instances.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
	prefix string
}

// NewLocker returns a locker whose locks expire after ttl if never released.
func NewLocker(c *RedisClient, ttl time.Duration) *Locker {
	return &Locker{client: c.GetClient(), ttl: ttl, retry: 25 * time.Millisecond, prefix: "lock:"}
}

// Lock blocks until key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	name := l.prefix + key

	for {
		ok, err := l.client.SetNX(ctx, name, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock %s: %w", key, ctx.Err())
		case <-time.After(l.retry):
		}
	}

	return func() {
		// Release with a fresh context: the caller's may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{name}, token).Err()
	}, nil
}
