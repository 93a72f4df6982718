package lock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrNotAcquired is returned when the lock stays taken until ctx expires.
var ErrNotAcquired = errors.New("lock not acquired")

// unlockScript deletes the key only if it still holds our token, so an expired
// lock re-acquired by someone else is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a best-effort distributed lock over one Redis node.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// NewRedis creates a Redis lock. ttl bounds how long a crashed holder blocks
// others.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl, retry: 50 * time.Millisecond}
}

// Lock polls SET NX until it wins or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	full := r.prefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, full, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", full, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, full, ctx.Err())
		case <-time.After(r.retry):
		}
	}

	return func() {
		// The caller's ctx may already be cancelled; release regardless.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := unlockScript.Run(ctx, r.client, []string{full}, token).Err(); err != nil {
			log.Printf("[Lock] Failed to release %s: %v", full, err)
		}
	}, nil
}
