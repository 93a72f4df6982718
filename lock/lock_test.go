package lock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyed_SerializesSameKey(t *testing.T) {
	// GIVEN: 20 goroutines incrementing a counter under the same key
	k := NewKeyed()
	var (
		wg      sync.WaitGroup
		inside  int32
		maxSeen int32
	)

	// WHEN: They all run at once
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(context.Background(), "unit-1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	// THEN: Never more than one holder, and the map is cleaned up
	assert.Equal(t, int32(1), maxSeen)
	assert.Zero(t, k.held())
}

func TestKeyed_DifferentKeysDoNotBlock(t *testing.T) {
	k := NewKeyed()
	unlockA, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := k.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyed_ContextCancelled(t *testing.T) {
	k := NewKeyed()
	unlock, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Double unlock is harmless
	unlock()
	unlock()
	assert.Zero(t, k.held())
}

func TestRedis_Exclusive(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	l := NewRedis(client, "rental-test:", 5*time.Second)
	unlock, err := l.Lock(context.Background(), "unit-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "unit-1")
	assert.ErrorIs(t, err, ErrNotAcquired)

	unlock()
	again, err := l.Lock(context.Background(), "unit-1")
	require.NoError(t, err)
	again()
}
