package tokencache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"campusfix/internal/config"
	"campusfix/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewMemoryStore(0, observability.NewNopLogger()).WithClock(clock.Now), clock
}

func TestMemoryStore_TakeIsSingleUse(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "state-1", `{"provider":"google"}`, time.Minute))

	value, ok, err := store.Take(ctx, "state-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"provider":"google"}`, value)

	_, ok, err = store.Take(ctx, "state-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = store.Take(ctx, "never-stored")
	assert.False(t, ok)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a", "1", 5*time.Minute))
	require.NoError(t, store.Put(ctx, "b", "2", 5*time.Minute))

	clock.Advance(5*time.Minute - time.Second)
	_, ok, _ := store.Take(ctx, "a")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok, _ = store.Take(ctx, "b")
	assert.False(t, ok, "expires exactly at ttl")

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStore_PutReplaces(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", "old", time.Minute))
	require.NoError(t, store.Put(ctx, "k", "new", time.Minute))
	value, ok, _ := store.Take(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "new", value)
}

func TestMemoryStore_Sweep(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "short", "1", time.Minute))
	require.NoError(t, store.Put(ctx, "long", "2", time.Hour))
	clock.Advance(2 * time.Minute)

	assert.Equal(t, 1, store.Sweep())
	n, _ := store.Len(ctx)
	assert.Equal(t, 1, n)
}

func TestMemoryStore_BackgroundSweep(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	store := NewMemoryStore(10*time.Millisecond, observability.NewNopLogger()).WithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, store.Startup(ctx))
	require.NoError(t, store.Startup(ctx), "second startup is a no-op")
	require.NoError(t, store.Put(ctx, "k", "v", time.Second))
	clock.Advance(2 * time.Second)

	assert.Eventually(t, func() bool {
		n, _ := store.Len(ctx)
		return n == 0
	}, time.Second, 5*time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, store.Shutdown(shutdownCtx))
	require.NoError(t, store.Shutdown(shutdownCtx))
}

func TestMemoryStore_ConcurrentTakeSingleWinner(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("token-%d", i)
		require.NoError(t, store.Put(ctx, key, "v", time.Minute))

		var winners int32
		var wg sync.WaitGroup
		for j := 0; j < 8; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, ok, _ := store.Take(ctx, key); ok {
					atomic.AddInt32(&winners, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), winners, key)
	}
}

func TestNew(t *testing.T) {
	logger := observability.NewNopLogger()

	store, err := New(config.TokenCacheConfig{Backend: config.TokenCacheMemory}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	store, err = New(config.TokenCacheConfig{Backend: config.TokenCacheRedis, Redis: config.RedisCacheConfig{Addr: "localhost:6379", Prefix: "p:"}}, logger)
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, store)

	_, err = New(config.TokenCacheConfig{Backend: "memcached"}, logger)
	assert.Error(t, err)
}
