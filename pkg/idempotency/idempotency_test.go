package idempotency_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/labgrid/pkg/idempotency"
)

func stores(t *testing.T) map[string]idempotency.Store {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]idempotency.Store{
		"memory": idempotency.NewMemoryStore(time.Minute),
		"redis":  idempotency.NewRedisStore(client, "test:"),
	}
}

func TestStore_ClaimOnce(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := idempotency.Key("stripe", "evt_1")

			ok, err := store.Claim(ctx, key, time.Hour)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = store.Claim(ctx, key, time.Hour)
			require.NoError(t, err)
			assert.False(t, ok, "second claim must be rejected")

			require.NoError(t, store.Release(ctx, key))
			ok, err = store.Claim(ctx, key, time.Hour)
			require.NoError(t, err)
			assert.True(t, ok, "released key can be claimed again")

			_, err = store.Claim(ctx, "", time.Hour)
			assert.ErrorIs(t, err, idempotency.ErrEmptyKey)
		})
	}
}

func TestStore_Extend(t *testing.T) {
	t.Parallel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			ok, err := store.Claim(ctx, "held", 20*time.Millisecond)
			require.NoError(t, err)
			require.True(t, ok)
			require.NoError(t, store.Extend(ctx, "held", time.Hour))

			time.Sleep(40 * time.Millisecond)
			ok, err = store.Claim(ctx, "held", time.Hour)
			require.NoError(t, err)
			assert.False(t, ok, "extended key stays claimed")

			require.NoError(t, store.Extend(ctx, "never-claimed", time.Hour))
			ok, err = store.Claim(ctx, "never-claimed", time.Hour)
			require.NoError(t, err)
			assert.False(t, ok)

			assert.ErrorIs(t, store.Extend(ctx, "", time.Hour), idempotency.ErrEmptyKey)
		})
	}
}

func TestMemoryStore_ConcurrentClaims(t *testing.T) {
	t.Parallel()

	store := idempotency.NewMemoryStore(time.Minute)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.Claim(context.Background(), "paypal:WH-1", time.Hour); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryStore_Expiry(t *testing.T) {
	t.Parallel()

	store := idempotency.NewMemoryStore(time.Minute)
	ok, err := store.Claim(context.Background(), "k", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	ok, err = store.Claim(context.Background(), "k", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "paypal:WH-123", idempotency.Key("paypal", "WH-123"))
}
