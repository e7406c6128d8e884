package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbill/backend/internal/domain/shared"
	"github.com/netbill/backend/internal/infrastructure/config"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredis(t)
	store := NewRedisIdempotencyStore(client, "")

	stored, err := store.Remember(ctx, "pay-1", []byte(`{"success":true}`), time.Hour)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.True(t, mr.Exists("netbill:idempotency:pay-1"))

	stored, err = store.Remember(ctx, "pay-1", []byte(`{"success":false}`), time.Hour)
	require.NoError(t, err)
	assert.False(t, stored)

	value, ok, err := store.Lookup(ctx, "pay-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"success":true}`, string(value))

	_, ok, err = store.Lookup(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Hour)
	_, ok, err = store.Lookup(ctx, "pay-1")
	require.NoError(t, err)
	assert.False(t, ok, "value expires with its ttl")

	_, err = store.Remember(ctx, "pay-2", []byte("x"), time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Forget(ctx, "pay-2"))
	assert.False(t, mr.Exists("netbill:idempotency:pay-2"))
}

func TestRedisIdempotencyStore_ServerDown(t *testing.T) {
	mr, client := newMiniredis(t)
	store := NewRedisIdempotencyStore(client, "test:")
	mr.Close()

	_, err := store.Remember(context.Background(), "pay-1", []byte("x"), time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remember pay-1")
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquirer waits for release", func(t *testing.T) {
		mr, client := newMiniredis(t)
		locker := NewRedisLocker(client, WithRetryInterval(5*time.Millisecond))

		release, err := locker.Acquire(ctx, "refund:p1", 30*time.Second)
		require.NoError(t, err)
		assert.True(t, mr.Exists("netbill:lock:refund:p1"))

		acquired := make(chan func(), 1)
		go func() {
			r, err := locker.Acquire(ctx, "refund:p1", 30*time.Second)
			if err == nil {
				acquired <- r
			}
		}()

		select {
		case <-acquired:
			t.Fatal("lock acquired while held")
		case <-time.After(50 * time.Millisecond):
		}

		release()
		select {
		case r := <-acquired:
			r()
		case <-time.After(2 * time.Second):
			t.Fatal("waiter never acquired the lock")
		}
		assert.False(t, mr.Exists("netbill:lock:refund:p1"))
	})

	t.Run("gives up when context ends", func(t *testing.T) {
		_, client := newMiniredis(t)
		locker := NewRedisLocker(client, WithRetryInterval(5*time.Millisecond))

		release, err := locker.Acquire(ctx, "refund:p2", 30*time.Second)
		require.NoError(t, err)
		defer release()

		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()
		_, err = locker.Acquire(waitCtx, "refund:p2", 30*time.Second)
		assert.ErrorIs(t, err, shared.ErrLockNotAcquired)
	})

	t.Run("stale holder cannot release a newer lock", func(t *testing.T) {
		mr, client := newMiniredis(t)
		locker := NewRedisLocker(client, WithLockPrefix("l:"))

		stale, err := locker.Acquire(ctx, "p3", time.Second)
		require.NoError(t, err)
		mr.FastForward(2 * time.Second)

		fresh, err := locker.Acquire(ctx, "p3", time.Minute)
		require.NoError(t, err)

		stale()
		assert.True(t, mr.Exists("l:p3"), "stale release must keep the new holder's lock")
		fresh()
		assert.False(t, mr.Exists("l:p3"))
	})

	t.Run("rejects non-positive ttl", func(t *testing.T) {
		_, client := newMiniredis(t)
		_, err := NewRedisLocker(client).Acquire(ctx, "p4", 0)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestFactory_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("in-memory when redis is not configured", func(t *testing.T) {
		backend, err := NewFactory(config.RedisConfig{}).Create(ctx)
		require.NoError(t, err)
		defer backend.Close()

		assert.False(t, backend.Distributed())
		assert.NoError(t, backend.Ping(ctx))
		assert.IsType(t, &InMemoryIdempotencyStore{}, backend.Store)
		assert.IsType(t, &InMemoryLocker{}, backend.Locker)
	})

	t.Run("redis when reachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		port, err := strconv.Atoi(mr.Port())
		require.NoError(t, err)

		backend, err := NewFactory(config.RedisConfig{Host: mr.Host(), Port: port}).Create(ctx)
		require.NoError(t, err)
		defer backend.Close()

		assert.True(t, backend.Distributed())
		assert.IsType(t, &RedisIdempotencyStore{}, backend.Store)
		assert.IsType(t, &RedisLocker{}, backend.Locker)
		require.NoError(t, backend.Ping(ctx))

		mr.SetError("LOADING")
		assert.Error(t, backend.Ping(ctx))
		mr.SetError("")
	})

	t.Run("unreachable redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		port, err := strconv.Atoi(mr.Port())
		require.NoError(t, err)
		mr.Close()
		cfg := config.RedisConfig{Host: mr.Host(), Port: port}

		backend, err := NewFactory(cfg).Create(ctx)
		require.NoError(t, err)
		assert.False(t, backend.Distributed())
		_ = backend.Close()

		_, err = NewFactory(cfg, WithInMemoryFallback(false)).Create(ctx)
		assert.Error(t, err)
	})
}
