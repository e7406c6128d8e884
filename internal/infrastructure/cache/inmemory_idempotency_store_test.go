package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore returns a store whose clock the test controls.
func newTestStore(t *testing.T) (*InMemoryIdempotencyStore, *time.Time) {
	t.Helper()
	store := NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	return store, &now
}

func TestInMemoryIdempotencyStore_Remember(t *testing.T) {
	ctx := context.Background()

	t.Run("first writer wins", func(t *testing.T) {
		store, _ := newTestStore(t)

		stored, err := store.Remember(ctx, "pay-1", []byte(`{"success":true}`), time.Hour)
		require.NoError(t, err)
		assert.True(t, stored)

		stored, err = store.Remember(ctx, "pay-1", []byte(`{"success":false}`), time.Hour)
		require.NoError(t, err)
		assert.False(t, stored)

		value, ok, err := store.Lookup(ctx, "pay-1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.JSONEq(t, `{"success":true}`, string(value))
	})

	t.Run("expired value can be replaced", func(t *testing.T) {
		store, now := newTestStore(t)

		_, err := store.Remember(ctx, "pay-2", []byte("a"), time.Minute)
		require.NoError(t, err)
		*now = now.Add(2 * time.Minute)

		_, ok, err := store.Lookup(ctx, "pay-2")
		require.NoError(t, err)
		assert.False(t, ok)

		stored, err := store.Remember(ctx, "pay-2", []byte("b"), time.Minute)
		require.NoError(t, err)
		assert.True(t, stored)
	})

	t.Run("stored bytes are copied", func(t *testing.T) {
		store, _ := newTestStore(t)

		buf := []byte("abc")
		_, err := store.Remember(ctx, "pay-3", buf, time.Hour)
		require.NoError(t, err)
		buf[0] = 'x'

		value, _, err := store.Lookup(ctx, "pay-3")
		require.NoError(t, err)
		assert.Equal(t, "abc", string(value))
	})
}

func TestInMemoryIdempotencyStore_Forget(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.Remember(ctx, "rf-1", []byte("x"), time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Forget(ctx, "rf-1"))

	_, ok, err := store.Lookup(ctx, "rf-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, store.Forget(ctx, "never-stored"))
}

func TestInMemoryIdempotencyStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store, now := newTestStore(t)

	_, _ = store.Remember(ctx, "short-lived-1", nil, time.Second)
	_, _ = store.Remember(ctx, "short-lived-2", nil, time.Second)
	_, _ = store.Remember(ctx, "long-lived", nil, time.Hour)
	assert.Equal(t, 3, store.Len())

	*now = now.Add(time.Minute)
	for _, key := range []string{"short-lived-1", "short-lived-2"} {
		_, ok, err := store.Lookup(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}

	assert.Equal(t, 1, store.Len())
	_, ok, err := store.Lookup(ctx, "long-lived")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInMemoryIdempotencyStore_Capacity(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryIdempotencyStore(2)

	for _, key := range []string{"pay-a", "pay-b", "pay-c"} {
		stored, err := store.Remember(ctx, key, []byte(key), time.Hour)
		require.NoError(t, err)
		require.True(t, stored)
	}

	assert.Equal(t, 2, store.Len())
	_, ok, _ := store.Lookup(ctx, "pay-a")
	assert.False(t, ok, "oldest key is evicted")
	_, ok, _ = store.Lookup(ctx, "pay-c")
	assert.True(t, ok)
}

func TestInMemoryIdempotencyStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	const numGoroutines = 100
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		newCount int
	)
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stored, err := store.Remember(ctx, "concurrent", []byte("v"), time.Hour)
			if err == nil && stored {
				mu.Lock()
				newCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, newCount, "exactly one goroutine should store the value")
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryIdempotencyStore()
	_, _ = store.Remember(ctx, "pay-1", []byte("x"), time.Hour)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
	assert.Zero(t, store.Len())
}
