package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

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
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestInMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)}
	store := newInMemoryIdempotencyStore(clock.Now, time.Hour)
	defer store.Close()

	t.Run("first mark wins", func(t *testing.T) {
		ok, err := store.MarkProcessed(ctx, "vnpay:ipn:a:1", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.MarkProcessed(ctx, "vnpay:ipn:a:1", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)

		processed, err := store.IsProcessed(ctx, "vnpay:ipn:a:1")
		require.NoError(t, err)
		assert.True(t, processed)
	})

	t.Run("unknown key is not processed", func(t *testing.T) {
		processed, err := store.IsProcessed(ctx, "vnpay:ipn:missing:1")
		require.NoError(t, err)
		assert.False(t, processed)
	})

	t.Run("expired key can be marked again", func(t *testing.T) {
		ok, err := store.MarkProcessed(ctx, "vnpay:ipn:b:1", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		clock.Advance(2 * time.Minute)

		processed, err := store.IsProcessed(ctx, "vnpay:ipn:b:1")
		require.NoError(t, err)
		assert.False(t, processed)

		ok, err = store.MarkProcessed(ctx, "vnpay:ipn:b:1", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("sweep drops expired keys", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "vnpay:ipn:c:1", time.Second)
		require.NoError(t, err)
		before := store.Size()

		clock.Advance(time.Hour * 48)
		store.sweep()

		assert.Less(t, store.Size(), before)
		assert.Zero(t, store.Size())
	})
}

func TestInMemoryIdempotencyStore_ConcurrentMark(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.MarkProcessed(context.Background(), "vnpay:ipn:race:1", time.Hour)
			if err == nil && ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close(), "second close is a no-op")
}

func BenchmarkInMemoryIdempotencyStore_MarkProcessed(b *testing.B) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.MarkProcessed(ctx, fmt.Sprintf("key-%d", i), time.Hour)
	}
}
