package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dormitory/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisIdempotencyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisIdempotencyStoreWithClient(client, "")
	ctx := context.Background()

	t.Run("keys are namespaced and claimed once", func(t *testing.T) {
		ok, err := store.MarkProcessed(ctx, "vnpay:ipn:ref1:14226112", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, mr.Exists("dorm:idempotency:vnpay:ipn:ref1:14226112"))

		ok, err = store.MarkProcessed(ctx, "vnpay:ipn:ref1:14226112", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)

		processed, err := store.IsProcessed(ctx, "vnpay:ipn:ref1:14226112")
		require.NoError(t, err)
		assert.True(t, processed)
	})

	t.Run("keys expire with their ttl", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "vnpay:ipn:ref2:1", time.Minute)
		require.NoError(t, err)

		mr.FastForward(2 * time.Minute)

		processed, err := store.IsProcessed(ctx, "vnpay:ipn:ref2:1")
		require.NoError(t, err)
		assert.False(t, processed)
	})

	t.Run("close leaves a borrowed client open", func(t *testing.T) {
		require.NoError(t, store.Close())
		assert.NoError(t, client.Ping(ctx).Err())
	})

	t.Run("errors surface when redis is gone", func(t *testing.T) {
		mr.SetError("LOADING")
		defer mr.SetError("")

		_, err := store.IsProcessed(ctx, "vnpay:ipn:ref3:1")
		assert.Error(t, err)
	})
}

func TestIdempotencyStoreFactory(t *testing.T) {
	ctx := context.Background()

	t.Run("redis backend", func(t *testing.T) {
		mr := miniredis.RunT(t)
		port, err := strconv.Atoi(mr.Port())
		require.NoError(t, err)

		f := NewIdempotencyStoreFactory(
			config.RedisConfig{Host: mr.Host(), Port: port},
			config.IdempotencyConfig{Backend: BackendRedis, KeyPrefix: "test:"},
		)
		store, err := f.CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()

		assert.IsType(t, &RedisIdempotencyStore{}, store)
		_, err = store.MarkProcessed(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.True(t, mr.Exists("test:k"))
	})

	t.Run("memory backend", func(t *testing.T) {
		f := NewIdempotencyStoreFactory(config.RedisConfig{}, config.IdempotencyConfig{Backend: "memory"})
		store, err := f.CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()

		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("unreachable redis falls back", func(t *testing.T) {
		f := NewIdempotencyStoreFactory(
			config.RedisConfig{Host: "127.0.0.1", Port: 1},
			config.IdempotencyConfig{Backend: BackendRedis},
		)
		store, err := f.CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()

		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("unreachable redis without fallback fails", func(t *testing.T) {
		f := NewIdempotencyStoreFactory(
			config.RedisConfig{Host: "127.0.0.1", Port: 1},
			config.IdempotencyConfig{Backend: BackendRedis},
			WithInMemoryFallback(false),
		)
		_, err := f.CreateStore(ctx)
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		f := NewIdempotencyStoreFactory(config.RedisConfig{}, config.IdempotencyConfig{Backend: "memcached"})
		_, err := f.CreateStore(ctx)
		assert.Error(t, err)
	})
}
