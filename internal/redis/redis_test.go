package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), Config{URL: "redis://" + mr.Addr(), PoolSize: 2})
	require.NoError(t, err)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_NotConfigured", func(t *testing.T) {
		client, err := New(ctx, Config{})
		require.NoError(t, err)
		assert.Nil(t, client)
	})

	t.Run("Error_InvalidURL", func(t *testing.T) {
		_, err := New(ctx, Config{URL: "not-a-url://"})
		assert.ErrorContains(t, err, "failed to parse redis URL")
	})

	t.Run("Error_Unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, err := New(ctx, Config{URL: "redis://" + addr, DialTimeout: 100 * time.Millisecond})
		assert.ErrorContains(t, err, "failed to ping redis")
	})

	t.Run("Success_Health", func(t *testing.T) {
		client, _ := newTestClient(t)
		assert.NoError(t, client.Health(ctx))
	})
}

func TestLock(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_ExclusiveUntilReleased", func(t *testing.T) {
		client, _ := newTestClient(t)

		first, err := client.TryLock(ctx, "cleanup", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, first)

		second, err := client.TryLock(ctx, "cleanup", time.Minute)
		require.NoError(t, err)
		assert.Nil(t, second)

		require.NoError(t, first.Release(ctx))

		third, err := client.TryLock(ctx, "cleanup", time.Minute)
		require.NoError(t, err)
		assert.NotNil(t, third)
	})

	t.Run("Success_ExpiredHolderCannotReleaseNewLock", func(t *testing.T) {
		client, mr := newTestClient(t)

		stale, err := client.TryLock(ctx, "cleanup", time.Second)
		require.NoError(t, err)
		require.NotNil(t, stale)

		mr.FastForward(2 * time.Second)

		current, err := client.TryLock(ctx, "cleanup", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, current)

		require.NoError(t, stale.Release(ctx))
		assert.True(t, mr.Exists("cleanup"))
	})

	t.Run("Error_AcquireWithServerDown", func(t *testing.T) {
		client, mr := newTestClient(t)
		mr.Close()

		lock, err := client.TryLock(ctx, "cleanup", time.Minute)
		assert.Nil(t, lock)
		assert.ErrorContains(t, err, `failed to acquire lock "cleanup"`)
	})

	t.Run("Error_ReleaseWithServerDown", func(t *testing.T) {
		client, mr := newTestClient(t)
		lock, err := client.TryLock(ctx, "cleanup", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, lock)
		mr.Close()

		assert.ErrorContains(t, lock.Release(ctx), `failed to release lock "cleanup"`)
	})
}
