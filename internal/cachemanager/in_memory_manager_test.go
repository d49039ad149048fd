package cachemanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type snapshotKey string

type encoded struct {
	Version int64
	Body    []byte
}

func TestNewInMemoryCacheManager(t *testing.T) {
	require.NotPanics(t, func() {
		NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)
	})
}

func TestInMemoryCacheManager_GetExistingValue_StructType(t *testing.T) {
	cache := NewInMemoryCacheManager[snapshotKey, encoded]("snapshots", DefaultExpiration, DefaultCleanupInterval)
	want := encoded{Version: 2, Body: []byte(`{"version":2}`)}
	cache.Set(context.Background(), "alice@2", want, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "alice@2")
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestInMemoryCacheManager_Miss(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("snapshots", DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.Get(context.Background(), "missing")
	require.False(t, ok)
	require.Empty(t, got)
	require.Equal(t, Stats{Misses: 1}, cache.Stats())
}

func TestInMemoryCacheManager_WrongType(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("snapshots", DefaultExpiration, DefaultCleanupInterval)
	cache.cache.Set("food", 123, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "food")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_Expiry(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("snapshots", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "k", "v", 20*time.Millisecond)

	require.Eventually(t, func() bool {
		_, ok := cache.Get(context.Background(), "k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestInMemoryCacheManager_DeleteAndFlush(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryCacheManager[string, string]("snapshots", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(ctx, "a", "1", 0)
	cache.Set(ctx, "b", "2", 0)
	cache.Set(ctx, "c", "3", 0)
	require.Equal(t, 3, cache.Len())

	cache.Delete(ctx, "a", "b")
	require.Equal(t, 1, cache.Len())

	cache.Flush(ctx)
	require.Equal(t, 0, cache.Len())
}

func TestInMemoryCacheManager_Stats(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryCacheManager[string, string]("snapshots", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(ctx, "a", "1", 0)

	cache.Get(ctx, "a")
	cache.Get(ctx, "a")
	cache.Get(ctx, "b")

	require.Equal(t, Stats{Hits: 2, Misses: 1, Items: 1}, cache.Stats())
}
