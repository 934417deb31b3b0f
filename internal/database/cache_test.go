package database

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheItems_UpsertAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.UpsertCacheItem(ctx, "SKU-1", `{"name":"Widget"}`, now))

	row, err := store.GetCacheItem(ctx, "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, "SKU-1", row.Code)
	assert.Equal(t, `{"name":"Widget"}`, row.Value)
	assert.WithinDuration(t, now, row.CachedAt, time.Second)

	// Re-upsert replaces value and timestamp for the same code.
	later := now.Add(time.Minute)
	require.NoError(t, store.UpsertCacheItem(ctx, "SKU-1", `{"name":"Widget v2"}`, later))

	row, err = store.GetCacheItem(ctx, "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Widget v2"}`, row.Value)
	assert.WithinDuration(t, later, row.CachedAt, time.Second)

	count, err := store.CountCacheItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = store.GetCacheItem(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCacheItems_DeleteOlderThan(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, store.UpsertCacheItem(ctx, "old", "{}", base.Add(-48*time.Hour)))
	require.NoError(t, store.UpsertCacheItem(ctx, "fresh", "{}", base))

	dropped, err := store.DeleteCacheOlderThan(ctx, base.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), dropped)

	_, err = store.GetCacheItem(ctx, "old")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	_, err = store.GetCacheItem(ctx, "fresh")
	assert.NoError(t, err)
}

func TestCacheItems_TrimToNewest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 8; i++ {
		code := fmt.Sprintf("sku-%d", i)
		require.NoError(t, store.UpsertCacheItem(ctx, code, "{}", base.Add(time.Duration(i)*time.Minute)))
	}

	dropped, err := store.TrimCacheToNewest(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), dropped)

	items, err := store.ListCacheItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	// Newest first.
	assert.Equal(t, "sku-7", items[0].Code)
	assert.Equal(t, "sku-5", items[2].Code)
}

func TestCacheBounds(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	oldest, newest, err := store.CacheBounds(ctx)
	require.NoError(t, err)
	assert.Nil(t, oldest)
	assert.Nil(t, newest)

	lo := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Second)
	hi := lo.Add(time.Hour)
	require.NoError(t, store.UpsertCacheItem(ctx, "a", "{}", lo))
	require.NoError(t, store.UpsertCacheItem(ctx, "b", "{}", hi))

	oldest, newest, err = store.CacheBounds(ctx)
	require.NoError(t, err)
	require.NotNil(t, oldest)
	require.NotNil(t, newest)
	assert.WithinDuration(t, lo, *oldest, time.Second)
	assert.WithinDuration(t, hi, *newest, time.Second)
}

func TestMeta_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, ok, err := store.GetMeta(ctx, "last_sync_at")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetMeta(ctx, "last_sync_at", "2026-08-29T10:00:00Z"))
	val, ok, err := store.GetMeta(ctx, "last_sync_at")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2026-08-29T10:00:00Z", val)

	// Upsert overwrites.
	require.NoError(t, store.SetMeta(ctx, "last_sync_at", "2026-08-29T11:00:00Z"))
	val, _, err = store.GetMeta(ctx, "last_sync_at")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-29T11:00:00Z", val)

	require.NoError(t, store.DeleteMeta(ctx, "last_sync_at"))
	_, ok, err = store.GetMeta(ctx, "last_sync_at")
	require.NoError(t, err)
	assert.False(t, ok)
}
