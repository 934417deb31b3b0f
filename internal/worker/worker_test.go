package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"stocktake/internal/cache"
	"stocktake/internal/database"
	"stocktake/internal/queue"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_ExponentialGrowth(t *testing.T) {
	policy := RetryPolicy{
		InitialDelay:  time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2,
	}

	assert.Equal(t, time.Second, policy.NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
	assert.Equal(t, 4*time.Second, policy.NextDelay(3))
	assert.Equal(t, 16*time.Second, policy.NextDelay(5))
}

func TestRetryPolicy_ClampsToMaxDelay(t *testing.T) {
	policy := RetryPolicy{
		InitialDelay:  time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
	}

	assert.Equal(t, 10*time.Second, policy.NextDelay(10))
	assert.Equal(t, 10*time.Second, policy.NextDelay(100))
	// Past float overflow territory the clamp must still hold.
	assert.Equal(t, 10*time.Second, policy.NextDelay(1000))
}

func TestRetryPolicy_Defaults(t *testing.T) {
	var policy RetryPolicy

	// Zero attempt and zero-value policy still give a usable delay.
	assert.Equal(t, time.Second, policy.NextDelay(0))
	assert.Equal(t, time.Second, policy.NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
}

func TestMaintenance_RunOnce(t *testing.T) {
	logger := zerolog.Nop()
	store, err := database.NewStore(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	q := queue.New(store, &logger)
	c := cache.NewManager(store, time.Hour, 3, &logger)
	ctx := context.Background()

	// Over the cache size bound.
	for i := 0; i < 5; i++ {
		require.NoError(t, store.UpsertCacheItem(ctx, fmt.Sprintf("sku-%d", i), "{}",
			time.Now().Add(-time.Duration(5-i)*time.Minute)))
	}
	// One expired cache row.
	require.NoError(t, store.UpsertCacheItem(ctx, "stale", "{}", time.Now().Add(-2*time.Hour)))

	// Over the queue ceiling, one entry exhausted.
	var ids []string
	for i := 0; i < 6; i++ {
		ids = append(ids, q.Enqueue(ctx, "count_line", `{}`))
		time.Sleep(2 * time.Millisecond)
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, q.MarkFailed(ctx, ids[5], "boom", nil))
	}

	m := NewMaintenance(q, c, time.Hour, 5, 5, &logger)
	m.RunOnce(ctx)

	cacheCount, err := store.CountCacheItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, cacheCount)

	queueCount, err := q.Size(ctx, "")
	require.NoError(t, err)
	// Ceiling drops the oldest entry, then the exhausted one is discarded.
	assert.Equal(t, 4, queueCount)
}
