package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"stocktake/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertTestEntry(t *testing.T, store *Store, id string, enqueuedAt time.Time) {
	t.Helper()
	entry := models.QueueEntry{
		ID:         id,
		Kind:       models.KindCountLine,
		Payload:    `{"test":true}`,
		Status:     models.EntryPending,
		EnqueuedAt: enqueuedAt,
	}
	require.NoError(t, store.InsertEntry(context.Background(), &entry))
}

func TestQueueEntries_FIFOOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	insertTestEntry(t, store, "third", base.Add(3*time.Minute))
	insertTestEntry(t, store, "first", base.Add(1*time.Minute))
	insertTestEntry(t, store, "second", base.Add(2*time.Minute))

	entries, err := store.GetPendingEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].ID)
	assert.Equal(t, "second", entries[1].ID)
	assert.Equal(t, "third", entries[2].ID)

	// Limit caps the batch, still in FIFO order.
	entries, err = store.GetPendingEntries(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].ID)
}

func TestQueueEntries_RetryGate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	insertTestEntry(t, store, "gated", time.Now().Add(-time.Minute))

	future := time.Now().Add(time.Hour)
	require.NoError(t, store.IncrementRetry(ctx, "gated", "temporary error", &future))

	entries, err := store.GetPendingEntries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries, "entry with future retry gate must not be pending")

	past := time.Now().Add(-time.Hour)
	require.NoError(t, store.IncrementRetry(ctx, "gated", "temporary error", &past))

	entries, err = store.GetPendingEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].RetryCount)
	require.NotNil(t, entries[0].LastError)
	assert.Equal(t, "temporary error", *entries[0].LastError)
}

func TestQueueEntries_StatusTransitions(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	insertTestEntry(t, store, "e1", time.Now())

	require.NoError(t, store.SetEntryStatus(ctx, "e1", models.EntryLocked, "diverged server-side"))

	pending, err := store.GetPendingEntries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	locked, err := store.GetEntriesByStatus(ctx, models.EntryLocked)
	require.NoError(t, err)
	require.Len(t, locked, 1)
	require.NotNil(t, locked[0].LastError)
	assert.Equal(t, "diverged server-side", *locked[0].LastError)

	require.NoError(t, store.DeleteEntry(ctx, "e1"))
	count, err := store.CountEntries(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestQueueEntries_CountByStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	insertTestEntry(t, store, "p1", time.Now())
	insertTestEntry(t, store, "p2", time.Now())
	insertTestEntry(t, store, "l1", time.Now())
	require.NoError(t, store.SetEntryStatus(ctx, "l1", models.EntryLocked, ""))

	total, err := store.CountEntries(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	pending, err := store.CountEntries(ctx, models.EntryPending)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)

	locked, err := store.CountEntries(ctx, models.EntryLocked)
	require.NoError(t, err)
	assert.Equal(t, 1, locked)
}

func TestTrimQueueToNewest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 10; i++ {
		insertTestEntry(t, store, fmt.Sprintf("e%02d", i), base.Add(time.Duration(i)*time.Minute))
	}

	dropped, err := store.TrimQueueToNewest(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(4), dropped)

	entries, err := store.GetPendingEntries(ctx, 20)
	require.NoError(t, err)
	require.Len(t, entries, 6)
	// The oldest four are gone, the newest six survive.
	assert.Equal(t, "e04", entries[0].ID)
	assert.Equal(t, "e09", entries[5].ID)
}

func TestDeleteExhausted(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	insertTestEntry(t, store, "fresh", time.Now())
	insertTestEntry(t, store, "tired", time.Now())
	for i := 0; i < 5; i++ {
		require.NoError(t, store.IncrementRetry(ctx, "tired", "boom", nil))
	}

	dropped, err := store.DeleteExhausted(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dropped)

	entries, err := store.GetPendingEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh", entries[0].ID)
}
