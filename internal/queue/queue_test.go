package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"stocktake/internal/database"
	"stocktake/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupQueue(t *testing.T) (*Queue, *database.Store) {
	t.Helper()
	logger := zerolog.Nop()
	store, err := database.NewStore(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, &logger), store
}

func TestEnqueue_AssignsUniqueIDs(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	id1 := q.Enqueue(ctx, models.KindCountLine, `{"qty":1}`)
	id2 := q.Enqueue(ctx, models.KindCountLine, `{"qty":2}`)
	require.NotEmpty(t, id1)
	require.NotEmpty(t, id2)
	assert.NotEqual(t, id1, id2)

	entries, err := q.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, id1, entries[0].ID)
	assert.Equal(t, id2, entries[1].ID)
	assert.Equal(t, models.EntryPending, entries[0].Status)
}

func TestEnqueue_SwallowsStorageErrors(t *testing.T) {
	q, store := setupQueue(t)

	// Closing the store makes every insert fail. Enqueue must still return
	// an id without raising.
	require.NoError(t, store.Close())

	id := q.Enqueue(context.Background(), models.KindSession, `{}`)
	assert.NotEmpty(t, id)
}

func TestMarkTransitions(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	idOK := q.Enqueue(ctx, models.KindCountLine, `{}`)
	idFail := q.Enqueue(ctx, models.KindCountLine, `{}`)
	idLock := q.Enqueue(ctx, models.KindCountLine, `{}`)

	require.NoError(t, q.MarkSucceeded(ctx, idOK))

	gate := time.Now().Add(-time.Second)
	require.NoError(t, q.MarkFailed(ctx, idFail, "timeout", &gate))
	require.NoError(t, q.MarkLocked(ctx, idLock, "count diverged"))

	pending, err := q.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, idFail, pending[0].ID)
	assert.Equal(t, 1, pending[0].RetryCount)

	locked, err := q.ListLocked(ctx)
	require.NoError(t, err)
	require.Len(t, locked, 1)
	assert.Equal(t, idLock, locked[0].ID)
	require.NotNil(t, locked[0].LastError)
	assert.Equal(t, "count diverged", *locked[0].LastError)

	total, err := q.Size(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestEnforceLimit_DropsOldestFirst(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, q.Enqueue(ctx, models.KindCountLine, `{}`))
		time.Sleep(2 * time.Millisecond) // distinct enqueue timestamps
	}

	dropped, err := q.EnforceLimit(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), dropped)

	entries, err := q.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ids[2], entries[0].ID)
	assert.Equal(t, ids[4], entries[2].ID)

	// Under the ceiling nothing is touched.
	dropped, err = q.EnforceLimit(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, dropped)
}

func TestMarkExhausted(t *testing.T) {
	q, store := setupQueue(t)
	ctx := context.Background()

	id := q.Enqueue(ctx, models.KindCountLine, `{}`)
	require.NoError(t, q.MarkExhausted(ctx, id, "still failing"))

	pending, err := q.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	parked, err := store.GetEntriesByStatus(ctx, models.EntryError)
	require.NoError(t, err)
	require.Len(t, parked, 1)
	require.NotNil(t, parked[0].LastError)
	assert.Equal(t, "still failing", *parked[0].LastError)

	// Status counts see it; the total is unchanged.
	errored, err := q.Size(ctx, models.EntryError)
	require.NoError(t, err)
	assert.Equal(t, 1, errored)
}

func TestDiscardExhausted(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	idTired := q.Enqueue(ctx, models.KindCountLine, `{}`)
	q.Enqueue(ctx, models.KindCountLine, `{}`)

	for i := 0; i < 3; i++ {
		require.NoError(t, q.MarkFailed(ctx, idTired, "boom", nil))
	}

	dropped, err := q.DiscardExhausted(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dropped)

	total, err := q.Size(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestClear(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	q.Enqueue(ctx, models.KindCountLine, `{}`)
	q.Enqueue(ctx, models.KindSession, `{}`)

	require.NoError(t, q.Clear(ctx))

	total, err := q.Size(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, total)
}
