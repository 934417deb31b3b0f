// Package queue implements the durable mutation queue: user actions taken
// while disconnected are appended here and drained by the sync engine once
// connectivity returns.
package queue

import (
	"context"
	"fmt"
	"time"

	"stocktake/internal/database"
	"stocktake/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Queue owns the mutation_queue record kind in the local store. No other
// component writes those rows.
type Queue struct {
	store  *database.Store
	logger zerolog.Logger
}

func New(store *database.Store, logger *zerolog.Logger) *Queue {
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "queue").Logger()
	}
	return &Queue{store: store, logger: log}
}

// Enqueue appends a new pending entry and returns its id. Storage failures
// are logged, never raised: losing one queued mutation is preferable to
// failing the user action that produced it.
func (q *Queue) Enqueue(ctx context.Context, kind, payload string) string {
	entry := models.QueueEntry{
		ID:         newEntryID(),
		Kind:       kind,
		Payload:    payload,
		Status:     models.EntryPending,
		EnqueuedAt: time.Now(),
	}

	if err := q.store.InsertEntry(ctx, &entry); err != nil {
		q.logger.Error().Err(err).Str("kind", kind).Str("id", entry.ID).
			Msg("failed to persist queued mutation, entry lost")
	}

	return entry.ID
}

// newEntryID builds a client-generated id: a nanosecond timestamp keeps ids
// monotonically distinguishable, the uuid suffix breaks ties.
func newEntryID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.New().String()[:8])
}

// ListPending returns pending entries in enqueue order, capped at limit.
func (q *Queue) ListPending(ctx context.Context, limit int) ([]models.QueueEntry, error) {
	if limit <= 0 {
		limit = models.DefaultBatchSize
	}
	return q.store.GetPendingEntries(ctx, limit)
}

// ListLocked returns entries parked for manual conflict review.
func (q *Queue) ListLocked(ctx context.Context) ([]models.QueueEntry, error) {
	return q.store.GetEntriesByStatus(ctx, models.EntryLocked)
}

// MarkSucceeded removes a delivered entry.
func (q *Queue) MarkSucceeded(ctx context.Context, id string) error {
	return q.store.DeleteEntry(ctx, id)
}

// MarkFailed bumps the retry counter and gates the entry until nextRetryAt.
// The caller decides, from the counter it already holds, whether the entry
// should instead be discarded.
func (q *Queue) MarkFailed(ctx context.Context, id string, errMsg string, nextRetryAt *time.Time) error {
	return q.store.IncrementRetry(ctx, id, errMsg, nextRetryAt)
}

// MarkLocked parks an entry after a remote conflict. Locked entries never
// show up in ListPending again until removed externally.
func (q *Queue) MarkLocked(ctx context.Context, id string, reason string) error {
	return q.store.SetEntryStatus(ctx, id, models.EntryLocked, reason)
}

// MarkExhausted parks an entry that burned through all retries when discard
// is disabled. Like locked entries it leaves ListPending for good and waits
// for manual review.
func (q *Queue) MarkExhausted(ctx context.Context, id string, errMsg string) error {
	return q.store.SetEntryStatus(ctx, id, models.EntryError, errMsg)
}

// Remove deletes unconditionally: discard after exhausted retries, or
// clearing a locked entry once it was resolved on the remote side.
func (q *Queue) Remove(ctx context.Context, id string) error {
	return q.store.DeleteEntry(ctx, id)
}

// Size counts entries; empty status counts all.
func (q *Queue) Size(ctx context.Context, status string) (int, error) {
	return q.store.CountEntries(ctx, status)
}

// EnforceLimit drops the oldest entries beyond max, independent of status.
func (q *Queue) EnforceLimit(ctx context.Context, max int) (int64, error) {
	total, err := q.store.CountEntries(ctx, "")
	if err != nil {
		return 0, err
	}
	if total <= max {
		return 0, nil
	}
	dropped, err := q.store.TrimQueueToNewest(ctx, max)
	if err != nil {
		return 0, err
	}
	if dropped > 0 {
		q.logger.Warn().Int64("dropped", dropped).Int("max", max).
			Msg("queue over hard ceiling, oldest entries discarded")
	}
	return dropped, nil
}

// DiscardExhausted removes entries whose retry counter reached maxRetries.
func (q *Queue) DiscardExhausted(ctx context.Context, maxRetries int) (int64, error) {
	dropped, err := q.store.DeleteExhausted(ctx, maxRetries)
	if err != nil {
		return 0, err
	}
	if dropped > 0 {
		q.logger.Warn().Int64("dropped", dropped).Int("max_retries", maxRetries).
			Msg("exhausted queue entries discarded")
	}
	return dropped, nil
}

// Clear wipes the queue. Part of the logout/reset flow.
func (q *Queue) Clear(ctx context.Context) error {
	dropped, err := q.store.TrimQueueToNewest(ctx, 0)
	if err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	q.logger.Info().Int64("dropped", dropped).Msg("mutation queue cleared")
	return nil
}
