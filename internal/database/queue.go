package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stocktake/internal/models"
)

func (s *Store) InsertEntry(ctx context.Context, entry *models.QueueEntry) error {
	query := `INSERT INTO mutation_queue (id, kind, payload, status, retry_count, last_error, enqueued_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Kind,
		entry.Payload,
		entry.Status,
		entry.RetryCount,
		entry.LastError,
		entry.EnqueuedAt,
		entry.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert queue entry: %w", err)
	}
	return nil
}

// GetPendingEntries returns pending entries in FIFO order. Entries whose
// retry gate lies in the future are skipped until it passes.
func (s *Store) GetPendingEntries(ctx context.Context, limit int) ([]models.QueueEntry, error) {
	query := `SELECT id, kind, payload, status, retry_count, last_error, enqueued_at, next_retry_at
              FROM mutation_queue
              WHERE status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY enqueued_at ASC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, models.EntryPending, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (s *Store) GetEntriesByStatus(ctx context.Context, status string) ([]models.QueueEntry, error) {
	query := `SELECT id, kind, payload, status, retry_count, last_error, enqueued_at, next_retry_at
              FROM mutation_queue WHERE status = ? ORDER BY enqueued_at ASC`
	rows, err := s.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries by status: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (s *Store) GetEntry(ctx context.Context, id string) (*models.QueueEntry, error) {
	query := `SELECT id, kind, payload, status, retry_count, last_error, enqueued_at, next_retry_at
              FROM mutation_queue WHERE id = ?`
	var e models.QueueEntry
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Kind, &e.Payload, &e.Status, &e.RetryCount, &e.LastError, &e.EnqueuedAt, &e.NextRetryAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM mutation_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete queue entry: %w", err)
	}
	return nil
}

// IncrementRetry bumps the retry counter, records the error and sets the
// next retry gate. The entry stays pending.
func (s *Store) IncrementRetry(ctx context.Context, id string, errMsg string, nextRetryAt *time.Time) error {
	query := `UPDATE mutation_queue
              SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ?
              WHERE id = ?`
	_, err := s.db.ExecContext(ctx, query, errMsg, nextRetryAt, id)
	if err != nil {
		return fmt.Errorf("failed to increment retry: %w", err)
	}
	return nil
}

func (s *Store) SetEntryStatus(ctx context.Context, id string, status string, errMsg string) error {
	query := `UPDATE mutation_queue SET status = ?, last_error = ?, next_retry_at = NULL WHERE id = ?`
	_, err := s.db.ExecContext(ctx, query, status, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to set entry status: %w", err)
	}
	return nil
}

// CountEntries counts queue entries; an empty status counts everything.
func (s *Store) CountEntries(ctx context.Context, status string) (int, error) {
	var count int
	var err error
	if status == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mutation_queue`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mutation_queue WHERE status = ?`, status).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// TrimQueueToNewest drops the oldest entries beyond max, regardless of
// status. Hard ceiling to protect local storage.
func (s *Store) TrimQueueToNewest(ctx context.Context, max int) (int64, error) {
	query := `DELETE FROM mutation_queue WHERE id NOT IN (
                SELECT id FROM mutation_queue ORDER BY enqueued_at DESC LIMIT ?)`
	result, err := s.db.ExecContext(ctx, query, max)
	if err != nil {
		return 0, fmt.Errorf("failed to trim queue: %w", err)
	}
	return result.RowsAffected()
}

// DeleteExhausted removes pending entries that burned through all retries.
// Locked entries are kept for manual review.
func (s *Store) DeleteExhausted(ctx context.Context, maxRetries int) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM mutation_queue WHERE status = ? AND retry_count >= ?`,
		models.EntryPending, maxRetries)
	if err != nil {
		return 0, fmt.Errorf("failed to delete exhausted entries: %w", err)
	}
	return result.RowsAffected()
}

func scanEntries(rows *sql.Rows) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	for rows.Next() {
		var e models.QueueEntry
		err := rows.Scan(
			&e.ID, &e.Kind, &e.Payload, &e.Status, &e.RetryCount, &e.LastError, &e.EnqueuedAt, &e.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
