package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CacheRow is the raw persisted form of one cached reference record. The
// cache manager owns (de)serialization of the value.
type CacheRow struct {
	Code     string
	Value    string
	CachedAt time.Time
}

func (s *Store) UpsertCacheItem(ctx context.Context, code, value string, cachedAt time.Time) error {
	query := `INSERT INTO item_cache (code, value, cached_at) VALUES (?, ?, ?)
              ON CONFLICT(code) DO UPDATE SET
                value = excluded.value,
                cached_at = excluded.cached_at`
	_, err := s.db.ExecContext(ctx, query, code, value, cachedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert cache item: %w", err)
	}
	return nil
}

func (s *Store) GetCacheItem(ctx context.Context, code string) (*CacheRow, error) {
	var row CacheRow
	err := s.db.QueryRowContext(ctx,
		`SELECT code, value, cached_at FROM item_cache WHERE code = ?`, code).
		Scan(&row.Code, &row.Value, &row.CachedAt)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) ListCacheItems(ctx context.Context) ([]CacheRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, value, cached_at FROM item_cache ORDER BY cached_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache items: %w", err)
	}
	defer rows.Close()

	var items []CacheRow
	for rows.Next() {
		var row CacheRow
		if err := rows.Scan(&row.Code, &row.Value, &row.CachedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cache item: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) DeleteCacheOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM item_cache WHERE cached_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune expired cache items: %w", err)
	}
	return result.RowsAffected()
}

// TrimCacheToNewest keeps only the max newest rows by cached_at.
func (s *Store) TrimCacheToNewest(ctx context.Context, max int) (int64, error) {
	query := `DELETE FROM item_cache WHERE code NOT IN (
                SELECT code FROM item_cache ORDER BY cached_at DESC LIMIT ?)`
	result, err := s.db.ExecContext(ctx, query, max)
	if err != nil {
		return 0, fmt.Errorf("failed to trim cache: %w", err)
	}
	return result.RowsAffected()
}

func (s *Store) CountCacheItems(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM item_cache`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cache items: %w", err)
	}
	return count, nil
}

// CacheBounds returns the oldest and newest cached_at, or nils when empty.
// MIN/MAX would strip the column type sqlite needs for time conversion, so
// the bounds are read with plain ordered selects.
func (s *Store) CacheBounds(ctx context.Context) (*time.Time, *time.Time, error) {
	oldest, err := s.cacheBound(ctx, "ASC")
	if err != nil {
		return nil, nil, err
	}
	newest, err := s.cacheBound(ctx, "DESC")
	if err != nil {
		return nil, nil, err
	}
	return oldest, newest, nil
}

func (s *Store) cacheBound(ctx context.Context, order string) (*time.Time, error) {
	var ts time.Time
	query := fmt.Sprintf(`SELECT cached_at FROM item_cache ORDER BY cached_at %s LIMIT 1`, order)
	err := s.db.QueryRowContext(ctx, query).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache bounds: %w", err)
	}
	return &ts, nil
}
