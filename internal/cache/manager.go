// Package cache bounds the local reference-data cache: lookups keep working
// offline as long as the snapshot is younger than the configured TTL.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"stocktake/internal/database"
	"stocktake/internal/models"

	"github.com/rs/zerolog"
)

// Manager owns the item_cache record kind in the local store.
type Manager struct {
	store      *database.Store
	ttl        time.Duration
	maxEntries int
	logger     zerolog.Logger
}

func NewManager(store *database.Store, ttl time.Duration, maxEntries int, logger *zerolog.Logger) *Manager {
	if ttl <= 0 {
		ttl = time.Duration(models.DefaultCacheTTLHours) * time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = models.DefaultCacheMaxEntries
	}
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "cache").Logger()
	}
	return &Manager{store: store, ttl: ttl, maxEntries: maxEntries, logger: log}
}

// Put upserts an item snapshot with cached_at = now.
func (m *Manager) Put(ctx context.Context, item models.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode cached item: %w", err)
	}
	return m.store.UpsertCacheItem(ctx, item.Code, string(data), time.Now())
}

// Get returns the cached snapshot, or nil on a miss. An expired entry is a
// miss even while the row still exists: the caller cannot tell "never
// cached" from "expired" and must treat both as "use the network".
func (m *Manager) Get(ctx context.Context, code string) (*models.Item, error) {
	row, err := m.store.GetCacheItem(ctx, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cached item: %w", err)
	}
	if m.expired(row.CachedAt) {
		return nil, nil
	}

	var item models.Item
	if err := json.Unmarshal([]byte(row.Value), &item); err != nil {
		return nil, fmt.Errorf("decode cached item %s: %w", code, err)
	}
	return &item, nil
}

// Search is a best-effort offline fallback: case-insensitive substring match
// over code and name of the still-valid entries. No ranking.
func (m *Manager) Search(ctx context.Context, query string) ([]models.Item, error) {
	rows, err := m.store.ListCacheItems(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	var results []models.Item
	for _, row := range rows {
		if m.expired(row.CachedAt) {
			continue
		}
		var item models.Item
		if err := json.Unmarshal([]byte(row.Value), &item); err != nil {
			m.logger.Warn().Err(err).Str("code", row.Code).Msg("skipping undecodable cache row")
			continue
		}
		if q == "" ||
			strings.Contains(strings.ToLower(item.Code), q) ||
			strings.Contains(strings.ToLower(item.Name), q) {
			results = append(results, item)
		}
	}
	return results, nil
}

// EnforceBounds prunes the cache in two phases, strictly in this order:
// first everything older than the TTL goes, then, if the remainder still
// exceeds maxEntries, only the newest maxEntries by cached_at survive.
// Pruning by size before age would let stale rows crowd out fresher ones.
func (m *Manager) EnforceBounds(ctx context.Context) (expired int64, evicted int64, err error) {
	cutoff := time.Now().Add(-m.ttl)
	expired, err = m.store.DeleteCacheOlderThan(ctx, cutoff)
	if err != nil {
		return 0, 0, err
	}

	count, err := m.store.CountCacheItems(ctx)
	if err != nil {
		return expired, 0, err
	}
	if count > m.maxEntries {
		evicted, err = m.store.TrimCacheToNewest(ctx, m.maxEntries)
		if err != nil {
			return expired, 0, err
		}
	}

	if expired > 0 || evicted > 0 {
		m.logger.Info().Int64("expired", expired).Int64("evicted", evicted).
			Msg("cache bounds enforced")
	}
	return expired, evicted, nil
}

// Stats reports the physical cache contents, expired rows included; bound
// enforcement is the maintenance worker's job.
func (m *Manager) Stats(ctx context.Context) (models.CacheStats, error) {
	count, err := m.store.CountCacheItems(ctx)
	if err != nil {
		return models.CacheStats{}, err
	}
	oldest, newest, err := m.store.CacheBounds(ctx)
	if err != nil {
		return models.CacheStats{}, err
	}
	return models.CacheStats{ItemsCount: count, OldestAt: oldest, NewestAt: newest}, nil
}

// WarmStart seeds the cache from a bundled catalog, without overwriting
// entries a fresher remote read already produced.
func (m *Manager) WarmStart(ctx context.Context, items []models.Item) (int, error) {
	seeded := 0
	for _, item := range items {
		existing, err := m.store.GetCacheItem(ctx, item.Code)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return seeded, fmt.Errorf("warm start read %s: %w", item.Code, err)
		}
		if existing != nil {
			continue
		}
		if err := m.Put(ctx, item); err != nil {
			return seeded, err
		}
		seeded++
	}
	if seeded > 0 {
		m.logger.Info().Int("seeded", seeded).Msg("cache warm start completed")
	}
	return seeded, nil
}

// Clear wipes the cache. Part of the logout/reset flow.
func (m *Manager) Clear(ctx context.Context) error {
	if _, err := m.store.TrimCacheToNewest(ctx, 0); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

func (m *Manager) expired(cachedAt time.Time) bool {
	return time.Since(cachedAt) > m.ttl
}
