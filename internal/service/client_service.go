// Package service is the surface consumed by UI and business layers: user
// actions, lookups with offline fallback, sync status and the reset flow.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"stocktake/internal/cache"
	"stocktake/internal/connectivity"
	"stocktake/internal/database"
	"stocktake/internal/domain"
	"stocktake/internal/models"
	"stocktake/internal/queue"
	"stocktake/internal/remote"
	"stocktake/internal/syncer"

	"github.com/rs/zerolog"
)

// ErrItemNotFound is returned when neither the service nor the local cache
// knows the requested code.
var ErrItemNotFound = errors.New("item not found")

type ClientService struct {
	queue   *queue.Queue
	cache   *cache.Manager
	remote  remote.Service
	monitor connectivity.Monitor
	engine  *syncer.Engine
	store   *database.Store
	states  domain.ScanStateRepository
	logger  zerolog.Logger
}

func NewClientService(
	q *queue.Queue,
	c *cache.Manager,
	r remote.Service,
	m connectivity.Monitor,
	e *syncer.Engine,
	store *database.Store,
	states domain.ScanStateRepository,
	logger *zerolog.Logger,
) *ClientService {
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "service").Logger()
	}
	return &ClientService{
		queue:   q,
		cache:   c,
		remote:  r,
		monitor: m,
		engine:  e,
		store:   store,
		states:  states,
		logger:  log,
	}
}

// EnqueueMutation queues a raw mutation for later delivery.
func (s *ClientService) EnqueueMutation(ctx context.Context, kind, payload string) string {
	return s.queue.Enqueue(ctx, kind, payload)
}

// StartSession opens a counting session: delivered directly when online,
// queued otherwise. A failed online attempt falls back to the queue instead
// of surfacing an error to the operator.
func (s *ClientService) StartSession(ctx context.Context, p models.SessionPayload) (queued bool, err error) {
	return s.submitOrQueue(ctx, models.KindSession, p)
}

// SubmitCount records one counted line.
func (s *ClientService) SubmitCount(ctx context.Context, p models.CountLinePayload) (queued bool, err error) {
	return s.submitOrQueue(ctx, models.KindCountLine, p)
}

// ReportUnknownItem reports a barcode missing from the item master.
func (s *ClientService) ReportUnknownItem(ctx context.Context, p models.UnknownItemPayload) (queued bool, err error) {
	return s.submitOrQueue(ctx, models.KindUnknownItem, p)
}

func (s *ClientService) submitOrQueue(ctx context.Context, kind string, payload interface{}) (bool, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	raw := string(data)

	if !s.monitor.IsOnline() {
		s.queue.Enqueue(ctx, kind, raw)
		return true, nil
	}

	res, err := s.remote.Submit(ctx, kind, raw)
	if err != nil {
		s.logger.Warn().Err(err).Str("kind", kind).Msg("online submit failed, queueing for later")
		s.queue.Enqueue(ctx, kind, raw)
		return true, nil
	}
	if res.Conflict {
		// A direct conflict is surfaced to the caller; queueing it would
		// only park it as locked on the next pass anyway.
		return false, fmt.Errorf("submit %s: conflict: %s", kind, res.Reason)
	}
	return false, nil
}

// LookupItem resolves a scanned code: remote first (refreshing the cache on
// success), cached snapshot when the network is unavailable.
func (s *ClientService) LookupItem(ctx context.Context, code string) (*models.Item, error) {
	if s.monitor.IsOnline() {
		item, err := s.remote.GetItem(ctx, code)
		if err == nil {
			if putErr := s.cache.Put(ctx, *item); putErr != nil {
				s.logger.Warn().Err(putErr).Str("code", code).Msg("failed to cache looked-up item")
			}
			return item, nil
		}
		if errors.Is(err, remote.ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		s.logger.Warn().Err(err).Str("code", code).Msg("remote lookup failed, trying cache")
	}

	item, err := s.cache.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	return item, nil
}

// SearchItems is the offline fallback search over still-valid cache entries.
func (s *ClientService) SearchItems(ctx context.Context, query string) ([]models.Item, error) {
	return s.cache.Search(ctx, query)
}

// ForceSync runs a sync pass now; raises syncer.ErrOffline when offline.
func (s *ClientService) ForceSync(ctx context.Context) (*models.SyncResult, error) {
	return s.engine.ForceSync(ctx)
}

// GetSyncStatus snapshots connectivity, queue depth, cache size and the
// last successful sync.
func (s *ClientService) GetSyncStatus(ctx context.Context) (models.SyncStatus, error) {
	pending, err := s.queue.Size(ctx, models.EntryPending)
	if err != nil {
		return models.SyncStatus{}, err
	}
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return models.SyncStatus{}, err
	}
	lastSync, err := s.engine.LastSyncAt(ctx)
	if err != nil {
		return models.SyncStatus{}, err
	}

	return models.SyncStatus{
		IsOnline:         s.monitor.IsOnline(),
		QueuedOperations: pending,
		LastSyncAt:       lastSync,
		CachedItemCount:  stats.ItemsCount,
		NeedsSync:        pending > 0,
	}, nil
}

// ListLockedEntries returns entries held for manual conflict review.
func (s *ClientService) ListLockedEntries(ctx context.Context) ([]models.QueueEntry, error) {
	return s.queue.ListLocked(ctx)
}

// ResolveLockedEntry clears a locked entry once it was resolved remotely.
func (s *ClientService) ResolveLockedEntry(ctx context.Context, id string) error {
	return s.queue.Remove(ctx, id)
}

// ClearAllLocalData wipes queue, cache and the sync marker. Used by the
// logout/reset flow.
func (s *ClientService) ClearAllLocalData(ctx context.Context) error {
	if err := s.store.ClearAll(ctx); err != nil {
		return fmt.Errorf("clear local data: %w", err)
	}
	s.logger.Info().Msg("all local data cleared")
	return nil
}

// Scan flow state, persisted per operator.

func (s *ClientService) GetScanState(ctx context.Context, operatorID string) (*models.ScanState, error) {
	return s.states.GetState(ctx, operatorID)
}

func (s *ClientService) SaveScanState(ctx context.Context, state *models.ScanState) error {
	return s.states.SetState(ctx, state)
}

func (s *ClientService) ClearScanState(ctx context.Context, operatorID string) error {
	return s.states.ClearState(ctx, operatorID)
}
