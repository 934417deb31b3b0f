// Package syncer drains the mutation queue against the warehouse service
// and refreshes the reference cache. One pass is push-then-pull; at most
// one pass runs at a time across all triggers.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"stocktake/internal/cache"
	"stocktake/internal/connectivity"
	"stocktake/internal/database"
	"stocktake/internal/domain"
	"stocktake/internal/events"
	"stocktake/internal/metrics"
	"stocktake/internal/models"
	"stocktake/internal/queue"
	"stocktake/internal/remote"
	"stocktake/internal/worker"

	"github.com/rs/zerolog"
)

var (
	// ErrOffline is returned by ForceSync when the device has no
	// connectivity. The one hard error the core raises synchronously.
	ErrOffline = errors.New("device is offline")

	// ErrSyncInFlight is returned when a pass is already running; the
	// trigger is dropped, not queued.
	ErrSyncInFlight = errors.New("sync pass already running")
)

// Pass triggers, used for logging and metrics labels.
const (
	TriggerManual    = "manual"
	TriggerReconnect = "reconnect"
	TriggerInterval  = "interval"
	TriggerStartup   = "startup"
)

const metaLastSync = "last_sync_at"

type Config struct {
	BatchSize        int
	MaxRetries       int
	MaxIterations    int
	DiscardExhausted bool
	Debounce         time.Duration
	Interval         time.Duration
	Backoff          worker.RetryPolicy
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = models.DefaultBatchSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = models.DefaultMaxRetries
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = models.DefaultMaxPassIterations
	}
	if c.Debounce <= 0 {
		c.Debounce = time.Duration(models.DefaultDebounceSeconds) * time.Second
	}
	if c.Interval <= 0 {
		c.Interval = time.Duration(models.DefaultSyncIntervalMinutes) * time.Minute
	}
}

// Engine orchestrates sync passes. It never touches the local store rows
// directly: queue and cache operations go through their owning components,
// only the last-sync marker in sync_meta belongs to the engine itself.
type Engine struct {
	queue   *queue.Queue
	cache   *cache.Manager
	remote  remote.Service
	monitor connectivity.Monitor
	store   *database.Store
	bus     domain.EventPublisher
	cfg     Config

	// Logical mutex for the single-flight guarantee. Set via
	// compare-and-swap before the first suspension point of a pass.
	running atomic.Bool

	logger zerolog.Logger
}

func New(q *queue.Queue, c *cache.Manager, r remote.Service, m connectivity.Monitor, store *database.Store, bus domain.EventPublisher, cfg Config, logger *zerolog.Logger) *Engine {
	cfg.applyDefaults()
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "syncer").Logger()
	}
	return &Engine{
		queue:   q,
		cache:   c,
		remote:  r,
		monitor: m,
		store:   store,
		bus:     bus,
		cfg:     cfg,
		logger:  log,
	}
}

// ForceSync runs a pass right now. Raises ErrOffline when disconnected and
// ErrSyncInFlight when another trigger won the guard.
func (e *Engine) ForceSync(ctx context.Context) (*models.SyncResult, error) {
	if !e.monitor.IsOnline() {
		return nil, ErrOffline
	}
	return e.Run(ctx, TriggerManual)
}

// Run executes one full pass: push batches until the queue is drained (or
// the iteration cap is hit), then pull reference changes. Overlapping calls
// return ErrSyncInFlight.
func (e *Engine) Run(ctx context.Context, trigger string) (*models.SyncResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		metrics.IncSyncPass(trigger, "skipped")
		return nil, ErrSyncInFlight
	}
	defer e.running.Store(false)

	start := time.Now()
	result := e.push(ctx)

	// Pull is independent of the push phase: its failure never rolls back
	// delivered entries, it only leaves the cache one pass staler.
	// The marker is stamped with the pull's start, not its end: a record
	// changed mid-pull must still fall inside the next incremental window.
	pullStart := time.Now()
	pullErr := e.pull(ctx)
	if pullErr != nil {
		e.logger.Warn().Err(pullErr).Msg("reference pull failed")
	}

	if result.Succeeded > 0 || pullErr == nil {
		e.setLastSync(ctx, pullStart)
	}

	e.publishObservations(ctx, result)

	metrics.IncSyncPass(trigger, "completed")
	e.logger.Info().
		Str("trigger", trigger).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Int("conflicts", result.Conflicts).
		Int("total", result.Total).
		Dur("elapsed", time.Since(start)).
		Msg("sync pass finished")

	return result, nil
}

func (e *Engine) push(ctx context.Context) *models.SyncResult {
	result := &models.SyncResult{}

	for iter := 0; iter < e.cfg.MaxIterations; iter++ {
		entries, err := e.queue.ListPending(ctx, e.cfg.BatchSize)
		if err != nil {
			e.logger.Error().Err(err).Msg("failed to read pending batch")
			break
		}
		if len(entries) == 0 {
			break
		}

		for _, o := range e.pushBatch(ctx, entries) {
			e.applyOutcome(ctx, o, result)
		}
	}

	return result
}

type outcome struct {
	entry models.QueueEntry
	res   *remote.SubmitResult
	err   error
}

// pushBatch dispatches every entry of the batch concurrently and waits for
// all of them: one slow or failing submit must not starve its siblings.
func (e *Engine) pushBatch(ctx context.Context, entries []models.QueueEntry) []outcome {
	outcomes := make([]outcome, len(entries))
	var wg sync.WaitGroup
	for i := range entries {
		wg.Add(1)
		go func(i int, entry models.QueueEntry) {
			defer wg.Done()
			res, err := e.remote.Submit(ctx, entry.Kind, entry.Payload)
			outcomes[i] = outcome{entry: entry, res: res, err: err}
		}(i, entries[i])
	}
	wg.Wait()
	return outcomes
}

// applyOutcome is the single place an entry changes state after an attempt:
// removed on acceptance, locked on conflict, retried or discarded on any
// other failure.
func (e *Engine) applyOutcome(ctx context.Context, o outcome, result *models.SyncResult) {
	result.Total++

	switch {
	case o.err == nil && o.res != nil && o.res.Conflict:
		if err := e.queue.MarkLocked(ctx, o.entry.ID, o.res.Reason); err != nil {
			e.logger.Error().Err(err).Str("id", o.entry.ID).Msg("failed to lock conflicted entry")
		}
		result.Conflicts++
		result.Errors = append(result.Errors, models.SyncError{
			ID:      o.entry.ID,
			Message: "conflict: " + o.res.Reason,
		})
		metrics.IncPushed("conflict")
		_ = e.bus.PublishJSON(events.EventEntryLocked, events.EntryLockedPayload{
			EntryID: o.entry.ID,
			Kind:    o.entry.Kind,
			Reason:  o.res.Reason,
		})
		e.logger.Warn().Str("id", o.entry.ID).Str("reason", o.res.Reason).
			Msg("entry locked for manual review")

	case o.err == nil && o.res != nil && o.res.Accepted:
		if err := e.queue.MarkSucceeded(ctx, o.entry.ID); err != nil {
			e.logger.Error().Err(err).Str("id", o.entry.ID).Msg("failed to remove delivered entry")
		}
		result.Succeeded++
		metrics.IncPushed("succeeded")

	default:
		msg := "submit rejected"
		if o.err != nil {
			msg = o.err.Error()
		}
		attempt := o.entry.RetryCount + 1

		if attempt >= e.cfg.MaxRetries {
			if e.cfg.DiscardExhausted {
				if err := e.queue.Remove(ctx, o.entry.ID); err != nil {
					e.logger.Error().Err(err).Str("id", o.entry.ID).Msg("failed to discard exhausted entry")
				}
				result.Failed++
				result.Errors = append(result.Errors, models.SyncError{
					ID:      o.entry.ID,
					Message: fmt.Sprintf("discarded after %d attempts: %s", attempt, msg),
				})
				metrics.IncPushed("discarded")
				_ = e.bus.PublishJSON(events.EventEntryDiscarded, events.EntryDiscardedPayload{
					EntryID:   o.entry.ID,
					Kind:      o.entry.Kind,
					LastError: msg,
				})
				e.logger.Warn().Str("id", o.entry.ID).Int("attempts", attempt).
					Msg("entry discarded after exhausting retries")
				return
			}

			// Keep mode: park the entry under the error status so it stops
			// cycling through pending batches but stays inspectable.
			if err := e.queue.MarkExhausted(ctx, o.entry.ID, msg); err != nil {
				e.logger.Error().Err(err).Str("id", o.entry.ID).Msg("failed to park exhausted entry")
			}
			result.Failed++
			result.Errors = append(result.Errors, models.SyncError{
				ID:      o.entry.ID,
				Message: fmt.Sprintf("exhausted after %d attempts: %s", attempt, msg),
			})
			metrics.IncPushed("exhausted")
			e.logger.Warn().Str("id", o.entry.ID).Int("attempts", attempt).
				Msg("entry parked after exhausting retries")
			return
		}

		next := time.Now().Add(e.cfg.Backoff.NextDelay(attempt))
		if err := e.queue.MarkFailed(ctx, o.entry.ID, msg, &next); err != nil {
			e.logger.Error().Err(err).Str("id", o.entry.ID).Msg("failed to record delivery failure")
		}
		result.Failed++
		result.Errors = append(result.Errors, models.SyncError{ID: o.entry.ID, Message: msg})
		metrics.IncPushed("failed")
	}
}

func (e *Engine) pull(ctx context.Context) error {
	since, err := e.LastSyncAt(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("could not read last sync marker, pulling full set")
	}

	items, err := e.remote.FetchChanges(ctx, since)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := e.cache.Put(ctx, item); err != nil {
			// Cache writes are best-effort; a failed refresh just means a
			// lookup falls back to the network later.
			e.logger.Warn().Err(err).Str("code", item.Code).Msg("failed to refresh cached item")
		}
	}

	if len(items) > 0 {
		e.logger.Info().Int("items", len(items)).Msg("reference cache refreshed")
	}
	return nil
}

// LastSyncAt reads the persisted last-sync marker, nil if never synced.
func (e *Engine) LastSyncAt(ctx context.Context) (*time.Time, error) {
	raw, ok, err := e.store.GetMeta(ctx, metaLastSync)
	if err != nil || !ok {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("parse last sync marker: %w", err)
	}
	return &t, nil
}

// ResetLastSync forgets the marker; the next pull fetches the full set.
func (e *Engine) ResetLastSync(ctx context.Context) error {
	return e.store.DeleteMeta(ctx, metaLastSync)
}

func (e *Engine) setLastSync(ctx context.Context, t time.Time) {
	if err := e.store.SetMeta(ctx, metaLastSync, t.UTC().Format(time.RFC3339Nano)); err != nil {
		e.logger.Error().Err(err).Msg("failed to persist last sync marker")
		return
	}
	metrics.SetLastSync(t.Unix())
}

func (e *Engine) publishObservations(ctx context.Context, result *models.SyncResult) {
	_ = e.bus.PublishJSON(events.EventSyncCompleted, events.SyncCompletedPayload{
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Conflicts: result.Conflicts,
		Total:     result.Total,
	})

	if pending, err := e.queue.Size(ctx, models.EntryPending); err == nil {
		metrics.SetQueueDepth(pending)
	}
	if stats, err := e.cache.Stats(ctx); err == nil {
		metrics.SetCachedItems(stats.ItemsCount)
	}
}
