package worker

import (
	"context"
	"time"

	"stocktake/internal/cache"
	"stocktake/internal/queue"

	"github.com/rs/zerolog"
)

// Maintenance bounds both local stores on a fixed interval: cache TTL and
// size enforcement, the queue hard ceiling, and discard of entries that
// burned through all retries. Every failure here is logged and swallowed;
// maintenance runs unattended and must never take the process down.
type Maintenance struct {
	queue      *queue.Queue
	cache      *cache.Manager
	interval   time.Duration
	maxQueue   int
	maxRetries int
	logger     zerolog.Logger
}

func NewMaintenance(q *queue.Queue, c *cache.Manager, interval time.Duration, maxQueue, maxRetries int, logger *zerolog.Logger) *Maintenance {
	if interval <= 0 {
		interval = time.Hour
	}
	if maxQueue <= 0 {
		maxQueue = 500
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "maintenance").Logger()
	}
	return &Maintenance{
		queue:      q,
		cache:      c,
		interval:   interval,
		maxQueue:   maxQueue,
		maxRetries: maxRetries,
		logger:     log,
	}
}

// Start runs once immediately, then on every tick until ctx is done.
func (m *Maintenance) Start(ctx context.Context) {
	m.logger.Info().Dur("interval", m.interval).Msg("maintenance started")
	defer m.logger.Info().Msg("maintenance stopped")

	m.RunOnce(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// RunOnce executes one maintenance cycle.
func (m *Maintenance) RunOnce(ctx context.Context) {
	if _, _, err := m.cache.EnforceBounds(ctx); err != nil {
		m.logger.Error().Err(err).Msg("cache bound enforcement failed")
	}

	if _, err := m.queue.EnforceLimit(ctx, m.maxQueue); err != nil {
		m.logger.Error().Err(err).Msg("queue limit enforcement failed")
	}

	if _, err := m.queue.DiscardExhausted(ctx, m.maxRetries); err != nil {
		m.logger.Error().Err(err).Msg("exhausted entry discard failed")
	}
}
