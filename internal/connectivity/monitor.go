// Package connectivity watches whether the warehouse service is reachable
// and publishes online/offline transitions as messages on a channel, so the
// sync engine consumes them from a single listener loop instead of
// callbacks firing from arbitrary goroutines.
package connectivity

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Monitor answers the current connectivity state and delivers transitions.
type Monitor interface {
	IsOnline() bool
	Changes() <-chan bool
}

// HealthChecker is the slice of the remote boundary the probe needs.
type HealthChecker interface {
	Healthz(ctx context.Context) error
}

// Probe derives connectivity from periodic health probes against the
// warehouse service. It starts offline until the first probe succeeds.
type Probe struct {
	checker  HealthChecker
	interval time.Duration
	online   atomic.Bool
	changes  chan bool
	logger   zerolog.Logger
}

func NewProbe(checker HealthChecker, interval time.Duration, logger *zerolog.Logger) *Probe {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "connectivity").Logger()
	}
	return &Probe{
		checker:  checker,
		interval: interval,
		changes:  make(chan bool, 8),
		logger:   log,
	}
}

// Start runs the probe loop until ctx is done. The first probe fires
// immediately so startup does not wait a full interval to learn the state.
func (p *Probe) Start(ctx context.Context) {
	p.logger.Info().Dur("interval", p.interval).Msg("connectivity probe started")
	defer p.logger.Info().Msg("connectivity probe stopped")

	p.probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *Probe) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	err := p.checker.Healthz(probeCtx)
	nowOnline := err == nil

	if p.online.Swap(nowOnline) == nowOnline {
		return
	}

	if nowOnline {
		p.logger.Info().Msg("connectivity restored")
	} else {
		p.logger.Warn().Err(err).Msg("connectivity lost")
	}

	// Single consumer; drop the transition if it is not keeping up rather
	// than block the probe loop.
	select {
	case p.changes <- nowOnline:
	default:
		p.logger.Warn().Msg("connectivity change dropped, listener busy")
	}
}

func (p *Probe) IsOnline() bool {
	return p.online.Load()
}

func (p *Probe) Changes() <-chan bool {
	return p.changes
}
