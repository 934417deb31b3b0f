package syncer

import (
	"context"
	"errors"
	"time"

	"stocktake/internal/events"
	"stocktake/internal/models"
)

// Start runs the trigger loop until ctx is done: reconnect transitions from
// the connectivity monitor (debounced against flapping links) and the
// periodic tick that drains leftovers. Passes started here share the same
// single-flight guard as manual ones.
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info().
		Dur("interval", e.cfg.Interval).
		Dur("debounce", e.cfg.Debounce).
		Msg("sync trigger loop started")
	defer e.logger.Info().Msg("sync trigger loop stopped")

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case online := <-e.monitor.Changes():
			_ = e.bus.PublishJSON(events.EventConnectivityChanged, events.ConnectivityChangedPayload{Online: online})
			if !online {
				continue
			}

			// Wait out the debounce window, then confirm the link held.
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.cfg.Debounce):
			}
			if !e.monitor.IsOnline() {
				e.logger.Debug().Msg("link flapped during debounce, skipping pass")
				continue
			}

			e.runTriggered(ctx, TriggerReconnect)

		case <-ticker.C:
			if !e.monitor.IsOnline() {
				continue
			}
			pending, err := e.queue.Size(ctx, models.EntryPending)
			if err != nil {
				e.logger.Error().Err(err).Msg("failed to check pending count")
				continue
			}
			if pending == 0 {
				continue
			}
			e.runTriggered(ctx, TriggerInterval)
		}
	}
}

func (e *Engine) runTriggered(ctx context.Context, trigger string) {
	if _, err := e.Run(ctx, trigger); err != nil {
		if errors.Is(err, ErrSyncInFlight) {
			e.logger.Debug().Str("trigger", trigger).Msg("pass already running, trigger dropped")
			return
		}
		e.logger.Error().Err(err).Str("trigger", trigger).Msg("sync pass failed")
	}
}
