package repository

import (
	"context"
	"sync/atomic"
	"time"

	"stocktake/internal/domain"
	"stocktake/internal/models"

	"github.com/rs/zerolog"
)

// FailoverScanStateRepository prefers the primary (redis) repository and
// degrades to the in-memory fallback while the primary is failing, probing
// it again after a cooldown.
type FailoverScanStateRepository struct {
	primary   domain.ScanStateRepository
	fallback  domain.ScanStateRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverScanStateRepository(primary, fallback domain.ScanStateRepository, logger *zerolog.Logger) *FailoverScanStateRepository {
	return &FailoverScanStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

const recoveryCooldown = time.Minute

func (r *FailoverScanStateRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary scan-state repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverScanStateRepository) shouldRetryPrimary() bool {
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryCooldown
}

func (r *FailoverScanStateRepository) GetState(ctx context.Context, operatorID string) (*models.ScanState, error) {
	if !r.isDown.Load() {
		state, err := r.primary.GetState(ctx, operatorID)
		if err == nil {
			return state, nil
		}
		r.markDown(err)
	} else if r.shouldRetryPrimary() {
		state, err := r.primary.GetState(ctx, operatorID)
		if err == nil {
			r.isDown.Store(false)
			return state, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.GetState(ctx, operatorID)
}

func (r *FailoverScanStateRepository) SetState(ctx context.Context, state *models.ScanState) error {
	if !r.isDown.Load() {
		err := r.primary.SetState(ctx, state)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.SetState(ctx, state)
}

func (r *FailoverScanStateRepository) ClearState(ctx context.Context, operatorID string) error {
	if !r.isDown.Load() {
		err := r.primary.ClearState(ctx, operatorID)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.ClearState(ctx, operatorID)
}
