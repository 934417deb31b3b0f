package repository

import (
	"context"
	"sync"
	"time"

	"stocktake/internal/models"
)

// MemoryScanStateRepository keeps operator scan state in process memory.
// Used standalone on devices without redis and as the failover fallback.
type MemoryScanStateRepository struct {
	states sync.Map
	ttl    time.Duration
}

func NewMemoryScanStateRepository(ttl time.Duration) *MemoryScanStateRepository {
	return &MemoryScanStateRepository{ttl: ttl}
}

type memoryState struct {
	state     *models.ScanState
	expiresAt time.Time
}

func (r *MemoryScanStateRepository) GetState(ctx context.Context, operatorID string) (*models.ScanState, error) {
	val, ok := r.states.Load(operatorID)
	if !ok {
		return nil, nil
	}
	entry := val.(*memoryState)
	if r.ttl > 0 && time.Now().After(entry.expiresAt) {
		r.states.Delete(operatorID)
		return nil, nil
	}
	return entry.state, nil
}

func (r *MemoryScanStateRepository) SetState(ctx context.Context, state *models.ScanState) error {
	r.states.Store(state.OperatorID, &memoryState{
		state:     state,
		expiresAt: time.Now().Add(r.ttl),
	})
	return nil
}

func (r *MemoryScanStateRepository) ClearState(ctx context.Context, operatorID string) error {
	r.states.Delete(operatorID)
	return nil
}
