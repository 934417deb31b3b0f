package domain

import (
	"context"

	"stocktake/internal/models"
)

// ScanStateRepository persists per-operator scan flow state so a restarted
// device resumes mid-session.
type ScanStateRepository interface {
	GetState(ctx context.Context, operatorID string) (*models.ScanState, error)
	SetState(ctx context.Context, state *models.ScanState) error
	ClearState(ctx context.Context, operatorID string) error
}

// EventPublisher decouples components from the concrete event bus.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
