// Package remote is the network boundary to the warehouse service. The
// payload of a mutation passes through verbatim; its schema belongs to the
// business layer on both ends.
package remote

import (
	"context"
	"time"

	"stocktake/internal/models"
)

// SubmitResult distinguishes acceptance from a structured conflict. A
// conflict means the record diverged server-side and retrying would only
// repeat the rejection; transport failures surface as errors instead.
type SubmitResult struct {
	Accepted bool
	Conflict bool
	Reason   string
}

// Service is what the sync engine and lookups need from the remote side.
type Service interface {
	Submit(ctx context.Context, kind, payload string) (*SubmitResult, error)
	FetchChanges(ctx context.Context, since *time.Time) ([]models.Item, error)
	GetItem(ctx context.Context, code string) (*models.Item, error)
	Healthz(ctx context.Context) error
}
