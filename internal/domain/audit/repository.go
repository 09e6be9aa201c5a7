package audit

import (
	"context"

	"lotkeeper/internal/core/id"
)

// Repository stores audit entries as given; packing is done by the service.
type Repository interface {
	Create(ctx context.Context, e *Entry) error

	// ListByEntity returns entries of one entity, newest first.
	ListByEntity(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error)
}
