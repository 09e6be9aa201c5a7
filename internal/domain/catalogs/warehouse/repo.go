package warehouse

import (
	"context"

	"lotkeeper/internal/core/id"
)

// ListFilter narrows warehouse listings.
type ListFilter struct {
	OnlyActive bool
	Search     string
	Limit      int
	Offset     int
}

// Repository defines the interface for Warehouse persistence.
type Repository interface {
	Create(ctx context.Context, wh *Warehouse) error
	GetByID(ctx context.Context, id id.ID) (*Warehouse, error)
	List(ctx context.Context, filter ListFilter) ([]Warehouse, error)
}
