package material

import (
	"context"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain/allocation"
)

// ListFilter narrows material listings.
type ListFilter struct {
	OnlyActive bool
	Search     string
	Limit      int
	Offset     int
}

// Repository defines the interface for Material persistence.
type Repository interface {
	Create(ctx context.Context, m *Material) error
	Update(ctx context.Context, m *Material) error
	GetByID(ctx context.Context, id id.ID) (*Material, error)
	List(ctx context.Context, filter ListFilter) ([]Material, error)

	// GetOverride returns nil, nil when no override exists.
	GetOverride(ctx context.Context, materialID, warehouseID id.ID) (*StrategyOverride, error)
	SetOverride(ctx context.Context, o StrategyOverride) error
	DeleteOverride(ctx context.Context, materialID, warehouseID id.ID) error
}

// StrategyCache memoizes resolved strategies. Implementations must be safe
// for concurrent use.
type StrategyCache interface {
	Get(ctx context.Context, materialID, warehouseID id.ID) (allocation.Strategy, bool, error)
	Set(ctx context.Context, materialID, warehouseID id.ID, strategy allocation.Strategy) error
	InvalidateMaterial(ctx context.Context, materialID id.ID) error
}
