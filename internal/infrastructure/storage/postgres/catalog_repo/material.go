package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain/catalogs/material"
	"lotkeeper/internal/infrastructure/storage/postgres"
)

const (
	materialTable = "cat_materials"
	overrideTable = "cat_material_strategy_overrides"
)

// MaterialRepo implements material.Repository.
type MaterialRepo struct {
	*BaseCatalogRepo[material.Material]
}

// NewMaterialRepo creates a new material repository.
func NewMaterialRepo(txManager *postgres.TxManager) *MaterialRepo {
	return &MaterialRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[material.Material](txManager, materialTable, "material"),
	}
}

var _ material.Repository = (*MaterialRepo)(nil)

// Create inserts a material.
func (r *MaterialRepo) Create(ctx context.Context, m *material.Material) error {
	return r.BaseCatalogRepo.Create(ctx, m, m.Code)
}

// List returns materials matching filter.
func (r *MaterialRepo) List(ctx context.Context, filter material.ListFilter) ([]material.Material, error) {
	return r.BaseCatalogRepo.List(ctx, listParams(filter))
}

// GetOverride returns the strategy override, or nil when none exists.
func (r *MaterialRepo) GetOverride(ctx context.Context, materialID, warehouseID id.ID) (*material.StrategyOverride, error) {
	sql, args, err := postgres.Builder().
		Select("material_id", "warehouse_id", "strategy", "updated_at").
		From(overrideTable).
		Where(squirrel.Eq{"material_id": materialID, "warehouse_id": warehouseID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var o material.StrategyOverride
	if err := pgxscan.Get(ctx, r.querier(ctx), &o, sql, args...); err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get strategy override: %w", err)
	}
	return &o, nil
}

// SetOverride upserts the override of a material at a warehouse.
func (r *MaterialRepo) SetOverride(ctx context.Context, o material.StrategyOverride) error {
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = time.Now().UTC()
	}

	sql, args, err := postgres.Builder().
		Insert(overrideTable).
		Columns("material_id", "warehouse_id", "strategy", "updated_at").
		Values(o.MaterialID, o.WarehouseID, o.Strategy, o.UpdatedAt).
		Suffix("ON CONFLICT (material_id, warehouse_id) DO UPDATE SET strategy = EXCLUDED.strategy, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "set strategy override", "strategy override", o.WarehouseID)
	}
	return nil
}

// DeleteOverride removes an override. Missing overrides are not an error.
func (r *MaterialRepo) DeleteOverride(ctx context.Context, materialID, warehouseID id.ID) error {
	sql, args, err := postgres.Builder().
		Delete(overrideTable).
		Where(squirrel.Eq{"material_id": materialID, "warehouse_id": warehouseID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete strategy override: %w", err)
	}
	return nil
}
