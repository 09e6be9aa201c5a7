package catalog_repo

import (
	"context"

	"lotkeeper/internal/domain/catalogs/warehouse"
	"lotkeeper/internal/infrastructure/storage/postgres"
)

const warehouseTable = "cat_warehouses"

// WarehouseRepo implements warehouse.Repository.
type WarehouseRepo struct {
	*BaseCatalogRepo[warehouse.Warehouse]
}

// NewWarehouseRepo creates a new warehouse repository.
func NewWarehouseRepo(txManager *postgres.TxManager) *WarehouseRepo {
	return &WarehouseRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[warehouse.Warehouse](txManager, warehouseTable, "warehouse"),
	}
}

var _ warehouse.Repository = (*WarehouseRepo)(nil)

// Create inserts a warehouse.
func (r *WarehouseRepo) Create(ctx context.Context, wh *warehouse.Warehouse) error {
	return r.BaseCatalogRepo.Create(ctx, wh, wh.Code)
}

// List returns warehouses matching filter.
func (r *WarehouseRepo) List(ctx context.Context, filter warehouse.ListFilter) ([]warehouse.Warehouse, error) {
	return r.BaseCatalogRepo.List(ctx, listParams(filter))
}
