// Package stock provides the inventory transaction ledger and stock level queries.
package stock

import (
	"context"
	"time"

	"lotkeeper/internal/core/entity"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
)

// Repository defines operations for the stock register.
type Repository interface {
	// CreateMovements batch inserts ledger rows.
	CreateMovements(ctx context.Context, movements []entity.Movement) error

	// ListMovements returns ledger rows, newest first.
	ListMovements(ctx context.Context, filter MovementFilter) ([]entity.Movement, error)

	// GetBalances aggregates on-hand quantities of lots per material and warehouse.
	GetBalances(ctx context.Context, filter BalanceFilter) ([]Balance, error)

	// GetStockLevels returns the on-hand total of every active material across
	// all warehouses together with its thresholds.
	GetStockLevels(ctx context.Context) ([]StockLevel, error)
}

// BalanceFilter for filtering balance queries.
type BalanceFilter struct {
	MaterialID  *id.ID
	WarehouseID *id.ID
	ExcludeZero bool
}

// MovementFilter for filtering ledger queries.
type MovementFilter struct {
	LotID       *id.ID
	MaterialID  *id.ID
	WarehouseID *id.ID
	Type        *entity.MovementType
	Reference   string
	FromDate    *time.Time
	ToDate      *time.Time
	Limit       int
	Offset      int
}

// Balance is the on-hand quantity of a material at a warehouse.
type Balance struct {
	MaterialID    id.ID          `db:"material_id" json:"materialId"`
	WarehouseID   id.ID          `db:"warehouse_id" json:"warehouseId"`
	OnHand        types.Quantity `db:"on_hand" json:"onHand"`
	LotCount      int            `db:"lot_count" json:"lotCount"`
	NearestExpiry *time.Time     `db:"nearest_expiry" json:"nearestExpiry,omitempty"`
}

// StockLevel is a material's total on-hand quantity and its thresholds.
type StockLevel struct {
	MaterialID   id.ID          `db:"material_id" json:"materialId"`
	MaterialCode string         `db:"material_code" json:"materialCode"`
	MaterialName string         `db:"material_name" json:"materialName"`
	Unit         string         `db:"unit" json:"unit"`
	OnHand       types.Quantity `db:"on_hand" json:"onHand"`
	MinStock     types.Quantity `db:"min_stock" json:"minStock"`
	ReorderPoint types.Quantity `db:"reorder_point" json:"reorderPoint"`
}

// LowStockItem is a stock level that matched the low-stock rule.
type LowStockItem struct {
	StockLevel
	IsCritical bool           `json:"isCritical"`
	Shortage   types.Quantity `json:"shortage"`
}

// NewLowStockItem derives criticality and shortage for a matched level.
// A level is critical when nothing is left or less than half of the reorder
// point remains.
func NewLowStockItem(level StockLevel) LowStockItem {
	item := LowStockItem{StockLevel: level}
	item.IsCritical = level.OnHand <= 0 ||
		(level.ReorderPoint.IsPositive() && level.OnHand*2 < level.ReorderPoint)
	if level.ReorderPoint > level.OnHand {
		item.Shortage = level.ReorderPoint - level.OnHand
	}
	return item
}
