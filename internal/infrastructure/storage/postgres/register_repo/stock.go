// Package register_repo provides the PostgreSQL stock register: the
// movement ledger and the balance queries over lots.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lotkeeper/internal/core/entity"
	"lotkeeper/internal/domain/registers/stock"
	"lotkeeper/internal/infrastructure/storage/postgres"
)

const (
	stockMovementsTable = "reg_stock_movements"
	lotsTable           = "inv_lots"
	materialsTable      = "cat_materials"
)

// StockRepo implements stock.Repository.
type StockRepo struct {
	txManager       *postgres.TxManager
	movementColumns []string
}

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txManager:       txManager,
		movementColumns: postgres.ExtractDBColumns[entity.Movement](),
	}
}

var _ stock.Repository = (*StockRepo)(nil)

// CreateMovements inserts ledger rows, using COPY inside a transaction.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []entity.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(movements))
	for i := range movements {
		m := postgres.StructToMap(&movements[i])
		row := make([]any, 0, len(r.movementColumns))
		for _, col := range r.movementColumns {
			row = append(row, m[col])
		}
		rows = append(rows, row)
	}

	if r.txManager.GetTx(ctx) != nil {
		if _, err := r.txManager.CopyFromSlice(ctx, stockMovementsTable, r.movementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
		return nil
	}

	q := postgres.Builder().Insert(stockMovementsTable).Columns(r.movementColumns...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}
	return nil
}

// ListMovements returns ledger rows, newest first.
func (r *StockRepo) ListMovements(ctx context.Context, filter stock.MovementFilter) ([]entity.Movement, error) {
	q := postgres.Builder().
		Select(r.movementColumns...).
		From(stockMovementsTable).
		OrderBy("created_at DESC", "id DESC")

	if filter.LotID != nil {
		q = q.Where(squirrel.Eq{"lot_id": *filter.LotID})
	}
	if filter.MaterialID != nil {
		q = q.Where(squirrel.Eq{"material_id": *filter.MaterialID})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"movement_type": *filter.Type})
	}
	if filter.Reference != "" {
		q = q.Where(squirrel.Eq{"reference": filter.Reference})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.ToDate})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	movements := make([]entity.Movement, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return movements, nil
}

// GetBalances aggregates lot quantities per material and warehouse.
func (r *StockRepo) GetBalances(ctx context.Context, filter stock.BalanceFilter) ([]stock.Balance, error) {
	q := postgres.Builder().
		Select(
			"material_id",
			"warehouse_id",
			"COALESCE(SUM(quantity_on_hand), 0)::bigint AS on_hand",
			"COUNT(*) FILTER (WHERE quantity_on_hand > 0) AS lot_count",
			"MIN(exp_date) FILTER (WHERE quantity_on_hand > 0) AS nearest_expiry",
		).
		From(lotsTable).
		GroupBy("material_id", "warehouse_id").
		OrderBy("material_id", "warehouse_id")

	if filter.MaterialID != nil {
		q = q.Where(squirrel.Eq{"material_id": *filter.MaterialID})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.ExcludeZero {
		q = q.Having("SUM(quantity_on_hand) > 0")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	balances := make([]stock.Balance, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &balances, sql, args...); err != nil {
		return nil, fmt.Errorf("get balances: %w", err)
	}
	return balances, nil
}

// GetStockLevels returns the on-hand total of every active material.
func (r *StockRepo) GetStockLevels(ctx context.Context) ([]stock.StockLevel, error) {
	sql, args, err := postgres.Builder().
		Select(
			"m.id AS material_id",
			"m.code AS material_code",
			"m.name AS material_name",
			"m.unit",
			"COALESCE(SUM(l.quantity_on_hand), 0)::bigint AS on_hand",
			"m.min_stock",
			"m.reorder_point",
		).
		From(materialsTable + " m").
		LeftJoin(lotsTable + " l ON l.material_id = m.id").
		Where(squirrel.Eq{"m.is_active": true}).
		GroupBy("m.id", "m.code", "m.name", "m.unit", "m.min_stock", "m.reorder_point").
		OrderBy("m.code").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	levels := make([]stock.StockLevel, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &levels, sql, args...); err != nil {
		return nil, fmt.Errorf("get stock levels: %w", err)
	}
	return levels, nil
}
