// Package lot_repo provides the PostgreSQL lot store.
package lot_repo

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/allocation"
	"lotkeeper/internal/infrastructure/storage/postgres"
)

const lotsTable = "inv_lots"

// LotRepo implements allocation.LotRepository.
type LotRepo struct {
	txManager *postgres.TxManager
	columns   []string
}

// NewLotRepo creates a new lot repository.
func NewLotRepo(txManager *postgres.TxManager) *LotRepo {
	return &LotRepo{
		txManager: txManager,
		columns:   postgres.ExtractDBColumns[allocation.Lot](),
	}
}

var _ allocation.LotRepository = (*LotRepo)(nil)

func (r *LotRepo) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().Select(r.columns...).From(lotsTable)
}

// FetchCandidateLots returns every lot of the material at the warehouse
// without taking locks.
func (r *LotRepo) FetchCandidateLots(ctx context.Context, materialID, warehouseID id.ID) ([]allocation.Lot, error) {
	sql, args, err := r.baseSelect().
		Where(squirrel.Eq{"material_id": materialID, "warehouse_id": warehouseID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	lots := make([]allocation.Lot, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &lots, sql, args...); err != nil {
		return nil, fmt.Errorf("fetch candidate lots: %w", err)
	}
	return lots, nil
}

type lockedLot struct {
	ID             id.ID          `db:"id"`
	QuantityOnHand types.Quantity `db:"quantity_on_hand"`
}

// CommitDecrements locks the targeted lots in id order, re-validates their
// quantities and applies every take, or none.
func (r *LotRepo) CommitDecrements(ctx context.Context, takes []allocation.Take) error {
	needed := make(map[id.ID]types.Quantity, len(takes))
	for _, t := range takes {
		if !t.Quantity.IsPositive() {
			return apperror.NewInvalidRequest("take quantity must be positive").
				WithDetail("lot_id", t.LotID.String())
		}
		needed[t.LotID] += t.Quantity
	}
	if len(needed) == 0 {
		return nil
	}

	lotIDs := make([]id.ID, 0, len(needed))
	for lotID := range needed {
		lotIDs = append(lotIDs, lotID)
	}
	// A fixed lock order keeps concurrent commits over overlapping lots
	// from deadlocking.
	slices.SortFunc(lotIDs, id.Compare)

	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sql, args, err := postgres.Builder().
			Select("id", "quantity_on_hand").
			From(lotsTable).
			Where(squirrel.Eq{"id": lotIDs}).
			OrderBy("id").
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return fmt.Errorf("build lock query: %w", err)
		}

		var locked []lockedLot
		if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &locked, sql, args...); err != nil {
			return fmt.Errorf("lock lots: %w", err)
		}

		onHand := make(map[id.ID]types.Quantity, len(locked))
		for _, l := range locked {
			onHand[l.ID] = l.QuantityOnHand
		}

		queries := make([]postgres.BatchQuery, 0, len(lotIDs))
		now := time.Now().UTC()
		for _, lotID := range lotIDs {
			have, ok := onHand[lotID]
			if !ok {
				return apperror.NewNotFound("lot", lotID)
			}
			take := needed[lotID]
			if have < take {
				return apperror.NewConcurrencyConflict(lotID, take.String(), have.String())
			}

			q, qargs, err := postgres.Builder().
				Update(lotsTable).
				Set("quantity_on_hand", squirrel.Expr("quantity_on_hand - ?", take)).
				Set("version", squirrel.Expr("version + 1")).
				Set("updated_at", now).
				Where(squirrel.Eq{"id": lotID}).
				ToSql()
			if err != nil {
				return fmt.Errorf("build decrement: %w", err)
			}
			queries = append(queries, postgres.BatchQuery{SQL: q, Args: qargs})
		}

		if _, err := r.txManager.ExecBatch(ctx, queries); err != nil {
			return fmt.Errorf("apply decrements: %w", err)
		}
		return nil
	})
}

// Create inserts a lot.
func (r *LotRepo) Create(ctx context.Context, lot *allocation.Lot) error {
	sql, args, err := postgres.Builder().
		Insert(lotsTable).
		SetMap(postgres.StructToMap(lot, r.columns...)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "insert lot", "lot", lot.LotNumber)
	}
	return nil
}

// GetByID returns a single lot.
func (r *LotRepo) GetByID(ctx context.Context, lotID id.ID) (*allocation.Lot, error) {
	sql, args, err := r.baseSelect().
		Where(squirrel.Eq{"id": lotID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lot allocation.Lot
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &lot, sql, args...); err != nil {
		return nil, postgres.MapError(err, "get lot", "lot", lotID)
	}
	return &lot, nil
}

// List returns lots matching filter ordered by id.
func (r *LotRepo) List(ctx context.Context, filter allocation.LotFilter) ([]allocation.Lot, error) {
	q := r.baseSelect().OrderBy("id")
	if filter.MaterialID != nil {
		q = q.Where(squirrel.Eq{"material_id": *filter.MaterialID})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if !filter.IncludeEmpty {
		q = q.Where(squirrel.Gt{"quantity_on_hand": 0})
	}
	if filter.ExpiresBefore != nil {
		q = q.Where(squirrel.Lt{"exp_date": *filter.ExpiresBefore})
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

	lots := make([]allocation.Lot, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &lots, sql, args...); err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	return lots, nil
}
