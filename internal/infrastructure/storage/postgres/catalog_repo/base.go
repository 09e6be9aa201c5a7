// Package catalog_repo provides PostgreSQL implementations of the material
// and warehouse catalogs.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/infrastructure/storage/postgres"
)

// listParams are the filters shared by catalog listings.
type listParams struct {
	OnlyActive bool
	Search     string
	Limit      int
	Offset     int
}

// BaseCatalogRepo provides CRUD for a catalog table whose rows map onto T
// through "db" tags. T must embed entity.BaseEntity.
type BaseCatalogRepo[T any] struct {
	txManager *postgres.TxManager
	tableName string
	columns   []string
	entity    string
}

// NewBaseCatalogRepo creates a new base catalog repository.
func NewBaseCatalogRepo[T any](txManager *postgres.TxManager, tableName, entity string) *BaseCatalogRepo[T] {
	return &BaseCatalogRepo[T]{
		txManager: txManager,
		tableName: tableName,
		columns:   postgres.ExtractDBColumns[T](),
		entity:    entity,
	}
}

func (r *BaseCatalogRepo[T]) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts a new row.
func (r *BaseCatalogRepo[T]) Create(ctx context.Context, e *T, code string) error {
	sql, args, err := postgres.Builder().
		Insert(r.tableName).
		SetMap(postgres.StructToMap(e, r.columns...)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "insert "+r.tableName, r.entity, code)
	}
	return nil
}

type touchable interface {
	Touch()
}

// Update writes every column with optimistic locking. e's version must be
// the version it was read at; on success it is incremented.
func (r *BaseCatalogRepo[T]) Update(ctx context.Context, e *T) error {
	data := postgres.StructToMap(e, r.columns...)
	entityID := data["id"]
	expected, ok := data["version"].(int)
	if !ok {
		return fmt.Errorf("%s: entity has no int version", r.tableName)
	}

	if t, ok := any(e).(touchable); ok {
		t.Touch()
		data = postgres.StructToMap(e, r.columns...)
	}
	delete(data, "id")
	delete(data, "created_at")

	sql, args, err := postgres.Builder().
		Update(r.tableName).
		SetMap(data).
		Where(squirrel.Eq{"id": entityID, "version": expected}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "update "+r.tableName, r.entity, entityID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(r.entity, entityID)
	}
	return nil
}

// GetByID retrieves a row by id.
func (r *BaseCatalogRepo[T]) GetByID(ctx context.Context, entityID id.ID) (*T, error) {
	sql, args, err := postgres.Builder().
		Select(r.columns...).
		From(r.tableName).
		Where(squirrel.Eq{"id": entityID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	e := new(T)
	if err := pgxscan.Get(ctx, r.querier(ctx), e, sql, args...); err != nil {
		return nil, postgres.MapError(err, "get "+r.tableName, r.entity, entityID)
	}
	return e, nil
}

// List returns rows ordered by code.
func (r *BaseCatalogRepo[T]) List(ctx context.Context, p listParams) ([]T, error) {
	q := postgres.Builder().
		Select(r.columns...).
		From(r.tableName).
		OrderBy("code", "id")

	if p.OnlyActive {
		q = q.Where(squirrel.Eq{"is_active": true})
	}
	if p.Search != "" {
		pattern := "%" + p.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"code": pattern},
		})
	}
	if p.Limit > 0 {
		q = q.Limit(uint64(p.Limit))
	}
	if p.Offset > 0 {
		q = q.Offset(uint64(p.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := make([]T, 0)
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.tableName, err)
	}
	return items, nil
}
