package postgres

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/domain/audit"
)

const auditTable = "sys_audit"

// AuditRepo implements audit.Repository.
type AuditRepo struct {
	txManager *TxManager
	columns   []string
}

// NewAuditRepo creates a new audit repository.
func NewAuditRepo(txManager *TxManager) *AuditRepo {
	return &AuditRepo{
		txManager: txManager,
		columns:   ExtractDBColumns[audit.Entry](),
	}
}

var _ audit.Repository = (*AuditRepo)(nil)

// Create inserts an entry.
func (r *AuditRepo) Create(ctx context.Context, e *audit.Entry) error {
	sql, args, err := Builder().
		Insert(auditTable).
		SetMap(StructToMap(e, r.columns...)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByEntity returns entries of one entity, newest first.
func (r *AuditRepo) ListByEntity(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	sql, args, err := Builder().
		Select(r.columns...).
		From(auditTable).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	entries := make([]audit.Entry, 0)
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return entries, nil
}
