package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/tx"
	"lotkeeper/pkg/logger"
)

var tracer = otel.Tracer("lotkeeper/tx")

var _ tx.Manager = (*TxManager)(nil)

const statementTimeout = 30 * time.Second

// TxManager keeps the active pgx transaction in the context. Repositories
// call GetQuerier and so join whatever transaction their caller opened.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *Pool) *TxManager {
	return &TxManager{pool: pool.Pool}
}

type txKey struct{}

// Tx is the transaction stored in the context.
type Tx struct {
	pgx.Tx
}

// RunInTransaction runs fn in a read-committed transaction, or inside the
// caller's transaction when ctx already holds one. A serialization failure
// or deadlock at commit is reported as CONCURRENT_MODIFICATION so the
// allocation retry loop recomputes.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if m.GetTx(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "db.transaction")
	span.SetAttributes(attribute.String("db.tx.isolation", string(pgx.ReadCommitted)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	pgTx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if _, err = pgTx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", statementTimeout.Milliseconds())); err != nil {
		_ = pgTx.Rollback(context.Background())
		return fmt.Errorf("set statement_timeout: %w", err)
	}

	if err = fn(context.WithValue(ctx, txKey{}, &Tx{Tx: pgTx})); err != nil {
		// ctx may already be cancelled; the rollback still has to reach the server.
		if rbErr := pgTx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			logger.Error(ctx, "rollback failed", "error", rbErr, "cause", err)
		}
		return err
	}

	if err = pgTx.Commit(ctx); err != nil {
		if isRetryable(err) {
			return apperror.NewConcurrentModification("transaction", nil).WithCause(err)
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetTx returns the transaction held by ctx, or nil.
func (m *TxManager) GetTx(ctx context.Context) *Tx {
	t, _ := ctx.Value(txKey{}).(*Tx)
	return t
}

// Querier is the subset of pgx shared by the pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetQuerier returns the transaction in ctx or, outside one, the pool.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.GetTx(ctx); t != nil {
		return t.Tx
	}
	return m.pool
}
