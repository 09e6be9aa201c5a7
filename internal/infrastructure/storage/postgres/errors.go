package postgres

import (
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"lotkeeper/internal/core/apperror"
)

// PostgreSQL error codes the repositories translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgSerializationFail   = "40001"
	pgDeadlockDetected    = "40P01"
)

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || pgxscan.NotFound(err)
}

// MapError converts driver errors into AppErrors. op names the failed
// operation for errors that stay internal.
func MapError(err error, op, entity string, key any) error {
	if err == nil {
		return nil
	}
	if IsNoRows(err) {
		return apperror.NewNotFound(entity, key)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperror.NewDuplicate(entity, pgErr.ConstraintName, fmt.Sprint(key)).WithCause(err)
		case pgForeignKeyViolation:
			return apperror.NewValidation(fmt.Sprintf("%s references a missing record", entity)).
				WithDetail("constraint", pgErr.ConstraintName).WithCause(err)
		case pgCheckViolation:
			return apperror.NewValidation(fmt.Sprintf("%s violates %s", entity, pgErr.ConstraintName)).WithCause(err)
		case pgSerializationFail, pgDeadlockDetected:
			return apperror.NewConcurrentModification(entity, key).WithCause(err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isRetryable reports serialization failures and deadlocks. Both leave the
// database unchanged, so the caller may recompute and try again.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFail || pgErr.Code == pgDeadlockDetected
}
