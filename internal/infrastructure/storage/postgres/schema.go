package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"lotkeeper/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the DDL of every table the service uses.
func Schema() string {
	return schemaSQL
}

// ApplySchema creates missing tables and indexes. Every statement is
// IF NOT EXISTS, so repeated runs are safe.
func ApplySchema(ctx context.Context, pool *Pool) error {
	// Simple protocol allows several statements in one Exec.
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Conn().PgConn().Exec(ctx, schemaSQL).ReadAll(); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.Info(ctx, "schema applied")
	return nil
}
