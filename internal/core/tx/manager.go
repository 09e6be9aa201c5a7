// Package tx lets domain services demand atomicity without importing pgx.
package tx

import "context"

// Manager runs fn atomically. fn's context carries the transaction, and a
// call made while one is already open joins it instead of nesting. An error
// from fn discards every write made through that context.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Nop calls fn directly. The in-memory stores use it: they are atomic per
// call and have no transaction to join.
type Nop struct{}

func (Nop) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
