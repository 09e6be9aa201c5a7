// Package entity holds the persistence fields and ledger records shared by
// the catalogs, the lot store and the stock register.
package entity

import (
	"context"
	"time"

	"lotkeeper/internal/core/id"
)

// Validatable entities check their own fields before any write.
type Validatable interface {
	Validate(ctx context.Context) error
}

// BaseEntity is embedded by every versioned row. Version starts at 1 and
// is the optimistic-lock token: an UPDATE matches only the version it read.
type BaseEntity struct {
	ID        id.ID     `db:"id" json:"id"`
	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewBaseEntity stamps a fresh id and creation time.
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{ID: id.New(), Version: 1, CreatedAt: now, UpdatedAt: now}
}

// Touch bumps the version after a successful change.
func (b *BaseEntity) Touch() {
	b.Version++
	b.UpdatedAt = time.Now().UTC()
}

