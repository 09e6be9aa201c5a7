// Package warehouse provides the Warehouse catalog.
// Warehouses are the physical locations lots are stored at.
package warehouse

import (
	"context"
	"strings"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/entity"
)

// Warehouse represents a storage location.
type Warehouse struct {
	entity.BaseEntity

	Code     string  `db:"code" json:"code"`
	Name     string  `db:"name" json:"name"`
	Address  *string `db:"address" json:"address,omitempty"`
	IsActive bool    `db:"is_active" json:"isActive"`
}

// NewWarehouse creates a new active Warehouse.
func NewWarehouse(code, name string) *Warehouse {
	return &Warehouse{
		BaseEntity: entity.NewBaseEntity(),
		Code:       strings.TrimSpace(code),
		Name:       strings.TrimSpace(name),
		IsActive:   true,
	}
}

// Validate implements entity.Validatable interface.
func (w *Warehouse) Validate(_ context.Context) error {
	if strings.TrimSpace(w.Name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if len(w.Code) > 32 {
		return apperror.NewValidation("code is too long").
			WithDetail("field", "code").
			WithDetail("max_length", 32)
	}
	return nil
}
