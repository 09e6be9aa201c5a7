// Package material provides the Material catalog: stocked items, their
// thresholds, and the lot strategy used to withdraw them.
package material

import (
	"context"
	"strings"
	"time"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/entity"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/allocation"
)

// Material is a stocked item.
type Material struct {
	entity.BaseEntity

	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
	Unit string `db:"unit" json:"unit"`

	// DefaultStrategy applies at every warehouse without an override.
	// Empty means the service default (FIFO).
	DefaultStrategy allocation.Strategy `db:"default_strategy" json:"defaultStrategy,omitempty"`

	MinStock     types.Quantity `db:"min_stock" json:"minStock"`
	ReorderPoint types.Quantity `db:"reorder_point" json:"reorderPoint"`
	IsActive     bool           `db:"is_active" json:"isActive"`
}

// NewMaterial creates a new active material.
func NewMaterial(code, name, unit string) *Material {
	return &Material{
		BaseEntity: entity.NewBaseEntity(),
		Code:       strings.TrimSpace(code),
		Name:       strings.TrimSpace(name),
		Unit:       strings.TrimSpace(unit),
		IsActive:   true,
	}
}

// Validate implements entity.Validatable interface.
func (m *Material) Validate(_ context.Context) error {
	if strings.TrimSpace(m.Name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if strings.TrimSpace(m.Unit) == "" {
		return apperror.NewValidation("unit is required").WithDetail("field", "unit")
	}
	if m.DefaultStrategy != "" && !m.DefaultStrategy.IsValid() {
		return apperror.NewValidation("invalid lot strategy").
			WithDetail("field", "defaultStrategy").
			WithDetail("value", string(m.DefaultStrategy))
	}
	if m.MinStock.IsNegative() || m.ReorderPoint.IsNegative() {
		return apperror.NewValidation("stock thresholds must not be negative")
	}
	return nil
}

const auditEntity = "material"

// auditState is the set of fields tracked in the audit log.
func (m *Material) auditState() map[string]any {
	return map[string]any{
		"name":            m.Name,
		"unit":            m.Unit,
		"defaultStrategy": string(m.DefaultStrategy),
		"minStock":        m.MinStock.String(),
		"reorderPoint":    m.ReorderPoint.String(),
		"isActive":        m.IsActive,
	}
}

// StrategyOverride pins a strategy for one material at one warehouse.
type StrategyOverride struct {
	MaterialID  id.ID               `db:"material_id" json:"materialId"`
	WarehouseID id.ID               `db:"warehouse_id" json:"warehouseId"`
	Strategy    allocation.Strategy `db:"strategy" json:"strategy"`
	UpdatedAt   time.Time           `db:"updated_at" json:"updatedAt"`
}
