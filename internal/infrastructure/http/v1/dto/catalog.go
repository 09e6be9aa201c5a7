package dto

import (
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/allocation"
	"lotkeeper/internal/domain/catalogs/material"
	"lotkeeper/internal/domain/catalogs/warehouse"
)

// CreateMaterialRequest is the request body for creating a material.
type CreateMaterialRequest struct {
	Code            string         `json:"code" binding:"max=32"`
	Name            string         `json:"name" binding:"required,max=255"`
	Unit            string         `json:"unit" binding:"required,max=16"`
	DefaultStrategy string         `json:"defaultStrategy"`
	MinStock        types.Quantity `json:"minStock"`
	ReorderPoint    types.Quantity `json:"reorderPoint"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateMaterialRequest) ToEntity() (*material.Material, error) {
	m := material.NewMaterial(r.Code, r.Name, r.Unit)
	if r.DefaultStrategy != "" {
		strategy, err := allocation.ParseStrategy(r.DefaultStrategy)
		if err != nil {
			return nil, err
		}
		m.DefaultStrategy = strategy
	}
	m.MinStock = r.MinStock
	m.ReorderPoint = r.ReorderPoint
	return m, nil
}

// UpdateMaterialRequest changes a material. Version must match the stored
// row; omitted fields keep their value.
type UpdateMaterialRequest struct {
	Version         int             `json:"version" binding:"required,min=1"`
	Name            *string         `json:"name" binding:"omitempty,max=255"`
	Unit            *string         `json:"unit" binding:"omitempty,max=16"`
	DefaultStrategy *string         `json:"defaultStrategy"`
	MinStock        *types.Quantity `json:"minStock"`
	ReorderPoint    *types.Quantity `json:"reorderPoint"`
	IsActive        *bool           `json:"isActive"`
}

// ApplyTo copies the present fields onto m.
func (r *UpdateMaterialRequest) ApplyTo(m *material.Material) error {
	m.Version = r.Version
	if r.Name != nil {
		m.Name = *r.Name
	}
	if r.Unit != nil {
		m.Unit = *r.Unit
	}
	if r.DefaultStrategy != nil {
		if *r.DefaultStrategy == "" {
			m.DefaultStrategy = ""
		} else {
			strategy, err := allocation.ParseStrategy(*r.DefaultStrategy)
			if err != nil {
				return err
			}
			m.DefaultStrategy = strategy
		}
	}
	if r.MinStock != nil {
		m.MinStock = *r.MinStock
	}
	if r.ReorderPoint != nil {
		m.ReorderPoint = *r.ReorderPoint
	}
	if r.IsActive != nil {
		m.IsActive = *r.IsActive
	}
	return nil
}

// StrategyOverrideRequest pins a strategy for a material at a warehouse.
type StrategyOverrideRequest struct {
	Strategy string `json:"strategy" binding:"required"`
}

// CreateWarehouseRequest is the request body for creating a warehouse.
type CreateWarehouseRequest struct {
	Code    string  `json:"code" binding:"max=32"`
	Name    string  `json:"name" binding:"required,max=255"`
	Address *string `json:"address"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateWarehouseRequest) ToEntity() *warehouse.Warehouse {
	wh := warehouse.NewWarehouse(r.Code, r.Name)
	wh.Address = r.Address
	return wh
}
