package entity

import (
	"time"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
)

// MovementType is the direction of an inventory transaction.
type MovementType string

const (
	MovementIn            MovementType = "IN"
	MovementOut           MovementType = "OUT"
	MovementAdjustmentIn  MovementType = "ADJUSTMENT_IN"
	MovementAdjustmentOut MovementType = "ADJUSTMENT_OUT"
)

// IsValid reports whether t is a known movement type.
func (t MovementType) IsValid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjustmentIn, MovementAdjustmentOut:
		return true
	}
	return false
}

// IsOutbound reports whether the movement decreases stock.
func (t MovementType) IsOutbound() bool {
	return t == MovementOut || t == MovementAdjustmentOut
}

// Movement is one immutable row of the inventory transaction ledger.
// Quantity is always positive; Type carries the direction.
type Movement struct {
	ID          id.ID          `db:"id" json:"id"`
	LotID       id.ID          `db:"lot_id" json:"lotId"`
	MaterialID  id.ID          `db:"material_id" json:"materialId"`
	WarehouseID id.ID          `db:"warehouse_id" json:"warehouseId"`
	Type        MovementType   `db:"movement_type" json:"type"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	Reference   string         `db:"reference" json:"reference"`
	Reason      string         `db:"reason" json:"reason,omitempty"`
	UserID      string         `db:"user_id" json:"userId,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
}

// NewMovement creates a ledger row with a generated id.
func NewMovement(t MovementType, lotID, materialID, warehouseID id.ID, qty types.Quantity, reference string) Movement {
	return Movement{
		ID:          id.New(),
		LotID:       lotID,
		MaterialID:  materialID,
		WarehouseID: warehouseID,
		Type:        t,
		Quantity:    qty,
		Reference:   reference,
		CreatedAt:   time.Now().UTC(),
	}
}

// SignedQuantity returns quantity with sign based on movement type.
func (m *Movement) SignedQuantity() types.Quantity {
	if m.Type.IsOutbound() {
		return -m.Quantity
	}
	return m.Quantity
}
