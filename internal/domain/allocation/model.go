// Package allocation selects inventory lots for withdrawals and commits
// the resulting decrements.
package allocation

import (
	"context"
	"time"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/entity"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
)

// Lot is a receipt batch of one material at one warehouse.
type Lot struct {
	entity.BaseEntity

	LotNumber      string         `db:"lot_number" json:"lotNumber"`
	MaterialID     id.ID          `db:"material_id" json:"materialId"`
	WarehouseID    id.ID          `db:"warehouse_id" json:"warehouseId"`
	QuantityOnHand types.Quantity `db:"quantity_on_hand" json:"quantityOnHand"`
	MfgDate        time.Time      `db:"mfg_date" json:"mfgDate"`
	ExpDate        *time.Time     `db:"exp_date" json:"expDate,omitempty"`
	UnitCost       types.Money    `db:"unit_cost" json:"unitCost"`
}

// NewLot creates a lot with a generated id.
func NewLot(materialID, warehouseID id.ID, qty types.Quantity, mfg time.Time, exp *time.Time) *Lot {
	return &Lot{
		BaseEntity:     entity.NewBaseEntity(),
		MaterialID:     materialID,
		WarehouseID:    warehouseID,
		QuantityOnHand: qty,
		MfgDate:        mfg,
		ExpDate:        exp,
		UnitCost:       types.Zero(),
	}
}

// Validate checks lot invariants.
func (l *Lot) Validate(_ context.Context) error {
	if id.IsNil(l.MaterialID) {
		return apperror.NewValidation("material is required").WithDetail("field", "materialId")
	}
	if id.IsNil(l.WarehouseID) {
		return apperror.NewValidation("warehouse is required").WithDetail("field", "warehouseId")
	}
	if l.QuantityOnHand.IsNegative() {
		return apperror.NewValidation("quantity on hand must not be negative").
			WithDetail("field", "quantityOnHand")
	}
	if l.MfgDate.IsZero() {
		return apperror.NewValidation("manufacture date is required").WithDetail("field", "mfgDate")
	}
	if l.ExpDate != nil && l.ExpDate.Before(l.MfgDate) {
		return apperror.NewValidation("expiry date precedes manufacture date").
			WithDetail("field", "expDate")
	}
	if l.UnitCost.IsNegative() {
		return apperror.NewValidation("unit cost must not be negative").WithDetail("field", "unitCost")
	}
	return nil
}

// IsExpired reports whether the lot expired before at.
func (l *Lot) IsExpired(at time.Time) bool {
	return l.ExpDate != nil && l.ExpDate.Before(at)
}

// WithdrawalRequest asks for a quantity of a material from a warehouse.
type WithdrawalRequest struct {
	MaterialID  id.ID          `json:"materialId"`
	WarehouseID id.ID          `json:"warehouseId"`
	Quantity    types.Quantity `json:"quantity"`
	// Strategy is optional; when empty it is resolved from the catalog.
	Strategy Strategy `json:"strategy,omitempty"`

	Reference string `json:"reference,omitempty"`
	Reason    string `json:"reason,omitempty"`
	// AllowPartial overrides the service default when set.
	AllowPartial *bool `json:"allowPartial,omitempty"`
}

// Validate rejects malformed requests before any lot is read.
func (r WithdrawalRequest) Validate() error {
	if id.IsNil(r.MaterialID) {
		return apperror.NewInvalidRequest("material is required").WithDetail("field", "materialId")
	}
	if id.IsNil(r.WarehouseID) {
		return apperror.NewInvalidRequest("warehouse is required").WithDetail("field", "warehouseId")
	}
	if !r.Quantity.IsPositive() {
		return apperror.NewInvalidRequest("requested quantity must be positive").
			WithDetail("quantity", r.Quantity.String())
	}
	if r.Strategy != "" && !r.Strategy.IsValid() {
		return apperror.NewInvalidRequest("unknown lot strategy").
			WithDetail("strategy", string(r.Strategy))
	}
	return nil
}

// Take is one (lot, quantity) pair of an allocation.
type Take struct {
	LotID    id.ID          `json:"lotId"`
	Quantity types.Quantity `json:"quantity"`
}

// Result is the outcome of Allocate. Lines are in the order they were taken.
type Result struct {
	MaterialID  id.ID          `json:"materialId"`
	WarehouseID id.ID          `json:"warehouseId"`
	Strategy    Strategy       `json:"strategy"`
	Requested   types.Quantity `json:"requested"`
	Fulfilled   types.Quantity `json:"fulfilled"`
	Shortfall   types.Quantity `json:"shortfall"`
	Lines       []Take         `json:"lines"`
	TotalCost   types.Money    `json:"totalCost"`
}

// IsPartial reports whether the request could not be fully served.
func (r Result) IsPartial() bool {
	return r.Shortfall.IsPositive()
}

// Outcome labels the result for metrics and logs.
func (r Result) Outcome() string {
	switch {
	case r.Fulfilled.IsZero():
		return OutcomeEmpty
	case r.IsPartial():
		return OutcomePartial
	default:
		return OutcomeFulfilled
	}
}

// Outcome labels.
const (
	OutcomeFulfilled = "fulfilled"
	OutcomePartial   = "partial"
	OutcomeEmpty     = "empty"
	OutcomeRejected  = "rejected"
	OutcomeConflict  = "conflict"
)

// Withdrawal is a committed allocation.
type Withdrawal struct {
	ID          id.ID     `json:"id"`
	Reference   string    `json:"reference"`
	Reason      string    `json:"reason,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	Result      Result    `json:"result"`
	Attempts    int       `json:"attempts"`
	CommittedAt time.Time `json:"committedAt"`
}

// Movements converts the withdrawal into OUT ledger rows, one per line.
func (w *Withdrawal) Movements() []entity.Movement {
	out := make([]entity.Movement, 0, len(w.Result.Lines))
	for _, line := range w.Result.Lines {
		m := entity.NewMovement(entity.MovementOut, line.LotID,
			w.Result.MaterialID, w.Result.WarehouseID, line.Quantity, w.Reference)
		m.Reason = w.Reason
		m.UserID = w.UserID
		m.CreatedAt = w.CommittedAt
		out = append(out, m)
	}
	return out
}
