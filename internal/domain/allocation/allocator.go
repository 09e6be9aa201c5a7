package allocation

import (
	"slices"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/types"
)

// Allocate selects lots for req from a snapshot of candidate lots.
//
// It is a pure function of its inputs: candidates are neither mutated nor
// reordered, and the same snapshot always yields the same result. A
// shortfall is reported in the result, not as an error. req.Strategy must
// already be resolved.
func Allocate(req WithdrawalRequest, candidates []Lot) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	if req.Strategy == "" {
		return Result{}, apperror.NewInvalidRequest("lot strategy is required")
	}

	available := make([]Lot, 0, len(candidates))
	for _, lot := range candidates {
		if lot.MaterialID != req.MaterialID || lot.WarehouseID != req.WarehouseID {
			return Result{}, apperror.NewInvalidRequest("candidate lot does not match request").
				WithDetail("lot_id", lot.ID.String()).
				WithDetail("material_id", lot.MaterialID.String()).
				WithDetail("warehouse_id", lot.WarehouseID.String())
		}
		if lot.QuantityOnHand.IsPositive() {
			available = append(available, lot)
		}
	}

	slices.SortFunc(available, req.Strategy.comparator())

	res := Result{
		MaterialID:  req.MaterialID,
		WarehouseID: req.WarehouseID,
		Strategy:    req.Strategy,
		Requested:   req.Quantity,
		Lines:       []Take{},
		TotalCost:   types.Zero(),
	}

	remaining := req.Quantity
	for _, lot := range available {
		if remaining.IsZero() {
			break
		}
		take := types.MinQuantity(lot.QuantityOnHand, remaining)
		res.Lines = append(res.Lines, Take{LotID: lot.ID, Quantity: take})
		res.TotalCost = res.TotalCost.Add(types.Cost(lot.UnitCost, take))
		remaining -= take
	}

	res.Fulfilled = req.Quantity - remaining
	res.Shortfall = remaining
	return res, nil
}
