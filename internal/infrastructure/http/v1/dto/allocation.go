package dto

import (
	"strings"
	"time"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/allocation"
)

// WithdrawalRequest is the body of preview and withdraw calls.
type WithdrawalRequest struct {
	MaterialID   string         `json:"materialId"`
	WarehouseID  string         `json:"warehouseId"`
	Quantity     types.Quantity `json:"quantity"`
	Strategy     string         `json:"strategy"`
	Reference    string         `json:"reference" binding:"max=64"`
	Reason       string         `json:"reason" binding:"max=500"`
	AllowPartial *bool          `json:"allowPartial"`
}

// ToDomain converts the body into a domain request. Malformed identifiers
// and strategies are reported as INVALID_REQUEST.
func (r *WithdrawalRequest) ToDomain() (allocation.WithdrawalRequest, error) {
	materialID, err := parseRequiredID(r.MaterialID, "materialId")
	if err != nil {
		return allocation.WithdrawalRequest{}, err
	}
	warehouseID, err := parseRequiredID(r.WarehouseID, "warehouseId")
	if err != nil {
		return allocation.WithdrawalRequest{}, err
	}

	req := allocation.WithdrawalRequest{
		MaterialID:   materialID,
		WarehouseID:  warehouseID,
		Quantity:     r.Quantity,
		Reference:    strings.TrimSpace(r.Reference),
		Reason:       strings.TrimSpace(r.Reason),
		AllowPartial: r.AllowPartial,
	}
	if r.Strategy != "" {
		strategy, err := allocation.ParseStrategy(r.Strategy)
		if err != nil {
			return allocation.WithdrawalRequest{}, err
		}
		req.Strategy = strategy
	}
	return req, req.Validate()
}

func parseRequiredID(v, field string) (id.ID, error) {
	if v == "" {
		return id.Nil, apperror.NewInvalidRequest(field+" is required").WithDetail("field", field)
	}
	parsed, err := id.Parse(v)
	if err != nil {
		return id.Nil, apperror.NewInvalidRequest("invalid "+field+" format").WithDetail("field", field)
	}
	return parsed, nil
}

// AllocationLine is one lot drawn by an allocation.
type AllocationLine struct {
	LotID    string         `json:"lotId"`
	Quantity types.Quantity `json:"quantity"`
}

// AllocationResponse is the outcome of an allocation.
type AllocationResponse struct {
	MaterialID  string           `json:"materialId"`
	WarehouseID string           `json:"warehouseId"`
	Strategy    string           `json:"strategy"`
	Requested   types.Quantity   `json:"requested"`
	Fulfilled   types.Quantity   `json:"fulfilled"`
	Shortfall   types.Quantity   `json:"shortfall"`
	Partial     bool             `json:"partial"`
	Lines       []AllocationLine `json:"lines"`
	TotalCost   string           `json:"totalCost"`
}

// FromResult creates response DTO from an allocation result.
func FromResult(res allocation.Result) AllocationResponse {
	lines := make([]AllocationLine, len(res.Lines))
	for i, l := range res.Lines {
		lines[i] = AllocationLine{LotID: l.LotID.String(), Quantity: l.Quantity}
	}
	return AllocationResponse{
		MaterialID:  res.MaterialID.String(),
		WarehouseID: res.WarehouseID.String(),
		Strategy:    res.Strategy.String(),
		Requested:   res.Requested,
		Fulfilled:   res.Fulfilled,
		Shortfall:   res.Shortfall,
		Partial:     res.IsPartial(),
		Lines:       lines,
		TotalCost:   res.TotalCost.StringFixed(2),
	}
}

// WithdrawalResponse is a committed withdrawal.
type WithdrawalResponse struct {
	ID          string             `json:"id"`
	Reference   string             `json:"reference"`
	Reason      string             `json:"reason,omitempty"`
	Attempts    int                `json:"attempts"`
	CommittedAt time.Time          `json:"committedAt"`
	Allocation  AllocationResponse `json:"allocation"`
}

// FromWithdrawal creates response DTO from a committed withdrawal.
func FromWithdrawal(w *allocation.Withdrawal) WithdrawalResponse {
	return WithdrawalResponse{
		ID:          w.ID.String(),
		Reference:   w.Reference,
		Reason:      w.Reason,
		Attempts:    w.Attempts,
		CommittedAt: w.CommittedAt,
		Allocation:  FromResult(w.Result),
	}
}
