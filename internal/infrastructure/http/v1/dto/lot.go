package dto

import (
	"time"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/types"
	"lotkeeper/internal/domain/allocation"
)

// dateLayout is the wire format of manufacture and expiry dates.
const dateLayout = "2006-01-02"

// ReceiveLotRequest is the request body for receiving a lot.
type ReceiveLotRequest struct {
	LotNumber   string         `json:"lotNumber" binding:"required,max=64"`
	MaterialID  string         `json:"materialId" binding:"required"`
	WarehouseID string         `json:"warehouseId" binding:"required"`
	Quantity    types.Quantity `json:"quantity"`
	MfgDate     string         `json:"mfgDate" binding:"required"`
	ExpDate     string         `json:"expDate"`
	UnitCost    string         `json:"unitCost"`
	Reference   string         `json:"reference" binding:"max=64"`
}

// ToEntity converts DTO to domain entity.
func (r *ReceiveLotRequest) ToEntity() (*allocation.Lot, error) {
	materialID, err := parseRequiredID(r.MaterialID, "materialId")
	if err != nil {
		return nil, err
	}
	warehouseID, err := parseRequiredID(r.WarehouseID, "warehouseId")
	if err != nil {
		return nil, err
	}
	mfg, err := time.Parse(dateLayout, r.MfgDate)
	if err != nil {
		return nil, apperror.NewValidation("mfgDate must be YYYY-MM-DD").WithDetail("field", "mfgDate")
	}
	var exp *time.Time
	if r.ExpDate != "" {
		parsed, err := time.Parse(dateLayout, r.ExpDate)
		if err != nil {
			return nil, apperror.NewValidation("expDate must be YYYY-MM-DD").WithDetail("field", "expDate")
		}
		exp = &parsed
	}

	lot := allocation.NewLot(materialID, warehouseID, r.Quantity, mfg, exp)
	lot.LotNumber = r.LotNumber
	if r.UnitCost != "" {
		cost, err := types.ParseMoney(r.UnitCost)
		if err != nil {
			return nil, apperror.NewValidation("invalid unitCost").WithDetail("field", "unitCost")
		}
		lot.UnitCost = cost
	}
	return lot, nil
}

// LotResponse is the response body for a lot.
type LotResponse struct {
	ID             string         `json:"id"`
	LotNumber      string         `json:"lotNumber"`
	MaterialID     string         `json:"materialId"`
	WarehouseID    string         `json:"warehouseId"`
	QuantityOnHand types.Quantity `json:"quantityOnHand"`
	MfgDate        string         `json:"mfgDate"`
	ExpDate        *string        `json:"expDate,omitempty"`
	Expired        bool           `json:"expired"`
	UnitCost       string         `json:"unitCost"`
	Version        int            `json:"version"`
}

// FromLot creates response DTO from domain entity.
func FromLot(l *allocation.Lot, now time.Time) LotResponse {
	resp := LotResponse{
		ID:             l.ID.String(),
		LotNumber:      l.LotNumber,
		MaterialID:     l.MaterialID.String(),
		WarehouseID:    l.WarehouseID.String(),
		QuantityOnHand: l.QuantityOnHand,
		MfgDate:        l.MfgDate.Format(dateLayout),
		Expired:        l.IsExpired(now),
		UnitCost:       l.UnitCost.String(),
		Version:        l.Version,
	}
	if l.ExpDate != nil {
		exp := l.ExpDate.Format(dateLayout)
		resp.ExpDate = &exp
	}
	return resp
}
