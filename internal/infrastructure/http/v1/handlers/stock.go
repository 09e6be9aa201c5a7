package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/entity"
	"lotkeeper/internal/domain/registers/stock"
	"lotkeeper/internal/infrastructure/http/v1/dto"
)

// StockHandler handles HTTP requests for the stock register.
type StockHandler struct {
	*BaseHandler
	service *stock.Service
}

// NewStockHandler creates a new stock register handler.
func NewStockHandler(base *BaseHandler, service *stock.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service}
}

// GetBalances handles GET /stock/balances
func (h *StockHandler) GetBalances(c *gin.Context) {
	materialID, ok := h.QueryID(c, "materialId")
	if !ok {
		return
	}
	warehouseID, ok := h.QueryID(c, "warehouseId")
	if !ok {
		return
	}

	balances, err := h.service.Balances(c.Request.Context(), stock.BalanceFilter{
		MaterialID:  materialID,
		WarehouseID: warehouseID,
		ExcludeZero: c.Query("excludeZero") != "false",
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(balances, 0, 0))
}

// GetMovements handles GET /stock/movements
func (h *StockHandler) GetMovements(c *gin.Context) {
	var page dto.PageQuery
	if !h.BindQuery(c, &page) {
		return
	}

	filter := stock.MovementFilter{
		Reference: c.Query("reference"),
		Limit:     page.Limit,
		Offset:    page.Offset,
	}
	var ok bool
	if filter.LotID, ok = h.QueryID(c, "lotId"); !ok {
		return
	}
	if filter.MaterialID, ok = h.QueryID(c, "materialId"); !ok {
		return
	}
	if filter.WarehouseID, ok = h.QueryID(c, "warehouseId"); !ok {
		return
	}

	if v := c.Query("type"); v != "" {
		t := entity.MovementType(v)
		if !t.IsValid() {
			h.Error(c, apperror.NewValidation("unknown movement type").WithDetail("type", v))
			return
		}
		filter.Type = &t
	}
	if filter.FromDate, ok = h.queryTime(c, "from"); !ok {
		return
	}
	if filter.ToDate, ok = h.queryTime(c, "to"); !ok {
		return
	}

	movements, err := h.service.Movements(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(movements, filter.Limit, filter.Offset))
}

// GetLowStock handles GET /stock/low-stock
func (h *StockHandler) GetLowStock(c *gin.Context) {
	items, err := h.service.LowStock(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items, 0, 0))
}

func (h *StockHandler) queryTime(c *gin.Context, name string) (*time.Time, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		h.Error(c, apperror.NewValidation(name+" must be RFC3339").WithDetail("field", name))
		return nil, false
	}
	return &t, true
}
