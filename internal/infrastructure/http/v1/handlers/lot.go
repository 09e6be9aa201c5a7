package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"lotkeeper/internal/domain/allocation"
	"lotkeeper/internal/infrastructure/http/v1/dto"
)

// LotHandler handles HTTP requests for lots.
type LotHandler struct {
	*BaseHandler
	service *allocation.LotService
	now     func() time.Time
}

// NewLotHandler creates a new lot handler.
func NewLotHandler(base *BaseHandler, service *allocation.LotService) *LotHandler {
	return &LotHandler{
		BaseHandler: base,
		service:     service,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List handles GET /lots
func (h *LotHandler) List(c *gin.Context) {
	var page dto.PageQuery
	if !h.BindQuery(c, &page) {
		return
	}
	materialID, ok := h.QueryID(c, "materialId")
	if !ok {
		return
	}
	warehouseID, ok := h.QueryID(c, "warehouseId")
	if !ok {
		return
	}

	filter := allocation.LotFilter{
		MaterialID:   materialID,
		WarehouseID:  warehouseID,
		IncludeEmpty: c.Query("includeEmpty") == "true",
		Limit:        page.Limit,
		Offset:       page.Offset,
	}
	now := h.now()
	ctx := c.Request.Context()

	var (
		lots []allocation.Lot
		err  error
	)
	switch {
	case c.Query("expired") == "true":
		lots, err = h.service.ListExpired(ctx, now, filter)
	case c.Query("expiresWithinDays") != "":
		days, ok := h.IntQuery(c, "expiresWithinDays", 0, 0, 3650)
		if !ok {
			return
		}
		lots, err = h.service.ListExpiring(ctx, now.AddDate(0, 0, days), filter)
	default:
		lots, err = h.service.List(ctx, filter)
	}
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.LotResponse, len(lots))
	for i := range lots {
		items[i] = dto.FromLot(&lots[i], now)
	}
	h.OK(c, dto.NewListResponse(items, filter.Limit, filter.Offset))
}

// Get handles GET /lots/:id
func (h *LotHandler) Get(c *gin.Context) {
	lotID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	lot, err := h.service.GetByID(c.Request.Context(), lotID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromLot(lot, h.now()))
}

// Receive handles POST /lots
func (h *LotHandler) Receive(c *gin.Context) {
	var req dto.ReceiveLotRequest
	if !h.BindJSON(c, &req) {
		return
	}
	lot, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := h.service.Receive(c.Request.Context(), lot, req.Reference); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromLot(lot, h.now()))
}
