package handlers

import (
	"github.com/gin-gonic/gin"

	"lotkeeper/internal/domain/allocation"
	"lotkeeper/internal/domain/catalogs/material"
	"lotkeeper/internal/domain/catalogs/warehouse"
	"lotkeeper/internal/infrastructure/http/v1/dto"
)

// MaterialHandler handles HTTP requests for the material catalog.
type MaterialHandler struct {
	*BaseHandler
	service *material.Service
}

// NewMaterialHandler creates a new material handler.
func NewMaterialHandler(base *BaseHandler, service *material.Service) *MaterialHandler {
	return &MaterialHandler{BaseHandler: base, service: service}
}

// List handles GET /materials
func (h *MaterialHandler) List(c *gin.Context) {
	var page dto.PageQuery
	if !h.BindQuery(c, &page) {
		return
	}
	filter := material.ListFilter{
		OnlyActive: c.Query("onlyActive") == "true",
		Search:     c.Query("search"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	items, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items, filter.Limit, filter.Offset))
}

// Create handles POST /materials
func (h *MaterialHandler) Create(c *gin.Context) {
	var req dto.CreateMaterialRequest
	if !h.BindJSON(c, &req) {
		return
	}
	m, err := req.ToEntity()
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := h.service.Create(c.Request.Context(), m); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, m)
}

// Get handles GET /materials/:id
func (h *MaterialHandler) Get(c *gin.Context) {
	materialID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	m, err := h.service.GetByID(c.Request.Context(), materialID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, m)
}

// Update handles PUT /materials/:id
func (h *MaterialHandler) Update(c *gin.Context) {
	materialID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateMaterialRequest
	if !h.BindJSON(c, &req) {
		return
	}
	m, err := h.service.GetByID(c.Request.Context(), materialID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := req.ApplyTo(m); err != nil {
		h.Error(c, err)
		return
	}
	if err := h.service.Update(c.Request.Context(), m); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, m)
}

// SetStrategyOverride handles PUT /materials/:id/strategy-overrides/:warehouseId
func (h *MaterialHandler) SetStrategyOverride(c *gin.Context) {
	materialID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	warehouseID, ok := h.PathID(c, "warehouseId")
	if !ok {
		return
	}
	var req dto.StrategyOverrideRequest
	if !h.BindJSON(c, &req) {
		return
	}
	strategy, err := allocation.ParseStrategy(req.Strategy)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := h.service.SetStrategyOverride(c.Request.Context(), materialID, warehouseID, strategy); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, material.StrategyOverride{
		MaterialID:  materialID,
		WarehouseID: warehouseID,
		Strategy:    strategy,
	})
}

// ClearStrategyOverride handles DELETE /materials/:id/strategy-overrides/:warehouseId
func (h *MaterialHandler) ClearStrategyOverride(c *gin.Context) {
	materialID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	warehouseID, ok := h.PathID(c, "warehouseId")
	if !ok {
		return
	}
	if err := h.service.ClearStrategyOverride(c.Request.Context(), materialID, warehouseID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// WarehouseHandler handles HTTP requests for the warehouse catalog.
type WarehouseHandler struct {
	*BaseHandler
	service *warehouse.Service
}

// NewWarehouseHandler creates a new warehouse handler.
func NewWarehouseHandler(base *BaseHandler, service *warehouse.Service) *WarehouseHandler {
	return &WarehouseHandler{BaseHandler: base, service: service}
}

// List handles GET /warehouses
func (h *WarehouseHandler) List(c *gin.Context) {
	var page dto.PageQuery
	if !h.BindQuery(c, &page) {
		return
	}
	filter := warehouse.ListFilter{
		OnlyActive: c.Query("onlyActive") == "true",
		Search:     c.Query("search"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	items, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items, filter.Limit, filter.Offset))
}

// Create handles POST /warehouses
func (h *WarehouseHandler) Create(c *gin.Context) {
	var req dto.CreateWarehouseRequest
	if !h.BindJSON(c, &req) {
		return
	}
	wh := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), wh); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, wh)
}
