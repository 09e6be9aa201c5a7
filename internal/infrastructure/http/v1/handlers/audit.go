package handlers

import (
	"github.com/gin-gonic/gin"

	"lotkeeper/internal/domain/audit"
	"lotkeeper/internal/infrastructure/http/v1/dto"
)

// AuditHandler exposes audit history.
type AuditHandler struct {
	*BaseHandler
	service *audit.Service
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(base *BaseHandler, service *audit.Service) *AuditHandler {
	return &AuditHandler{BaseHandler: base, service: service}
}

// History handles GET /audit/:entityType/:entityId
func (h *AuditHandler) History(c *gin.Context) {
	entityID, ok := h.PathID(c, "entityId")
	if !ok {
		return
	}
	limit, ok := h.IntQuery(c, "limit", 100, 1, 1000)
	if !ok {
		return
	}

	entries, err := h.service.History(c.Request.Context(), c.Param("entityType"), entityID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(entries, limit, 0))
}
