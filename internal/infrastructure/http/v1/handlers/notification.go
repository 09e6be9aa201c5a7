package handlers

import (
	"github.com/gin-gonic/gin"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/domain/notifications"
	"lotkeeper/internal/infrastructure/http/v1/dto"
)

// NotificationHandler lists and acknowledges notifications.
type NotificationHandler struct {
	*BaseHandler
	service *notifications.Service
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(base *BaseHandler, service *notifications.Service) *NotificationHandler {
	return &NotificationHandler{BaseHandler: base, service: service}
}

// List handles GET /notifications
func (h *NotificationHandler) List(c *gin.Context) {
	var page dto.PageQuery
	if !h.BindQuery(c, &page) {
		return
	}
	filter := notifications.ListFilter{
		UnreadOnly: c.Query("unread") == "true",
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	if v := c.Query("type"); v != "" {
		t := notifications.Type(v)
		if !t.IsValid() {
			h.Error(c, apperror.NewValidation("unknown notification type").WithDetail("type", v))
			return
		}
		filter.Type = &t
	}

	items, err := h.service.ListForUser(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(items, filter.Limit, filter.Offset))
}

// MarkRead handles POST /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	notificationID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), notificationID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
