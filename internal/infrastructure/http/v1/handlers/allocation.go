package handlers

import (
	"github.com/gin-gonic/gin"

	"lotkeeper/internal/domain/allocation"
	"lotkeeper/internal/infrastructure/http/v1/dto"
)

// AllocationHandler serves preview and withdraw.
type AllocationHandler struct {
	*BaseHandler
	service *allocation.Service
}

// NewAllocationHandler creates a new allocation handler.
func NewAllocationHandler(base *BaseHandler, service *allocation.Service) *AllocationHandler {
	return &AllocationHandler{BaseHandler: base, service: service}
}

// Preview handles POST /allocations/preview
func (h *AllocationHandler) Preview(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	res, err := h.service.Preview(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromResult(res))
}

// Withdraw handles POST /allocations/withdraw
func (h *AllocationHandler) Withdraw(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	w, err := h.service.Withdraw(c.Request.Context(), req)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromWithdrawal(w))
}

func (h *AllocationHandler) bindRequest(c *gin.Context) (allocation.WithdrawalRequest, bool) {
	var body dto.WithdrawalRequest
	if !h.BindJSON(c, &body) {
		return allocation.WithdrawalRequest{}, false
	}
	req, err := body.ToDomain()
	if err != nil {
		h.Error(c, err)
		return allocation.WithdrawalRequest{}, false
	}
	return req, true
}
