// Package handlers adapts the domain services to gin routes.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
	"lotkeeper/internal/infrastructure/http/v1/middleware"
)

const jsonContentType = "application/json; charset=utf-8"

// BaseHandler is embedded by every handler. Errors are pushed onto the gin
// context and rendered by middleware.ErrorHandler; successes are recorded
// for idempotent replay before they are written.
type BaseHandler struct{}

// BindJSON decodes the body into obj and runs its binding tags.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	return h.bind(c, c.ShouldBindJSON(obj), "invalid request body")
}

// BindQuery decodes query parameters into obj.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	return h.bind(c, c.ShouldBindQuery(obj), "invalid query parameters")
}

func (h *BaseHandler) bind(c *gin.Context, err error, message string) bool {
	if err == nil {
		return true
	}
	h.Error(c, apperror.NewValidation(message).WithDetail("error", err.Error()))
	return false
}

// Error aborts the request with err.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// IntQuery reads an integer parameter in [minVal, maxVal]. An absent
// parameter yields def; anything else out of range is a validation error.
func (h *BaseHandler) IntQuery(c *gin.Context, key string, def, minVal, maxVal int) (int, bool) {
	raw, present := c.GetQuery(key)
	if !present || raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < minVal || v > maxVal {
		h.Error(c, apperror.NewValidation(key+" is out of range").
			WithDetail("field", key).
			WithDetail("min", minVal).
			WithDetail("max", maxVal))
		return 0, false
	}
	return v, true
}

// PathID parses a required id path segment.
func (h *BaseHandler) PathID(c *gin.Context, name string) (id.ID, bool) {
	parsed, err := id.Parse(c.Param(name))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+name+" format").WithDetail("field", name))
		return id.Nil, false
	}
	return parsed, true
}

// QueryID parses an optional id filter. Absent yields nil.
func (h *BaseHandler) QueryID(c *gin.Context, name string) (*id.ID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	parsed, err := id.Parse(raw)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+name+" format").WithDetail("field", name))
		return nil, false
	}
	return &parsed, true
}

func (h *BaseHandler) respond(c *gin.Context, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}
	middleware.CompleteIdempotency(c, status, jsonContentType, body)
	c.Data(status, jsonContentType, body)
}

func (h *BaseHandler) Created(c *gin.Context, data any) { h.respond(c, http.StatusCreated, data) }

func (h *BaseHandler) OK(c *gin.Context, data any) { h.respond(c, http.StatusOK, data) }

// NoContent replays as 204 with an empty body.
func (h *BaseHandler) NoContent(c *gin.Context) {
	middleware.CompleteIdempotency(c, http.StatusNoContent, "", nil)
	c.Status(http.StatusNoContent)
}
