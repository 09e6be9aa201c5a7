// Package apperror defines the errors the service reports to callers.
//
// Every failure that crosses a package boundary toward a client is an
// *AppError carrying a stable code. The HTTP status is derived from the code
// unless a constructor overrides it.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	CodeInternal = "INTERNAL_ERROR"

	CodeValidation     = "VALIDATION_ERROR"
	CodeInvalidRequest = "INVALID_REQUEST"

	CodeInsufficientStock      = "INSUFFICIENT_STOCK"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"

	CodeDuplicate           = "DUPLICATE_ENTRY"
	CodeIdempotency         = "IDEMPOTENCY_CONFLICT"
	CodeIdempotencyMismatch = "IDEMPOTENCY_MISMATCH"
)

var statusByCode = map[string]int{
	CodeInternal:               http.StatusInternalServerError,
	CodeValidation:             http.StatusBadRequest,
	CodeInvalidRequest:         http.StatusBadRequest,
	CodeInsufficientStock:      http.StatusUnprocessableEntity,
	CodeConcurrentModification: http.StatusConflict,
	CodeUnauthorized:           http.StatusUnauthorized,
	CodeForbidden:              http.StatusForbidden,
	CodeNotFound:               http.StatusNotFound,
	CodeDuplicate:              http.StatusConflict,
	CodeIdempotency:            http.StatusConflict,
	CodeIdempotencyMismatch:    http.StatusUnprocessableEntity,
}

// AppError is a coded failure. Err is logged but never serialized.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"`
}

// New builds an error for code with the status registered for it.
func New(code, message string) *AppError {
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches any *AppError with the same code, so callers can write
// errors.Is(err, apperror.New(apperror.CodeNotFound, "")).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithDetail sets one detail key.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause attaches the underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// NewValidation rejects malformed catalog or register input.
func NewValidation(message string) *AppError {
	return New(CodeValidation, message)
}

// NewInvalidRequest rejects a withdrawal request before any lot is read.
func NewInvalidRequest(message string) *AppError {
	return New(CodeInvalidRequest, message)
}

func NewNotFound(entity string, id any) *AppError {
	return New(CodeNotFound, entity+" not found").
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewInsufficientStock is returned when a withdrawal cannot be fully served
// and the caller did not accept partial fulfillment.
func NewInsufficientStock(materialID, requested, available string) *AppError {
	return New(CodeInsufficientStock, "Insufficient stock").
		WithDetail("material_id", materialID).
		WithDetail("requested", requested).
		WithDetail("available", available)
}

// NewConcurrentModification reports a lost optimistic-lock race on a row.
func NewConcurrentModification(entity string, id any) *AppError {
	return New(CodeConcurrentModification, "Record was modified by another request. Please refresh and try again.").
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewConcurrencyConflict reports that a lot no longer holds the quantity an
// allocation proposal intends to take from it.
func NewConcurrencyConflict(lotID any, proposed, onHand string) *AppError {
	return NewConcurrentModification("lot", lotID).
		WithDetail("proposed", proposed).
		WithDetail("on_hand", onHand)
}

// NewInternal wraps err behind a generic message.
func NewInternal(err error) *AppError {
	return New(CodeInternal, "Internal server error").WithCause(err)
}

func NewUnauthorized(message string) *AppError {
	return New(CodeUnauthorized, message)
}

func NewForbidden(message string) *AppError {
	return New(CodeForbidden, message)
}

// NewIdempotencyConflict: the key is held by a request still in flight.
func NewIdempotencyConflict(key string) *AppError {
	return New(CodeIdempotency, "Operation already in progress").
		WithDetail("idempotency_key", key)
}

// NewIdempotencyMismatch: the key was first used by a different user,
// route or body.
func NewIdempotencyMismatch(key string) *AppError {
	return New(CodeIdempotencyMismatch, "Idempotency key reused with a different request").
		WithDetail("idempotency_key", key)
}

func NewDuplicate(entity, field, value string) *AppError {
	return New(CodeDuplicate, fmt.Sprintf("%s with this %s already exists", entity, field)).
		WithDetail("entity", entity).
		WithDetail("field", field).
		WithDetail("value", value)
}

// AsAppError finds the first *AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of err, or "" when it is not an *AppError.
func CodeOf(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ""
}

func IsNotFound(err error) bool               { return CodeOf(err) == CodeNotFound }
func IsInvalidRequest(err error) bool         { return CodeOf(err) == CodeInvalidRequest }
func IsInsufficientStock(err error) bool      { return CodeOf(err) == CodeInsufficientStock }
func IsConcurrentModification(err error) bool { return CodeOf(err) == CodeConcurrentModification }
