package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_StatusFromCode(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{NewInvalidRequest("x"), http.StatusBadRequest},
		{NewNotFound("lot", "l-1"), http.StatusNotFound},
		{NewInsufficientStock("m", "10", "4"), http.StatusUnprocessableEntity},
		{NewConcurrencyConflict("l-1", "5", "3"), http.StatusConflict},
		{NewIdempotencyMismatch("k"), http.StatusUnprocessableEntity},
		{New("SOMETHING_NEW", "x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
		})
	}
}

func TestConcurrencyConflictDetails(t *testing.T) {
	err := NewConcurrencyConflict("l-1", "5", "3")
	assert.True(t, IsConcurrentModification(err))
	assert.Equal(t, "lot", err.Details["entity"])
	assert.Equal(t, "5", err.Details["proposed"])
	assert.Equal(t, "3", err.Details["on_hand"])
}

func TestWrappedErrors(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := fmt.Errorf("commit: %w", NewInternal(cause))

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeInternal, appErr.Code)
	assert.ErrorIs(t, wrapped, cause)
	assert.ErrorIs(t, wrapped, New(CodeInternal, ""))
	assert.NotErrorIs(t, wrapped, New(CodeNotFound, ""))
	assert.Contains(t, wrapped.Error(), "connection reset")

	assert.Empty(t, CodeOf(cause))
	assert.False(t, IsNotFound(nil))
}
