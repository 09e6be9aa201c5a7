// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/pkg/logger"
)

// Recovery answers a panicking handler with INTERNAL_ERROR. It sits outside
// ErrorHandler, whose c.Next never returns on panic, so it renders the body
// itself. The stack goes to the log only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic recovered",
				"panic", rec,
				"route", c.FullPath(),
				"stack", string(debug.Stack()),
			)
			c.Abort()
			if c.Writer.Written() {
				return
			}

			appErr := apperror.NewInternal(fmt.Errorf("panic: %v", rec)).
				WithDetail("request_id", c.GetString(ctxKeyRequestID))
			status, body := renderError(c, appErr)
			FailIdempotency(c, status, body)
			c.JSON(status, body)
		}()
		c.Next()
	}
}
