package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	appctx "lotkeeper/internal/core/context"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

// gin context keys
const (
	ctxKeyRequestID = "request_id"
	ctxKeyTraceID   = "trace_id"
	ctxKeyUserID    = "user_id"
)

var tracer = otel.Tracer("lotkeeper/http")

// Trace opens a server span per request and stores the correlation ids in
// the request context. A client X-Request-ID is echoed back; X-Trace-ID
// overrides the generated trace id only when no exporter is installed.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		tc := appctx.NewTraceContext(ctx, c.GetHeader(HeaderRequestID))
		if incoming := c.GetHeader(HeaderTraceID); incoming != "" && !span.SpanContext().IsValid() {
			tc.TraceID = incoming
		}

		c.Request = c.Request.WithContext(appctx.WithTrace(ctx, tc))
		c.Set(ctxKeyTraceID, tc.TraceID)
		c.Set(ctxKeyRequestID, tc.RequestID)
		c.Header(HeaderRequestID, tc.RequestID)
		c.Header(HeaderTraceID, tc.TraceID)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
	}
}
