package context

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext correlates the log lines, error bodies and spans of one request.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceContextKey struct{}

// NewTraceContext derives correlation ids for a request. When ctx carries a
// valid OpenTelemetry span its ids are reused, so logs join the trace;
// otherwise W3C-sized ids are generated. A non-empty requestID is kept.
func NewTraceContext(ctx context.Context, requestID string) *TraceContext {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	tc := &TraceContext{RequestID: requestID}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		tc.TraceID = sc.TraceID().String()
		tc.SpanID = sc.SpanID().String()
		return tc
	}

	var buf [24]byte
	_, _ = rand.Read(buf[:])
	tc.TraceID = hex.EncodeToString(buf[:16])
	tc.SpanID = hex.EncodeToString(buf[16:])
	return tc
}

// WithTrace stores tc in ctx.
func WithTrace(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}

// GetTrace returns the request trace, or nil outside a request.
func GetTrace(ctx context.Context) *TraceContext {
	tc, _ := ctx.Value(traceContextKey{}).(*TraceContext)
	return tc
}

// GetTraceID returns the trace id or "".
func GetTraceID(ctx context.Context) string {
	if tc := GetTrace(ctx); tc != nil {
		return tc.TraceID
	}
	return ""
}

// GetRequestID returns the request id or "".
func GetRequestID(ctx context.Context) string {
	if tc := GetTrace(ctx); tc != nil {
		return tc.RequestID
	}
	return ""
}
