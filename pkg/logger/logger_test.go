package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	appctx "lotkeeper/internal/core/context"
)

func observed(level zap.AtomicLevel) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &Logger{zap.New(core).Sugar()}, logs
}

func TestFromContextEnrichesFields(t *testing.T) {
	l, logs := observed(zap.NewAtomicLevelAt(zap.DebugLevel))

	ctx := WithLogger(context.Background(), l)
	ctx = appctx.WithTrace(ctx, &appctx.TraceContext{TraceID: "t-1", SpanID: "s-1", RequestID: "r-1"})
	ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: "u-1"})

	Info(ctx, "lot committed", "lot_id", "abc")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "lot committed", entries[0].Message)
	assert.Equal(t, "t-1", fields["trace_id"])
	assert.Equal(t, "s-1", fields["span_id"])
	assert.Equal(t, "r-1", fields["request_id"])
	assert.Equal(t, "u-1", fields["user_id"])
	assert.Equal(t, "abc", fields["lot_id"])
}

func TestFromContextWithoutIDs(t *testing.T) {
	l, logs := observed(zap.NewAtomicLevelAt(zap.InfoLevel))
	ctx := WithLogger(context.Background(), l)

	Debug(ctx, "dropped")
	Warn(ctx, "kept")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].ContextMap())
}

func TestWithComponent(t *testing.T) {
	l, logs := observed(zap.NewAtomicLevelAt(zap.InfoLevel))
	l.WithComponent("allocator").Infow("ready")
	assert.Equal(t, "allocator", logs.All()[0].ContextMap()["component"])
}

func TestNewFallsBackToInfo(t *testing.T) {
	l, err := New(Config{Level: "bogus", OutputPaths: []string{"stderr"}, Service: "lotkeeper"})
	require.NoError(t, err)
	assert.False(t, l.Desugar().Core().Enabled(zap.DebugLevel))
	assert.True(t, l.Desugar().Core().Enabled(zap.InfoLevel))
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	l, logs := observed(zap.NewAtomicLevelAt(zap.InfoLevel))
	SetDefault(l)
	Error(context.Background(), "boom")
	assert.Equal(t, 1, logs.Len())
}
