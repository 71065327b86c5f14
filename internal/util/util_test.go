package util

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitLoggerTestEnv(t *testing.T) {
	require.NoError(t, InitLogger("test"))
	assert.False(t, GetLogger().Core().Enabled(zap.ErrorLevel))
}

func TestNamedLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	Named("orders").Info("created", zap.Int64("order_id", 7))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "orders", entries[0].LoggerName)
	assert.Equal(t, int64(7), entries[0].ContextMap()["order_id"])
}

func TestStartSpanWithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()
	assert.NotNil(t, ctx)
}

func TestFailSpanRecordsError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tracer = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)).Tracer(tracerName)
	t.Cleanup(func() { tracer = nil })

	_, ok := StartSpan(context.Background(), "ok", ItemAttrs(1, 2)...)
	FailSpan(ok, nil)
	ok.End()

	_, failed := StartSpan(context.Background(), "failed")
	FailSpan(failed, errors.New("boom"))
	failed.End()

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Len(t, spans[0].Attributes(), 2)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
}
