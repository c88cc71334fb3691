package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func fieldMap(entry observer.LoggedEntry) map[string]string {
	out := make(map[string]string)
	for _, f := range entry.Context {
		out[f.Key] = f.String
	}
	return out
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	l := zap.NewExample()
	assert.Same(t, l, FromContext(WithContext(context.Background(), l)))

	wrong := context.WithValue(context.Background(), loggerKey, "not a logger")
	assert.NotNil(t, FromContext(wrong))
}

func TestWithRequestID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, l := WithRequestID(context.Background(), zap.New(core), "req-42")
	assert.Equal(t, "req-42", GetRequestID(ctx))

	l.Info("hello")
	require.Len(t, recorded.All(), 1)
	assert.Equal(t, "req-42", fieldMap(recorded.All()[0])["request_id"])

	assert.Empty(t, GetRequestID(context.Background()))
}

func TestWithTxnRef(t *testing.T) {
	ctx := WithTxnRef(context.Background(), "a1b2c3")
	assert.Equal(t, "a1b2c3", GetTxnRef(ctx))
	assert.Empty(t, GetTxnRef(context.Background()))
}

func TestContextLogger_Enriches(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	tp := trace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "ipn")
	defer span.End()

	ctx, _ = WithRequestID(ctx, base, "req-7")
	ctx = WithTxnRef(ctx, "ref-9")

	L(ctx).Info("IPN received")

	require.Len(t, recorded.All(), 1)
	fields := fieldMap(recorded.All()[0])
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, "ref-9", fields["txn_ref"])
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.NotEmpty(t, fields["span_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(ctx))
}

func TestContextLogger_PlainContext(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)

	cl := WithLogger(context.Background(), zap.New(core)).With(zap.String("component", "ledger"))
	cl.Debug("d")
	cl.Warn("w")
	cl.Error("e")

	entries := recorded.All()
	require.Len(t, entries, 3)
	for _, e := range entries {
		fields := fieldMap(e)
		assert.Equal(t, "ledger", fields["component"])
		assert.NotContains(t, fields, "trace_id")
		assert.NotContains(t, fields, "txn_ref")
	}
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestContextLogger_NilLogger(t *testing.T) {
	cl := WithLogger(context.Background(), nil)
	assert.NotPanics(t, func() {
		cl.Info("nothing")
		cl.With(zap.Int("n", 1)).Error("nothing")
	})
	assert.NotNil(t, cl.Zap())
}
