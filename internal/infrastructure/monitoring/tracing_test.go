package monitoring

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/turtacn/throttle/internal/config"
	"github.com/turtacn/throttle/pkg/logger"
)

func TestTracingManager_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tm, err := NewTracingManager(&config.TracingConfig{
		Enabled:      true,
		ServiceName:  "throttle-test",
		SamplingRate: 1,
		Exporter:     config.ExporterNone,
	}, logger.NewNoopLogger(), recorder)
	require.NoError(t, err)
	defer tm.Shutdown(context.Background())

	_, span := tm.Tracer().Start(context.Background(), "check")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "check", spans[0].Name())
}

func TestTracingManager_StdoutExporter(t *testing.T) {
	tm, err := NewTracingManager(&config.TracingConfig{
		Enabled:      true,
		ServiceName:  "throttle-test",
		SamplingRate: 1,
		Exporter:     config.ExporterStdout,
	}, logger.NewNoopLogger())
	require.NoError(t, err)
	assert.NoError(t, tm.Shutdown(context.Background()))
}

func TestNewSpanExporter(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		exporter, err := newSpanExporter(config.ExporterNone, nil)
		require.NoError(t, err)
		assert.Nil(t, exporter)
	})

	t.Run("stdout writes finished spans", func(t *testing.T) {
		var buf bytes.Buffer
		exporter, err := newSpanExporter(config.ExporterStdout, &buf)
		require.NoError(t, err)
		require.NotNil(t, exporter)

		provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		_, span := provider.Tracer("test").Start(context.Background(), "ratelimit.check")
		span.End()
		require.NoError(t, provider.Shutdown(context.Background()))

		assert.Contains(t, buf.String(), `"Name":"ratelimit.check"`)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := newSpanExporter("jaeger", nil)
		assert.Error(t, err)
	})
}

func TestTracingManager_Disabled(t *testing.T) {
	tm, err := NewTracingManager(&config.TracingConfig{Enabled: false}, logger.NewNoopLogger())
	require.NoError(t, err)
	assert.NotNil(t, tm.Tracer())
	assert.NoError(t, tm.Shutdown(context.Background()))

	_, err = NewTracingManager(&config.TracingConfig{Enabled: true, SamplingRate: 2}, logger.NewNoopLogger())
	assert.Error(t, err)
}
