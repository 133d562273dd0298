package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/JakeFAU/course-ingest/internal/config"
)

func TestInitTracerProviderInstallsPropagation(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracerProvider(ctx, config.TracingConfig{ServiceName: "course-ingest", Version: "test"})
	require.NoError(t, err)
	defer func() { require.NoError(t, tp.Shutdown(ctx)) }()

	spanCtx, span := otel.Tracer("test").Start(ctx, "run")
	defer span.End()
	assert.True(t, span.SpanContext().IsSampled())

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(spanCtx, carrier)
	assert.Contains(t, carrier.Get("traceparent"), span.SpanContext().TraceID().String())
}

func TestInitTracerProviderClampsRatio(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracerProvider(ctx, config.TracingConfig{ServiceName: "x", SampleRatio: 7})
	require.NoError(t, err)
	defer func() { require.NoError(t, tp.Shutdown(ctx)) }()

	_, span := tp.Tracer("test").Start(ctx, "run")
	defer span.End()
	assert.True(t, span.SpanContext().IsSampled())
}
