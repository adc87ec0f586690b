package observability

import (
	"context"
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mcp-frete-sistema/internal/common/config"
	"mcp-frete-sistema/internal/common/logger"
)

// Observability owns the OpenTelemetry meter and tracer providers of the process.
type Observability struct {
	serviceName    string
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	callCounter    otelmetric.Int64Counter
	callDuration   otelmetric.Float64Histogram
}

// New wires the prometheus metric exporter into reg (the default registerer when nil) and,
// when enabled, an OTLP trace exporter.
func New(ctx context.Context, cfg config.ObservabilityConfig, reg promclient.Registerer, log logger.Logger) (*Observability, error) {
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}
	o := &Observability{
		serviceName: cfg.ServiceName,
		tracer:      noop.NewTracerProvider().Tracer(cfg.ServiceName),
	}

	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(o.meterProvider)

	meter := o.meterProvider.Meter(cfg.ServiceName)

	o.callCounter, err = meter.Int64Counter(
		"tool.calls",
		otelmetric.WithDescription("Number of tool calls processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool.calls counter: %w", err)
	}

	o.callDuration, err = meter.Float64Histogram(
		"tool.duration",
		otelmetric.WithDescription("Tool call duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool.duration histogram: %w", err)
	}

	if err := o.initTracing(ctx, cfg, log); err != nil {
		return nil, err
	}

	return o, nil
}

func (o *Observability) RecordToolCall(ctx context.Context, tool, status string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	if o.callCounter != nil {
		o.callCounter.Add(ctx, 1, attrs)
	}
	if o.callDuration != nil {
		o.callDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

// Shutdown flushes pending spans and stops both providers.
func (o *Observability) Shutdown(ctx context.Context) error {
	var firstErr error
	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
