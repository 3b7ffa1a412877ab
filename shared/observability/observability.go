// Package observability wires OpenTelemetry tracing and Prometheus-backed metrics.
package observability

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// ShutdownFunc flushes and stops a provider
type ShutdownFunc func(ctx context.Context) error

func serviceResource(serviceName string) *resource.Resource {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(semconv.ServiceName(serviceName)))
	if err != nil {
		return resource.Default()
	}
	return res
}

// SetupTracing installs a global tracer provider that writes spans to w.
// Replace the stdout exporter with OTLP when a collector is available.
func SetupTracing(serviceName string, w io.Writer) (ShutdownFunc, error) {
	opts := []stdouttrace.Option{}
	if w != nil {
		opts = append(opts, stdouttrace.WithWriter(w))
	}
	exp, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init stdouttrace exporter: %w", err)
	}
	provider := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(serviceResource(serviceName)),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// SetupMetrics installs a global meter provider whose readings are exported
// through the default Prometheus registry. Serve them with promhttp.Handler().
func SetupMetrics(serviceName string) (*metric.MeterProvider, ShutdownFunc, error) {
	exp, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("init prometheus exporter: %w", err)
	}
	mp := metric.NewMeterProvider(
		metric.WithReader(exp),
		metric.WithResource(serviceResource(serviceName)),
	)
	otel.SetMeterProvider(mp)
	return mp, mp.Shutdown, nil
}
