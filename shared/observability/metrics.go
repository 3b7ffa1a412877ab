package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "ai-companion/backend"

// ChatMetrics records completion calls and stored messages.
// A nil *ChatMetrics is a no-op.
type ChatMetrics struct {
	completions metric.Int64Counter
	latency     metric.Float64Histogram
	messages    metric.Int64Counter
}

// NewChatMetrics creates instruments on mp, or on the global provider when mp is nil
func NewChatMetrics(mp metric.MeterProvider) (*ChatMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	completions, err := meter.Int64Counter("companion_llm_completions_total",
		metric.WithDescription("Completion calls by provider and outcome"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("companion_llm_completion_seconds",
		metric.WithDescription("Completion call latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	messages, err := meter.Int64Counter("companion_messages_total",
		metric.WithDescription("Persisted chat messages by role"))
	if err != nil {
		return nil, err
	}

	return &ChatMetrics{completions: completions, latency: latency, messages: messages}, nil
}

func (m *ChatMetrics) RecordCompletion(ctx context.Context, provider string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	)
	m.completions.Add(ctx, 1, attrs)
	m.latency.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *ChatMetrics) RecordMessage(ctx context.Context, role string) {
	if m == nil {
		return
	}
	m.messages.Add(ctx, 1, metric.WithAttributes(attribute.String("role", role)))
}
