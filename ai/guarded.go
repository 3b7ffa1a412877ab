package ai

import (
	"context"
	"time"

	"ai-companion/backend/pkg/resilience"
	"ai-companion/backend/shared/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// GuardedProvider bounds every call with a timeout, a circuit breaker,
// a trace span and completion metrics.
type GuardedProvider struct {
	name    string
	next    Provider
	breaker *resilience.CircuitBreaker
	timeout time.Duration
	metrics *observability.ChatMetrics
	tracer  trace.Tracer
}

func NewGuardedProvider(name string, next Provider, breaker *resilience.CircuitBreaker, timeout time.Duration, metrics *observability.ChatMetrics) *GuardedProvider {
	return &GuardedProvider{
		name:    name,
		next:    next,
		breaker: breaker,
		timeout: timeout,
		metrics: metrics,
		tracer:  otel.Tracer("ai-companion/backend/ai"),
	}
}

func (g *GuardedProvider) Name() string { return g.name }

// BreakerState reports the breaker position for health checks
func (g *GuardedProvider) BreakerState() resilience.CircuitBreakerState {
	if g.breaker == nil {
		return resilience.StateClosed
	}
	return g.breaker.GetState()
}

func (g *GuardedProvider) Chat(ctx context.Context, req ChatRequest) (string, error) {
	ctx, span := g.tracer.Start(ctx, "ai.chat", trace.WithAttributes(
		attribute.String("llm.provider", g.name),
		attribute.Int("llm.messages", len(req.Messages)),
	))
	defer span.End()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var reply string
	call := func(ctx context.Context) error {
		out, err := g.next.Chat(ctx, req)
		reply = out
		return err
	}

	start := time.Now()
	var err error
	if g.breaker != nil {
		err = g.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	g.metrics.RecordCompletion(ctx, g.name, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.reply_chars", len(reply)))
	span.SetStatus(codes.Ok, "")
	return reply, nil
}
