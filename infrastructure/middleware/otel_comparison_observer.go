package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-sumbench/internal/domain"
	"github.com/ahrav/go-sumbench/internal/ports"
)

// Comparison outcome labels.
const (
	ComparisonStatusSuccess     = "success"
	ComparisonStatusNoWinner    = "no_winner"
	ComparisonStatusInvalid     = "invalid_request"
	ComparisonStatusUnreachable = "unreachable"
	ComparisonStatusError       = "error"
)

// ComparisonObserver receives lifecycle events of a comparison run.
// Start methods return a derived context and a function that must be
// called exactly once when the stage finishes.
type ComparisonObserver interface {
	StartComparison(ctx context.Context, req domain.ComparisonRequest) (context.Context, func(*domain.ComparisonResult, error))
	StartProvider(ctx context.Context, provider string) (context.Context, func(domain.ProviderSummarySet, domain.EvaluationScore))
}

// NoopComparisonObserver ignores every event.
type NoopComparisonObserver struct{}

// StartComparison implements ComparisonObserver.
func (NoopComparisonObserver) StartComparison(ctx context.Context, _ domain.ComparisonRequest) (context.Context, func(*domain.ComparisonResult, error)) {
	return ctx, func(*domain.ComparisonResult, error) {}
}

// StartProvider implements ComparisonObserver.
func (NoopComparisonObserver) StartProvider(ctx context.Context, _ string) (context.Context, func(domain.ProviderSummarySet, domain.EvaluationScore)) {
	return ctx, func(domain.ProviderSummarySet, domain.EvaluationScore) {}
}

// OTelComparisonObserver traces comparisons and provider pipelines with
// OpenTelemetry and records their outcome metrics.
type OTelComparisonObserver struct {
	tracer  trace.Tracer
	metrics ports.MetricsCollector
}

// NewOTelComparisonObserver creates an observer using the global tracer
// provider. metrics may be nil.
func NewOTelComparisonObserver(metrics ports.MetricsCollector) *OTelComparisonObserver {
	return NewOTelComparisonObserverWithProvider(otel.GetTracerProvider(), metrics)
}

// NewOTelComparisonObserverWithProvider creates an observer on tp.
func NewOTelComparisonObserverWithProvider(tp trace.TracerProvider, metrics ports.MetricsCollector) *OTelComparisonObserver {
	return &OTelComparisonObserver{
		tracer:  tp.Tracer("github.com/ahrav/go-sumbench/comparison"),
		metrics: metrics,
	}
}

// StartComparison opens the root span of a comparison.
func (o *OTelComparisonObserver) StartComparison(
	ctx context.Context,
	req domain.ComparisonRequest,
) (context.Context, func(*domain.ComparisonResult, error)) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "comparison.compare", trace.WithAttributes(
		attribute.StringSlice("comparison.providers", req.Providers),
		attribute.Int("comparison.max_words", req.MaxWords),
		attribute.Int("comparison.text_length", len(req.Text)),
	))

	return ctx, func(result *domain.ComparisonResult, err error) {
		defer span.End()

		status := comparisonStatus(result, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else if result != nil {
			span.SetAttributes(
				attribute.String("comparison.id", result.ID),
				attribute.String("comparison.winner", result.Winner),
				attribute.Int("comparison.successful_evaluations", result.SuccessfulEvaluations),
			)
			span.SetStatus(codes.Ok, "")
		}

		if o.metrics != nil {
			o.metrics.RecordCounter(MetricComparisonsTotal, 1, map[string]string{"status": status})
			o.metrics.RecordLatency("compare", time.Since(start), map[string]string{"unit": "comparison"})
		}
	}
}

// StartProvider opens a child span for one provider pipeline.
func (o *OTelComparisonObserver) StartProvider(
	ctx context.Context,
	provider string,
) (context.Context, func(domain.ProviderSummarySet, domain.EvaluationScore)) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "comparison.provider", trace.WithAttributes(
		attribute.String("provider.model", provider),
	))

	return ctx, func(set domain.ProviderSummarySet, score domain.EvaluationScore) {
		defer span.End()

		failed := len(set.Slots) - set.SuccessCount
		span.SetAttributes(
			attribute.String("provider.family", set.Family),
			attribute.Int("provider.successful_slots", set.SuccessCount),
			attribute.Int("provider.failed_slots", failed),
			attribute.String("provider.status", string(score.Status)),
			attribute.Float64("provider.average_score", score.Average),
		)
		if score.Status == domain.StatusPipelineError {
			span.SetStatus(codes.Error, "provider pipeline failed")
		}

		if o.metrics == nil {
			return
		}
		labels := map[string]string{"provider": provider}
		if set.SuccessCount > 0 {
			o.metrics.RecordCounter(MetricSlotsTotal, float64(set.SuccessCount), withStatus(labels, "success"))
		}
		if failed > 0 {
			o.metrics.RecordCounter(MetricSlotsTotal, float64(failed), withStatus(labels, "failed"))
		}
		if score.Eligible() {
			o.metrics.RecordGauge(MetricProviderAverageScore, score.Average, labels)
		}
		o.metrics.RecordLatency("provider_pipeline", time.Since(start), map[string]string{"unit": provider})
	}
}

func comparisonStatus(result *domain.ComparisonResult, err error) string {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return ComparisonStatusInvalid
	case errors.Is(err, domain.ErrAllProvidersUnreachable):
		return ComparisonStatusUnreachable
	case err != nil:
		return ComparisonStatusError
	case result == nil || result.Winner == domain.NoWinner:
		return ComparisonStatusNoWinner
	default:
		return ComparisonStatusSuccess
	}
}

func withStatus(labels map[string]string, status string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out["status"] = status
	return out
}

var (
	_ ComparisonObserver = (*OTelComparisonObserver)(nil)
	_ ComparisonObserver = NoopComparisonObserver{}
)
