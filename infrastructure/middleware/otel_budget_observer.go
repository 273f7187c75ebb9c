package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-sumbench/internal/domain"
	"github.com/ahrav/go-sumbench/internal/ports"
)

var _ BudgetObserver = (*OTelBudgetObserver)(nil)

// Usage ratios at which budget threshold events are added to the active span.
const (
	budgetWarningThreshold  = 0.8
	budgetCriticalThreshold = 0.9
)

// OTelBudgetObserver reports budget consumption as events on the span in
// the call's context and as metrics. It holds no per-call state, so one
// instance can observe concurrent calls.
type OTelBudgetObserver struct {
	metrics  ports.MetricsCollector
	unitName string
}

// NewOTelBudgetObserver creates a new OpenTelemetry budget observer.
// metrics may be nil.
func NewOTelBudgetObserver(metrics ports.MetricsCollector, unitName string) *OTelBudgetObserver {
	return &OTelBudgetObserver{
		metrics:  metrics,
		unitName: unitName,
	}
}

// PreCheck implements the BudgetObserver interface. It records threshold
// warnings before the call is charged.
func (o *OTelBudgetObserver) PreCheck(ctx context.Context, usage domain.Usage, budget Budget) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	o.checkBudgetThresholds(span, usage, budget)
}

// PostCheck implements the BudgetObserver interface. It records the new
// usage on the span and in metrics, including rejected calls.
func (o *OTelBudgetObserver) PostCheck(
	ctx context.Context,
	usage domain.Usage,
	budget Budget,
	elapsed time.Duration,
	err error,
) {
	span := trace.SpanFromContext(ctx)
	labels := o.createMetricLabels(budget)

	var budgetErr *domain.BudgetExceededError
	if errors.As(err, &budgetErr) {
		span.AddEvent("budget.exceeded", trace.WithAttributes(
			attribute.String("limit_type", budgetErr.LimitType),
			attribute.Int64("limit_value", budgetErr.Limit),
			attribute.Int64("used_value", budgetErr.Used),
		))
		if o.metrics != nil {
			labels["limit_type"] = budgetErr.LimitType
			o.metrics.RecordCounter(MetricBudgetExceededTotal, 1, labels)
		}
		return
	}

	span.AddEvent("budget.usage_tracked", trace.WithAttributes(
		attribute.String("budget.unit", o.unitName),
		attribute.Int64("budget.tokens_used", usage.Tokens),
		attribute.Int64("budget.calls_made", usage.Calls),
	))

	if o.metrics == nil {
		return
	}
	o.metrics.RecordLatency("budgeted_call", elapsed, labels)
	if budget.MaxTokens > 0 {
		o.metrics.RecordGauge("budget_remaining_tokens", float64(budget.MaxTokens-usage.Tokens), labels)
	}
	if budget.MaxCalls > 0 {
		o.metrics.RecordGauge("budget_remaining_calls", float64(budget.MaxCalls-usage.Calls), labels)
	}
}

// checkBudgetThresholds adds warning or critical events when usage
// approaches a limit.
func (o *OTelBudgetObserver) checkBudgetThresholds(span trace.Span, usage domain.Usage, budget Budget) {
	check := func(resource string, used, limit int64) {
		if limit <= 0 {
			return
		}
		ratio := float64(used) / float64(limit)
		name := ""
		switch {
		case ratio >= budgetCriticalThreshold:
			name = "budget.threshold.critical"
		case ratio >= budgetWarningThreshold:
			name = "budget.threshold.warning"
		default:
			return
		}
		span.AddEvent(name, trace.WithAttributes(
			attribute.String("resource_type", resource),
			attribute.Float64("usage_percentage", ratio*100),
		))
	}

	check("tokens", usage.Tokens, budget.MaxTokens)
	check("calls", usage.Calls, budget.MaxCalls)
}

// createMetricLabels creates the standard set of metric labels required
// for observability.
func (o *OTelBudgetObserver) createMetricLabels(budget Budget) map[string]string {
	return map[string]string{
		"budget_limit": budgetLimitLabel(budget),
		"unit":         o.unitName,
	}
}

// budgetLimitLabel creates a descriptive label for the current budget limits.
func budgetLimitLabel(budget Budget) string {
	switch {
	case budget.MaxTokens > 0 && budget.MaxCalls > 0:
		return "tokens_and_calls"
	case budget.MaxTokens > 0:
		return "tokens_only"
	case budget.MaxCalls > 0:
		return "calls_only"
	default:
		return "unlimited"
	}
}
