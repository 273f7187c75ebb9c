package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ahrav/go-sumbench/internal/domain"
)

// recordingMetrics captures MetricsCollector calls.
type recordingMetrics struct {
	mu       sync.Mutex
	counters map[string]float64
	gauges   map[string]float64
	latency  []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counters: map[string]float64{}, gauges: map[string]float64{}}
}

func (r *recordingMetrics) key(metric string, labels map[string]string) string {
	return fmt.Sprintf("%s|%s|%s|%s", metric, labels["status"], labels["provider"], labels["limit_type"])
}

func (r *recordingMetrics) RecordLatency(op string, _ time.Duration, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latency = append(r.latency, op)
}

func (r *recordingMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[r.key(metric, labels)] += value
}

func (r *recordingMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[r.key(metric, labels)] = value
}

func (r *recordingMetrics) RecordHistogram(string, float64, map[string]string) {}

func newTestTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, recorder
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOTelComparisonObserver_Lifecycle(t *testing.T) {
	// Given an observer on a recording tracer
	tp, recorder := newTestTracer(t)
	metrics := newRecordingMetrics()
	observer := NewOTelComparisonObserverWithProvider(tp, metrics)
	req := domain.ComparisonRequest{Text: "text", Providers: []string{"gpt-4", "claude"}, MaxWords: 50}

	// When a comparison with one provider pipeline runs
	ctx, endComparison := observer.StartComparison(context.Background(), req)
	_, endProvider := observer.StartProvider(ctx, "gpt-4")
	endProvider(
		domain.ProviderSummarySet{
			Provider:     "gpt-4",
			Family:       "openai",
			Slots:        []domain.SummarySlot{{Index: 0, Text: "a"}, domain.FailedSlot(1, nil), {Index: 2, Text: "c"}},
			SuccessCount: 2,
		},
		domain.EvaluationScore{Provider: "gpt-4", Status: domain.StatusEvaluated, Average: 12},
	)
	endComparison(&domain.ComparisonResult{ID: "id-1", Winner: "gpt-4", SuccessfulEvaluations: 1}, nil)

	// Then the provider span is a child of the comparison span
	spans := recorder.Ended()
	require.Len(t, spans, 2)
	provider, comparison := spans[0], spans[1]
	assert.Equal(t, "comparison.provider", provider.Name())
	assert.Equal(t, "comparison.compare", comparison.Name())
	assert.Equal(t, comparison.SpanContext().SpanID(), provider.Parent().SpanID())
	assert.Equal(t, codes.Ok, comparison.Status().Code)

	winner, ok := spanAttr(comparison, "comparison.winner")
	require.True(t, ok)
	assert.Equal(t, "gpt-4", winner.AsString())
	failed, ok := spanAttr(provider, "provider.failed_slots")
	require.True(t, ok)
	assert.Equal(t, int64(1), failed.AsInt64())

	// And metrics are recorded
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	assert.InDelta(t, 2, metrics.counters["slots_total|success|gpt-4|"], 0)
	assert.InDelta(t, 1, metrics.counters["slots_total|failed|gpt-4|"], 0)
	assert.InDelta(t, 12, metrics.gauges["provider_average_score||gpt-4|"], 0)
	assert.InDelta(t, 1, metrics.counters["comparisons_total|success||"], 0)
	assert.ElementsMatch(t, []string{"provider_pipeline", "compare"}, metrics.latency)
}

func TestOTelComparisonObserver_Statuses(t *testing.T) {
	validation := domain.NewValidationError("ComparisonRequest")
	validation.AddError("too few providers")

	tests := []struct {
		name   string
		result *domain.ComparisonResult
		err    error
		want   string
	}{
		{"success", &domain.ComparisonResult{Winner: "gpt-4"}, nil, ComparisonStatusSuccess},
		{"no winner", &domain.ComparisonResult{Winner: domain.NoWinner}, nil, ComparisonStatusNoWinner},
		{"validation", nil, validation, ComparisonStatusInvalid},
		{"unreachable", nil, fmt.Errorf("compare: %w", domain.ErrAllProvidersUnreachable), ComparisonStatusUnreachable},
		{"other", nil, errors.New("boom"), ComparisonStatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, comparisonStatus(tt.result, tt.err))
		})
	}
}

func TestOTelComparisonObserver_ErrorSetsSpanStatus(t *testing.T) {
	tp, recorder := newTestTracer(t)
	observer := NewOTelComparisonObserverWithProvider(tp, nil)

	_, end := observer.StartComparison(context.Background(), domain.ComparisonRequest{})
	end(nil, domain.ErrAllProvidersUnreachable)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestNoopComparisonObserver(t *testing.T) {
	ctx := context.Background()
	var observer ComparisonObserver = NoopComparisonObserver{}

	got, end := observer.StartComparison(ctx, domain.ComparisonRequest{})
	assert.Equal(t, ctx, got)
	assert.NotPanics(t, func() { end(nil, nil) })

	_, endProvider := observer.StartProvider(ctx, "p")
	assert.NotPanics(t, func() { endProvider(domain.ProviderSummarySet{}, domain.EvaluationScore{}) })
}

func TestOTelBudgetObserver(t *testing.T) {
	// Given a budgeted call running inside a recording span
	tp, recorder := newTestTracer(t)
	metrics := newRecordingMetrics()
	observer := NewOTelBudgetObserver(metrics, "comparison")
	budget := Budget{MaxCalls: 10}

	ctx, span := tp.Tracer("test").Start(context.Background(), "call")

	// When usage is near the limit and a later call is rejected
	observer.PreCheck(ctx, domain.Usage{Calls: 9}, budget)
	observer.PostCheck(ctx, domain.Usage{Calls: 10}, budget, time.Millisecond, nil)
	observer.PostCheck(ctx, domain.Usage{Calls: 10}, budget, time.Millisecond,
		domain.NewBudgetExceededError("calls", 10, 11))
	span.End()

	// Then the span carries threshold, usage and exceeded events
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	var names []string
	for _, e := range spans[0].Events() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"budget.threshold.critical", "budget.usage_tracked", "budget.exceeded"}, names)

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	assert.InDelta(t, 1, metrics.counters["budget_exceeded_total|||calls"], 0)
	assert.InDelta(t, 0, metrics.gauges["budget_remaining_calls|||"], 0)
	assert.Equal(t, []string{"budgeted_call"}, metrics.latency)
}

func TestBudgetLimitLabel(t *testing.T) {
	assert.Equal(t, "tokens_and_calls", budgetLimitLabel(Budget{MaxTokens: 1, MaxCalls: 1}))
	assert.Equal(t, "tokens_only", budgetLimitLabel(Budget{MaxTokens: 1}))
	assert.Equal(t, "calls_only", budgetLimitLabel(Budget{MaxCalls: 1}))
	assert.Equal(t, "unlimited", budgetLimitLabel(Budget{}))
}
