// Package middleware provides cross-cutting concerns for the comparison
// pipeline: Prometheus metrics, OpenTelemetry observers and per-comparison
// call budgets that wrap LLM clients.
package middleware

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/go-sumbench/infrastructure/llm"
	"github.com/ahrav/go-sumbench/internal/ports"
)

// Namespace prefixes every metric exported by PrometheusMetrics.
const Namespace = "sumbench"

// Metric names accepted by the MetricsCollector methods. Names not listed
// here are routed to the generic operation counter or system gauge.
const (
	MetricComparisonsTotal     = "comparisons_total"
	MetricProviderAverageScore = "provider_average_score"
	MetricSlotsTotal           = "slots_total"
	MetricBudgetExceededTotal  = "budget_exceeded_total"
	MetricBudgetTokensUsed     = "budget_tokens_used"
	MetricBudgetCallsUsed      = "budget_calls_used"
)

// PrometheusMetrics implements ports.MetricsCollector and
// llm.CircuitBreakerMetrics on a dedicated Prometheus registry.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	comparisons      *prometheus.CounterVec
	providerScore    *prometheus.GaugeVec
	slots            *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec

	llmLatency  *prometheus.HistogramVec
	llmRequests *prometheus.CounterVec
	llmTokens   *prometheus.CounterVec

	breakerState  *prometheus.GaugeVec
	breakerEvents *prometheus.CounterVec

	budgetExceeded *prometheus.CounterVec
	budgetUsed     *prometheus.CounterVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance with its own
// registry, so several instances can coexist in one process.
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		registry: reg,

		comparisons: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      MetricComparisonsTotal,
				Help:      "Comparisons run, by outcome.",
			},
			[]string{"status"},
		),
		providerScore: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      MetricProviderAverageScore,
				Help:      "Average rubric score (0-15) of a provider in its latest comparison.",
			},
			[]string{"provider"},
		),
		slots: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      MetricSlotsTotal,
				Help:      "Generation attempts, by provider and outcome.",
			},
			[]string{"provider", "status"},
		),
		operationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of pipeline operations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "unit"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "operations_total",
				Help:      "Pipeline operations, by status.",
			},
			[]string{"operation", "status", "unit"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "system_state",
				Help:      "Current values of miscellaneous pipeline gauges.",
			},
			[]string{"metric", "unit"},
		),

		llmLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      llm.MetricRequestLatency,
				Help:      "Latency of LLM provider requests.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider", "model", "status"},
		),
		llmRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      llm.MetricRequestsTotal,
				Help:      "LLM provider requests, by outcome.",
			},
			[]string{"provider", "model", "status"},
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      llm.MetricTokensTotal,
				Help:      "Tokens reported or estimated for LLM requests.",
			},
			[]string{"provider", "model", "token_type"},
		),

		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
			},
			[]string{"breaker"},
		),
		breakerEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "circuit_breaker_events_total",
				Help:      "Circuit breaker outcomes and trips.",
			},
			[]string{"breaker", "event"},
		),

		budgetExceeded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      MetricBudgetExceededTotal,
				Help:      "LLM calls rejected by a comparison budget.",
			},
			[]string{"limit_type"},
		),
		budgetUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "budget_used_total",
				Help:      "Calls and estimated tokens charged against comparison budgets.",
			},
			[]string{"resource"},
		),
	}
}

// Registry returns the registry holding every metric of this instance.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry { return pm.registry }

// Handler returns an HTTP handler exposing the registry.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{Registry: pm.registry})
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.operationLatency.WithLabelValues(operation, unitLabel(labels)).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case MetricComparisonsTotal:
		pm.comparisons.WithLabelValues(labels["status"]).Add(value)
	case MetricSlotsTotal:
		pm.slots.WithLabelValues(labels["provider"], labels["status"]).Add(value)
	case llm.MetricRequestsTotal:
		pm.llmRequests.WithLabelValues(labels["provider"], labels["model"], labels["status"]).Add(value)
	case llm.MetricTokensTotal:
		pm.llmTokens.WithLabelValues(labels["provider"], labels["model"], labels["token_type"]).Add(value)
	case MetricBudgetExceededTotal:
		pm.budgetExceeded.WithLabelValues(labels["limit_type"]).Add(value)
	case MetricBudgetCallsUsed:
		pm.budgetUsed.WithLabelValues("calls").Add(value)
	case MetricBudgetTokensUsed:
		pm.budgetUsed.WithLabelValues("tokens").Add(value)
	default:
		status, ok := labels["status"]
		if !ok {
			status = "success"
		}
		pm.operationCounter.WithLabelValues(metric, status, unitLabel(labels)).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case MetricProviderAverageScore:
		pm.providerScore.WithLabelValues(labels["provider"]).Set(value)
	default:
		pm.systemGauges.WithLabelValues(metric, unitLabel(labels)).Set(value)
	}
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case llm.MetricRequestLatency:
		pm.llmLatency.WithLabelValues(labels["provider"], labels["model"], labels["status"]).Observe(value)
	default:
		pm.operationLatency.WithLabelValues(metric, unitLabel(labels)).Observe(value)
	}
}

// RecordState implements llm.CircuitBreakerMetrics.
func (pm *PrometheusMetrics) RecordState(name string, state llm.CircuitBreakerState) {
	pm.breakerState.WithLabelValues(name).Set(float64(state))
}

// RecordTrip implements llm.CircuitBreakerMetrics.
func (pm *PrometheusMetrics) RecordTrip(name string) {
	pm.breakerEvents.WithLabelValues(name, "trip").Inc()
}

// RecordSuccess implements llm.CircuitBreakerMetrics.
func (pm *PrometheusMetrics) RecordSuccess(name string) {
	pm.breakerEvents.WithLabelValues(name, "success").Inc()
}

// RecordFailure implements llm.CircuitBreakerMetrics.
func (pm *PrometheusMetrics) RecordFailure(name string) {
	pm.breakerEvents.WithLabelValues(name, "failure").Inc()
}

func unitLabel(labels map[string]string) string {
	if unit := labels["unit"]; unit != "" {
		return unit
	}
	return "unknown"
}

var (
	_ ports.MetricsCollector     = (*PrometheusMetrics)(nil)
	_ llm.CircuitBreakerMetrics = (*PrometheusMetrics)(nil)
)
