package llm

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/go-sumbench/internal/ports"
)

// Metric names emitted by MetricsMiddleware.
const (
	MetricRequestLatency = "llm_latency_seconds"
	MetricRequestsTotal  = "llm_requests_total"
	MetricTokensTotal    = "llm_tokens_total"
)

type metricsLLM struct {
	next      CoreLLM
	collector ports.MetricsCollector
	family    string
}

// MetricsMiddleware records latency, request counts and token usage for
// every call, labelled by family, model and outcome.
func MetricsMiddleware(collector ports.MetricsCollector, family string) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{
			next:      next,
			collector: collector,
			family:    family,
		}
	}
}

func (m *metricsLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoRequest(ctx, prompt, opts)

	if m.collector == nil {
		return response, tokensIn, tokensOut, err
	}

	labels := map[string]string{
		"provider": m.family,
		"model":    m.next.GetModel(),
		"status":   requestStatus(err),
	}

	m.collector.RecordHistogram(MetricRequestLatency, time.Since(start).Seconds(), labels)
	m.collector.RecordCounter(MetricRequestsTotal, 1, labels)

	if err == nil {
		m.collector.RecordCounter(MetricTokensTotal, float64(tokensIn), withLabel(labels, "token_type", "input"))
		m.collector.RecordCounter(MetricTokensTotal, float64(tokensOut), withLabel(labels, "token_type", "output"))
	}

	return response, tokensIn, tokensOut, err
}

// requestStatus maps an outcome to the status label.
func requestStatus(err error) string {
	if err == nil {
		return "success"
	}
	if errors.Is(err, ErrCircuitOpen) {
		return "circuit_open"
	}
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Type.String()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}

func withLabel(labels map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out[key] = value
	return out
}

func (m *metricsLLM) GetModel() string      { return m.next.GetModel() }
func (m *metricsLLM) SetModel(model string) { m.next.SetModel(model) }
