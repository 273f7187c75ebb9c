package ports

//go:generate mockgen -source=infrastructure.go -destination=../testutils/mocks/mock_llm_client.go -package=mocks -exclude_interfaces=ModelCatalog,ClientResolver,MetricsCollector

import (
	"context"
	"time"
)

// LLMClient defines the interface for interacting with Large Language
// Model providers.
// Implementations handle provider-specific authentication, request
// formatting and response parsing, and must be safe for concurrent use.
type LLMClient interface {
	// Complete sends a completion request to the LLM provider.
	// It returns the generated text and any error encountered.
	//
	// The options map carries sampling parameters without tying the
	// interface to one provider. Recognised keys:
	//   - "temperature": float64
	//   - "top_p": float64
	//   - "top_k": int
	//   - "max_tokens": int
	//   - "frequency_penalty", "presence_penalty": float64
	//   - "stream": bool
	//   - "model": string (overrides the client's model)
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// EstimateTokens calculates the approximate token count for a given text.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier being used by this client.
	GetModel() string
}

// ModelCatalog maps model identifiers onto provider families.
// It replaces any guessing based on model-name prefixes: a model id is
// either known to the catalog or rejected.
type ModelCatalog interface {
	// Family returns the provider family ("openai", "anthropic", "google")
	// serving the model, and false when the id is unknown.
	Family(model string) (string, bool)

	// Models returns every known model id grouped by family. Aliases are
	// included alongside canonical ids.
	Models() map[string][]string
}

// ClientResolver hands out ready-to-use clients for model identifiers.
type ClientResolver interface {
	// ClientFor returns a client bound to the given model id. Clients are
	// created lazily and reused across calls.
	ClientFor(model string) (LLMClient, error)
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations integrate with observability platforms like Prometheus.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
