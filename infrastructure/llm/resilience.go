package llm

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-sumbench/internal/ports"
)

// ResilienceConfig describes the middleware chain placed around every
// provider of one family.
type ResilienceConfig struct {
	// RequestTimeout bounds a single attempt. Zero disables it.
	RequestTimeout time.Duration
	// MaxRetries is the number of extra attempts after the first.
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	// RateLimitRPS of zero disables rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
	// BreakerMaxFailures of zero disables the circuit breaker.
	BreakerMaxFailures int
	BreakerCooldown    time.Duration
	// ServiceName names the tracer. Empty disables tracing.
	ServiceName string
}

// DefaultResilienceConfig returns the chain settings used by the CLI and
// server when nothing is configured.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		RequestTimeout:     60 * time.Second,
		MaxRetries:         3,
		RetryDelay:         time.Second,
		MaxRetryDelay:      30 * time.Second,
		RateLimitBurst:     1,
		BreakerMaxFailures: 5,
		BreakerCooldown:    30 * time.Second,
		ServiceName:        "sumbench",
	}
}

// Chain builds the middleware for one family, outermost first:
// retry, circuit breaker, rate limit, timeout, metrics, tracing.
//
// The breaker and limiter live inside the returned closures, so calling
// Chain once per family and reusing the slice shares them across that
// family's clients.
func (c ResilienceConfig) Chain(family string, collector ports.MetricsCollector, breakerMetrics CircuitBreakerMetrics) []Middleware {
	chain := make([]Middleware, 0, 6)

	if c.MaxRetries > 0 {
		chain = append(chain, RetryMiddleware(c.MaxRetries, c.RetryDelay, c.MaxRetryDelay))
	}
	if c.BreakerMaxFailures > 0 {
		chain = append(chain, CircuitBreakerMiddlewareWithMetrics(family, c.BreakerMaxFailures, c.BreakerCooldown, breakerMetrics))
	}
	if c.RateLimitRPS > 0 {
		chain = append(chain, RateLimitMiddleware(rate.Limit(c.RateLimitRPS), c.RateLimitBurst))
	}
	if c.RequestTimeout > 0 {
		chain = append(chain, TimeoutMiddleware(c.RequestTimeout))
	}
	if collector != nil {
		chain = append(chain, MetricsMiddleware(collector, family))
	}
	if c.ServiceName != "" {
		chain = append(chain, TracingMiddleware(c.ServiceName, family))
	}

	return chain
}
