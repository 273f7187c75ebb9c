package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned without contacting the provider while the
// family's breaker is open or probing.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState mirrors the gobreaker states for metric reporting.
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

// String returns the state name.
func (s CircuitBreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

func fromGobreakerState(s gobreaker.State) CircuitBreakerState {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// CircuitBreakerMetrics receives breaker events.
type CircuitBreakerMetrics interface {
	RecordState(name string, state CircuitBreakerState)
	RecordTrip(name string)
	RecordSuccess(name string)
	RecordFailure(name string)
}

// CircuitBreaker trips after maxFailures consecutive failures and stays open
// for the cooldown before letting one trial request through.
type CircuitBreaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	metrics CircuitBreakerMetrics
}

// NewCircuitBreaker creates a named breaker. metrics may be nil.
func NewCircuitBreaker(name string, maxFailures int, cooldown time.Duration, metrics CircuitBreakerMetrics) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	cb := &CircuitBreaker{name: name, metrics: metrics}

	threshold := uint32(maxFailures) // #nosec G115 - maxFailures is at least 1
	cb.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(_ string, _, to gobreaker.State) {
			if cb.metrics == nil {
				return
			}
			state := fromGobreakerState(to)
			cb.metrics.RecordState(cb.name, state)
			if state == StateOpen {
				cb.metrics.RecordTrip(cb.name)
			}
		},
	})
	return cb
}

// breakerSuccess reports whether err leaves the breaker's failure count
// untouched. Caller cancellation and rejected requests say nothing about
// provider health.
func breakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Type {
		case ErrorTypeBadRequest, ErrorTypeNotFound, ErrorTypeContentPolicy, ErrorTypeAuthentication:
			return true
		}
	}
	return false
}

// Call runs fn through the breaker. Rejections surface as ErrCircuitOpen.
func (cb *CircuitBreaker) Call(fn func() error) error {
	_, err := cb.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}

	if cb.metrics != nil {
		if err == nil {
			cb.metrics.RecordSuccess(cb.name)
		} else {
			cb.metrics.RecordFailure(cb.name)
		}
	}
	return err
}

// GetState returns the current breaker state.
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	return fromGobreakerState(cb.breaker.State())
}

type circuitBreakerLLM struct {
	next CoreLLM
	cb   *CircuitBreaker
}

// CircuitBreakerMiddleware guards a provider family with one shared breaker.
// Build the middleware once per family and reuse it for every client of
// that family so failures on one model protect its siblings.
func CircuitBreakerMiddleware(name string, maxFailures int, cooldown time.Duration) Middleware {
	return CircuitBreakerMiddlewareWithMetrics(name, maxFailures, cooldown, nil)
}

// CircuitBreakerMiddlewareWithMetrics is CircuitBreakerMiddleware with a
// metrics sink.
func CircuitBreakerMiddlewareWithMetrics(name string, maxFailures int, cooldown time.Duration, metrics CircuitBreakerMetrics) Middleware {
	cb := NewCircuitBreaker(name, maxFailures, cooldown, metrics)
	return func(next CoreLLM) CoreLLM {
		return &circuitBreakerLLM{next: next, cb: cb}
	}
}

func (c *circuitBreakerLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var response string
	var tokensIn, tokensOut int

	err := c.cb.Call(func() error {
		var err error
		response, tokensIn, tokensOut, err = c.next.DoRequest(ctx, prompt, opts)
		return err
	})
	if err != nil {
		return "", 0, 0, err
	}
	return response, tokensIn, tokensOut, nil
}

func (c *circuitBreakerLLM) GetModel() string  { return c.next.GetModel() }
func (c *circuitBreakerLLM) SetModel(m string) { c.next.SetModel(m) }
