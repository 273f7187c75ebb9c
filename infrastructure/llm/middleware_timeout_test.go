package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeoutMiddleware_CompletesWithinTimeout(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.ResponseDelay = 5 * time.Millisecond
	wrapped := TimeoutMiddleware(time.Second)(mock)

	response, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)

	require.NoError(t, err)
	assert.Equal(t, "test response", response)
}

func TestTimeoutMiddleware_ExceedsTimeout(t *testing.T) {
	// Given a provider slower than the timeout
	mock := NewMockCoreLLM()
	mock.ResponseDelay = time.Second
	wrapped := TimeoutMiddleware(20 * time.Millisecond)(mock)

	// When making a request
	start := time.Now()
	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)

	// Then it fails with a deadline error quickly
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestTimeoutMiddleware_SetsDeadline(t *testing.T) {
	mock := NewMockCoreLLM()
	wrapped := TimeoutMiddleware(time.Minute)(mock)

	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	require.NoError(t, err)

	deadline, ok := mock.LastContext.Deadline()
	require.True(t, ok, "downstream context should carry a deadline")
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestTimeoutMiddleware_PerAttemptUnderRetry(t *testing.T) {
	// Given retry outside a per-attempt timeout
	mock := NewMockCoreLLM()
	mock.ResponseDelay = 30 * time.Millisecond

	slowThenFast := &delayScript{next: mock, delays: []time.Duration{time.Second, 0}}
	wrapped := RetryMiddleware(1, time.Millisecond, time.Millisecond)(TimeoutMiddleware(100 * time.Millisecond)(slowThenFast))

	// When the first attempt times out
	response, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)

	// Then the second attempt gets a fresh deadline and succeeds
	require.NoError(t, err)
	assert.Equal(t, "test response", response)
}

func TestTimeoutMiddleware_DisabledForNonPositive(t *testing.T) {
	mock := NewMockCoreLLM()
	assert.Same(t, mock, TimeoutMiddleware(0)(mock))
}

// delayScript sleeps for the next scripted delay before delegating.
type delayScript struct {
	next   CoreLLM
	delays []time.Duration
}

func (d *delayScript) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var delay time.Duration
	if len(d.delays) > 0 {
		delay, d.delays = d.delays[0], d.delays[1:]
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}
	return d.next.DoRequest(ctx, prompt, opts)
}

func (d *delayScript) GetModel() string  { return d.next.GetModel() }
func (d *delayScript) SetModel(m string) { d.next.SetModel(m) }
