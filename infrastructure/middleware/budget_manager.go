package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ahrav/go-sumbench/internal/domain"
	"github.com/ahrav/go-sumbench/internal/ports"
)

// Budget defines resource consumption limits for one comparison.
type Budget struct {
	// MaxTokens limits the estimated tokens of prompts and completions.
	// Zero means unlimited token usage.
	MaxTokens int64 `yaml:"max_tokens" json:"max_tokens" mapstructure:"max_tokens" validate:"min=0"`

	// MaxCalls limits the total number of LLM calls.
	// Zero means unlimited calls.
	MaxCalls int64 `yaml:"max_calls" json:"max_calls" mapstructure:"max_calls" validate:"min=0"`
}

// Unlimited reports whether the budget imposes no limit at all.
func (b Budget) Unlimited() bool { return b.MaxTokens == 0 && b.MaxCalls == 0 }

// Validate checks that limits are not negative.
func (b Budget) Validate() error {
	if b.MaxTokens < 0 {
		return fmt.Errorf("budget: max_tokens cannot be negative, got %d", b.MaxTokens)
	}
	if b.MaxCalls < 0 {
		return fmt.Errorf("budget: max_calls cannot be negative, got %d", b.MaxCalls)
	}
	return nil
}

// BudgetObserver provides observability hooks for budget operations.
// Implementations can add tracing, metrics, and logging without
// coupling observability concerns to core budget logic.
type BudgetObserver interface {
	// PreCheck is called before a call is charged against the budget.
	PreCheck(ctx context.Context, usage domain.Usage, budget Budget)

	// PostCheck is called after the call with the updated usage and timing.
	PostCheck(ctx context.Context, usage domain.Usage, budget Budget, elapsed time.Duration, err error)
}

// BudgetTracker accounts LLM calls and estimated tokens for one comparison
// and rejects calls that would exceed the budget. One tracker is shared by
// every client of a comparison; it is safe for concurrent use.
type BudgetTracker struct {
	budget   Budget
	observer BudgetObserver

	mu    sync.Mutex
	usage domain.Usage
}

// NewBudgetTracker creates a tracker for budget. observer may be nil.
func NewBudgetTracker(budget Budget, observer BudgetObserver) *BudgetTracker {
	return &BudgetTracker{budget: budget, observer: observer}
}

// Budget returns the configured limits.
func (t *BudgetTracker) Budget() Budget { return t.budget }

// Usage returns the usage charged so far.
func (t *BudgetTracker) Usage() domain.Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}

// reserve charges one call and the prompt tokens, or fails without
// charging anything when a limit would be exceeded.
func (t *BudgetTracker) reserve(promptTokens int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.budget.MaxCalls > 0 && t.usage.Calls+1 > t.budget.MaxCalls {
		return domain.NewBudgetExceededError("calls", t.budget.MaxCalls, t.usage.Calls+1)
	}
	if t.budget.MaxTokens > 0 && t.usage.Tokens+promptTokens > t.budget.MaxTokens {
		return domain.NewBudgetExceededError("tokens", t.budget.MaxTokens, t.usage.Tokens+promptTokens)
	}

	t.usage.Calls++
	t.usage.Tokens += promptTokens
	return nil
}

// charge adds completion tokens after a call. The call already happened,
// so the tokens are recorded even if they overrun the limit; the next
// reservation will then fail.
func (t *BudgetTracker) charge(tokens int64) domain.Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage.Tokens += tokens
	return t.usage
}

// Wrap returns a client that charges every call to the tracker.
func (t *BudgetTracker) Wrap(client ports.LLMClient) *BudgetedClient {
	return &BudgetedClient{next: client, tracker: t}
}

// Resolver returns a resolver whose clients are all charged to the tracker.
func (t *BudgetTracker) Resolver(next ports.ClientResolver) ports.ClientResolver {
	return &budgetedResolver{next: next, tracker: t}
}

// BudgetedClient enforces a BudgetTracker around another LLM client.
type BudgetedClient struct {
	next    ports.LLMClient
	tracker *BudgetTracker
}

// Complete checks the budget, forwards the call and charges the estimated
// tokens of the completion. A rejected call fails with
// *domain.BudgetExceededError and never reaches the provider.
func (c *BudgetedClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	observer := c.tracker.observer
	if observer != nil {
		observer.PreCheck(ctx, c.tracker.Usage(), c.tracker.budget)
	}

	promptTokens, err := c.next.EstimateTokens(prompt)
	if err != nil {
		promptTokens = 0
	}

	start := time.Now()
	if err := c.tracker.reserve(int64(promptTokens)); err != nil {
		if observer != nil {
			observer.PostCheck(ctx, c.tracker.Usage(), c.tracker.budget, time.Since(start), err)
		}
		return "", err
	}

	out, err := c.next.Complete(ctx, prompt, options)

	var outTokens int
	if err == nil {
		if n, estErr := c.next.EstimateTokens(out); estErr == nil {
			outTokens = n
		}
	}
	usage := c.tracker.charge(int64(outTokens))

	if observer != nil {
		observer.PostCheck(ctx, usage, c.tracker.budget, time.Since(start), err)
	}
	return out, err
}

// EstimateTokens delegates to the wrapped client.
func (c *BudgetedClient) EstimateTokens(text string) (int, error) { return c.next.EstimateTokens(text) }

// GetModel delegates to the wrapped client.
func (c *BudgetedClient) GetModel() string { return c.next.GetModel() }

type budgetedResolver struct {
	next    ports.ClientResolver
	tracker *BudgetTracker
}

func (r *budgetedResolver) ClientFor(model string) (ports.LLMClient, error) {
	client, err := r.next.ClientFor(model)
	if err != nil {
		return nil, err
	}
	return r.tracker.Wrap(client), nil
}

var _ ports.LLMClient = (*BudgetedClient)(nil)
