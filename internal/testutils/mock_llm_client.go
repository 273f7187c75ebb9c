// Package testutils provides deterministic test doubles shared by the
// package tests of the comparison pipeline.
package testutils

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ahrav/go-sumbench/internal/ports"
)

// ErrMockFailure is the default error returned by scripted failures.
var ErrMockFailure = errors.New("mock failure")

// MockLLMClient implements the LLMClient interface with deterministic,
// scriptable responses. It answers summarization prompts with a fixed
// summary and evaluation prompts with a well-formed rubric reply covering
// every summary in the prompt. It is safe for concurrent use.
type MockLLMClient struct {
	mu sync.Mutex

	// model is the mock model identifier.
	model string
	// responses are matched in insertion order against the prompt.
	responses []MockResponse

	// Err, when set, is returned by every call.
	Err error
	// FailCalls lists 1-based call numbers that fail with ErrMockFailure.
	FailCalls map[int]bool
	// PanicOnCall makes the given 1-based call panic.
	PanicOnCall int
	// Delay is applied before answering; it honours context cancellation.
	Delay time.Duration
	// EvaluationScores is the (precision, completeness, clarity) triple used
	// for generated rubric replies.
	EvaluationScores [3]int

	calls   int
	prompts []string
	options []map[string]any
}

// MockResponse defines a pre-configured response pattern for the mock client.
type MockResponse struct {
	// Pattern is matched case-insensitively as a substring of the prompt.
	Pattern string
	// Response is the text returned for matching prompts.
	Response string
}

// NewMockLLMClient creates a MockLLMClient that summarizes and evaluates
// successfully with scores of 4 on every axis.
func NewMockLLMClient(model string) *MockLLMClient {
	return &MockLLMClient{
		model:            model,
		FailCalls:        make(map[int]bool),
		EvaluationScores: [3]int{4, 4, 4},
	}
}

// AddResponse registers a custom response. Custom responses take
// precedence over the built-in summarization and evaluation replies.
func (m *MockLLMClient) AddResponse(response MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, response)
}

// Complete implements ports.LLMClient.
func (m *MockLLMClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.prompts = append(m.prompts, prompt)
	m.options = append(m.options, options)
	err := m.Err
	fail := m.FailCalls[call]
	panicNow := m.PanicOnCall == call
	delay := m.Delay
	m.mu.Unlock()

	if panicNow {
		panic(fmt.Sprintf("mock panic on call %d", call))
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	if fail {
		return "", ErrMockFailure
	}
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	return m.respond(prompt), nil
}

func (m *MockLLMClient) respond(prompt string) string {
	lower := strings.ToLower(prompt)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.responses {
		if strings.Contains(lower, strings.ToLower(r.Pattern)) {
			return r.Response
		}
	}

	if n := CountSummaries(prompt); n > 0 && strings.Contains(lower, "evaluat") {
		scores := make([][3]int, n)
		for i := range scores {
			scores[i] = m.EvaluationScores
		}
		return RubricReply(scores...)
	}
	return fmt.Sprintf("Summary from %s covering the main ideas of the text.", m.model)
}

// EstimateTokens implements ports.LLMClient at roughly four characters per token.
func (m *MockLLMClient) EstimateTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return max(len(text)/4, 1), nil
}

// GetModel implements ports.LLMClient.
func (m *MockLLMClient) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// SetModel updates the mock model identifier.
func (m *MockLLMClient) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
}

// Calls returns how many times Complete was invoked.
func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockLLMClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// LastOptions returns the options of the most recent call.
func (m *MockLLMClient) LastOptions() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.options) == 0 {
		return nil
	}
	return m.options[len(m.options)-1]
}

// RubricReply formats an evaluator reply with one block per score triple.
func RubricReply(scores ...[3]int) string {
	var b strings.Builder
	for i, s := range scores {
		fmt.Fprintf(&b, "SUMMARY %d:\nPRECISION: %d\nCOMPLETENESS: %d\nCLARITY: %d\nCOMMENT: summary %d reviewed\n\n",
			i+1, s[0], s[1], s[2], i+1)
	}
	return b.String()
}

// CountSummaries returns the highest "SUMMARY <n>:" index found in prompt.
func CountSummaries(prompt string) int {
	highest := 0
	for _, line := range strings.Split(prompt, "\n") {
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(line), "SUMMARY %d:", &n); err == nil && n > highest {
			highest = n
		}
	}
	return highest
}

// StaticResolver resolves model ids from a fixed map of clients.
type StaticResolver map[string]ports.LLMClient

// ClientFor implements ports.ClientResolver.
func (r StaticResolver) ClientFor(model string) (ports.LLMClient, error) {
	client, ok := r[model]
	if !ok {
		return nil, ports.NewLLMError(model, ports.OperationResolve, ports.ErrUnknownModel)
	}
	return client, nil
}

// Family implements ports.ModelCatalog by reporting every mapped model
// under the "mock" family.
func (r StaticResolver) Family(model string) (string, bool) {
	_, ok := r[model]
	if !ok {
		return "", false
	}
	return "mock", true
}

// Models implements ports.ModelCatalog.
func (r StaticResolver) Models() map[string][]string {
	models := make([]string, 0, len(r))
	for m := range r {
		models = append(models, m)
	}
	slices.Sort(models)
	return map[string][]string{"mock": models}
}

// Verify interface compliance at compile time.
var (
	_ ports.LLMClient      = (*MockLLMClient)(nil)
	_ ports.ClientResolver = StaticResolver(nil)
	_ ports.ModelCatalog   = StaticResolver(nil)
)
