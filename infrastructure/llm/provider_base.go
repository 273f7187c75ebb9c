package llm

import "sync"

// Provider families known to the catalog.
const (
	FamilyOpenAI    = "openai"
	FamilyAnthropic = "anthropic"
	FamilyGoogle    = "google"
)

// BaseProvider holds the model name shared by all providers behind a lock,
// since SetModel may race with in-flight requests.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the configured model name.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel updates the model name.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// tokenCount prefers the count reported by the provider and falls back to
// the estimator when the provider reported nothing.
func tokenCount(actual int64, text string, estimator TokenEstimator) int {
	if actual > 0 {
		return int(actual)
	}
	return estimator.EstimateTokens(text)
}
