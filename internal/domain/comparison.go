package domain

import (
	"fmt"
	"time"
)

// Request bounds enforced before any generation starts.
const (
	MinProviders = 2
	MaxProviders = 5

	MinMaxWords     = 20
	MaxMaxWords     = 500
	DefaultMaxWords = 100

	MinSourceLength = 100
	MaxSourceLength = 10000

	// DefaultSamplesPerProvider is K, the number of generation attempts
	// issued for every provider in a comparison.
	DefaultSamplesPerProvider = 3
)

// Sentinel values that appear in a ComparisonResult.
const (
	// NoWinner is reported when no provider was eligible to win.
	NoWinner = "none"

	// NoValidSummary is the representative summary when not a single
	// generation attempt succeeded across all providers.
	NoValidSummary = "no valid summary could be generated"

	// NotEvaluatedComment is attached to backfilled evaluation records.
	NotEvaluatedComment = "could not evaluate"
)

// GenerationConfig holds the sampling parameters sent with every
// generation call. The ranges mirror what the three supported provider
// families accept.
type GenerationConfig struct {
	Temperature      float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature" validate:"min=0,max=2"`
	TopP             float64 `json:"top_p" yaml:"top_p" mapstructure:"top_p" validate:"min=0,max=1"`
	TopK             int     `json:"top_k" yaml:"top_k" mapstructure:"top_k" validate:"min=1,max=100"`
	MaxTokens        int     `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens" validate:"min=1,max=4000"`
	FrequencyPenalty float64 `json:"frequency_penalty" yaml:"frequency_penalty" mapstructure:"frequency_penalty" validate:"min=-2,max=2"`
	PresencePenalty  float64 `json:"presence_penalty" yaml:"presence_penalty" mapstructure:"presence_penalty" validate:"min=-2,max=2"`
	Stream           bool    `json:"stream" yaml:"stream" mapstructure:"stream"`
}

// DefaultGenerationConfig returns the configuration used for summary
// generation when the caller does not supply one.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature: 0.7,
		TopP:        1.0,
		TopK:        50,
		MaxTokens:   1000,
	}
}

// EvaluatorGenerationConfig returns the low-temperature configuration used
// for rubric evaluation calls.
func EvaluatorGenerationConfig() GenerationConfig {
	cfg := DefaultGenerationConfig()
	cfg.Temperature = 0.1
	return cfg
}

// ToOptions renders the configuration as the option map accepted by
// ports.LLMClient.Complete.
func (c GenerationConfig) ToOptions() map[string]any {
	return map[string]any{
		"temperature":       c.Temperature,
		"top_p":             c.TopP,
		"top_k":             c.TopK,
		"max_tokens":        c.MaxTokens,
		"frequency_penalty": c.FrequencyPenalty,
		"presence_penalty":  c.PresencePenalty,
		"stream":            c.Stream,
	}
}

// ComparisonRequest describes one comparison run. It is treated as
// immutable once validated.
type ComparisonRequest struct {
	// Text is the source text every provider summarizes.
	Text string `json:"text"`

	// Providers lists the model identifiers to compare, in the order they
	// should be reported and tie-broken.
	Providers []string `json:"providers"`

	// MaxWords is the target summary length in words.
	MaxWords int `json:"max_words"`

	// Config holds the sampling parameters for summary generation.
	Config GenerationConfig `json:"config"`
}

// SummarySlot is the outcome of a single generation attempt.
type SummarySlot struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Failed bool   `json:"failed"`
	Error  string `json:"error,omitempty"`

	// Cause is the original failure, kept for classification only.
	Cause error `json:"-"`
}

// FailedSlot builds the placeholder recorded for a failed attempt.
func FailedSlot(index int, cause error) SummarySlot {
	slot := SummarySlot{
		Index:  index,
		Text:   fmt.Sprintf("Error: could not generate summary %d", index+1),
		Failed: true,
	}
	if cause != nil {
		slot.Error = cause.Error()
		slot.Cause = cause
	}
	return slot
}

// ProviderSummarySet holds the K generation attempts for one provider.
// It is created once during generation and never mutated afterwards.
type ProviderSummarySet struct {
	Provider      string        `json:"provider"`
	Family        string        `json:"family"`
	Slots         []SummarySlot `json:"slots"`
	SuccessCount  int           `json:"success_count"`
	AverageLength float64       `json:"avg_length"`
	Elapsed       time.Duration `json:"execution_time"`
}

// Successful returns the texts of the successful slots in slot order.
func (s ProviderSummarySet) Successful() []string {
	out := make([]string, 0, s.SuccessCount)
	for _, slot := range s.Slots {
		if !slot.Failed {
			out = append(out, slot.Text)
		}
	}
	return out
}

// FirstSuccessful returns the first successful summary, if any.
func (s ProviderSummarySet) FirstSuccessful() (string, bool) {
	for _, slot := range s.Slots {
		if !slot.Failed {
			return slot.Text, true
		}
	}
	return "", false
}

// EvaluationDetail is the parsed rubric record for one summary.
type EvaluationDetail struct {
	Precision    int    `json:"precision"`
	Completeness int    `json:"completeness"`
	Clarity      int    `json:"clarity"`
	Comment      string `json:"comment"`
}

// Total returns the sum of the three axis scores.
func (d EvaluationDetail) Total() int { return d.Precision + d.Completeness + d.Clarity }

// NeutralDetail returns the default record used when a summary could not
// be scored.
func NeutralDetail(comment string) EvaluationDetail {
	return EvaluationDetail{Precision: 3, Completeness: 3, Clarity: 3, Comment: comment}
}

// EvaluationStatus records how an EvaluationScore came to be.
type EvaluationStatus string

// Evaluation outcomes for a provider.
const (
	// StatusEvaluated means the evaluator replied and the reply was parsed.
	StatusEvaluated EvaluationStatus = "evaluated"
	// StatusEvaluationFailed means the evaluator could not be reached and
	// neutral defaults were substituted for every summary.
	StatusEvaluationFailed EvaluationStatus = "evaluation_failed"
	// StatusNoSummaries means every generation attempt failed, so the
	// evaluator was never called.
	StatusNoSummaries EvaluationStatus = "no_summaries"
	// StatusPipelineError means the provider pipeline failed unexpectedly.
	StatusPipelineError EvaluationStatus = "pipeline_error"
)

// EvaluationScore is the aggregated evaluation of one provider.
type EvaluationScore struct {
	Provider    string             `json:"provider"`
	Status      EvaluationStatus   `json:"status"`
	Totals      []int              `json:"total_scores"`
	Average     float64            `json:"average_score"`
	Best        int                `json:"best_score"`
	Worst       int                `json:"worst_score"`
	Consistency float64            `json:"consistency_score"`
	Summaries   []string           `json:"individual_summaries,omitempty"`
	Details     []EvaluationDetail `json:"evaluation_details"`
}

// Eligible reports whether the score may take part in winner selection.
func (s EvaluationScore) Eligible() bool { return s.Status == StatusEvaluated }

// Usage reports the LLM calls and estimated tokens consumed by a
// comparison.
type Usage struct {
	Calls  int64 `json:"calls"`
	Tokens int64 `json:"tokens"`
}

// ComparisonResult is the full report returned for one comparison.
type ComparisonResult struct {
	// ID uniquely identifies this comparison (a UUID).
	ID string `json:"id"`

	SourceText            string               `json:"original_text"`
	Results               []ProviderSummarySet `json:"results"`
	Evaluations           []EvaluationScore    `json:"evaluations"`
	Winner                string               `json:"winner"`
	BestSummary           string               `json:"best_summary"`
	Elapsed               time.Duration        `json:"total_execution_time"`
	ProvidersTested       int                  `json:"models_tested"`
	SuccessfulEvaluations int                  `json:"successful_evaluations"`

	// Narrative is a human-readable account of the per-provider scores.
	Narrative string `json:"narrative"`

	// Usage is omitted when no call accounting was configured.
	Usage *Usage `json:"usage,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
