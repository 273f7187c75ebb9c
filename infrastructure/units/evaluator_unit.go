package units

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/ahrav/go-sumbench/internal/domain"
	"github.com/ahrav/go-sumbench/internal/ports"
)

// DefaultEvaluatorModel is the model used for rubric scoring when none is configured.
const DefaultEvaluatorModel = "gpt-3.5-turbo"

// DefaultEvaluationPrompt asks the evaluator to score every summary of one
// provider on the three rubric axes in a fixed reply layout.
const DefaultEvaluationPrompt = `# SUMMARY EVALUATION

## ORIGINAL TEXT:
{{.Text}}

## SUMMARIES TO EVALUATE:
{{range $i, $s := .Summaries}}
SUMMARY {{add $i 1}}:
{{trim $s}}
{{end}}
## INSTRUCTIONS

Evaluate each summary on these three areas:

### 1. PRECISION (accuracy: is it correct?)
- Are facts, figures and names reproduced exactly?
- Is anything invented or misrepresented?
Score 1-5 (5 = fully accurate, 1 = many errors)

### 2. COMPLETENESS (coverage: does it keep what matters?)
- Are the main ideas present?
- Is any essential information missing?
Score 1-5 (5 = covers everything important, 1 = misses key points)

### 3. CLARITY (is it easy to understand?)
- Is it well written and coherent?
- Is it concise without losing meaning?
Score 1-5 (5 = very clear, 1 = confusing)

## REPLY FORMAT

Reply for every summary using EXACTLY this layout and nothing else:
{{range $i, $s := .Summaries}}
SUMMARY {{add $i 1}}:
PRECISION: [1-5]
COMPLETENESS: [1-5]
CLARITY: [1-5]
COMMENT: [one line naming the main strength or problem]
{{end}}`

// EvaluatorConfig defines the configuration parameters for the EvaluatorUnit.
type EvaluatorConfig struct {
	// PromptTemplate is a text/template receiving .Text and .Summaries.
	PromptTemplate string `yaml:"prompt_template" json:"prompt_template" mapstructure:"prompt_template" validate:"required,min=10"`

	// Generation holds the sampling parameters for evaluation calls.
	Generation domain.GenerationConfig `yaml:"generation" json:"generation" mapstructure:"generation"`
}

// DefaultEvaluatorConfig returns the low-temperature rubric configuration.
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		PromptTemplate: DefaultEvaluationPrompt,
		Generation:     domain.EvaluatorGenerationConfig(),
	}
}

type evaluationPromptData struct {
	Text      string
	Summaries []string
}

// EvaluatorUnit scores the summaries of one provider with a single batched
// rubric prompt sent to a fixed evaluator model.
type EvaluatorUnit struct {
	name   string
	client ports.LLMClient
	config EvaluatorConfig
	parser *RubricParser
	prompt *template.Template
	logger *zap.Logger
}

// NewEvaluatorUnit creates an EvaluatorUnit that calls client for every
// evaluation.
func NewEvaluatorUnit(name string, client ports.LLMClient, config EvaluatorConfig, logger *zap.Logger) (*EvaluatorUnit, error) {
	if name == "" {
		return nil, ErrUnitNameEmpty
	}
	if client == nil {
		return nil, ErrLLMClientNil
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}

	prompt, err := template.New(name).Funcs(GetTemplateFuncMap()).Parse(config.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid prompt template: %w", err)
	}

	return &EvaluatorUnit{
		name:   name,
		client: client,
		config: config,
		parser: NewRubricParser(),
		prompt: prompt,
		logger: nopIfNil(logger).With(zap.String("unit", name)),
	}, nil
}

// Name returns the unit's identifier.
func (u *EvaluatorUnit) Name() string { return u.name }

// Model returns the evaluator model id.
func (u *EvaluatorUnit) Model() string { return u.client.GetModel() }

// Config returns a copy of the unit's configuration.
func (u *EvaluatorUnit) Config() EvaluatorConfig { return u.config }

// Validate checks that the unit is ready to evaluate.
func (u *EvaluatorUnit) Validate() error {
	if u.client == nil {
		return ErrLLMClientNil
	}
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}
	return nil
}

// WithClient returns a copy of the unit that evaluates through client.
func (u *EvaluatorUnit) WithClient(client ports.LLMClient) *EvaluatorUnit {
	clone := *u
	clone.client = client
	return &clone
}

// Prompt renders the evaluation prompt for text and summaries.
func (u *EvaluatorUnit) Prompt(text string, summaries []string) (string, error) {
	var buf bytes.Buffer
	if err := u.prompt.Execute(&buf, evaluationPromptData{Text: text, Summaries: summaries}); err != nil {
		return "", fmt.Errorf("%w: %w", ErrTemplateExecution, err)
	}
	return buf.String(), nil
}

// RequestEvaluation sends one rubric prompt covering all summaries and
// returns the evaluator's raw reply. An empty summary list fails with
// domain.ErrNoValidSummaries without calling the evaluator. Call failures
// are returned as *domain.GenerationError.
func (u *EvaluatorUnit) RequestEvaluation(ctx context.Context, text string, summaries []string) (string, error) {
	return u.requestEvaluation(ctx, u.client.GetModel(), text, summaries)
}

func (u *EvaluatorUnit) requestEvaluation(ctx context.Context, provider, text string, summaries []string) (string, error) {
	if len(summaries) == 0 {
		return "", domain.ErrNoValidSummaries
	}

	prompt, err := u.Prompt(text, summaries)
	if err != nil {
		return "", err
	}

	raw, err := completeSafely(ctx, u.client, prompt, u.config.Generation.ToOptions())
	if err == nil && strings.TrimSpace(raw) == "" {
		err = ports.ErrInvalidResponse
	}
	if err != nil {
		return "", domain.NewGenerationError(provider, -1, err)
	}
	return raw, nil
}

// Evaluate scores every successful summary in set and aggregates the
// result. It never fails: a provider without summaries gets the
// no_summaries score, and an unreachable evaluator yields neutral records
// under the evaluation_failed status.
func (u *EvaluatorUnit) Evaluate(ctx context.Context, text string, set domain.ProviderSummarySet) domain.EvaluationScore {
	summaries := set.Successful()
	if len(summaries) == 0 {
		return domain.DegenerateScore(set.Provider, domain.StatusNoSummaries)
	}

	raw, err := u.requestEvaluation(ctx, set.Provider, text, summaries)
	if err != nil {
		u.logger.Warn("evaluation failed, using neutral scores",
			zap.String("provider", set.Provider),
			zap.String("evaluator", u.client.GetModel()),
			zap.Error(err))

		details := make([]domain.EvaluationDetail, len(summaries))
		for i := range details {
			details[i] = domain.NeutralDetail(domain.NotEvaluatedComment)
		}
		return domain.AggregateWithStatus(set.Provider, domain.StatusEvaluationFailed, summaries, details)
	}

	details := u.parser.Parse(raw, len(summaries))
	score := domain.Aggregate(set.Provider, summaries, details)

	u.logger.Debug("provider evaluated",
		zap.String("provider", set.Provider),
		zap.Int("summaries", len(summaries)),
		zap.Float64("average", score.Average))
	return score
}

var _ ports.Unit = (*EvaluatorUnit)(nil)
