package units

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/ahrav/go-sumbench/internal/domain"
	"github.com/ahrav/go-sumbench/internal/ports"
)

// DefaultSummaryPrompt is the generation prompt used when none is configured.
const DefaultSummaryPrompt = "Summarize the following text in exactly {{.MaxWords}} words. " +
	"Keep the main ideas and the most important context:\n\n{{.Text}}"

// SummarizerConfig defines the configuration parameters for the SummarizerUnit.
type SummarizerConfig struct {
	// SamplesPerProvider is K, the number of generation attempts per provider.
	SamplesPerProvider int `yaml:"samples_per_provider" json:"samples_per_provider" mapstructure:"samples_per_provider" validate:"required,min=1,max=10"`

	// MaxConcurrency limits simultaneous attempts for one provider.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency" mapstructure:"max_concurrency" validate:"required,min=1,max=20"`

	// PromptTemplate is a text/template receiving .Text and .MaxWords.
	PromptTemplate string `yaml:"prompt_template" json:"prompt_template" mapstructure:"prompt_template" validate:"required,min=10"`
}

// DefaultSummarizerConfig returns a SummarizerConfig with K = 3 attempts
// issued concurrently.
func DefaultSummarizerConfig() SummarizerConfig {
	return SummarizerConfig{
		SamplesPerProvider: domain.DefaultSamplesPerProvider,
		MaxConcurrency:     domain.DefaultSamplesPerProvider,
		PromptTemplate:     DefaultSummaryPrompt,
	}
}

type summaryPromptData struct {
	Text     string
	MaxWords int
}

// SummarizerUnit issues K independent generation attempts against one
// provider and collects them into a ProviderSummarySet.
// Failed attempts become failed slots; Generate itself never fails.
// The unit is safe for concurrent use.
type SummarizerUnit struct {
	name     string
	config   SummarizerConfig
	resolver ports.ClientResolver
	catalog  ports.ModelCatalog
	prompt   *template.Template
	logger   *zap.Logger
}

// NewSummarizerUnit creates a SummarizerUnit. The catalog is optional and
// only used to stamp the provider family on results.
func NewSummarizerUnit(
	name string,
	resolver ports.ClientResolver,
	catalog ports.ModelCatalog,
	config SummarizerConfig,
	logger *zap.Logger,
) (*SummarizerUnit, error) {
	if name == "" {
		return nil, ErrUnitNameEmpty
	}
	if resolver == nil {
		return nil, ErrResolverNil
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}

	prompt, err := template.New(name).Funcs(GetTemplateFuncMap()).Parse(config.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid prompt template: %w", err)
	}

	return &SummarizerUnit{
		name:     name,
		config:   config,
		resolver: resolver,
		catalog:  catalog,
		prompt:   prompt,
		logger:   nopIfNil(logger).With(zap.String("unit", name)),
	}, nil
}

// Name returns the unit's identifier.
func (u *SummarizerUnit) Name() string { return u.name }

// Config returns a copy of the unit's configuration.
func (u *SummarizerUnit) Config() SummarizerConfig { return u.config }

// Validate checks that the unit is ready to generate.
func (u *SummarizerUnit) Validate() error {
	if u.resolver == nil {
		return ErrResolverNil
	}
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}
	return nil
}

// WithResolver returns a copy of the unit that resolves clients through r.
// It is used to scope per-comparison accounting such as call budgets.
func (u *SummarizerUnit) WithResolver(r ports.ClientResolver) *SummarizerUnit {
	clone := *u
	clone.resolver = r
	return &clone
}

// Prompt renders the generation prompt for text and maxWords.
func (u *SummarizerUnit) Prompt(text string, maxWords int) (string, error) {
	var buf bytes.Buffer
	if err := u.prompt.Execute(&buf, summaryPromptData{Text: text, MaxWords: maxWords}); err != nil {
		return "", fmt.Errorf("%w: %w", ErrTemplateExecution, err)
	}
	return buf.String(), nil
}

// Generate runs exactly SamplesPerProvider attempts for provider and
// returns their outcomes in issuance order. It always returns a set; a
// provider whose client cannot be resolved gets K failed slots.
func (u *SummarizerUnit) Generate(
	ctx context.Context,
	text, provider string,
	maxWords int,
	cfg domain.GenerationConfig,
) domain.ProviderSummarySet {
	start := time.Now()
	k := u.config.SamplesPerProvider
	slots := make([]domain.SummarySlot, k)

	set := domain.ProviderSummarySet{Provider: provider}
	if u.catalog != nil {
		set.Family, _ = u.catalog.Family(provider)
	}

	client, err := u.resolver.ClientFor(provider)
	if err == nil {
		var prompt string
		prompt, err = u.Prompt(text, maxWords)
		if err == nil {
			u.runAttempts(ctx, client, provider, prompt, cfg.ToOptions(), slots)
		}
	}
	if err != nil {
		u.logger.Warn("provider unavailable for generation",
			zap.String("provider", provider),
			zap.Error(err))
		for i := range slots {
			slots[i] = domain.FailedSlot(i, domain.NewGenerationError(provider, i, err))
		}
	}

	set.Slots = slots
	set.SuccessCount, set.AverageLength = summarizeSlots(slots)
	set.Elapsed = time.Since(start)

	u.logger.Debug("generation finished",
		zap.String("provider", provider),
		zap.Int("attempts", k),
		zap.Int("successful", set.SuccessCount),
		zap.Duration("elapsed", set.Elapsed))
	return set
}

func (u *SummarizerUnit) runAttempts(
	ctx context.Context,
	client ports.LLMClient,
	provider, prompt string,
	options map[string]any,
	slots []domain.SummarySlot,
) {
	// Attempts never return an error to the group, so one failure cannot
	// cancel its siblings.
	var g errgroup.Group
	g.SetLimit(u.config.MaxConcurrency)

	for i := range slots {
		g.Go(func() error {
			text, err := completeSafely(ctx, client, prompt, options)
			if err == nil && strings.TrimSpace(text) == "" {
				err = ports.ErrInvalidResponse
			}
			if err != nil {
				u.logger.Debug("generation attempt failed",
					zap.String("provider", provider),
					zap.Int("attempt", i),
					zap.Error(err))
				slots[i] = domain.FailedSlot(i, domain.NewGenerationError(provider, i, err))
				return nil
			}
			slots[i] = domain.SummarySlot{Index: i, Text: strings.TrimSpace(text)}
			return nil
		})
	}
	_ = g.Wait()
}

// SummarizeOnce produces a single summary at the given temperature. It is
// the quick connectivity check for one model, so errors are returned
// instead of being folded into a slot.
func (u *SummarizerUnit) SummarizeOnce(
	ctx context.Context,
	text, provider string,
	maxWords int,
	temperature float64,
) (string, error) {
	client, err := u.resolver.ClientFor(provider)
	if err != nil {
		return "", err
	}
	prompt, err := u.Prompt(text, maxWords)
	if err != nil {
		return "", err
	}

	cfg := domain.DefaultGenerationConfig()
	cfg.Temperature = temperature
	cfg.MaxTokens = 2 * maxWords

	out, err := completeSafely(ctx, client, prompt, cfg.ToOptions())
	if err != nil {
		return "", domain.NewGenerationError(provider, 0, err)
	}
	return strings.TrimSpace(out), nil
}

// completeSafely calls the client and converts a panic into an error.
func completeSafely(ctx context.Context, client ports.LLMClient, prompt string, options map[string]any) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("panic in %s client: %v", client.GetModel(), r)
		}
	}()
	return client.Complete(ctx, prompt, options)
}

// summarizeSlots returns the success count and the mean word count of the
// successful slots.
func summarizeSlots(slots []domain.SummarySlot) (int, float64) {
	var success, words int
	for _, slot := range slots {
		if slot.Failed {
			continue
		}
		success++
		words += len(strings.Fields(norm.NFC.String(slot.Text)))
	}
	if success == 0 {
		return 0, 0
	}
	return success, float64(words) / float64(success)
}

var _ ports.Unit = (*SummarizerUnit)(nil)
