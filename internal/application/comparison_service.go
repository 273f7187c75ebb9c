package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-sumbench/infrastructure/llm"
	"github.com/ahrav/go-sumbench/infrastructure/middleware"
	"github.com/ahrav/go-sumbench/infrastructure/units"
	"github.com/ahrav/go-sumbench/internal/domain"
	"github.com/ahrav/go-sumbench/internal/ports"
)

// Errors returned while constructing a ComparisonService.
var (
	ErrCatalogNil  = errors.New("model catalog cannot be nil")
	ErrResolverNil = errors.New("client resolver cannot be nil")
)

// ServiceDeps carries the collaborators of a ComparisonService. Catalog
// and Resolver are required; everything else is optional.
type ServiceDeps struct {
	Catalog  ports.ModelCatalog
	Resolver ports.ClientResolver
	// Observer traces comparisons. Defaults to a no-op observer.
	Observer middleware.ComparisonObserver
	// BudgetObserver reports per-call budget usage.
	BudgetObserver middleware.BudgetObserver
	Logger         *zap.Logger
}

// SingleSummaryRequest asks one model for one summary.
type SingleSummaryRequest struct {
	Text        string  `json:"text" yaml:"text"`
	Model       string  `json:"model" yaml:"model"`
	MaxWords    int     `json:"max_words" yaml:"max_words"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// SingleSummaryResult is the outcome of SummarizeOnce.
type SingleSummaryResult struct {
	OriginalText string         `json:"original_text" yaml:"original_text"`
	Model        string         `json:"model" yaml:"model"`
	Summary      string         `json:"summary" yaml:"summary"`
	WordCount    int            `json:"word_count" yaml:"word_count"`
	ConfigUsed   map[string]any `json:"config_used" yaml:"config_used"`
}

// ModelsView lists the models a comparison may use.
type ModelsView struct {
	// AvailableModels holds model ids per family with credentials.
	AvailableModels    map[string][]string `json:"available_models" yaml:"available_models"`
	AvailableProviders []string            `json:"available_providers" yaml:"available_providers"`
	EvaluatorModel     string              `json:"evaluator_model" yaml:"evaluator_model"`
	SamplesPerProvider int                 `json:"samples_per_model" yaml:"samples_per_model"`
}

// SettingsView is the public view of the summarization configuration.
type SettingsView struct {
	SamplesPerProvider int    `json:"samples_per_model" yaml:"samples_per_model"`
	DefaultMaxWords    int    `json:"default_max_words" yaml:"default_max_words"`
	EvaluatorModel     string `json:"evaluator_model" yaml:"evaluator_model"`
	PromptTemplate     string `json:"prompt_template" yaml:"prompt_template"`
}

// credentialChecker is implemented by catalogs that know which families
// have API keys, such as llm.Registry.
type credentialChecker interface {
	HasCredentials(family string) bool
}

// ComparisonService runs the full comparison pipeline: validate, generate
// K summaries per provider, evaluate, aggregate, select a winner and build
// the report. It is safe for concurrent use; every comparison gets its own
// call budget.
type ComparisonService struct {
	catalog    ports.ModelCatalog
	resolver   ports.ClientResolver
	summarizer *units.SummarizerUnit
	evaluator  *units.EvaluatorUnit

	config         SummarizationConfig
	samples        int
	budget         middleware.Budget
	observer       middleware.ComparisonObserver
	budgetObserver middleware.BudgetObserver
	logger         *zap.Logger
}

// NewComparisonService builds the service and its pipeline units from cfg.
func NewComparisonService(cfg *AppConfig, deps ServiceDeps) (*ComparisonService, error) {
	if deps.Catalog == nil {
		return nil, ErrCatalogNil
	}
	if deps.Resolver == nil {
		return nil, ErrResolverNil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	observer := deps.Observer
	if observer == nil {
		observer = middleware.NoopComparisonObserver{}
	}

	summarizer, err := units.NewSummarizerUnit("summarizer", deps.Resolver, deps.Catalog, cfg.SummarizerConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("create summarizer: %w", err)
	}

	evaluatorModel := cfg.Summarization.EvaluatorModel
	evaluator, err := units.NewEvaluatorUnit("evaluator",
		newResolvingClient(deps.Resolver, evaluatorModel), units.DefaultEvaluatorConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("create evaluator: %w", err)
	}

	return &ComparisonService{
		catalog:        deps.Catalog,
		resolver:       deps.Resolver,
		summarizer:     summarizer,
		evaluator:      evaluator,
		config:         cfg.Summarization,
		samples:        cfg.Summarization.SamplesPerProvider,
		budget:         cfg.Budget,
		observer:       observer,
		budgetObserver: deps.BudgetObserver,
		logger:         logger.With(zap.String("component", "comparison_service")),
	}, nil
}

// NormalizeRequest removes duplicate providers and fills in the default
// word count and generation config.
func (s *ComparisonService) NormalizeRequest(req domain.ComparisonRequest) domain.ComparisonRequest {
	req.Providers = DedupeProviders(req.Providers)
	if req.MaxWords == 0 {
		req.MaxWords = s.config.DefaultMaxWords
	}
	if req.Config == (domain.GenerationConfig{}) {
		req.Config = domain.DefaultGenerationConfig()
	}
	return req
}

// Compare runs one comparison. Only an invalid request
// (*domain.ValidationError), a strict tie under the "error" tie policy, or
// every provider being unreachable (domain.ErrAllProvidersUnreachable)
// abort it; individual provider failures are folded into the report.
func (s *ComparisonService) Compare(ctx context.Context, req domain.ComparisonRequest) (result *domain.ComparisonResult, err error) {
	start := time.Now()
	req = s.NormalizeRequest(req)

	ctx, end := s.observer.StartComparison(ctx, req)
	defer func() { end(result, err) }()

	if err := ValidateRequest(req, s.catalog); err != nil {
		return nil, err
	}

	tracker := middleware.NewBudgetTracker(s.budget, s.budgetObserver)
	resolver := tracker.Resolver(s.resolver)
	summarizer := s.summarizer.WithResolver(resolver)
	evaluator := s.evaluator.WithClient(newResolvingClient(resolver, s.config.EvaluatorModel))
	for _, u := range []ports.Unit{summarizer, evaluator} {
		if err := u.Validate(); err != nil {
			return nil, fmt.Errorf("unit %s: %w", u.Name(), err)
		}
	}

	s.logger.Info("comparison started",
		zap.Strings("providers", req.Providers),
		zap.Int("max_words", req.MaxWords),
		zap.Int("samples_per_provider", s.samples))

	sets := make([]domain.ProviderSummarySet, len(req.Providers))
	scores := make([]domain.EvaluationScore, len(req.Providers))

	var g errgroup.Group
	g.SetLimit(s.config.MaxConcurrentProviders)
	for i, provider := range req.Providers {
		g.Go(func() error {
			sets[i], scores[i] = s.runProvider(ctx, summarizer, evaluator, req, provider)
			return nil
		})
	}
	_ = g.Wait()

	if cause := unreachableCause(sets); cause != nil {
		s.logger.Error("no provider could be reached", zap.Error(cause))
		return nil, fmt.Errorf("%w: %w", domain.ErrAllProvidersUnreachable, cause)
	}

	winner, err := domain.SelectWinnerWith(scores, domain.TieBreaker(s.config.TieBreaker))
	if err != nil {
		return nil, err
	}
	best := domain.SelectRepresentativeSummary(sets, winner)

	report := BuildReport(req, sets, scores, winner, best, time.Since(start))
	usage := tracker.Usage()
	report.Usage = &usage

	s.logger.Info("comparison finished",
		zap.String("id", report.ID),
		zap.String("winner", report.Winner),
		zap.Int("successful_evaluations", report.SuccessfulEvaluations),
		zap.Int64("llm_calls", usage.Calls),
		zap.Duration("elapsed", report.Elapsed))
	return &report, nil
}

// runProvider generates and evaluates one provider. A panic anywhere in
// the pipeline yields the pipeline_error score and never escapes.
func (s *ComparisonService) runProvider(
	ctx context.Context,
	summarizer *units.SummarizerUnit,
	evaluator *units.EvaluatorUnit,
	req domain.ComparisonRequest,
	provider string,
) (set domain.ProviderSummarySet, score domain.EvaluationScore) {
	ctx, end := s.observer.StartProvider(ctx, provider)
	defer func() {
		if r := recover(); r != nil {
			cause := fmt.Errorf("provider pipeline panic: %v", r)
			s.logger.Error("provider pipeline panicked",
				zap.String("provider", provider), zap.Error(cause))
			if set.Provider == "" {
				set = failedSet(provider, s.samples, cause)
			}
			score = domain.DegenerateScore(provider, domain.StatusPipelineError)
		}
		end(set, score)
	}()

	set = summarizer.Generate(ctx, req.Text, provider, req.MaxWords, req.Config)
	if failed := len(set.Slots) - set.SuccessCount; failed > 0 {
		s.logger.Warn("generation attempts failed",
			zap.String("provider", provider),
			zap.Int("failed", failed),
			zap.Int("succeeded", set.SuccessCount))
	}

	score = evaluator.Evaluate(ctx, req.Text, set)
	s.logger.Info("provider completed",
		zap.String("provider", provider),
		zap.Int("successful_summaries", set.SuccessCount),
		zap.String("status", string(score.Status)),
		zap.Float64("average", score.Average))
	return set, score
}

// failedSet is the set recorded when the pipeline died before generation
// produced one.
func failedSet(provider string, k int, cause error) domain.ProviderSummarySet {
	slots := make([]domain.SummarySlot, k)
	for i := range slots {
		slots[i] = domain.FailedSlot(i, domain.NewGenerationError(provider, i, cause))
	}
	return domain.ProviderSummarySet{Provider: provider, Slots: slots}
}

// unreachableCause returns the last failure when every slot of every set
// failed because its provider could not be reached, and nil otherwise.
func unreachableCause(sets []domain.ProviderSummarySet) error {
	var last error
	for _, set := range sets {
		for _, slot := range set.Slots {
			if !slot.Failed || !llm.IsInfrastructureFailure(slot.Cause) {
				return nil
			}
			last = slot.Cause
		}
	}
	return last
}

// SummarizeOnce asks one model for one summary. Unlike Compare, a
// generation failure is returned to the caller.
func (s *ComparisonService) SummarizeOnce(ctx context.Context, req SingleSummaryRequest) (*SingleSummaryResult, error) {
	if req.MaxWords == 0 {
		req.MaxWords = s.config.DefaultMaxWords
	}
	if err := ValidateSingleSummary(req, s.catalog); err != nil {
		return nil, err
	}

	summary, err := s.summarizer.SummarizeOnce(ctx, req.Text, req.Model, req.MaxWords, req.Temperature)
	if err != nil {
		s.logger.Warn("single summary failed", zap.String("model", req.Model), zap.Error(err))
		return nil, err
	}

	cfg := domain.DefaultGenerationConfig()
	cfg.Temperature = req.Temperature
	cfg.MaxTokens = 2 * req.MaxWords

	return &SingleSummaryResult{
		OriginalText: req.Text,
		Model:        req.Model,
		Summary:      summary,
		WordCount:    len(strings.Fields(summary)),
		ConfigUsed:   cfg.ToOptions(),
	}, nil
}

// Models lists the catalog restricted to families with credentials.
func (s *ComparisonService) Models() ModelsView {
	checker, _ := s.catalog.(credentialChecker)

	available := make(map[string][]string)
	providers := make([]string, 0, 3)
	for family, models := range s.catalog.Models() {
		if checker != nil && !checker.HasCredentials(family) {
			continue
		}
		available[family] = models
		providers = append(providers, family)
	}
	slices.Sort(providers)

	return ModelsView{
		AvailableModels:    available,
		AvailableProviders: providers,
		EvaluatorModel:     s.config.EvaluatorModel,
		SamplesPerProvider: s.samples,
	}
}

// Settings returns the summarization settings in effect.
func (s *ComparisonService) Settings() SettingsView {
	return SettingsView{
		SamplesPerProvider: s.samples,
		DefaultMaxWords:    s.config.DefaultMaxWords,
		EvaluatorModel:     s.config.EvaluatorModel,
		PromptTemplate:     s.summarizer.Config().PromptTemplate,
	}
}
