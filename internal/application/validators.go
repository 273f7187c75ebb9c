package application

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-sumbench/internal/domain"
	"github.com/ahrav/go-sumbench/internal/ports"
)

// logLevels lists the zap levels accepted by the "loglevel" tag.
var logLevels = []string{"debug", "info", "warn", "error"}

// structValidator returns the shared validator with the custom tags used
// by AppConfig registered.
var structValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New()
	if err := RegisterCustomValidators(v); err != nil {
		// Registration only fails on an empty tag or nil func.
		panic(err)
	}
	return v
})

// RegisterCustomValidators registers the application's custom validation
// tags on v.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("loglevel", validateLogLevel); err != nil {
		return fmt.Errorf("failed to register loglevel validator: %w", err)
	}
	return nil
}

// validateLogLevel accepts the zap level names, case-insensitively.
func validateLogLevel(fl validator.FieldLevel) bool {
	level := strings.ToLower(fl.Field().String())
	for _, l := range logLevels {
		if level == l {
			return true
		}
	}
	return false
}

// Suggester proposes the closest known model id for a misspelled one.
// llm.Registry implements it.
type Suggester interface {
	Suggest(model string) (string, bool)
}

// DedupeProviders removes repeated model ids, keeping the first
// occurrence of each.
func DedupeProviders(providers []string) []string {
	seen := make(map[string]struct{}, len(providers))
	out := make([]string, 0, len(providers))
	for _, p := range providers {
		p = strings.TrimSpace(p)
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// ValidateRequest checks a comparison request before any generation
// starts. Providers must already be deduplicated. Every violation is
// collected into a single *domain.ValidationError; nil means valid.
func ValidateRequest(req domain.ComparisonRequest, catalog ports.ModelCatalog) error {
	verr := domain.NewValidationError("ComparisonRequest")

	if n := len(req.Providers); n < domain.MinProviders || n > domain.MaxProviders {
		verr.AddErrorf("between %d and %d distinct providers are required, got %d",
			domain.MinProviders, domain.MaxProviders, n)
	}
	for _, p := range req.Providers {
		if err := checkModel(catalog, p); err != "" {
			verr.AddError(err)
		}
	}

	if req.MaxWords < domain.MinMaxWords || req.MaxWords > domain.MaxMaxWords {
		verr.AddErrorf("max_words must be between %d and %d, got %d",
			domain.MinMaxWords, domain.MaxMaxWords, req.MaxWords)
	}

	if n := utf8.RuneCountInString(req.Text); n < domain.MinSourceLength || n > domain.MaxSourceLength {
		verr.AddErrorf("text must be between %d and %d characters, got %d",
			domain.MinSourceLength, domain.MaxSourceLength, n)
	}

	addConfigErrors(verr, req.Config)

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// ValidateSingleSummary checks a single-summary test request.
func ValidateSingleSummary(req SingleSummaryRequest, catalog ports.ModelCatalog) error {
	verr := domain.NewValidationError("SingleSummaryRequest")

	if strings.TrimSpace(req.Text) == "" {
		verr.AddError("text is required")
	}
	if err := checkModel(catalog, req.Model); err != "" {
		verr.AddError(err)
	}
	if req.MaxWords < domain.MinMaxWords || req.MaxWords > domain.MaxMaxWords {
		verr.AddErrorf("max_words must be between %d and %d, got %d",
			domain.MinMaxWords, domain.MaxMaxWords, req.MaxWords)
	}
	if req.Temperature < 0 || req.Temperature > 2 {
		verr.AddErrorf("temperature must be between 0 and 2, got %g", req.Temperature)
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// checkModel returns a message for an unknown model id, or "".
func checkModel(catalog ports.ModelCatalog, model string) string {
	if model == "" {
		return "model id cannot be empty"
	}
	if _, ok := catalog.Family(model); ok {
		return ""
	}
	if s, ok := catalog.(Suggester); ok {
		if suggestion, found := s.Suggest(model); found {
			return fmt.Sprintf("unknown model %q (did you mean %q?)", model, suggestion)
		}
	}
	return fmt.Sprintf("unknown model %q", model)
}

// addConfigErrors appends one message per invalid GenerationConfig field.
func addConfigErrors(verr *domain.ValidationError, cfg domain.GenerationConfig) {
	err := structValidator().Struct(cfg)
	if err == nil {
		return
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.AddErrorf("config: %v", err)
		return
	}
	for _, fe := range fieldErrs {
		verr.AddErrorf("config.%s must satisfy %s=%s, got %v", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
	}
}
