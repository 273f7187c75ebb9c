// Package units provides the stages of the summary comparison pipeline:
// the summarizer that fans generation attempts out to one provider, the
// evaluator that scores a provider's summaries with a rubric prompt, and
// the parser that turns the evaluator's reply into structured records.
package units

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Common errors returned by pipeline units.
var (
	// ErrUnitNameEmpty is returned when attempting to create a unit with an empty name.
	ErrUnitNameEmpty = errors.New("unit name cannot be empty")

	// ErrLLMClientNil is returned when a unit that talks to a model has no client.
	ErrLLMClientNil = errors.New("LLM client cannot be nil")

	// ErrResolverNil is returned when the summarizer has no client resolver.
	ErrResolverNil = errors.New("client resolver cannot be nil")

	// ErrConfigValidation is returned when unit configuration fails validation.
	ErrConfigValidation = errors.New("configuration validation failed")

	// ErrTemplateExecution is returned when a prompt template cannot be rendered.
	ErrTemplateExecution = errors.New("template execution failed")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
