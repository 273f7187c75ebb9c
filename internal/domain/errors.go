package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur during a comparison.
var (
	// ErrNoValidSummaries indicates that a provider produced no successful
	// summary, so there is nothing to evaluate.
	ErrNoValidSummaries = errors.New("no valid summaries")

	// ErrAllProvidersUnreachable indicates that no provider could be reached
	// for any attempt. It is the only failure that aborts a comparison after
	// validation succeeded.
	ErrAllProvidersUnreachable = errors.New("all providers unreachable")

	// ErrTie is returned by strict tie-breaking when several providers share
	// the highest average.
	ErrTie = errors.New("multiple providers tied with highest average")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// GenerationError represents a single failed generation or evaluation call.
// It never escapes the component that issued the call.
type GenerationError struct {
	// Provider is the model identifier the call was addressed to.
	Provider string

	// Attempt is the zero-based slot index, or -1 for an evaluation call.
	Attempt int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface for GenerationError.
func (e *GenerationError) Error() string {
	if e.Attempt < 0 {
		return fmt.Sprintf("evaluation for %s failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("generation attempt %d for %s failed: %v", e.Attempt+1, e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *GenerationError) Unwrap() error { return e.Err }

// NewGenerationError creates a new GenerationError.
func NewGenerationError(provider string, attempt int, err error) *GenerationError {
	return &GenerationError{Provider: provider, Attempt: attempt, Err: err}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// AddErrorf formats and adds a validation message.
func (e *ValidationError) AddErrorf(format string, args ...any) {
	e.AddError(fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}

// BudgetExceededError is returned when a call would exceed the configured
// per-comparison budget.
type BudgetExceededError struct {
	// LimitType is either "calls" or "tokens".
	LimitType string

	// Limit is the configured ceiling.
	Limit int64

	// Used is the consumption that would have resulted from the call.
	Used int64
}

// Error implements the error interface for BudgetExceededError.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: %s limit %d, would use %d", e.LimitType, e.Limit, e.Used)
}

// NewBudgetExceededError creates a new BudgetExceededError.
func NewBudgetExceededError(limitType string, limit, used int64) *BudgetExceededError {
	return &BudgetExceededError{LimitType: limitType, Limit: limit, Used: used}
}
