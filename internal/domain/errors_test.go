package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerationError(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		attempt  int
		err      error
		wantMsg  string
	}{
		{
			name:     "generation attempt",
			provider: "gpt-4",
			attempt:  1,
			err:      errors.New("rate limited"),
			wantMsg:  "generation attempt 2 for gpt-4 failed: rate limited",
		},
		{
			name:     "evaluation call",
			provider: "claude-3-haiku-20240307",
			attempt:  -1,
			err:      errors.New("timeout"),
			wantMsg:  "evaluation for claude-3-haiku-20240307 failed: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewGenerationError(tt.provider, tt.attempt, tt.err)

			assert.Equal(t, tt.wantMsg, err.Error(), "Error message mismatch")
			assert.Equal(t, tt.provider, err.Provider, "Provider mismatch")
			assert.True(t, errors.Is(err, tt.err), "Should unwrap to underlying error")
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := NewValidationError("ComparisonRequest")
		err.AddError("at least 2 providers are required")

		assert.Equal(t, "validation error for ComparisonRequest: at least 2 providers are required", err.Error())
		assert.True(t, err.HasErrors(), "Should have errors")
		assert.Len(t, err.Errors, 1, "Should have one error")
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := NewValidationError("ComparisonRequest")
		err.AddError("text too short")
		err.AddErrorf("max_words must be between %d and %d", MinMaxWords, MaxMaxWords)

		assert.Contains(t, err.Error(), "validation errors for ComparisonRequest")
		assert.Equal(t, "max_words must be between 20 and 500", err.Errors[1])
	})

	t.Run("no errors", func(t *testing.T) {
		err := NewValidationError("Config")

		assert.False(t, err.HasErrors(), "Should not have errors")
		assert.Empty(t, err.Errors, "Errors slice should be empty")
	})
}

func TestCommonDomainErrors(t *testing.T) {
	tests := []struct {
		err     error
		message string
	}{
		{ErrNoValidSummaries, "no valid summaries"},
		{ErrAllProvidersUnreachable, "all providers unreachable"},
		{ErrTie, "multiple providers tied with highest average"},
		{ErrInvalidConfiguration, "invalid configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error(), "Error message mismatch")
		})
	}
}

func TestBudgetExceededError(t *testing.T) {
	err := NewBudgetExceededError("calls", 10, 11)
	wrapped := fmt.Errorf("complete: %w", err)

	var target *BudgetExceededError
	assert.True(t, errors.As(wrapped, &target), "Should be extractable with errors.As")
	assert.Equal(t, "calls", target.LimitType)
	assert.Equal(t, "budget exceeded: calls limit 10, would use 11", err.Error())
}
