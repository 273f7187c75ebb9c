package llm

import (
	"math"
	"strings"
	"unicode/utf8"
)

// WordBasedTokenEstimator estimates tokens from the whitespace-separated
// word count.
type WordBasedTokenEstimator struct{ TokensPerWord float64 }

// NewWordBasedTokenEstimator creates a word-based estimator. A non-positive
// ratio falls back to 0.75 tokens per word.
func NewWordBasedTokenEstimator(tokensPerWord float64) *WordBasedTokenEstimator {
	if tokensPerWord <= 0 {
		tokensPerWord = 0.75
	}
	return &WordBasedTokenEstimator{TokensPerWord: tokensPerWord}
}

// EstimateTokens returns ceil(words * ratio).
func (e *WordBasedTokenEstimator) EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(math.Ceil(float64(words) * e.TokensPerWord))
}

// CharacterBasedTokenEstimator estimates tokens from the rune count.
type CharacterBasedTokenEstimator struct{ charsPerToken float64 }

// NewCharacterBasedTokenEstimator creates a character-based estimator. A
// non-positive ratio falls back to 4 characters per token.
func NewCharacterBasedTokenEstimator(charactersPerToken float64) *CharacterBasedTokenEstimator {
	if charactersPerToken <= 0 {
		charactersPerToken = 4.0
	}
	return &CharacterBasedTokenEstimator{charsPerToken: charactersPerToken}
}

// EstimateTokens returns ceil(runes / ratio). Non-empty text is at least
// one token.
func (e *CharacterBasedTokenEstimator) EstimateTokens(text string) int {
	runes := utf8.RuneCountInString(text)
	if runes == 0 {
		return 0
	}
	return int(math.Ceil(float64(runes) / e.charsPerToken))
}

// FamilyTokenEstimator routes estimation to a per-family estimator.
type FamilyTokenEstimator struct {
	estimators map[string]TokenEstimator
	fallback   TokenEstimator
}

// NewFamilyTokenEstimator returns an estimator preloaded with the ratios
// each family's tokenizer roughly follows.
func NewFamilyTokenEstimator() *FamilyTokenEstimator {
	return &FamilyTokenEstimator{
		estimators: map[string]TokenEstimator{
			FamilyOpenAI:    NewCharacterBasedTokenEstimator(4.0),
			FamilyAnthropic: NewCharacterBasedTokenEstimator(3.5),
			FamilyGoogle:    NewWordBasedTokenEstimator(1.3),
		},
		fallback: NewCharacterBasedTokenEstimator(4.0),
	}
}

// Set overrides the estimator for one family. Not safe for use once
// clients have been handed out.
func (e *FamilyTokenEstimator) Set(family string, estimator TokenEstimator) {
	e.estimators[family] = estimator
}

// For returns the estimator for a family, or the fallback.
func (e *FamilyTokenEstimator) For(family string) TokenEstimator {
	if est, ok := e.estimators[family]; ok {
		return est
	}
	return e.fallback
}

// EstimateTokens uses the fallback estimator.
func (e *FamilyTokenEstimator) EstimateTokens(text string) int {
	return e.fallback.EstimateTokens(text)
}
