package domain

import "fmt"

// TieBreaker defines how SelectWinner resolves several eligible providers
// sharing the highest average.
type TieBreaker string

const (
	// TieFirst picks the tied provider that appears first in input order.
	TieFirst TieBreaker = "first"
	// TieError reports the tie as ErrTie.
	TieError TieBreaker = "error"
)

// SelectWinner returns the provider with the strictly greatest average
// among eligible scores, resolving ties by input order. It returns NoWinner
// when no score is eligible.
func SelectWinner(scores []EvaluationScore) string {
	// TieFirst never fails.
	winner, _ := SelectWinnerWith(scores, TieFirst)
	return winner
}

// SelectWinnerWith is SelectWinner with an explicit tie policy. Unknown
// policies behave like TieFirst.
func SelectWinnerWith(scores []EvaluationScore, tb TieBreaker) (string, error) {
	var (
		bestAvg float64
		ties    []int
	)
	for i, s := range scores {
		if !s.Eligible() {
			continue
		}
		switch {
		case len(ties) == 0 || s.Average > bestAvg:
			bestAvg = s.Average
			ties = []int{i}
		case s.Average == bestAvg:
			ties = append(ties, i)
		}
	}

	if len(ties) == 0 {
		return NoWinner, nil
	}
	if len(ties) == 1 {
		return scores[ties[0]].Provider, nil
	}

	switch tb {
	case TieError:
		return NoWinner, fmt.Errorf("%w: %d providers with average %.2f", ErrTie, len(ties), bestAvg)
	default:
		return scores[ties[0]].Provider, nil
	}
}

// SelectRepresentativeSummary returns the first successful summary of the
// winner. When the winner is NoWinner or has no successful summary, it
// falls back to the first successful summary of any provider in order, and
// finally to NoValidSummary.
func SelectRepresentativeSummary(sets []ProviderSummarySet, winner string) string {
	if winner != NoWinner {
		for _, set := range sets {
			if set.Provider != winner {
				continue
			}
			if text, ok := set.FirstSuccessful(); ok {
				return text
			}
			break
		}
	}

	for _, set := range sets {
		if text, ok := set.FirstSuccessful(); ok {
			return text
		}
	}
	return NoValidSummary
}
