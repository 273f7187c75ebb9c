package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-sumbench/internal/domain"
)

// BuildReport assembles the comparison result. It performs no I/O; the
// caller attaches usage accounting.
func BuildReport(
	req domain.ComparisonRequest,
	sets []domain.ProviderSummarySet,
	scores []domain.EvaluationScore,
	winner, best string,
	elapsed time.Duration,
) domain.ComparisonResult {
	eligible := 0
	for _, s := range scores {
		if s.Eligible() {
			eligible++
		}
	}

	return domain.ComparisonResult{
		ID:                    uuid.NewString(),
		SourceText:            req.Text,
		Results:               sets,
		Evaluations:           scores,
		Winner:                winner,
		BestSummary:           best,
		Elapsed:               elapsed,
		ProvidersTested:       len(req.Providers),
		SuccessfulEvaluations: eligible,
		Narrative:             domain.Narrate(scores, winner),
		Timestamp:             time.Now().UTC(),
	}
}
