package domain

import "math"

// Score bounds for a single rubric axis.
const (
	MinAxisScore = 1
	MaxAxisScore = 5
)

// ClampAxis forces an axis score into [MinAxisScore, MaxAxisScore].
func ClampAxis(v int) int {
	if v < MinAxisScore {
		return MinAxisScore
	}
	if v > MaxAxisScore {
		return MaxAxisScore
	}
	return v
}

// Aggregate folds the parsed evaluation details of one provider into an
// EvaluationScore with status StatusEvaluated. Details are expected to be
// aligned positionally with summaries. An empty summary list yields the
// degenerate StatusNoSummaries score.
func Aggregate(provider string, summaries []string, details []EvaluationDetail) EvaluationScore {
	return aggregate(provider, StatusEvaluated, summaries, details)
}

// AggregateWithStatus behaves like Aggregate but stamps the given status.
// It is used for evaluator fallbacks where the details are neutral defaults.
func AggregateWithStatus(provider string, status EvaluationStatus, summaries []string, details []EvaluationDetail) EvaluationScore {
	return aggregate(provider, status, summaries, details)
}

func aggregate(provider string, status EvaluationStatus, summaries []string, details []EvaluationDetail) EvaluationScore {
	if len(summaries) == 0 || len(details) == 0 {
		return DegenerateScore(provider, StatusNoSummaries)
	}

	totals := make([]int, len(details))
	best, worst, sum := math.MinInt, math.MaxInt, 0
	for i, d := range details {
		t := d.Total()
		totals[i] = t
		sum += t
		best = max(best, t)
		worst = min(worst, t)
	}

	return EvaluationScore{
		Provider:    provider,
		Status:      status,
		Totals:      totals,
		Average:     float64(sum) / float64(len(totals)),
		Best:        best,
		Worst:       worst,
		Consistency: Consistency(totals),
		Summaries:   append([]string(nil), summaries...),
		Details:     append([]EvaluationDetail(nil), details...),
	}
}

// Consistency maps the population standard deviation of totals onto
// [0, 100], where 100 means every total is identical. Fewer than two
// totals are perfectly consistent by definition.
func Consistency(totals []int) float64 {
	if len(totals) < 2 {
		return 100
	}

	var mean float64
	for _, t := range totals {
		mean += float64(t)
	}
	mean /= float64(len(totals))

	var variance float64
	for _, t := range totals {
		d := float64(t) - mean
		variance += d * d
	}
	variance /= float64(len(totals))

	return math.Max(0, 100-2*math.Sqrt(variance))
}

// DegenerateScore returns the all-zero score recorded for a provider that
// had nothing to evaluate or whose pipeline failed.
func DegenerateScore(provider string, status EvaluationStatus) EvaluationScore {
	return EvaluationScore{
		Provider: provider,
		Status:   status,
		Totals:   []int{},
		Details:  []EvaluationDetail{},
	}
}
