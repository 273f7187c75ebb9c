package domain

import (
	"fmt"
	"strings"
)

// issueThreshold is the axis average below which an axis is reported as a
// recurring issue.
const issueThreshold = 3.5

// Narrate renders a plain-text account of the evaluated providers: average
// total, strongest axis, recurring issues and the winner with its margin
// over the lowest other eligible provider.
func Narrate(scores []EvaluationScore, winner string) string {
	if len(scores) == 0 {
		return "no evaluations available"
	}

	var b strings.Builder
	for _, s := range scores {
		if !s.Eligible() {
			fmt.Fprintf(&b, "MODEL %s:\n- status: %s\n\n", strings.ToUpper(s.Provider), s.Status)
			continue
		}
		p, c, cl := axisAverages(s.Details)
		fmt.Fprintf(&b, "MODEL %s:\n", strings.ToUpper(s.Provider))
		fmt.Fprintf(&b, "- average: %.1f/15\n", s.Average)
		fmt.Fprintf(&b, "- strongest in: %s\n", strongestAxis(p, c, cl))
		fmt.Fprintf(&b, "- recurring issues: %s\n\n", recurringIssues(p, c, cl))
	}

	if winner == NoWinner {
		b.WriteString("no winner could be determined")
		return b.String()
	}

	var winnerAvg float64
	lowest, others := 0.0, 0
	for _, s := range scores {
		if !s.Eligible() {
			continue
		}
		if s.Provider == winner {
			winnerAvg = s.Average
			continue
		}
		if others == 0 || s.Average < lowest {
			lowest = s.Average
		}
		others++
	}
	diff := 0.0
	if others > 0 {
		diff = winnerAvg - lowest
	}
	fmt.Fprintf(&b, "WINNER: %s by %.1f points", winner, diff)
	return b.String()
}

func axisAverages(details []EvaluationDetail) (precision, completeness, clarity float64) {
	if len(details) == 0 {
		return 0, 0, 0
	}
	for _, d := range details {
		precision += float64(d.Precision)
		completeness += float64(d.Completeness)
		clarity += float64(d.Clarity)
	}
	n := float64(len(details))
	return precision / n, completeness / n, clarity / n
}

func strongestAxis(precision, completeness, clarity float64) string {
	switch {
	case precision >= completeness && precision >= clarity:
		return "precision"
	case completeness >= clarity:
		return "completeness"
	default:
		return "clarity"
	}
}

func recurringIssues(precision, completeness, clarity float64) string {
	var issues []string
	if precision < issueThreshold {
		issues = append(issues, "factual precision")
	}
	if completeness < issueThreshold {
		issues = append(issues, "incomplete coverage")
	}
	if clarity < issueThreshold {
		issues = append(issues, "clarity")
	}
	if len(issues) == 0 {
		return "none"
	}
	return strings.Join(issues, ", ")
}
