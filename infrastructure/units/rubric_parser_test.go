package units

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-sumbench/internal/domain"
)

func TestRubricParser_Parse(t *testing.T) {
	neutral := domain.NeutralDetail(domain.NotEvaluatedComment)

	tests := []struct {
		name     string
		raw      string
		expected int
		want     []domain.EvaluationDetail
	}{
		{
			name: "well formed reply",
			raw: `SUMMARY 1:
PRECISION: 5
COMPLETENESS: 4
CLARITY: 5
COMMENT: Accurate and well written.

SUMMARY 2:
PRECISION: 3
COMPLETENESS: 2
CLARITY: 4
COMMENT: Misses the second argument.`,
			expected: 2,
			want: []domain.EvaluationDetail{
				{Precision: 5, Completeness: 4, Clarity: 5, Comment: "Accurate and well written."},
				{Precision: 3, Completeness: 2, Clarity: 4, Comment: "Misses the second argument."},
			},
		},
		{
			name: "out of range scores are clamped",
			raw: `SUMMARY 1:
PRECISION: 9
COMPLETENESS: 0
CLARITY: -3
COMMENT: odd`,
			expected: 1,
			want:     []domain.EvaluationDetail{{Precision: 5, Completeness: 1, Clarity: 1, Comment: "odd"}},
		},
		{
			name: "short reply is padded",
			raw: `SUMMARY 1:
PRECISION: 4
COMPLETENESS: 4
CLARITY: 4
COMMENT: fine`,
			expected: 3,
			want: []domain.EvaluationDetail{
				{Precision: 4, Completeness: 4, Clarity: 4, Comment: "fine"},
				neutral,
				neutral,
			},
		},
		{
			name:     "extra blocks are truncated",
			raw:      strings.Repeat("SUMMARY 1:\nPRECISION: 2\nCOMPLETENESS: 2\nCLARITY: 2\nCOMMENT: x\n", 4),
			expected: 2,
			want: []domain.EvaluationDetail{
				{Precision: 2, Completeness: 2, Clarity: 2, Comment: "x"},
				{Precision: 2, Completeness: 2, Clarity: 2, Comment: "x"},
			},
		},
		{
			name: "block missing an integer is discarded",
			raw: `SUMMARY 1:
PRECISION: 5
COMPLETENESS: good
CLARITY: 5
COMMENT: dropped
SUMMARY 2:
PRECISION: 1
COMPLETENESS: 2
CLARITY: 3
COMMENT: kept`,
			expected: 2,
			want: []domain.EvaluationDetail{
				{Precision: 1, Completeness: 2, Clarity: 3, Comment: "kept"},
				neutral,
			},
		},
		{
			name:     "garbage yields neutral records",
			raw:      "I cannot evaluate these summaries.",
			expected: 2,
			want:     []domain.EvaluationDetail{neutral, neutral},
		},
		{
			name: "aliases case and markdown",
			raw: `Here is my evaluation.
**Summary 1:**
- **Accuracy:** 4/5
- **Coverage:** [3]
- **clarity:** 5
- **Comment:** Solid overall.`,
			expected: 1,
			want:     []domain.EvaluationDetail{{Precision: 4, Completeness: 3, Clarity: 5, Comment: "Solid overall."}},
		},
		{
			name: "legacy markers and labels",
			raw: `RESUMEN 1:
PRECISIÓN: 3
COMPLETITUD: 4
CLARIDAD: 2
COMENTARIO: Bastante claro.`,
			expected: 1,
			want:     []domain.EvaluationDetail{{Precision: 3, Completeness: 4, Clarity: 2, Comment: "Bastante claro."}},
		},
		{
			name:     "full-width digits are normalised",
			raw:      "SUMMARY １：\nPRECISION： ５\nCOMPLETENESS: ４\nCLARITY: ３\nCOMMENT: wide",
			expected: 1,
			want:     []domain.EvaluationDetail{{Precision: 5, Completeness: 4, Clarity: 3, Comment: "wide"}},
		},
		{
			name: "comment runs to the end of the block",
			raw: `SUMMARY 1:
PRECISION: 4
COMPLETENESS: 4
CLARITY: 4
COMMENT: First line.
Second line: still comment.
SUMMARY 2:
PRECISION: 1
COMPLETENESS: 1
CLARITY: 1
COMMENT:`,
			expected: 2,
			want: []domain.EvaluationDetail{
				{Precision: 4, Completeness: 4, Clarity: 4, Comment: "First line. Second line: still comment."},
				{Precision: 1, Completeness: 1, Clarity: 1, Comment: ""},
			},
		},
		{
			name:     "fields on the marker line",
			raw:      "SUMMARY 1: PRECISION: 2\nCOMPLETENESS: 3\nCLARITY: 4\nCOMMENT: inline",
			expected: 1,
			want:     []domain.EvaluationDetail{{Precision: 2, Completeness: 3, Clarity: 4, Comment: "inline"}},
		},
		{
			name: "whole reply on one line",
			raw: "SUMMARY 1: PRECISION: 5 COMPLETENESS: 4 CLARITY: 5 COMMENT: good " +
				"SUMMARY 2: PRECISION: 2 COMPLETENESS: 3 CLARITY: 1 COMMENT: weak",
			expected: 2,
			want: []domain.EvaluationDetail{
				{Precision: 5, Completeness: 4, Clarity: 5, Comment: "good"},
				{Precision: 2, Completeness: 3, Clarity: 1, Comment: "weak"},
			},
		},
		{
			name:     "scores share a line",
			raw:      "SUMMARY 1:\nPRECISION: 5 COMPLETENESS: 4 CLARITY: 5\nCOMMENT: good",
			expected: 1,
			want:     []domain.EvaluationDetail{{Precision: 5, Completeness: 4, Clarity: 5, Comment: "good"}},
		},
		{
			name:     "markdown fields on one line",
			raw:      "**Summary 1:** **Precision:** 3, **Completeness:** 4, **Clarity:** 2 - **Comment:** terse",
			expected: 1,
			want:     []domain.EvaluationDetail{{Precision: 3, Completeness: 4, Clarity: 2, Comment: "terse"}},
		},
		{
			name:     "labels inside a finished comment stay comment text",
			raw:      "SUMMARY 1:\nPRECISION: 4\nCOMPLETENESS: 4\nCLARITY: 3\nCOMMENT: Clear, but clarity: could improve.\nNeeds work.",
			expected: 1,
			want:     []domain.EvaluationDetail{{Precision: 4, Completeness: 4, Clarity: 3, Comment: "Clear, but clarity: could improve. Needs work."}},
		},
		{
			name:     "labels need a word boundary",
			raw:      "SUMMARY 1:\nIMPRECISION: 1\nPRECISION: 4\nCOMPLETENESS: 4\nCLARITY: 4",
			expected: 1,
			want:     []domain.EvaluationDetail{{Precision: 4, Completeness: 4, Clarity: 4, Comment: ""}},
		},
		{
			name:     "leading byte order mark",
			raw:      "\ufeffSUMMARY 1:\nPRECISION: 4\nCOMPLETENESS: 3\nCLARITY: 5\nCOMMENT: bom",
			expected: 1,
			want:     []domain.EvaluationDetail{{Precision: 4, Completeness: 3, Clarity: 5, Comment: "bom"}},
		},
		{
			name:     "huge numbers clamp to the maximum",
			raw:      "SUMMARY 1:\nPRECISION: 99999999999999999999\nCOMPLETENESS: 3\nCLARITY: 3\n",
			expected: 1,
			want:     []domain.EvaluationDetail{{Precision: 5, Completeness: 3, Clarity: 3, Comment: ""}},
		},
		{
			name:     "zero expected",
			raw:      "SUMMARY 1:\nPRECISION: 2\nCOMPLETENESS: 2\nCLARITY: 2",
			expected: 0,
			want:     []domain.EvaluationDetail{},
		},
		{
			name:     "negative expected",
			raw:      "",
			expected: -1,
			want:     []domain.EvaluationDetail{},
		},
	}

	parser := NewRubricParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parser.Parse(tt.raw, tt.expected)

			require.Len(t, got, len(tt.want))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRubricParser_LargeInputIsLinear(t *testing.T) {
	// A pathological reply of many unterminated markers must still parse.
	raw := strings.Repeat("SUMMARY 1: PRECISION: PRECISION: ", 50_000)

	got := NewRubricParser().Parse(raw, 3)

	assert.Len(t, got, 3)
}
