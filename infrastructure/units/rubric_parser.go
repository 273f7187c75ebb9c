package units

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/ahrav/go-sumbench/internal/domain"
)

type rubricField int

const (
	fieldNone rubricField = iota
	fieldPrecision
	fieldCompleteness
	fieldClarity
	fieldComment
)

// rubricLabel is a recognised "LABEL:" token. Markers open a block and
// are followed by the summary number.
type rubricLabel struct {
	text   string
	field  rubricField
	marker bool
}

// rubricLabels lists block markers and field labels, aliases included.
var rubricLabels = []rubricLabel{
	{text: "SUMMARY", marker: true},
	{text: "RESUMEN", marker: true},
	{text: "PRECISION", field: fieldPrecision},
	{text: "PRECISIÓN", field: fieldPrecision},
	{text: "ACCURACY", field: fieldPrecision},
	{text: "COMPLETENESS", field: fieldCompleteness},
	{text: "COMPLETITUD", field: fieldCompleteness},
	{text: "COVERAGE", field: fieldCompleteness},
	{text: "CLARITY", field: fieldClarity},
	{text: "CLARIDAD", field: fieldClarity},
	{text: "COMMENT", field: fieldComment},
	{text: "COMENTARIO", field: fieldComment},
}

// labelDecoration is markdown that may sit between a label and its colon.
const labelDecoration = "*_` \t"

// maxScoreDigits bounds how many digits are parsed before a value is
// treated as "very large" and clamped.
const maxScoreDigits = 4

// RubricParser turns a free-text evaluator reply into one EvaluationDetail
// per summary. It scans each line once for label tokens with a fixed
// grammar, so its cost is linear in the reply length regardless of content.
//
// Grammar, after NFKC normalisation and case folding of labels:
//
//	reply   = { token | text } ;                  text before the first marker is ignored
//	token   = marker | field ;
//	marker  = ("SUMMARY" | "RESUMEN") blank ["#"] digits ":" ;
//	field   = label ":" value ;
//	label   = PRECISION | ACCURACY | COMPLETENESS | COVERAGE | CLARITY | COMMENT ;
//
// Tokens start at a word boundary and may share a line; a value runs to
// the next token. COMMENT captures its value plus every following line up
// to the next marker. Markdown emphasis around labels is ignored.
type RubricParser struct{}

// NewRubricParser creates a RubricParser.
func NewRubricParser() *RubricParser { return &RubricParser{} }

// Parse extracts exactly expected records from raw. Blocks missing any of
// the three scores are dropped, scores are clamped into [1,5], missing
// records are padded with neutral defaults and extra blocks are cut.
// Parse never fails; expected <= 0 yields an empty slice.
func (p *RubricParser) Parse(raw string, expected int) []domain.EvaluationDetail {
	if expected <= 0 {
		return []domain.EvaluationDetail{}
	}

	details := make([]domain.EvaluationDetail, 0, expected)
	text := strings.ReplaceAll(norm.NFKC.String(raw), "\ufeff", "")
	for _, b := range splitBlocks(text) {
		if len(details) == expected {
			break
		}
		if d, ok := b.detail(); ok {
			details = append(details, d)
		}
	}

	for len(details) < expected {
		details = append(details, domain.NeutralDetail(domain.NotEvaluatedComment))
	}
	return details
}

type rubricBlock struct {
	scores  map[rubricField]int
	comment []string
}

func (b *rubricBlock) detail() (domain.EvaluationDetail, bool) {
	precision, okP := b.scores[fieldPrecision]
	completeness, okC := b.scores[fieldCompleteness]
	clarity, okCl := b.scores[fieldClarity]
	if !okP || !okC || !okCl {
		return domain.EvaluationDetail{}, false
	}
	return domain.EvaluationDetail{
		Precision:    domain.ClampAxis(precision),
		Completeness: domain.ClampAxis(completeness),
		Clarity:      domain.ClampAxis(clarity),
		Comment:      strings.TrimSpace(strings.Join(b.comment, " ")),
	}, true
}

func (b *rubricBlock) scored() bool { return len(b.scores) == 3 }

// splitBlocks walks the reply once and groups fields under their marker.
func splitBlocks(text string) []*rubricBlock {
	var (
		blocks    []*rubricBlock
		current   *rubricBlock
		inComment bool
	)

	for _, line := range strings.Split(text, "\n") {
		tokens := scanLine(line)

		lead := line
		if len(tokens) > 0 {
			lead = line[:tokens[0].start]
		}
		if inComment {
			current.addComment(lead)
		}

		for i, tok := range tokens {
			end := len(line)
			if i+1 < len(tokens) {
				end = tokens[i+1].start
			}
			value := line[tok.valueStart:end]

			if tok.marker {
				current = &rubricBlock{scores: make(map[rubricField]int, 3)}
				blocks = append(blocks, current)
				inComment = false
				continue
			}
			if current == nil {
				continue
			}
			// Once scored, labels inside a comment are comment text.
			if inComment && current.scored() {
				current.addComment(line[tok.start:end])
				continue
			}

			switch tok.field {
			case fieldPrecision, fieldCompleteness, fieldClarity:
				inComment = false
				if _, seen := current.scores[tok.field]; seen {
					continue
				}
				if v, ok := leadingInt(value); ok {
					current.scores[tok.field] = v
				}
			case fieldComment:
				inComment = true
				current.addComment(value)
			}
		}
	}
	return blocks
}

func (b *rubricBlock) addComment(s string) {
	if v := strings.Trim(s, labelDecoration+"\r#>-"); v != "" {
		b.comment = append(b.comment, v)
	}
}

// lineToken is one label found by scanLine. valueStart is the byte offset
// just past the label's colon.
type lineToken struct {
	start      int
	valueStart int
	field      rubricField
	marker     bool
}

// scanLine returns every label token in line, in order.
func scanLine(line string) []lineToken {
	var (
		tokens []lineToken
		prev   rune = ' '
		next   int
	)
	for i, r := range line {
		if i >= next && unicode.IsLetter(r) && !isWordRune(prev) {
			if tok, ok := matchLabel(line, i); ok {
				tokens = append(tokens, tok)
				next = tok.valueStart
			}
		}
		prev = r
	}
	return tokens
}

// matchLabel reports whether a known label followed by a colon starts at
// line[start:].
func matchLabel(line string, start int) (lineToken, bool) {
	s := line[start:]
	for _, l := range rubricLabels {
		n := len(l.text)
		if len(s) < n || !strings.EqualFold(s[:n], l.text) {
			continue
		}
		if l.marker {
			m, ok := markerNumber(s[n:])
			if !ok {
				continue
			}
			n += m
		}
		n += len(s[n:]) - len(strings.TrimLeft(s[n:], labelDecoration))
		if n < len(s) && s[n] == ':' {
			return lineToken{start: start, valueStart: start + n + 1, field: l.field, marker: l.marker}, true
		}
	}
	return lineToken{}, false
}

// markerNumber matches the blank, optional "#" and digits after a marker
// word and returns their byte length.
func markerNumber(s string) (int, bool) {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	if i == 0 {
		return 0, false
	}
	if i < len(s) && s[i] == '#' {
		i++
	}
	digits := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i, i > digits
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

// leadingInt reads an optionally signed integer at the start of s,
// skipping whitespace and an opening bracket. Overlong numbers are
// reported as a large value so that clamping caps them.
func leadingInt(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t[(*")
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	v := domain.MaxAxisScore + 1
	if end <= maxScoreDigits {
		v, _ = strconv.Atoi(s[:end])
	}
	if neg {
		v = -v
	}
	return v, true
}
