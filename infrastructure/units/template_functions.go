package units

import (
	"strings"
	"text/template"
	"unicode/utf8"
)

// GetTemplateFuncMap returns the function map available to prompt templates.
//
// The functions are stateless and safe for concurrent template execution.
// None of them panic: out-of-range arguments produce safe defaults.
//
//	tmpl, err := template.New("prompt").Funcs(GetTemplateFuncMap()).Parse(config.PromptTemplate)
func GetTemplateFuncMap() template.FuncMap {
	return template.FuncMap{
		// add performs integer addition.
		// Common use: numbering summaries from 1 in a range loop.
		// Template usage: {{add $i 1}}
		"add": func(a, b int) int {
			return a + b
		},

		// trim removes leading and trailing whitespace.
		// Template usage: {{trim $summary}}
		"trim": strings.TrimSpace,

		// upper returns s with all Unicode letters mapped to uppercase.
		"upper": strings.ToUpper,

		// lower returns s with all Unicode letters mapped to lowercase.
		"lower": strings.ToLower,

		// truncate limits s to at most length runes, adding "..." when cut.
		// Returns the empty string if length <= 0.
		// Template usage: {{truncate .Text 2000}}
		"truncate": truncateRunes,

		// words counts whitespace-separated words.
		// Template usage: {{words $summary}}
		"words": func(s string) int {
			return len(strings.Fields(s))
		},

		// join concatenates elements with separator between them.
		// Template usage: {{join .Labels ", "}}
		"join": func(elems []string, sep string) string {
			return strings.Join(elems, sep)
		},
	}
}

func truncateRunes(s string, length int) string {
	if length <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= length {
		return s
	}

	runes := []rune(s)
	if length > 3 {
		return string(runes[:length-3]) + "..."
	}
	return string(runes[:length])
}
