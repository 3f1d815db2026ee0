package search

import (
	"strings"
)

const activationMarker = "Activation Words:"

// ParseActivationWords extracts explicit activation keywords from a SKILL.md
// body. Every line containing "Activation Words:" contributes the words after
// the colon; commas and whitespace separate words.
func ParseActivationWords(body string) []string {
	var out []string
	for _, ln := range strings.Split(body, "\n") {
		i := strings.Index(ln, activationMarker)
		if i < 0 {
			continue
		}
		out = append(out, splitWords(ln[i+len(activationMarker):])...)
	}
	return out
}

// splitWords splits a comma or whitespace separated list, trimming markdown
// emphasis and dropping empties.
func splitWords(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.Trim(f, "*_`\"'"))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
