package trace

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/kamusis/skillroute/internal/lexicon"
)

const (
	// CriticalScore is the score below which a trace is a critical failure.
	CriticalScore = 0.6
	// ConfidentScore is the score below which a trace suggests a thesaurus improvement.
	ConfidentScore = 0.85

	maxImprovements = 5
)

// Summary aggregates a trace session.
type Summary struct {
	Total         int
	AvgScore      float64
	TopMatch      string
	CriticalFails []Record
	Improvements  []Record
	Personas      []string
	ByPersona     map[string][]Record
}

// Summarize computes session statistics over recs.
func Summarize(recs []Record) Summary {
	s := Summary{Total: len(recs), TopMatch: "N/A", ByPersona: map[string][]Record{}}
	if len(recs) == 0 {
		return s
	}

	var sum float64
	counts := map[string]int{}
	seen := map[string]bool{}
	for _, r := range recs {
		sum += r.Score
		counts[r.Match]++

		p := strings.ToUpper(strings.TrimSpace(r.Persona))
		if p == "" {
			p = "UNKNOWN"
		}
		if _, ok := s.ByPersona[p]; !ok {
			s.Personas = append(s.Personas, p)
		}
		s.ByPersona[p] = append(s.ByPersona[p], r)

		switch {
		case r.Score < CriticalScore:
			s.CriticalFails = append(s.CriticalFails, r)
		case r.Score < ConfidentScore:
			key := r.Match + "\x00" + r.Query
			if !seen[key] && len(s.Improvements) < maxImprovements {
				seen[key] = true
				s.Improvements = append(s.Improvements, r)
			}
		}
	}
	s.AvgScore = sum / float64(len(recs))
	sort.Strings(s.Personas)

	best := 0
	for m, c := range counts {
		if c > best || (c == best && m < s.TopMatch) {
			best, s.TopMatch = c, m
		}
	}
	return s
}

// ApplyCorrections maps the query of every critical failure that carries an
// expected trigger onto that trigger. It returns the number of mappings added.
func (s Summary) ApplyCorrections(c *lexicon.Corrections) int {
	n := 0
	for _, f := range s.CriticalFails {
		if f.Expected == "" {
			continue
		}
		if err := c.Add(f.Query, f.Expected); err == nil {
			n++
		}
	}
	return n
}

// RenderMarkdown writes a session report.
func RenderMarkdown(w io.Writer, s Summary, generated time.Time) error {
	var b strings.Builder
	b.WriteString("# Trace Report\n\n")
	fmt.Fprintf(&b, "**Session Traces**: %d\n\n", s.Total)
	fmt.Fprintf(&b, "**Avg Score**: %.4f\n\n", s.AvgScore)
	fmt.Fprintf(&b, "**Most Active Skill**: `%s`\n\n", s.TopMatch)
	fmt.Fprintf(&b, "**Generated**: %s\n", generated.Format("2006-01-02 15:04:05"))

	for _, p := range s.Personas {
		fmt.Fprintf(&b, "\n## %s\n\n", p)
		b.WriteString("| Query | Match | Score | Type |\n")
		b.WriteString("| :--- | :--- | :--- | :--- |\n")
		for _, r := range s.ByPersona[p] {
			kind := "LOCAL"
			if r.IsGlobal {
				kind = "GLOBAL"
			}
			fmt.Fprintf(&b, "| `%s` | **%s** | %s %.2f | %s |\n", r.Query, r.Match, band(r.Score), r.Score, kind)
		}
	}

	if len(s.CriticalFails) > 0 {
		fmt.Fprintf(&b, "\n## Critical Failures (Score < %.1f)\n\n", CriticalScore)
		for _, f := range s.CriticalFails {
			fmt.Fprintf(&b, "- `%s` matched `%s` with score %.2f\n", f.Query, f.Match, f.Score)
		}
	}

	if len(s.Improvements) > 0 {
		b.WriteString("\n## Suggested Improvements\n\n")
		for _, r := range s.Improvements {
			fmt.Fprintf(&b, "- **%s**: confidence is low (%.2f) for query `%s`. Consider expanding thesaurus clusters.\n", r.Match, r.Score, r.Query)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func band(score float64) string {
	switch {
	case score > 0.8:
		return "high"
	case score > CriticalScore:
		return "mid"
	default:
		return "low"
	}
}
