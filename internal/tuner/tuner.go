// Package tuner proposes thesaurus weight changes from regression failures.
// Proposals are advisory; nothing here writes the thesaurus file.
package tuner

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sort"

	"github.com/kamusis/skillroute/internal/dataset"
	"github.com/kamusis/skillroute/internal/lexicon"
	"github.com/kamusis/skillroute/internal/search"
)

// Step is the weight change per vote.
const Step = 0.1

// Router is the part of the index the tuner needs.
type Router interface {
	Search(query string) ([]search.SearchResult, error)
	SkillTokens(trigger string) []string
	Tokens(text string) []string
	Thesaurus() *lexicon.Thesaurus
}

// Change is the proposed weight for one token.
type Change struct {
	Token    string   `json:"token"`
	Current  float64  `json:"current"`
	Proposed float64  `json:"proposed"`
	Up       int      `json:"up"`
	Down     int      `json:"down"`
	Reasons  []string `json:"reasons"`
}

// Proposal is the advisory diff, sorted by token.
type Proposal struct {
	Failures int      `json:"failures"`
	Changes  []Change `json:"changes"`
}

// Analyze re-runs every test case against r and votes on query tokens of the
// failing ones. A token found in the rival skill but not the expected one is
// voted down; a token found in the expected skill but not the rival is voted
// up. Each vote moves the weight by Step from the token's current self-weight
// and the result stays within the thesaurus weight range.
func Analyze(r Router, ds *dataset.Dataset) (*Proposal, error) {
	th := r.Thesaurus()
	if th == nil {
		th = lexicon.NewThesaurus()
	}

	changes := map[string]*Change{}
	get := func(tok string) *Change {
		c, ok := changes[tok]
		if !ok {
			cur, found := th.SelfWeight(tok)
			if !found {
				cur = 1.0
			}
			c = &Change{Token: tok, Current: cur, Proposed: cur}
			changes[tok] = c
		}
		return c
	}

	p := &Proposal{}
	for _, tc := range ds.TestCases {
		rs, err := r.Search(tc.Query)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", tc.Query, err)
		}
		if len(rs) == 0 {
			continue
		}
		top := rs[0]
		if top.Trigger == tc.Expected && top.Score >= tc.MinScore {
			continue
		}
		p.Failures++

		target := r.SkillTokens(tc.Expected)
		rival := r.SkillTokens(top.Trigger)
		seen := map[string]struct{}{}
		for _, tok := range r.Tokens(tc.Query) {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}

			inTarget := contains(target, tok)
			inRival := contains(rival, tok)
			switch {
			case inRival && !inTarget:
				c := get(tok)
				c.Down++
				c.Proposed = step(c.Proposed, -Step)
				c.Reasons = append(c.Reasons, fmt.Sprintf("down: rivals %s for %q", top.Trigger, tc.Query))
			case inTarget && !inRival:
				c := get(tok)
				c.Up++
				c.Proposed = step(c.Proposed, Step)
				c.Reasons = append(c.Reasons, fmt.Sprintf("up: unique to %s for %q", tc.Expected, tc.Query))
			}
		}
	}

	for _, c := range changes {
		if c.Proposed != c.Current {
			p.Changes = append(p.Changes, *c)
		}
	}
	sort.Slice(p.Changes, func(i, j int) bool { return p.Changes[i].Token < p.Changes[j].Token })
	return p, nil
}

// Weights returns the proposed self-synonym weight of every changed token.
func (p *Proposal) Weights() map[string]float64 {
	out := make(map[string]float64, len(p.Changes))
	for _, c := range p.Changes {
		out[c.Token] = c.Proposed
	}
	return out
}

// Render writes the proposal as thesaurus bullet lines preceded by vote counts.
func (p *Proposal) Render(w io.Writer) error {
	if len(p.Changes) == 0 {
		_, err := fmt.Fprintf(w, "no weight changes proposed (%d failing cases)\n", p.Failures)
		return err
	}
	if _, err := fmt.Fprintf(w, "%d weight changes from %d failing cases\n\n", len(p.Changes), p.Failures); err != nil {
		return err
	}
	for _, c := range p.Changes {
		if _, err := fmt.Fprintf(w, "- %s: %s:%.2f  (%.2f -> %.2f, +%d/-%d)\n",
			c.Token, c.Token, c.Proposed, c.Current, c.Proposed, c.Up, c.Down); err != nil {
			return err
		}
	}
	return nil
}

func step(w, delta float64) float64 {
	return lexicon.ClampWeight(math.Round((w+delta)*100) / 100)
}

func contains(sorted []string, tok string) bool {
	_, ok := slices.BinarySearch(sorted, tok)
	return ok
}
