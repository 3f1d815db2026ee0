// Package fishtest re-runs the labeled dataset against a router and turns
// the outcome into pass/fail observations for the SPRT gate.
package fishtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kamusis/skillroute/internal/dataset"
	"github.com/kamusis/skillroute/internal/search"
)

// Observation values. A failure is 1.
const (
	Pass = 0
	Fail = 1
)

// Searcher ranks skills for a query.
type Searcher interface {
	Search(query string) ([]search.SearchResult, error)
}

// Options tunes a run.
type Options struct {
	Workers int
	Logger  *zap.Logger
}

// CaseResult is the outcome of one test case.
type CaseResult struct {
	Query    string   `json:"query"`
	Expected string   `json:"expected"`
	Actual   string   `json:"actual"`
	Score    float64  `json:"score"`
	IsGlobal bool     `json:"is_global"`
	Passed   bool     `json:"passed"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Report summarizes a run.
type Report struct {
	Results      []CaseResult `json:"results"`
	Passed       int          `json:"passed"`
	Total        int          `json:"total"`
	Accuracy     float64      `json:"accuracy"`
	Baseline     float64      `json:"baseline_accuracy"`
	Regression   bool         `json:"regression"`
	Observations []int        `json:"observations"`
}

// Run evaluates every test case of ds with s. Results and observations are
// in dataset order. A search error aborts the run.
func Run(ctx context.Context, s Searcher, ds *dataset.Dataset, opts Options) (*Report, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	cases := ds.TestCases
	results := make([]CaseResult, len(cases))
	errs := make([]error, len(cases))

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("cannot create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range cases {
		if err := ctx.Err(); err != nil {
			break
		}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			results[i], errs[i] = Evaluate(s, cases[i])
		}
		if err := pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rep := &Report{
		Results:      results,
		Total:        len(cases),
		Baseline:     ds.BaselineAccuracy,
		Observations: make([]int, len(cases)),
	}
	for i, r := range results {
		if errs[i] != nil {
			return nil, fmt.Errorf("case %q: %w", cases[i].Query, errs[i])
		}
		if r.Passed {
			rep.Passed++
			rep.Observations[i] = Pass
		} else {
			rep.Observations[i] = Fail
			log.Debug("case failed", zap.String("query", r.Query), zap.Strings("reasons", r.Reasons))
		}
	}
	if rep.Total > 0 {
		rep.Accuracy = float64(rep.Passed) / float64(rep.Total)
	}
	rep.Regression = rep.Total > 0 && rep.Accuracy < ds.BaselineAccuracy
	return rep, nil
}

// Evaluate runs one test case. It fails when the top trigger differs from the
// expected one, the top score is below min_score, or the global flag disagrees
// with expected_global.
func Evaluate(s Searcher, tc dataset.TestCase) (CaseResult, error) {
	res := CaseResult{Query: tc.Query, Expected: tc.Expected}
	rs, err := s.Search(tc.Query)
	if err != nil {
		return res, err
	}
	if len(rs) > 0 {
		res.Actual = rs[0].Trigger
		res.Score = rs[0].Score
		res.IsGlobal = rs[0].IsGlobal
	}

	if res.Actual != tc.Expected {
		res.Reasons = append(res.Reasons, fmt.Sprintf("expected %q, got %q", tc.Expected, res.Actual))
	}
	if res.Score < tc.MinScore {
		res.Reasons = append(res.Reasons, fmt.Sprintf("score %.2f < min %.2f", res.Score, tc.MinScore))
	}
	if tc.ExpectedGlobal != nil && res.IsGlobal != *tc.ExpectedGlobal {
		res.Reasons = append(res.Reasons, fmt.Sprintf("global mismatch: expected %t, got %t", *tc.ExpectedGlobal, res.IsGlobal))
	}
	res.Passed = len(res.Reasons) == 0
	return res, nil
}

// Failures returns the failed case results.
func (r *Report) Failures() []CaseResult {
	var out []CaseResult
	for _, c := range r.Results {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}
