package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kamusis/skillroute/internal/lexicon"
	"github.com/kamusis/skillroute/internal/trace"
)

// DefaultMinScore is the minimum score given to test cases created from traces.
const DefaultMinScore = 0.85

// Tags applied by merges.
const (
	TagFederated = "federated"
	TagRealUser  = "real-user"
	TagGlobal    = "global"
)

// ErrMalformedDataset is returned when the canonical dataset cannot be parsed.
var ErrMalformedDataset = errors.New("malformed dataset")

// TestCase is one labeled query.
type TestCase struct {
	Query          string   `json:"query"`
	Expected       string   `json:"expected"`
	MinScore       float64  `json:"min_score"`
	Score          *float64 `json:"score,omitempty"`
	Tags           []string `json:"tags"`
	ExpectedGlobal *bool    `json:"expected_global,omitempty"`
}

// HasTag reports whether the case carries tag.
func (tc *TestCase) HasTag(tag string) bool {
	for _, t := range tc.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTags merges tags into the case, keeping them sorted and unique.
func (tc *TestCase) AddTags(tags ...string) {
	set := make(map[string]struct{}, len(tc.Tags)+len(tags))
	for _, t := range append(tc.Tags, tags...) {
		if t = strings.TrimSpace(t); t != "" {
			set[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	tc.Tags = out
}

// Dataset is the canonical labeled dataset.
type Dataset struct {
	BaselineAccuracy float64    `json:"baseline_accuracy"`
	TestCases        []TestCase `json:"test_cases"`
}

// Load reads the dataset at path. A missing file yields an empty dataset.
func Load(path string) (*Dataset, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return &Dataset{TestCases: []TestCase{}}, nil
		}
		return nil, fmt.Errorf("cannot read dataset %s: %w", path, err)
	}
	var ds Dataset
	if err := json.Unmarshal(b, &ds); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedDataset, path, err)
	}
	if ds.TestCases == nil {
		ds.TestCases = []TestCase{}
	}
	for i, tc := range ds.TestCases {
		if strings.TrimSpace(tc.Query) == "" {
			return nil, fmt.Errorf("%w: %s: test case %d has no query", ErrMalformedDataset, path, i)
		}
	}
	return &ds, nil
}

// Save atomically replaces path with ds.
func Save(path string, ds *Dataset) error {
	b, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal dataset: %w", err)
	}
	return writeAtomic(path, append(b, '\n'))
}

// Find returns the index of the case with query, or -1.
func (ds *Dataset) Find(query string) int {
	for i := range ds.TestCases {
		if ds.TestCases[i].Query == query {
			return i
		}
	}
	return -1
}

// Observe folds one trace into the dataset. A new query becomes a federated
// test case; a known query takes the observed trigger and score and is tagged
// as real-user evidence. It reports whether a case was added.
func (ds *Dataset) Observe(rec trace.Record, minScore float64) bool {
	persona := strings.TrimSpace(rec.Persona)
	if persona == "" {
		persona = "unknown"
	}
	score := rec.Score
	global := rec.IsGlobal || lexicon.IsGlobal(rec.Match)

	if i := ds.Find(rec.Query); i >= 0 {
		tc := &ds.TestCases[i]
		tc.Expected = rec.Match
		tc.Score = &score
		tc.AddTags(TagRealUser, persona)
		if global {
			g := true
			tc.ExpectedGlobal = &g
			tc.AddTags(TagGlobal)
		} else if tc.ExpectedGlobal != nil {
			g := false
			tc.ExpectedGlobal = &g
		}
		return false
	}

	tc := TestCase{
		Query:    rec.Query,
		Expected: rec.Match,
		MinScore: minScore,
		Score:    &score,
	}
	tc.AddTags(TagFederated, persona)
	if global {
		g := true
		tc.ExpectedGlobal = &g
		tc.AddTags(TagGlobal)
	}
	ds.TestCases = append(ds.TestCases, tc)
	return true
}

// writeAtomic writes data to a temp file beside path, syncs it and renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("cannot create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("cannot write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("cannot sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("cannot replace %s: %w", path, err)
	}
	return nil
}
