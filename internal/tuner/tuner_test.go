package tuner

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamusis/skillroute/internal/dataset"
	"github.com/kamusis/skillroute/internal/lexicon"
	"github.com/kamusis/skillroute/internal/search/index"
)

func buildIndex(t *testing.T, th *lexicon.Thesaurus) *index.Index {
	t.Helper()
	ix := index.New(index.WithThesaurus(th))
	require.NoError(t, ix.Register("A", "start begin launch"))
	require.NoError(t, ix.Register("B", "stop end close"))
	ix.Build()
	return ix
}

func TestAnalyze_VotesOnFailures(t *testing.T) {
	ix := buildIndex(t, lexicon.NewThesaurus())
	ds := &dataset.Dataset{TestCases: []dataset.TestCase{
		{Query: "close end launch", Expected: "A"},
		{Query: "begin", Expected: "A"},
	}}

	p, err := Analyze(ix, ds)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Failures)
	require.Len(t, p.Changes, 3)

	assert.Equal(t, "close", p.Changes[0].Token)
	assert.InDelta(t, 0.9, p.Changes[0].Proposed, 1e-9)
	assert.Equal(t, 1, p.Changes[0].Down)

	assert.Equal(t, "end", p.Changes[1].Token)
	assert.Equal(t, "launch", p.Changes[2].Token)
	assert.InDelta(t, 1.1, p.Changes[2].Proposed, 1e-9)
	assert.Equal(t, 1, p.Changes[2].Up)
	assert.NotEmpty(t, p.Changes[2].Reasons)
}

func TestAnalyze_ClampsAtFloor(t *testing.T) {
	th := lexicon.NewThesaurus()
	th.SetWeight("close", "close", lexicon.MinWeight)
	ix := buildIndex(t, th)
	ds := &dataset.Dataset{TestCases: []dataset.TestCase{
		{Query: "close end launch", Expected: "A"},
	}}

	p, err := Analyze(ix, ds)
	require.NoError(t, err)
	for _, c := range p.Changes {
		assert.NotEqual(t, "close", c.Token, "weight already at floor")
		assert.GreaterOrEqual(t, c.Proposed, lexicon.MinWeight)
		assert.LessOrEqual(t, c.Proposed, lexicon.MaxWeight)
	}
}

func TestAnalyze_VotesAccumulate(t *testing.T) {
	ix := buildIndex(t, lexicon.NewThesaurus())
	ds := &dataset.Dataset{TestCases: []dataset.TestCase{
		{Query: "close end launch", Expected: "A"},
		{Query: "stop end launch", Expected: "A"},
	}}

	p, err := Analyze(ix, ds)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Failures)
	var end Change
	for _, c := range p.Changes {
		if c.Token == "end" {
			end = c
		}
	}
	assert.Equal(t, 2, end.Down)
	assert.InDelta(t, 0.8, end.Proposed, 1e-9)
}

func TestAnalyze_NoFailures(t *testing.T) {
	ix := buildIndex(t, lexicon.NewThesaurus())
	ds := &dataset.Dataset{TestCases: []dataset.TestCase{{Query: "begin", Expected: "A"}}}
	p, err := Analyze(ix, ds)
	require.NoError(t, err)
	assert.Empty(t, p.Changes)

	var buf bytes.Buffer
	require.NoError(t, p.Render(&buf))
	assert.Contains(t, buf.String(), "no weight changes")
}

func TestProposal_WeightsAndRender(t *testing.T) {
	p := &Proposal{Failures: 1, Changes: []Change{
		{Token: "launch", Current: 1, Proposed: 1.1, Up: 1},
	}}
	assert.Equal(t, map[string]float64{"launch": 1.1}, p.Weights())

	th, _, err := lexicon.ParseThesaurus(strings.NewReader(lexicon.PatchSelfWeights("", p.Weights())))
	require.NoError(t, err)
	w, ok := th.SelfWeight("launch")
	require.True(t, ok)
	assert.InDelta(t, 1.1, w, 1e-9)

	var buf bytes.Buffer
	require.NoError(t, p.Render(&buf))
	assert.Contains(t, buf.String(), "- launch: launch:1.10")
}
