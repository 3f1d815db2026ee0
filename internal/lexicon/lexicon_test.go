package lexicon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens(t *testing.T) {
	tok := NewTokenizer()

	t.Run("drops stopwords and punctuation", func(t *testing.T) {
		assert.Equal(t, []string{"please", "begin", "now"}, tok.Tokens("Please, begin the NOW!"))
	})

	t.Run("falls back when every token is a stopword", func(t *testing.T) {
		assert.Equal(t, []string{"the", "a"}, tok.Tokens("the a"))
	})

	t.Run("keeps non-latin scripts", func(t *testing.T) {
		assert.Equal(t, []string{"привет", "мир"}, tok.Tokens("Привет, мир"))
	})

	t.Run("nfkc folds fullwidth forms", func(t *testing.T) {
		assert.Equal(t, []string{"abc"}, tok.Tokens("ＡＢＣ"))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, tok.Tokens(""))
		assert.Empty(t, tok.Tokens("  ...  "))
	})

	t.Run("extra stopwords", func(t *testing.T) {
		custom := NewTokenizer("Please")
		assert.Equal(t, []string{"begin"}, custom.Tokens("please begin"))
	})
}

func TestLoadStopwords(t *testing.T) {
	dir := t.TempDir()

	words, err := LoadStopwords(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Nil(t, words)

	p := filepath.Join(dir, "stop.json")
	require.NoError(t, os.WriteFile(p, []byte(`["foo","bar"]`), 0o644))
	words, err = LoadStopwords(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo", "bar"}, words)

	require.NoError(t, os.WriteFile(p, []byte(`{`), 0o644))
	_, err = LoadStopwords(p)
	assert.Error(t, err)
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "start the engine", NormalizeQuery("  Start The Engine \n"))
}

func TestParseThesaurus(t *testing.T) {
	src := strings.Join([]string{
		"# Thesaurus",
		"",
		"- begin: start:0.9, launch, initiate:5",
		"- **stop**: halt:0.01, end",
		"- broken line without colon",
		"- fix: repair:abc",
		"- empty: ,",
		"plain prose is ignored",
	}, "\n")

	th, issues, err := ParseThesaurus(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, SynonymSet{"start": 0.9, "launch": 1.0, "initiate": MaxWeight}, th.Lookup("begin"))
	assert.Equal(t, SynonymSet{"halt": MinWeight, "end": 1.0}, th.Lookup("stop"))
	assert.Equal(t, SynonymSet{"repair": 1.0}, th.Lookup("fix"))
	assert.Nil(t, th.Lookup("empty"))

	require.Len(t, issues, 3)
	assert.Equal(t, 5, issues[0].Line)
	assert.Equal(t, 6, issues[1].Line)
	assert.Contains(t, issues[1].Reason, "bad weight")
	assert.Equal(t, 7, issues[2].Line)
}

func TestLoadThesaurus(t *testing.T) {
	dir := t.TempDir()

	th, issues, err := LoadThesaurus(filepath.Join(dir, "missing.md"))
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, 0, th.Len())

	big := filepath.Join(dir, "big.md")
	require.NoError(t, os.WriteFile(big, make([]byte, MaxThesaurusBytes+1), 0o644))
	_, _, err = LoadThesaurus(big)
	assert.ErrorIs(t, err, ErrThesaurusTooLarge)
}

func TestPatchSelfWeights(t *testing.T) {
	doc := "# Thesaurus\n\nNotes stay put.\n\n" +
		"- **Begin**: start:0.9, begin:1.2\n" +
		"  - stop: halt\n" +
		"- idle:\n" +
		"<!-- trailing comment -->\n"

	out := PatchSelfWeights(doc, map[string]float64{
		"begin":  1.3,
		"stop":   0.8,
		"idle":   5,
		"launch": 1.1,
	})
	assert.Equal(t, "# Thesaurus\n\nNotes stay put.\n\n"+
		"- **Begin**: start:0.9, begin:1.30\n"+
		"  - stop: halt, stop:0.80\n"+
		"- idle: idle:2.00\n"+
		"<!-- trailing comment -->\n"+
		"- launch: launch:1.10\n", out)

	th, issues, err := ParseThesaurus(strings.NewReader(out))
	require.NoError(t, err)
	assert.Empty(t, issues)
	w, ok := th.SelfWeight("begin")
	require.True(t, ok)
	assert.Equal(t, 1.3, w)
	assert.Equal(t, 0.9, th.Lookup("begin")["start"])

	assert.Equal(t, doc, PatchSelfWeights(doc, nil))
}

func TestPatchSelfWeightsFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "thesaurus.md")
	require.NoError(t, PatchSelfWeightsFile(p, map[string]float64{"go": 1.1}))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "- go: go:1.10\n", string(b))

	require.NoError(t, PatchSelfWeightsFile(p, map[string]float64{"go": 0.9}))
	b, err = os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "- go: go:0.90\n", string(b))
}

func TestThesaurusOverlay(t *testing.T) {
	th := NewThesaurus()
	th.SetWeight("begin", "start", 0.5)
	th.Overlay(map[string][]string{"Begin": {"start", "kickoff"}, "": {"x"}})

	assert.Equal(t, SynonymSet{"start": 1.0, "kickoff": 1.0}, th.Lookup("begin"))
	assert.Equal(t, 1, th.Len())
}

func TestStem(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"running", "runn", true},
		{"started", "start", true},
		{"launches", "launch", true},
		{"tasks", "task", true},
		{"access", "", false},
		{"runs", "", false},
		{"bring", "", false}, // stem "br" too short
		{"close", "", false},
	}
	for _, tc := range cases {
		got, ok := Stem(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestExpand(t *testing.T) {
	th := NewThesaurus()
	th.SetWeight("begin", "start", 0.9)
	th.SetWeight("begin", "launch", 1.5)
	th.SetWeight("tasks", "job", 0.3)
	th.SetWeight("deploy", "deploy", 1.4)

	e := NewExpander(NewTokenizer(), th)

	t.Run("stems and synonyms", func(t *testing.T) {
		w := e.Expand("begin the tasks")
		assert.Equal(t, map[string]float64{
			"begin":  1.0,
			"start":  0.9,
			"launch": 1.5,
			"tasks":  1.0,
			"task":   StemWeight,
			"job":    0.3,
		}, w)
	})

	t.Run("weights never decrease", func(t *testing.T) {
		w := e.Expand("start begin")
		assert.Equal(t, 1.0, w["start"])
	})

	t.Run("self weight above 1.0 raises the token", func(t *testing.T) {
		w := e.Expand("deploy")
		assert.Equal(t, 1.4, w["deploy"])
	})

	t.Run("self weight below 1.0 never lowers the token", func(t *testing.T) {
		low, issues, err := ParseThesaurus(strings.NewReader("- begin: begin:0.3, start:0.5\n"))
		require.NoError(t, err)
		require.Empty(t, issues)
		w := NewExpander(NewTokenizer(), low).Expand("begin")
		assert.Equal(t, map[string]float64{"begin": 1.0, "start": 0.5}, w)
	})

	t.Run("cached result is a copy", func(t *testing.T) {
		w := e.Expand("begin")
		w["begin"] = 99
		assert.Equal(t, 1.0, e.Expand("begin")["begin"])
	})
}

func TestCorrections(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "corrections.json")

	c, err := LoadCorrections(p)
	require.NoError(t, err)
	assert.Empty(t, c.PhraseMappings)

	body := `{"phrase_mappings": {"  Ship It ": "/wrap-it-up", "": "x", "bad": ""},
	          "synonym_updates": {"Ship": ["deploy"]}}`
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))

	c, err = LoadCorrections(p)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ship it": "/wrap-it-up"}, c.PhraseMappings)
	assert.Equal(t, map[string][]string{"ship": {"deploy"}}, c.SynonymUpdates)

	trigger, ok := c.Lookup("SHIP IT")
	assert.True(t, ok)
	assert.Equal(t, "/wrap-it-up", trigger)

	require.NoError(t, c.Add("Go Global", "GLOBAL:agent"))
	assert.ErrorIs(t, c.Add(" ", "x"), ErrInvalidCorrection)
	require.NoError(t, c.Save(p))

	back, err := LoadCorrections(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"go global", "ship it"}, back.Phrases())
	assert.True(t, IsGlobal(back.PhraseMappings["go global"]))

	require.NoError(t, os.WriteFile(p, []byte("{"), 0o644))
	_, err = LoadCorrections(p)
	assert.Error(t, err)
}
