package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverSkills_ParsesFrontmatter(t *testing.T) {
	root := filepath.Join(t.TempDir(), "skills")
	content := "---\nname: demo-skill\ndescription: Hello world\nactivation_words: [deploy, ship]\n---\n\n# Body\n\nActivation Words: Release, **rollout**\n"
	writeFile(t, filepath.Join(root, "demo", "SKILL.md"), content)

	skills, err := DiscoverSkills(root, "")
	if err != nil {
		t.Fatalf("DiscoverSkills: %v", err)
	}
	if len(skills) != 1 {
		t.Fatalf("expected 1 skill, got %d", len(skills))
	}
	s := skills[0]
	if s.Name != "demo-skill" {
		t.Fatalf("unexpected name: %q", s.Name)
	}
	if s.Description != "Hello world" {
		t.Fatalf("unexpected description: %q", s.Description)
	}
	assert.Equal(t, "demo", s.Trigger)
	assert.False(t, s.Global)
	assert.Equal(t, []string{"deploy", "ship", "release", "rollout"}, s.ActivationWords)
}

func TestDiscoverSkills_GlobalPrefixAndDescriptors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "zeta", "SKILL.md"), "# Zeta\n\nDoes zeta things.\n")
	writeFile(t, filepath.Join(root, "alpha.json"),
		`{"description": "alpha skill", "keywords": ["a", "b"], "activation_words": ["alpha, first"]}`)

	skills, err := DiscoverSkills(root, "GLOBAL:")
	require.NoError(t, err)
	require.Len(t, skills, 2)

	assert.Equal(t, "alpha", skills[0].ID)
	assert.Equal(t, "GLOBAL:alpha", skills[0].Trigger)
	assert.Equal(t, "a, b", skills[0].Keywords)
	assert.Equal(t, []string{"alpha", "first"}, skills[0].ActivationWords)
	assert.True(t, skills[0].Global)

	assert.Equal(t, "GLOBAL:zeta", skills[1].Trigger)
	assert.Equal(t, "Does zeta things.", skills[1].Description)
	assert.Equal(t, "zeta", skills[1].Name)
}

func TestDiscoverSkills_MissingRoot(t *testing.T) {
	skills, err := DiscoverSkills(filepath.Join(t.TempDir(), "nope"), "")
	require.NoError(t, err)
	assert.Empty(t, skills)
}

func TestDiscoverSkills_BadDescriptor(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "bad.json"), "{")
	_, err := DiscoverSkills(root, "")
	assert.Error(t, err)
}

func TestCoreSkills(t *testing.T) {
	core := CoreSkills()
	require.Len(t, core, 5)
	assert.Equal(t, "/lets-go", core[0].Trigger)
	assert.Contains(t, core[0].ActivationWords, "begin")
	assert.Equal(t, 3*len(core[0].Description+" task work project logic flow next "), len(core[0].Text))
}

func TestSortResults_StableTies(t *testing.T) {
	rs := []SearchResult{
		{Trigger: "a", Score: 0.5},
		{Trigger: "b", Score: 0.9},
		{Trigger: "c", Score: 0.5},
		{Trigger: "d", Score: 0.9},
	}
	SortResults(rs)
	got := []string{rs[0].Trigger, rs[1].Trigger, rs[2].Trigger, rs[3].Trigger}
	assert.Equal(t, []string{"b", "d", "a", "c"}, got)
}
