package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kamusis/skillroute/internal/config"
)

func writeSkill(t *testing.T, root, id, body string) {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(body), 0o644))
}

func TestLoadEngine_SkipsDuplicatesAndBadCorrections(t *testing.T) {
	tmp := t.TempDir()
	local := filepath.Join(tmp, "skills")
	shadow := filepath.Join(tmp, "shadow")
	writeSkill(t, local, "deployer", "---\nname: deployer\ndescription: ship releases to production\n---\n")
	writeSkill(t, local, "reviewer", "---\nname: reviewer\ndescription: review pull requests\n---\n")
	writeSkill(t, shadow, "deployer", "---\nname: other\ndescription: unrelated\n---\n")

	corrPath := filepath.Join(tmp, "corrections.json")
	require.NoError(t, os.WriteFile(corrPath, []byte("{"), 0o644))

	cfg := &config.Config{
		SkillDirs:       []config.SkillDir{{Path: local}, {Path: shadow}},
		CorrectionsPath: corrPath,
		ThesaurusPath:   filepath.Join(tmp, "missing.md"),
	}
	eng, err := loadEngine(cfg, zap.NewNop())
	require.NoError(t, err)

	assert.Len(t, eng.docs, 2)
	assert.Equal(t, 2, eng.index.Len())

	rs, err := eng.index.Search("ship the release")
	require.NoError(t, err)
	require.NotEmpty(t, rs)
	assert.Equal(t, "deployer", rs[0].Trigger)
}

func TestLoadEngine_CoreSkillsAndThesaurusIssues(t *testing.T) {
	tmp := t.TempDir()
	th := filepath.Join(tmp, "thesaurus.md")
	require.NoError(t, os.WriteFile(th, []byte("- start: begin\n- broken line without colon\n"), 0o644))

	cfg := &config.Config{CoreSkills: true, ThesaurusPath: th}
	eng, err := loadEngine(cfg, zap.NewNop())
	require.NoError(t, err)

	assert.Len(t, eng.issues, 1)
	rs, err := eng.index.Search("begin")
	require.NoError(t, err)
	assert.Equal(t, "/lets-go", rs[0].Trigger)
}

func TestParseObservations(t *testing.T) {
	got, err := parseObservations("0 1, 0\n1")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 0, 1}, got)

	got, err = parseObservations(" [1,0,1] ")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 1}, got)

	got, err = parseObservations("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = parseObservations("0 x")
	assert.Error(t, err)
	_, err = parseObservations("[0,")
	assert.Error(t, err)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}
