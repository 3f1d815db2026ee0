package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_SaveLoadRoundTrip(t *testing.T) {
	dir := withHome(t)

	cfg, err := DefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "fishtest_data.json"), cfg.DatasetPath)
	require.Len(t, cfg.SkillDirs, 2)
	assert.Equal(t, "GLOBAL:", cfg.SkillDirs[1].Prefix)

	require.NoError(t, Save(cfg))
	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadFile_DefaultsAndExpansion(t *testing.T) {
	withHome(t)
	home := os.Getenv("HOME")
	p := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(p, []byte("dataset_path: ~/data.json\ntraces_dir: /tmp/traces\n"), 0o644))

	cfg, err := LoadFile(p)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data.json"), cfg.DatasetPath)
	assert.Equal(t, 0.05, cfg.SPRT.P0)
	assert.Equal(t, 0.20, cfg.SPRT.Beta)
	assert.Equal(t, 0.85, cfg.Merge.MinScore)
	assert.Equal(t, "local", cfg.Logging.Env)
	assert.Equal(t, "unknown", cfg.Persona)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	withHome(t)
	t.Setenv("SKILLROUTE_PERSONA", "ODIN")
	t.Setenv("SKILLROUTE_DATASET", "/data/override.json")
	p := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(p, []byte("dataset_path: /data/file.json\ntraces_dir: /tmp/t\npersona: ALFRED\n"), 0o644))

	cfg, err := LoadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "ODIN", cfg.Persona)
	assert.Equal(t, "/data/override.json", cfg.DatasetPath)
}

func TestLoadFile_Invalid(t *testing.T) {
	withHome(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("sprt: [\n"), 0o644))
	_, err := LoadFile(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	body := "traces_dir: /tmp/t\nsprt:\n  p0: 0.2\n  p1: 0.2\n  alpha: 1.5\nskill_dirs:\n  - path: \"\"\n"
	require.NoError(t, os.WriteFile(invalid, []byte(body), 0o644))
	_, err = LoadFile(invalid)
	require.Error(t, err)
	msg := err.Error()
	assert.True(t, strings.Contains(msg, "dataset_path is required"), msg)
	assert.Contains(t, msg, "sprt.alpha")
	assert.Contains(t, msg, "must differ")
	assert.Contains(t, msg, "skill_dirs[0].path")

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestHomeDir_Override(t *testing.T) {
	state := t.TempDir()
	t.Setenv("SKILLROUTE_HOME", state)
	dir, err := HomeDir()
	require.NoError(t, err)
	assert.Equal(t, state, dir)

	p, err := ConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(state, "skillroute.yaml"), p)
}
