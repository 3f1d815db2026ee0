package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SkillDir is one directory scanned for skill descriptors.
type SkillDir struct {
	Path   string `yaml:"path"`
	Prefix string `yaml:"prefix,omitempty"`
}

// SPRTConfig holds the sequential test hypotheses and error rates.
type SPRTConfig struct {
	P0    float64 `yaml:"p0"`
	P1    float64 `yaml:"p1"`
	Alpha float64 `yaml:"alpha"`
	Beta  float64 `yaml:"beta"`
}

// MergeConfig holds trace merge settings.
type MergeConfig struct {
	MinScore         float64 `yaml:"min_score"`
	MaxTraceBytes    int64   `yaml:"max_trace_bytes"`
	Workers          int     `yaml:"workers"`
	LockTimeoutSec   int     `yaml:"lock_timeout_sec"`
	VerifyTimeoutSec int     `yaml:"verify_timeout_sec"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Env   string `yaml:"env"`   // local, dev, prod
	Level string `yaml:"level"` // debug, info, warn, error
}

// HTTPConfig holds the intent API listener settings.
type HTTPConfig struct {
	Addr           string `yaml:"addr"`
	ReadTimeoutSec int    `yaml:"read_timeout_sec"`
	ShutdownSec    int    `yaml:"shutdown_timeout_sec"`
}

// Config is the in-memory representation of ~/.skillroute/skillroute.yaml.
type Config struct {
	SkillDirs       []SkillDir    `yaml:"skill_dirs,omitempty"`
	CoreSkills      bool          `yaml:"core_skills"`
	ThesaurusPath   string        `yaml:"thesaurus_path"`
	CorrectionsPath string        `yaml:"corrections_path"`
	StopwordsPath   string        `yaml:"stopwords_path,omitempty"`
	DatasetPath     string        `yaml:"dataset_path"`
	TracesDir       string        `yaml:"traces_dir"`
	Persona         string        `yaml:"persona,omitempty"`
	SPRT            SPRTConfig    `yaml:"sprt"`
	Merge           MergeConfig   `yaml:"merge"`
	Logging         LoggingConfig `yaml:"logging"`
	HTTP            HTTPConfig    `yaml:"http"`
}

// HomeDir returns the state directory, ~/.skillroute/ unless SKILLROUTE_HOME is set.
func HomeDir() (string, error) {
	if v := os.Getenv("SKILLROUTE_HOME"); v != "" {
		return ExpandPath(v)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".skillroute"), nil
}

// ConfigPath returns the absolute path to skillroute.yaml.
func ConfigPath() (string, error) {
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "skillroute.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

// DefaultConfig returns the Config written on first skillroute init.
func DefaultConfig() (*Config, error) {
	dir, err := HomeDir()
	if err != nil {
		return nil, err
	}
	j := func(parts ...string) string { return filepath.Join(append([]string{dir}, parts...)...) }

	cfg := &Config{
		SkillDirs: []SkillDir{
			{Path: j("skills")},
			{Path: j("skills_db"), Prefix: "GLOBAL:"},
		},
		CoreSkills:      true,
		ThesaurusPath:   j("thesaurus.md"),
		CorrectionsPath: j("corrections.json"),
		DatasetPath:     j("fishtest_data.json"),
		TracesDir:       j("traces"),
		Persona:         "ALFRED",
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.SPRT.P0 == 0 {
		c.SPRT.P0 = 0.05
	}
	if c.SPRT.P1 == 0 {
		c.SPRT.P1 = 0.20
	}
	if c.SPRT.Alpha == 0 {
		c.SPRT.Alpha = 0.05
	}
	if c.SPRT.Beta == 0 {
		c.SPRT.Beta = 0.20
	}
	if c.Merge.MinScore == 0 {
		c.Merge.MinScore = 0.85
	}
	if c.Merge.MaxTraceBytes <= 0 {
		c.Merge.MaxTraceBytes = 5 << 20
	}
	if c.Merge.Workers <= 0 {
		c.Merge.Workers = 4
	}
	if c.Merge.LockTimeoutSec <= 0 {
		c.Merge.LockTimeoutSec = 5
	}
	if c.Merge.VerifyTimeoutSec <= 0 {
		c.Merge.VerifyTimeoutSec = 120
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "local"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:8765"
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Persona == "" {
		c.Persona = "unknown"
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.DatasetPath == "" {
		errs = append(errs, errors.New("dataset_path is required"))
	}
	if c.TracesDir == "" {
		errs = append(errs, errors.New("traces_dir is required"))
	}
	for name, p := range map[string]float64{"p0": c.SPRT.P0, "p1": c.SPRT.P1, "alpha": c.SPRT.Alpha, "beta": c.SPRT.Beta} {
		if p <= 0 || p >= 1 {
			errs = append(errs, fmt.Errorf("sprt.%s must be in (0, 1), got %v", name, p))
		}
	}
	if c.SPRT.P0 == c.SPRT.P1 {
		errs = append(errs, errors.New("sprt.p0 and sprt.p1 must differ"))
	}
	if c.Merge.MinScore < 0 {
		errs = append(errs, fmt.Errorf("merge.min_score must be >= 0, got %v", c.Merge.MinScore))
	}
	for i, d := range c.SkillDirs {
		if strings.TrimSpace(d.Path) == "" {
			errs = append(errs, fmt.Errorf("skill_dirs[%d].path is empty", i))
		}
	}
	return errors.Join(errs...)
}

// Load reads and parses skillroute.yaml from the state directory.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads and parses the config at path, applying defaults and
// environment overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save marshals cfg and writes it to skillroute.yaml.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}

// applyEnv lets SKILLROUTE_* values from the environment or .env override the file.
func (c *Config) applyEnv() error {
	overrides := []struct {
		key string
		dst *string
	}{
		{"SKILLROUTE_PERSONA", &c.Persona},
		{"SKILLROUTE_LOG_LEVEL", &c.Logging.Level},
		{"SKILLROUTE_ENV", &c.Logging.Env},
		{"SKILLROUTE_DATASET", &c.DatasetPath},
		{"SKILLROUTE_TRACES_DIR", &c.TracesDir},
	}
	for _, o := range overrides {
		v, err := GetConfigValue(o.key)
		if err != nil {
			return err
		}
		if v != "" {
			*o.dst = v
		}
	}
	return nil
}

func (c *Config) expandPaths() error {
	paths := []*string{&c.ThesaurusPath, &c.CorrectionsPath, &c.StopwordsPath, &c.DatasetPath, &c.TracesDir}
	for i := range c.SkillDirs {
		paths = append(paths, &c.SkillDirs[i].Path)
	}
	for _, p := range paths {
		v, err := ExpandPath(*p)
		if err != nil {
			return err
		}
		*p = v
	}
	return nil
}
