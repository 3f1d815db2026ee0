package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamusis/skillroute/internal/config"
	"github.com/kamusis/skillroute/internal/lexicon"
)

// thesaurusTemplate is written on first init. Only bullet lines are parsed.
const thesaurusTemplate = `# Thesaurus

Bullets map a word to its synonyms. A weight after a colon scales the
synonym (0.1 to 2.0, default 1.0). A word listed under itself sets its own
weight.

- start: begin, launch:0.8, kickoff
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the skillroute state directory and default files",
	Long: `Initialize ~/.skillroute/ (or $SKILLROUTE_HOME):

  skillroute.yaml     configuration
  .env                SKILLROUTE_* overrides
  skills/             local skill descriptors
  skills_db/          global skill descriptors (GLOBAL: prefix)
  traces/             recorded traces waiting for 'skillroute merge'
  thesaurus.md        synonym weights
  corrections.json    phrase corrections

Existing files are left untouched.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	// ── 1. State directory ────────────────────────────────────────────────────
	home, err := config.HomeDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", home, err)
	}
	printOK("", fmt.Sprintf("state directory ready: %s", home))

	// ── 2. Config ─────────────────────────────────────────────────────────────
	cfgPath, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg, err := config.DefaultConfig()
		if err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		printOK("", fmt.Sprintf("config written: %s", cfgPath))
	} else {
		printSkip("", fmt.Sprintf("config already exists: %s", cfgPath))
	}
	if err := config.EnsureDotEnvTemplate(); err != nil {
		return err
	}

	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		return err
	}

	// ── 3. Directories ────────────────────────────────────────────────────────
	dirs := []string{cfg.TracesDir}
	for _, d := range cfg.SkillDirs {
		dirs = append(dirs, d.Path)
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("cannot create %s: %w", d, err)
		}
		printOK("", fmt.Sprintf("directory ready: %s", d))
	}

	// ── 4. Lexicon files ──────────────────────────────────────────────────────
	if cfg.ThesaurusPath != "" {
		if _, err := os.Stat(cfg.ThesaurusPath); os.IsNotExist(err) {
			if err := os.WriteFile(cfg.ThesaurusPath, []byte(thesaurusTemplate), 0o644); err != nil {
				return fmt.Errorf("cannot write thesaurus: %w", err)
			}
			printOK("", fmt.Sprintf("thesaurus written: %s", cfg.ThesaurusPath))
		} else {
			printSkip("", fmt.Sprintf("thesaurus already exists: %s", cfg.ThesaurusPath))
		}
	}
	if cfg.CorrectionsPath != "" {
		if _, err := os.Stat(cfg.CorrectionsPath); os.IsNotExist(err) {
			if err := lexicon.NewCorrections().Save(cfg.CorrectionsPath); err != nil {
				return err
			}
			printOK("", fmt.Sprintf("corrections written: %s", cfg.CorrectionsPath))
		} else {
			printSkip("", fmt.Sprintf("corrections already exist: %s", cfg.CorrectionsPath))
		}
	}

	fmt.Println("\n✓  skillroute init complete. Run 'skillroute doctor' to verify your environment.")
	return nil
}
