package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/kamusis/skillroute/internal/config"
	"github.com/kamusis/skillroute/internal/dataset"
	"github.com/kamusis/skillroute/internal/lexicon"
	"github.com/kamusis/skillroute/internal/search/index"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run pre-flight environment checks",
	Long: `Check that skillroute's configuration, lexicon files and dataset are usable.
Run this command when something seems wrong, or before filing a bug report.`,
	RunE: runDoctor,
}

var doctorFixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Automatically fix detected issues",
	Long: `Fix detected issues in the skillroute environment.

Currently fixes:
  - Interrupted merge: restores the dataset from its leftover backup

Run 'skillroute doctor' first to see what will be fixed.`,
	RunE: runDoctorFix,
}

func init() {
	doctorCmd.AddCommand(doctorFixCmd)
	rootCmd.AddCommand(doctorCmd)
}

func runDoctorFix(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	printSection("skillroute doctor fix")
	fmt.Println("\n[ Interrupted merge ]")
	if !dataset.HasBackup(cfg.DatasetPath) {
		printOK("", "no leftover backup found; nothing to fix")
		return nil
	}

	lock := flock.New(dataset.LockPath(cfg.DatasetPath))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("cannot acquire dataset lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w; run 'skillroute doctor fix' after it finishes", dataset.ErrMergeInProgress)
	}
	defer func() { _ = lock.Unlock() }()

	if _, err := dataset.Recover(cfg.DatasetPath); err != nil {
		printErr("", err.Error())
		return err
	}
	printRestore("", fmt.Sprintf("dataset restored: %s", cfg.DatasetPath))
	return nil
}

func runDoctor(_ *cobra.Command, _ []string) error {
	allOK := true
	failD := func(format string, args ...any) {
		printErr("", fmt.Sprintf(format, args...))
		allOK = false
	}

	printSection("skillroute doctor")
	fmt.Println()

	// ── Check 1: config ──────────────────────────────────────────────────────
	fmt.Println("[ skillroute.yaml ]")
	cfg, loadErr := loadConfig()
	if loadErr != nil {
		failD("%v", loadErr)
	} else {
		printOK("", fmt.Sprintf("valid config: %d skill dir(s), core skills %v", len(cfg.SkillDirs), cfg.CoreSkills))
		for _, d := range cfg.SkillDirs {
			if _, err := os.Stat(d.Path); os.IsNotExist(err) {
				printMiss("", fmt.Sprintf("skill dir not found: %s", d.Path))
			}
		}
	}
	fmt.Println()

	if loadErr != nil {
		fmt.Println("===================")
		fmt.Fprintln(os.Stderr, "✗  One or more checks failed. See details above.")
		return fmt.Errorf("doctor found issues")
	}

	// ── Check 2: thesaurus ───────────────────────────────────────────────────
	fmt.Println("[ Thesaurus ]")
	th, issues, err := lexicon.LoadThesaurus(cfg.ThesaurusPath)
	switch {
	case err != nil:
		failD("%v", err)
	case len(issues) > 0:
		for _, is := range issues {
			printWarn("", is.String())
		}
		printInfo("", fmt.Sprintf("%d word(s) loaded, %d line(s) skipped", th.Len(), len(issues)))
	default:
		printOK("", fmt.Sprintf("%d word(s) loaded", th.Len()))
	}
	fmt.Println()

	// ── Check 3: corrections ─────────────────────────────────────────────────
	fmt.Println("[ Corrections ]")
	if corr, err := lexicon.LoadCorrections(cfg.CorrectionsPath); err != nil {
		failD("%v", err)
	} else {
		printOK("", fmt.Sprintf("%d phrase correction(s)", len(corr.Phrases())))
	}
	fmt.Println()

	// ── Check 4: dataset ─────────────────────────────────────────────────────
	fmt.Println("[ Dataset ]")
	if ds, err := dataset.Load(cfg.DatasetPath); err != nil {
		failD("%v", err)
	} else if len(ds.TestCases) == 0 {
		printMiss("", fmt.Sprintf("no test cases yet: %s", cfg.DatasetPath))
	} else {
		printOK("", fmt.Sprintf("%d test case(s), baseline accuracy %.1f%%", len(ds.TestCases), ds.BaselineAccuracy*100))
	}
	if dataset.HasBackup(cfg.DatasetPath) {
		failD("leftover backup %s: a merge was interrupted, run 'skillroute doctor fix'", dataset.BackupPath(cfg.DatasetPath))
	}
	lock := flock.New(dataset.LockPath(cfg.DatasetPath))
	if locked, err := lock.TryLock(); err != nil {
		printWarn("", fmt.Sprintf("cannot check dataset lock: %v", err))
	} else if !locked {
		printWarn("", "a merge is running right now")
	} else {
		_ = lock.Unlock()
	}
	fmt.Println()

	// ── Check 5: traces ──────────────────────────────────────────────────────
	fmt.Println("[ Traces ]")
	if entries, err := os.ReadDir(cfg.TracesDir); err != nil {
		printMiss("", fmt.Sprintf("traces dir not found: %s", cfg.TracesDir))
	} else {
		var pending int
		for _, e := range entries {
			if !e.IsDir() {
				pending++
			}
		}
		printOK("", fmt.Sprintf("%d file(s) waiting in %s", pending, cfg.TracesDir))
	}
	fmt.Println()

	// ── Check 6: index snapshot ──────────────────────────────────────────────
	fmt.Println("[ Index snapshot ]")
	if home, err := config.HomeDir(); err == nil {
		dir := filepath.Join(home, "index")
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			printMiss("", "no snapshot yet (run 'skillroute index')")
		} else if snap, err := index.Load(dir); err != nil {
			failD("snapshot %s is unreadable: %v (run 'skillroute index')", dir, err)
		} else {
			printOK("", fmt.Sprintf("%d skills, %d terms, built %s", snap.Manifest.SkillCount, snap.Manifest.Dim, snap.Manifest.CreatedAt))
		}
	}
	fmt.Println()

	// ── Summary ──────────────────────────────────────────────────────────────
	fmt.Println("===================")
	if allOK {
		fmt.Println("✓  All checks passed. skillroute is ready to use.")
		return nil
	}
	fmt.Fprintln(os.Stderr, "✗  One or more checks failed. See details above.")
	return fmt.Errorf("doctor found issues")
}

