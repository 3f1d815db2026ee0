package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kamusis/skillroute/internal/config"
	"github.com/kamusis/skillroute/internal/search/index"
)

var flagIndexOut string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the index and export an inspectable snapshot",
	Long: `Build the routing index from the configured skill directories and write
a snapshot (manifest, skills.jsonl, vocab.jsonl, vectors.f64) for inspection.

The snapshot is installed atomically; an existing snapshot is replaced only
after the new one is fully written.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&flagIndexOut, "out", "", "Output directory (default ~/.skillroute/index)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(_ *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	out := flagIndexOut
	if out == "" {
		dir, err := config.HomeDir()
		if err != nil {
			return err
		}
		out = filepath.Join(dir, "index")
	}

	eng, err := loadEngine(cfg, log)
	if err != nil {
		return err
	}
	snap, err := index.Export(eng.index, out)
	if err != nil {
		return fmt.Errorf("cannot export index: %w", err)
	}

	printSection("skillroute index")
	printOK("", fmt.Sprintf("%d skills, %d vocabulary terms", snap.Manifest.SkillCount, snap.Manifest.Dim))
	if len(eng.issues) > 0 {
		printWarn("", fmt.Sprintf("%d thesaurus line(s) skipped (run 'skillroute doctor')", len(eng.issues)))
	}
	printOK("", fmt.Sprintf("snapshot written: %s", out))
	return nil
}
