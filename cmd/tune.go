package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamusis/skillroute/internal/dataset"
	"github.com/kamusis/skillroute/internal/lexicon"
	"github.com/kamusis/skillroute/internal/tuner"
)

var (
	flagTuneApply bool
	flagTuneJSON  bool
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Propose thesaurus weight changes from failing test cases",
	Long: `Route every labeled test case and, for each failure, vote on the query's
tokens: a token found only in the wrongly matched skill is voted down, a
token found only in the expected skill is voted up. Each vote moves the
token's self-weight by 0.1 within [0.1, 2.0].

The output is advisory. Pass --apply to write the proposed weights into the
thesaurus file (a .bak copy of the previous file is kept). Only the affected
bullet lines are edited; headings, comments and line order are preserved.`,
	Args: cobra.NoArgs,
	RunE: runTune,
}

func init() {
	tuneCmd.Flags().BoolVar(&flagTuneApply, "apply", false, "Write the proposed weights into the thesaurus file")
	tuneCmd.Flags().BoolVar(&flagTuneJSON, "json", false, "Print the proposal as JSON")
	rootCmd.AddCommand(tuneCmd)
}

func runTune(_ *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ds, err := dataset.Load(cfg.DatasetPath)
	if err != nil {
		return err
	}
	eng, err := loadEngine(cfg, log)
	if err != nil {
		return err
	}
	prop, err := tuner.Analyze(eng.index, ds)
	if err != nil {
		return err
	}

	if flagTuneJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(prop); err != nil {
			return err
		}
	} else {
		printSection("skillroute tune")
		if err := prop.Render(os.Stdout); err != nil {
			return err
		}
	}

	if !flagTuneApply || len(prop.Changes) == 0 {
		return nil
	}
	if cfg.ThesaurusPath == "" {
		return fmt.Errorf("thesaurus_path is not configured")
	}

	if err := copyFile(cfg.ThesaurusPath, cfg.ThesaurusPath+".bak"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot back up thesaurus: %w", err)
	} else if err == nil {
		printBackup("", fmt.Sprintf("previous thesaurus saved: %s.bak", cfg.ThesaurusPath))
	}
	if err := lexicon.PatchSelfWeightsFile(cfg.ThesaurusPath, prop.Weights()); err != nil {
		return err
	}
	printOK("", fmt.Sprintf("%d weight(s) written to %s", len(prop.Changes), cfg.ThesaurusPath))
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
