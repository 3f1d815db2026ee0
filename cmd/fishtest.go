package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kamusis/skillroute/internal/config"
	"github.com/kamusis/skillroute/internal/dataset"
	"github.com/kamusis/skillroute/internal/fishtest"
	"github.com/kamusis/skillroute/internal/sprt"
)

var (
	flagFishtestFile string
	flagFishtestJSON bool
)

var fishtestCmd = &cobra.Command{
	Use:   "fishtest",
	Short: "Re-run the labeled dataset and gate with SPRT",
	Long: `Route every test case of the labeled dataset through the current index.
A case fails when the top trigger differs from the expected one, its score
is below min_score, or its global flag disagrees with expected_global.

The pass/fail stream (1 = fail) is fed to the SPRT gate. The command exits
non-zero when SPRT rejects or accuracy falls below baseline_accuracy.`,
	Args: cobra.NoArgs,
	RunE: runFishtest,
}

func init() {
	fishtestCmd.Flags().StringVar(&flagFishtestFile, "file", "", "Dataset file (default: dataset_path from config)")
	fishtestCmd.Flags().BoolVar(&flagFishtestJSON, "json", false, "Print the full report as JSON")
	rootCmd.AddCommand(fishtestCmd)
}

type fishtestOutput struct {
	*fishtest.Report
	SPRT sprt.Result `json:"sprt"`
}

func runFishtest(_ *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	path := firstNonEmpty(flagFishtestFile, cfg.DatasetPath)
	ds, err := dataset.Load(path)
	if err != nil {
		return err
	}
	eng, err := loadEngine(cfg, log)
	if err != nil {
		return err
	}

	rep, err := fishtest.Run(context.Background(), eng.index, ds, fishtest.Options{Workers: cfg.Merge.Workers, Logger: log})
	if err != nil {
		return err
	}
	verdict, err := sprt.Evaluate(rep.Observations, sprtParams(cfg))
	if err != nil {
		return err
	}

	if flagFishtestJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(fishtestOutput{Report: rep, SPRT: verdict}); err != nil {
			return err
		}
	} else {
		printFishtest(path, rep, verdict)
	}

	if verdict.Decision == sprt.Reject || rep.Regression {
		return fmt.Errorf("fishtest failed: %s, accuracy %.1f%%", verdict.Decision, rep.Accuracy*100)
	}
	return nil
}

func sprtParams(cfg *config.Config) sprt.Params {
	return sprt.Params{P0: cfg.SPRT.P0, P1: cfg.SPRT.P1, Alpha: cfg.SPRT.Alpha, Beta: cfg.SPRT.Beta}
}

func printFishtest(path string, rep *fishtest.Report, verdict sprt.Result) {
	printSection("skillroute fishtest")
	printInfo("", fmt.Sprintf("dataset: %s (%d cases)", path, rep.Total))

	if failures := rep.Failures(); len(failures) > 0 {
		printBullet(fmt.Sprintf("Failures (%d):", len(failures)))
		for _, f := range failures {
			printErr(f.Query, fmt.Sprintf("got %s (%.2f)", emptyAsNA(f.Actual), f.Score))
			for _, r := range f.Reasons {
				fmt.Printf("        %s\n", r)
			}
		}
	}

	fmt.Println()
	line := fmt.Sprintf("accuracy %.1f%% (%d/%d), baseline %.1f%%", rep.Accuracy*100, rep.Passed, rep.Total, rep.Baseline*100)
	if rep.Regression {
		printWarn("", line+": regression")
	} else {
		printOK("", line)
	}
	msg := fmt.Sprintf("SPRT %s (llr %.3f, bounds [%.3f, %.3f], %d samples)",
		verdict.Decision, verdict.FinalLLR, verdict.LowerBound, verdict.UpperBound, verdict.SamplesEvaluated)
	switch verdict.Decision {
	case sprt.Accept:
		printOK("", msg)
	case sprt.Reject:
		printErr("", msg)
	default:
		printInfo("", msg)
	}
}
