package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamusis/skillroute/internal/lexicon"
	"github.com/kamusis/skillroute/internal/trace"
)

var (
	flagTracesOut         string
	flagTracesCorrections bool
)

var tracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "Summarize recorded traces as a Markdown report",
	Long: `Read every trace in the traces directory and print a session report:
total traces, average score, top match, critical failures (score < 0.60),
thesaurus suggestions (score < 0.85) and a per-persona breakdown.

With --apply-corrections each critical failure is stored as a correction
pointing at the skill it matched.`,
	Args: cobra.NoArgs,
	RunE: runTraces,
}

func init() {
	tracesCmd.Flags().StringVar(&flagTracesOut, "out", "", "Write the report to a file instead of stdout")
	tracesCmd.Flags().BoolVar(&flagTracesCorrections, "apply-corrections", false, "Store critical failures as corrections")
	rootCmd.AddCommand(tracesCmd)
}

func runTraces(_ *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	recs, skipped, err := trace.LoadDir(cfg.TracesDir)
	if err != nil {
		return err
	}
	for _, name := range skipped {
		printWarn("", fmt.Sprintf("unreadable trace skipped: %s", name))
	}
	sum := trace.Summarize(recs)

	var w io.Writer = os.Stdout
	if flagTracesOut != "" {
		f, err := os.Create(flagTracesOut)
		if err != nil {
			return fmt.Errorf("cannot create report: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := trace.RenderMarkdown(w, sum, time.Now()); err != nil {
		return err
	}
	if flagTracesOut != "" {
		printOK("", fmt.Sprintf("report written: %s", flagTracesOut))
	}

	if !flagTracesCorrections {
		return nil
	}
	corr, err := lexicon.LoadCorrections(cfg.CorrectionsPath)
	if err != nil {
		return err
	}
	n := sum.ApplyCorrections(corr)
	if n == 0 {
		printSkip("", "no critical failures to correct")
		return nil
	}
	if err := corr.Save(cfg.CorrectionsPath); err != nil {
		return err
	}
	printOK("", fmt.Sprintf("%d correction(s) stored in %s", n, cfg.CorrectionsPath))
	return nil
}
