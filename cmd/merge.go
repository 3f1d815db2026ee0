package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kamusis/skillroute/internal/dataset"
	"github.com/kamusis/skillroute/internal/fishtest"
)

var (
	flagMergeIncoming string
	flagMergeDataset  string
	flagMergeVerify   bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Fold recorded traces into the labeled dataset",
	Long: `Merge every trace file in the traces directory into the labeled dataset.

New queries become federated test cases; a query already in the dataset
takes the newest observed trigger and is tagged real-user. Malformed trace
files move to failed/, applied ones to processed/.

The dataset is backed up first. If anything fails (including --verify
finding a regression) the backup is restored and no trace file is archived.
A leftover backup from an interrupted merge is restored before merging.`,
	Args: cobra.NoArgs,
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVar(&flagMergeIncoming, "incoming", "", "Trace directory (default: traces_dir from config)")
	mergeCmd.Flags().StringVar(&flagMergeDataset, "dataset", "", "Dataset file (default: dataset_path from config)")
	mergeCmd.Flags().BoolVar(&flagMergeVerify, "verify", false, "Re-run the dataset after merging and roll back on regression")
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(_ *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	incoming := firstNonEmpty(flagMergeIncoming, cfg.TracesDir)
	dsPath := firstNonEmpty(flagMergeDataset, cfg.DatasetPath)

	opts := []dataset.Option{
		dataset.WithLogger(log),
		dataset.WithMinScore(cfg.Merge.MinScore),
		dataset.WithMaxTraceBytes(cfg.Merge.MaxTraceBytes),
		dataset.WithWorkers(cfg.Merge.Workers),
		dataset.WithLockTimeout(time.Duration(cfg.Merge.LockTimeoutSec) * time.Second),
	}
	if flagMergeVerify {
		eng, err := loadEngine(cfg, log)
		if err != nil {
			return err
		}
		verify := func(ctx context.Context, ds *dataset.Dataset) error {
			rep, err := fishtest.Run(ctx, eng.index, ds, fishtest.Options{Workers: cfg.Merge.Workers, Logger: log})
			if err != nil {
				return err
			}
			log.Info("verification run",
				zap.Int("passed", rep.Passed),
				zap.Int("total", rep.Total),
				zap.Float64("accuracy", rep.Accuracy),
			)
			if rep.Regression {
				return fmt.Errorf("accuracy %.1f%% below baseline %.1f%%", rep.Accuracy*100, rep.Baseline*100)
			}
			return nil
		}
		opts = append(opts, dataset.WithVerify(verify, time.Duration(cfg.Merge.VerifyTimeoutSec)*time.Second))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	printSection("skillroute merge")
	rep, err := dataset.NewMerger(opts...).Merge(ctx, incoming, dsPath)
	if rep != nil && rep.Recovered {
		printRestore("", "restored dataset from leftover backup")
	}
	if rep != nil {
		for _, q := range rep.Quarantined {
			printWarn("", fmt.Sprintf("quarantined %s", filepath.Base(q)))
		}
	}
	if err != nil {
		if errors.Is(err, dataset.ErrMergeInProgress) {
			return fmt.Errorf("%w\nAnother 'skillroute merge' is running; try again when it finishes.", err)
		}
		printErr("", "merge rolled back; dataset unchanged")
		return err
	}

	if rep.NoOp() {
		printSkip("", fmt.Sprintf("nothing to merge in %s", incoming))
		return nil
	}
	printOK("", fmt.Sprintf("%d trace file(s) applied: %d new case(s), %d updated", len(rep.Applied)+len(rep.Unarchived), rep.Added, rep.Updated))
	for _, u := range rep.Unarchived {
		printWarn("", fmt.Sprintf("merged but left in place (re-merging is safe): %s", filepath.Base(u)))
	}
	if rep.Skipped > 0 {
		printWarn("", fmt.Sprintf("%d invalid entr(ies) skipped inside applied files", rep.Skipped))
	}
	printInfo("", fmt.Sprintf("dataset: %s", dsPath))
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
