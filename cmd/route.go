package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kamusis/skillroute/internal/metrics"
	"github.com/kamusis/skillroute/internal/search"
	"github.com/kamusis/skillroute/internal/trace"
)

var (
	flagRouteK      int
	flagRouteJSON   bool
	flagRouteRecord bool
)

var routeCmd = &cobra.Command{
	Use:   "route <query>",
	Short: "Rank skills for a free-text intent",
	Long: `Rank every registered skill against a query.

A query that matches a stored correction returns only the corrected trigger
with score 1.10. A query containing a skill's activation word scores that
skill at least 1.00.

With --record the top match is written to the traces directory for the
next 'skillroute merge'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRoute,
}

func init() {
	routeCmd.Flags().IntVar(&flagRouteK, "k", 5, "Number of results to show (0 = all)")
	routeCmd.Flags().BoolVar(&flagRouteJSON, "json", false, "Print results as JSON")
	routeCmd.Flags().BoolVar(&flagRouteRecord, "record", false, "Record the top match as a trace")
	rootCmd.AddCommand(routeCmd)
}

func runRoute(_ *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	eng, err := loadEngine(cfg, log)
	if err != nil {
		return err
	}
	query := strings.Join(args, " ")

	start := time.Now()
	results, err := eng.index.Search(query)
	if err != nil {
		return err
	}
	if len(results) > 0 {
		metrics.ObserveSearch(results[0].Source, time.Since(start))
	}

	var tracePath string
	if flagRouteRecord && len(results) > 0 {
		rec := trace.NewRecorder(cfg.TracesDir, cfg.Persona, log)
		tracePath, err = rec.Record(query, results[0])
		if err != nil {
			return fmt.Errorf("cannot record trace: %w", err)
		}
	}

	shown := results
	if flagRouteK > 0 && len(shown) > flagRouteK {
		shown = shown[:flagRouteK]
	}

	if flagRouteJSON {
		if shown == nil {
			shown = []search.SearchResult{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(shown)
	}

	printRouteResults(query, shown)
	if tracePath != "" {
		fmt.Println()
		printOK("", fmt.Sprintf("trace recorded: %s", tracePath))
	}
	return nil
}

func printRouteResults(query string, results []search.SearchResult) {
	fmt.Printf("\nskillroute route %q\n\n", query)
	fmt.Printf("Results (%d shown):\n", len(results))
	if len(results) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for i, r := range results {
		scope := ""
		if r.IsGlobal {
			scope = "global"
		}
		fmt.Fprintf(w, "  %d.\t[%.3f]\t%s\t%s\t%s\n", i+1, r.Score, r.Trigger, r.Source, scope)
	}
	_ = w.Flush()
}
