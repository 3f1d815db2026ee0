package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kamusis/skillroute/internal/sprt"
)

var (
	flagSPRTP0    float64
	flagSPRTP1    float64
	flagSPRTAlpha float64
	flagSPRTBeta  float64
)

var sprtCmd = &cobra.Command{
	Use:   "sprt [observation...]",
	Short: "Run the SPRT gate on explicit pass/fail observations",
	Long: `Fold a stream of observations (1 = fail, 0 = pass) into a sequential
probability ratio test and print the decision as JSON.

Observations are read from the arguments, or from stdin when none are
given. Both "0 1 0" and a JSON array "[0,1,0]" are accepted.

Hypothesis and error rates default to the sprt section of the config.`,
	RunE: runSPRT,
}

func init() {
	d := sprt.DefaultParams()
	sprtCmd.Flags().Float64Var(&flagSPRTP0, "p0", d.P0, "Failure rate under the baseline hypothesis")
	sprtCmd.Flags().Float64Var(&flagSPRTP1, "p1", d.P1, "Failure rate under the regressed hypothesis")
	sprtCmd.Flags().Float64Var(&flagSPRTAlpha, "alpha", d.Alpha, "False-reject rate")
	sprtCmd.Flags().Float64Var(&flagSPRTBeta, "beta", d.Beta, "False-accept rate")
	rootCmd.AddCommand(sprtCmd)
}

func runSPRT(cmd *cobra.Command, args []string) error {
	params := sprt.DefaultParams()
	if cfg, err := loadConfig(); err == nil {
		params = sprtParams(cfg)
	}
	f := cmd.Flags()
	if f.Changed("p0") {
		params.P0 = flagSPRTP0
	}
	if f.Changed("p1") {
		params.P1 = flagSPRTP1
	}
	if f.Changed("alpha") {
		params.Alpha = flagSPRTAlpha
	}
	if f.Changed("beta") {
		params.Beta = flagSPRTBeta
	}

	input := strings.Join(args, " ")
	if len(args) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("cannot read observations: %w", err)
		}
		input = string(b)
	}
	obs, err := parseObservations(input)
	if err != nil {
		return err
	}

	res, err := sprt.Evaluate(obs, params)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// parseObservations accepts a JSON array or whitespace/comma separated integers.
func parseObservations(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []int{}, nil
	}
	if strings.HasPrefix(s, "[") {
		var out []int
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("invalid observation array: %w", err)
		}
		return out, nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\n' || r == '\t' || r == '\r' })
	out := make([]int, 0, len(fields))
	for _, fld := range fields {
		n, err := strconv.Atoi(fld)
		if err != nil {
			return nil, fmt.Errorf("invalid observation %q: %w", fld, err)
		}
		out = append(out, n)
	}
	return out, nil
}
