package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kamusis/skillroute/internal/search"
	"github.com/kamusis/skillroute/internal/search/index"
)

var (
	flagInspectQuery string
	flagInspectJSON  bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <trigger>",
	Short: "Show how a skill is indexed and why it scores",
	Long: `Display a registered skill: its trigger, source, activation words and
the tokens of its indexed text.

With --query, also break the skill's score for that query down by token
(query weight × skill weight), so a surprising ranking can be explained.

Example:
  skillroute inspect /lets-go
  skillroute inspect GLOBAL:deployer --query "ship the release"`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&flagInspectQuery, "query", "", "Explain the skill's score for this query")
	inspectCmd.Flags().BoolVar(&flagInspectJSON, "json", false, "Print the explanation as JSON")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(_ *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	eng, err := loadEngine(cfg, log)
	if err != nil {
		return err
	}

	trigger := args[0]
	skill, ok := eng.index.Skill(trigger)
	if !ok {
		if near := similarTriggers(eng.index, trigger); len(near) > 0 {
			return fmt.Errorf("skill %q not found.\nDid you mean: %s", trigger, strings.Join(near, ", "))
		}
		return fmt.Errorf("skill %q not found.\nTip: run 'skillroute index' to list what is registered.", trigger)
	}

	var ex *index.Explanation
	if flagInspectQuery != "" {
		ex, err = eng.index.Explain(flagInspectQuery, trigger)
		if err != nil {
			return err
		}
	}
	if flagInspectJSON && ex != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ex)
	}

	printSkill(skill, docFor(eng.docs, trigger), eng.index.SkillTokens(trigger))
	if ex != nil {
		printExplanation(flagInspectQuery, ex)
	}
	return nil
}

func docFor(docs []search.SkillDoc, trigger string) search.SkillDoc {
	for _, d := range docs {
		if d.Trigger == trigger {
			return d
		}
	}
	return search.SkillDoc{}
}

// similarTriggers returns registered triggers containing arg, case-insensitively.
func similarTriggers(ix *index.Index, arg string) []string {
	lower := strings.ToLower(arg)
	var out []string
	for _, s := range ix.Skills() {
		if strings.Contains(strings.ToLower(s.Trigger), lower) {
			out = append(out, s.Trigger)
		}
	}
	return out
}

func printSkill(s index.Skill, doc search.SkillDoc, tokens []string) {
	fmt.Printf("📦 Skill: %s\n", s.Trigger)
	if doc.Name != "" && doc.Name != s.Trigger {
		fmt.Printf("Name:     %s\n", doc.Name)
	}
	if doc.Description != "" {
		fmt.Printf("Summary:  %s\n", strings.ReplaceAll(strings.TrimSpace(doc.Description), "\n", " "))
	}
	scope := "local"
	if s.Global {
		scope = "global"
	}
	fmt.Printf("Scope:    %s\n", scope)
	if s.Path != "" {
		fmt.Printf("Path:     %s\n", s.Path)
	}
	if len(s.ActivationWords) > 0 {
		fmt.Println("\nActivation words:")
		for _, w := range s.ActivationWords {
			fmt.Printf("  - %s\n", w)
		}
	}
	fmt.Printf("\nIndexed tokens (%d):\n  %s\n", len(tokens), strings.Join(tokens, " "))
}

func printExplanation(query string, ex *index.Explanation) {
	fmt.Printf("\nScore for %q: %.4f (%s)\n", query, ex.Score, ex.Source)
	fmt.Printf("Cosine:   %.4f\n", ex.Cosine)
	if len(ex.BoostedBy) > 0 {
		fmt.Printf("Boosted by activation words: %s\n", strings.Join(ex.BoostedBy, ", "))
	}
	if len(ex.Contributions) == 0 {
		fmt.Println("  (no shared tokens)")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  token\tquery\tskill\tproduct")
	for _, c := range ex.Contributions {
		fmt.Fprintf(w, "  %s\t%.3f\t%.3f\t%.4f\n", c.Token, c.QueryWeight, c.SkillWeight, c.Product)
	}
	_ = w.Flush()
}
