package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kamusis/skillroute/internal/lexicon"
)

var flagCorrectSynonyms []string

var correctCmd = &cobra.Command{
	Use:   "correct <phrase> <trigger>",
	Short: "Pin a query phrase to a trigger",
	Long: `Add a phrase correction. Queries equal to the phrase (case and surrounding
whitespace ignored) route to the trigger with score 1.10, bypassing vector
scoring.

With --synonym word=syn, a synonym injection is also stored; it is merged
into the thesaurus at weight 1.0 whenever the index is built.

Example:
  skillroute correct "ship it" GLOBAL:deployer
  skillroute correct "wrap up" /wrap-it-up --synonym finish=wrap`,
	Args: cobra.ExactArgs(2),
	RunE: runCorrect,
}

func init() {
	correctCmd.Flags().StringArrayVar(&flagCorrectSynonyms, "synonym", nil, "Synonym injection word=synonym (repeatable)")
	rootCmd.AddCommand(correctCmd)
}

func runCorrect(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	corr, err := lexicon.LoadCorrections(cfg.CorrectionsPath)
	if err != nil {
		return err
	}

	phrase, trigger := args[0], args[1]
	if err := corr.Add(phrase, trigger); err != nil {
		return err
	}
	for _, s := range flagCorrectSynonyms {
		word, syn, ok := strings.Cut(s, "=")
		word, syn = lexicon.NormalizeQuery(word), lexicon.NormalizeQuery(syn)
		if !ok || word == "" || syn == "" {
			return fmt.Errorf("invalid --synonym %q: expected word=synonym", s)
		}
		corr.SynonymUpdates[word] = append(corr.SynonymUpdates[word], syn)
	}

	if err := corr.Save(cfg.CorrectionsPath); err != nil {
		return err
	}
	printOK("", fmt.Sprintf("%q → %s", lexicon.NormalizeQuery(phrase), trigger))
	printInfo("", fmt.Sprintf("corrections saved: %s", cfg.CorrectionsPath))
	return nil
}
