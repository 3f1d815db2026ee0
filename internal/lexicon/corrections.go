package lexicon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CorrectionScore is the score reported for a correction-mapped query. It is
// above any reachable cosine similarity.
const CorrectionScore = 1.1

// GlobalPrefix marks a trigger that belongs to the shared global skill set.
const GlobalPrefix = "GLOBAL:"

// ErrInvalidCorrection is returned for an empty phrase or trigger.
var ErrInvalidCorrection = errors.New("invalid correction")

// Corrections holds explicit query overrides and synonym injections.
type Corrections struct {
	PhraseMappings map[string]string   `json:"phrase_mappings"`
	SynonymUpdates map[string][]string `json:"synonym_updates"`
}

// NewCorrections returns an empty Corrections.
func NewCorrections() *Corrections {
	return &Corrections{PhraseMappings: map[string]string{}, SynonymUpdates: map[string][]string{}}
}

// LoadCorrections reads a corrections JSON file. A missing file yields empty
// corrections. Phrase keys are normalized and entries with an empty phrase or
// trigger are dropped.
func LoadCorrections(path string) (*Corrections, error) {
	c := NewCorrections()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("cannot read corrections %s: %w", path, err)
	}
	var raw Corrections
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("invalid corrections JSON %s: %w", path, err)
	}
	for phrase, trigger := range raw.PhraseMappings {
		_ = c.Add(phrase, trigger)
	}
	for word, syns := range raw.SynonymUpdates {
		word = NormalizeQuery(word)
		if word == "" {
			continue
		}
		c.SynonymUpdates[word] = append(c.SynonymUpdates[word], syns...)
	}
	return c, nil
}

// Lookup returns the trigger mapped to the normalized form of query.
func (c *Corrections) Lookup(query string) (string, bool) {
	if c == nil {
		return "", false
	}
	t, ok := c.PhraseMappings[NormalizeQuery(query)]
	return t, ok
}

// Add maps phrase to trigger, replacing any earlier mapping.
func (c *Corrections) Add(phrase, trigger string) error {
	phrase = NormalizeQuery(phrase)
	trigger = strings.TrimSpace(trigger)
	if phrase == "" || trigger == "" {
		return fmt.Errorf("%w: phrase %q trigger %q", ErrInvalidCorrection, phrase, trigger)
	}
	if c.PhraseMappings == nil {
		c.PhraseMappings = map[string]string{}
	}
	c.PhraseMappings[phrase] = trigger
	return nil
}

// Phrases returns the mapped phrases in sorted order.
func (c *Corrections) Phrases() []string {
	out := make([]string, 0, len(c.PhraseMappings))
	for p := range c.PhraseMappings {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Save atomically writes the corrections to path.
func (c *Corrections) Save(path string) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal corrections: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("cannot write corrections: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("cannot replace %s: %w", path, err)
	}
	return nil
}

// IsGlobal reports whether trigger names a global skill.
func IsGlobal(trigger string) bool {
	return strings.HasPrefix(trigger, GlobalPrefix)
}
