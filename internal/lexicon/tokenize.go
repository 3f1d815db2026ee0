package lexicon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// DefaultStopwords is the built-in English stopword list.
var DefaultStopwords = []string{
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by",
	"is", "are", "was", "were", "be", "been", "it", "this", "that", "these", "those",
	"i", "you", "he", "she", "we", "they", "me", "him", "her", "us", "them",
	"what", "which", "who", "whom", "whose", "where", "when", "why", "how",
	"some", "any", "no", "not", "do", "does", "did", "done", "will", "would", "shall", "should",
	"can", "could", "may", "might", "must", "have", "has", "had", "go", "get", "make",
}

// Tokenizer splits text into lower-cased word tokens and drops stopwords.
// A Tokenizer is safe for concurrent use once constructed.
type Tokenizer struct {
	stop map[string]struct{}
}

// NewTokenizer returns a Tokenizer using DefaultStopwords plus extra.
func NewTokenizer(extra ...string) *Tokenizer {
	t := &Tokenizer{stop: make(map[string]struct{}, len(DefaultStopwords)+len(extra))}
	for _, w := range DefaultStopwords {
		t.stop[w] = struct{}{}
	}
	for _, w := range extra {
		w = strings.TrimSpace(fold(w))
		if w != "" {
			t.stop[w] = struct{}{}
		}
	}
	return t
}

// LoadStopwords reads a JSON array of stopwords from path. A missing file yields nil.
func LoadStopwords(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read stopwords %s: %w", path, err)
	}
	var words []string
	if err := json.Unmarshal(b, &words); err != nil {
		return nil, fmt.Errorf("invalid stopwords JSON %s: %w", path, err)
	}
	return words, nil
}

// IsStopword reports whether w (already lower-cased) is a stopword.
func (t *Tokenizer) IsStopword(w string) bool {
	_, ok := t.stop[w]
	return ok
}

// Tokens returns the word tokens of text with stopwords removed. If every
// token is a stopword the unfiltered tokens are returned instead, so a
// non-empty text never tokenizes to nothing.
func (t *Tokenizer) Tokens(text string) []string {
	all := Split(text)
	if len(all) == 0 {
		return nil
	}
	out := make([]string, 0, len(all))
	for _, tok := range all {
		if !t.IsStopword(tok) {
			out = append(out, tok)
		}
	}
	if len(out) == 0 {
		return all
	}
	return out
}

// Split normalizes text and splits it into word tokens without stopword filtering.
func Split(text string) []string {
	if text == "" {
		return nil
	}
	return strings.FieldsFunc(fold(text), func(r rune) bool {
		return !isWordRune(r)
	})
}

// NormalizeQuery returns the lookup key for a query: lower-cased and trimmed.
func NormalizeQuery(q string) string {
	return strings.TrimSpace(fold(q))
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// fold applies NFKC normalization and Unicode lower-casing.
func fold(s string) string {
	// cases.Caser keeps state and must not be shared between goroutines.
	return cases.Lower(language.Und).String(norm.NFKC.String(s))
}
