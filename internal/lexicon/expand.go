package lexicon

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// StemWeight is the weight given to a stem derived from a query token.
const StemWeight = 0.8

// Expander turns a query into weighted tokens using stemming and a thesaurus.
type Expander struct {
	tok *Tokenizer
	th  *Thesaurus

	mu    sync.Mutex
	cache map[string]map[string]float64
}

// NewExpander returns an Expander. A nil thesaurus behaves as an empty one.
func NewExpander(tok *Tokenizer, th *Thesaurus) *Expander {
	if th == nil {
		th = NewThesaurus()
	}
	return &Expander{tok: tok, th: th, cache: map[string]map[string]float64{}}
}

// Thesaurus returns the thesaurus used for expansion.
func (e *Expander) Thesaurus() *Thesaurus { return e.th }

// Expand returns token weights for query. Results are cached per query text;
// the returned map is a copy the caller may modify.
func (e *Expander) Expand(query string) map[string]float64 {
	e.mu.Lock()
	cached, ok := e.cache[query]
	e.mu.Unlock()
	if !ok {
		cached = e.ExpandTokens(e.tok.Tokens(query))
		e.mu.Lock()
		e.cache[query] = cached
		e.mu.Unlock()
	}
	out := make(map[string]float64, len(cached))
	for k, v := range cached {
		out[k] = v
	}
	return out
}

// ExpandTokens expands an already tokenized query. Each token starts at 1.0;
// stems and synonyms, including a token listed under itself, only raise weights.
func (e *Expander) ExpandTokens(tokens []string) map[string]float64 {
	weights := make(map[string]float64, len(tokens)*2)
	raise := func(tok string, w float64) {
		if cur, ok := weights[tok]; !ok || w > cur {
			weights[tok] = w
		}
	}
	for _, t := range tokens {
		raise(t, 1.0)
	}
	for _, t := range tokens {
		if stem, ok := Stem(t); ok {
			raise(stem, StemWeight)
		}
		for syn, w := range e.th.Lookup(t) {
			raise(syn, w)
		}
	}
	return weights
}

// Stem strips one common English suffix from tokens longer than four runes.
// It reports false when no usable stem (longer than two runes) results.
func Stem(tok string) (string, bool) {
	if utf8.RuneCountInString(tok) <= 4 {
		return "", false
	}
	var stem string
	switch {
	case strings.HasSuffix(tok, "ing"):
		stem = tok[:len(tok)-3]
	case strings.HasSuffix(tok, "ed"), strings.HasSuffix(tok, "es"):
		stem = tok[:len(tok)-2]
	case strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss"):
		stem = tok[:len(tok)-1]
	default:
		return "", false
	}
	if utf8.RuneCountInString(stem) <= 2 {
		return "", false
	}
	return stem, true
}
