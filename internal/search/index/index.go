package index

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kamusis/skillroute/internal/lexicon"
	"github.com/kamusis/skillroute/internal/search"
)

// TriggerBoost is the score floor for a skill whose activation word appears in the query.
const TriggerBoost = 1.0

// Option configures an Index.
type Option func(*Index)

// WithTokenizer sets the tokenizer used for skill texts and queries.
func WithTokenizer(t *lexicon.Tokenizer) Option {
	return func(ix *Index) { ix.tok = t }
}

// WithThesaurus sets the thesaurus used for query expansion.
func WithThesaurus(th *lexicon.Thesaurus) Option {
	return func(ix *Index) { ix.th = th }
}

// WithCorrections sets the phrase overrides consulted before vector search.
func WithCorrections(c *lexicon.Corrections) Option {
	return func(ix *Index) { ix.corr = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ix *Index) { ix.logger = l }
}

// Index is a TF-IDF routing index. Skills are registered first, then Build
// seals the index and computes the vocabulary, IDF table and skill vectors.
// After Build the index is read-only apart from its query cache, and Search
// is safe for concurrent use.
type Index struct {
	tok    *lexicon.Tokenizer
	th     *lexicon.Thesaurus
	exp    *lexicon.Expander
	corr   *lexicon.Corrections
	logger *zap.Logger

	skills     []Skill
	byTrigger  map[string]int
	triggerMap map[string][]string

	built    bool
	vocab    []string
	vocabPos map[string]int
	df       []int
	idf      []float64
	vectors  [][]float64
	norms    []float64

	mu    sync.RWMutex
	cache map[string][]search.SearchResult
}

// New returns an empty Index.
func New(opts ...Option) *Index {
	ix := &Index{
		byTrigger:  map[string]int{},
		triggerMap: map[string][]string{},
		cache:      map[string][]search.SearchResult{},
	}
	for _, o := range opts {
		o(ix)
	}
	if ix.tok == nil {
		ix.tok = lexicon.NewTokenizer()
	}
	if ix.th == nil {
		ix.th = lexicon.NewThesaurus()
	}
	if ix.corr == nil {
		ix.corr = lexicon.NewCorrections()
	}
	if ix.logger == nil {
		ix.logger = zap.NewNop()
	}
	ix.exp = lexicon.NewExpander(ix.tok, ix.th)
	return ix
}

// Register adds a skill. Activation words are added to the trigger map.
func (ix *Index) Register(trigger, text string, activation ...string) error {
	return ix.add(Skill{
		Trigger:         trigger,
		Text:            text,
		Global:          lexicon.IsGlobal(trigger),
		ActivationWords: activation,
	})
}

// RegisterDoc adds a discovered skill descriptor.
func (ix *Index) RegisterDoc(doc search.SkillDoc) error {
	trigger := doc.Trigger
	if trigger == "" {
		trigger = doc.ID
	}
	return ix.add(Skill{
		Trigger:         trigger,
		Text:            CanonicalText(doc),
		Global:          doc.Global || lexicon.IsGlobal(trigger),
		Path:            doc.Path,
		ActivationWords: doc.ActivationWords,
	})
}

func (ix *Index) add(s Skill) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.built {
		return fmt.Errorf("register %q: %w", s.Trigger, ErrIndexSealed)
	}
	if strings.TrimSpace(s.Trigger) == "" {
		return ErrEmptyTrigger
	}
	if _, ok := ix.byTrigger[s.Trigger]; ok {
		return fmt.Errorf("register %q: %w", s.Trigger, ErrDuplicateTrigger)
	}

	var words []string
	for _, w := range s.ActivationWords {
		for _, tok := range lexicon.Split(w) {
			if ix.tok.IsStopword(tok) {
				continue
			}
			words = append(words, tok)
			if !slices.Contains(ix.triggerMap[tok], s.Trigger) {
				ix.triggerMap[tok] = append(ix.triggerMap[tok], s.Trigger)
			}
		}
	}
	s.ActivationWords = words

	ix.byTrigger[s.Trigger] = len(ix.skills)
	ix.skills = append(ix.skills, s)
	return nil
}

// Build computes the vocabulary, IDF table and skill vectors and seals the
// index against further registration. Calling Build again is a no-op, so
// built state never changes under a concurrent Search.
func (ix *Index) Build() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.built {
		return
	}

	n := len(ix.skills)
	counts := make([]map[string]int, n)
	df := map[string]int{}
	for i, s := range ix.skills {
		c := map[string]int{}
		for _, tok := range ix.tok.Tokens(s.Text) {
			c[tok]++
		}
		for tok := range c {
			df[tok]++
		}
		counts[i] = c
	}

	vocab := make([]string, 0, len(df))
	for tok := range df {
		vocab = append(vocab, tok)
	}
	sort.Strings(vocab)

	ix.vocab = vocab
	ix.vocabPos = make(map[string]int, len(vocab))
	ix.df = make([]int, len(vocab))
	ix.idf = make([]float64, len(vocab))
	for i, tok := range vocab {
		ix.vocabPos[tok] = i
		ix.df[i] = df[tok]
		ix.idf[i] = math.Log(float64(n)/float64(1+df[tok])) + 1
	}

	ix.vectors = make([][]float64, n)
	ix.norms = make([]float64, n)
	for i, c := range counts {
		v := make([]float64, len(vocab))
		for tok, tf := range c {
			p := ix.vocabPos[tok]
			v[p] = float64(tf) * ix.idf[p]
		}
		ix.vectors[i] = v
		ix.norms[i] = Norm(v)
	}

	ix.cache = map[string][]search.SearchResult{}
	ix.built = true
	ix.logger.Debug("index built",
		zap.Int("skills", n),
		zap.Int("vocab", len(vocab)),
		zap.Int("activation_words", len(ix.triggerMap)),
	)
}

// Search ranks every skill against query, highest score first. A query that
// matches a correction phrase returns only the corrected trigger. Results
// are memoized per normalized query until the next Build.
func (ix *Index) Search(query string) ([]search.SearchResult, error) {
	norm := lexicon.NormalizeQuery(query)

	ix.mu.RLock()
	built := ix.built
	cached, hit := ix.cache[norm]
	ix.mu.RUnlock()
	if !built {
		return nil, ErrNotBuilt
	}
	if hit {
		return cloneResults(cached), nil
	}

	results := ix.rank(norm)

	ix.mu.Lock()
	ix.cache[norm] = results
	ix.mu.Unlock()
	return cloneResults(results), nil
}

func (ix *Index) rank(norm string) []search.SearchResult {
	if trigger, ok := ix.corr.Lookup(norm); ok {
		return []search.SearchResult{{
			Trigger:  trigger,
			Score:    lexicon.CorrectionScore,
			IsGlobal: lexicon.IsGlobal(trigger),
			Source:   search.SourceCorrection,
		}}
	}

	q := ix.queryVector(norm)
	boosted := ix.boosts(norm)

	results := make([]search.SearchResult, len(ix.skills))
	for i, s := range ix.skills {
		score := ix.similarity(q, i)
		source := search.SourceVector
		if _, ok := boosted[s.Trigger]; ok && score < TriggerBoost {
			score = TriggerBoost
			source = search.SourceTrigger
		}
		results[i] = search.SearchResult{Trigger: s.Trigger, Score: score, IsGlobal: s.Global, Source: source}
	}
	search.SortResults(results)
	return results
}

// queryVector expands the query and weights it by the build-time IDF.
// Tokens outside the vocabulary contribute nothing.
func (ix *Index) queryVector(norm string) []float64 {
	q := make([]float64, len(ix.vocab))
	for tok, w := range ix.exp.Expand(norm) {
		if p, ok := ix.vocabPos[tok]; ok {
			q[p] = w * ix.idf[p]
		}
	}
	return q
}

func (ix *Index) similarity(q []float64, i int) float64 {
	c, err := Cosine(q, ix.vectors[i])
	if err != nil {
		return 0
	}
	return clampUnit(c)
}

// boosts returns the triggers whose activation words occur in the query,
// mapped to the words that matched.
func (ix *Index) boosts(norm string) map[string][]string {
	out := map[string][]string{}
	for _, tok := range ix.tok.Tokens(norm) {
		for _, trigger := range ix.triggerMap[tok] {
			if !slices.Contains(out[trigger], tok) {
				out[trigger] = append(out[trigger], tok)
			}
		}
	}
	return out
}

// Explain breaks down the score of trigger for query.
func (ix *Index) Explain(query, trigger string) (*Explanation, error) {
	ix.mu.RLock()
	built := ix.built
	ix.mu.RUnlock()
	if !built {
		return nil, ErrNotBuilt
	}
	i, ok := ix.byTrigger[trigger]
	if !ok {
		return nil, fmt.Errorf("%q: %w", trigger, ErrUnknownTrigger)
	}

	norm := lexicon.NormalizeQuery(query)
	q := ix.queryVector(norm)
	qn := Norm(q)
	cos := ix.similarity(q, i)

	ex := &Explanation{Trigger: trigger, Score: cos, Cosine: cos, Source: search.SourceVector}
	if den := qn * ix.norms[i]; den > 0 {
		for p, x := range q {
			s := ix.vectors[i][p]
			if x == 0 || s == 0 {
				continue
			}
			ex.Contributions = append(ex.Contributions, Contribution{
				Token:       ix.vocab[p],
				QueryWeight: x,
				SkillWeight: s,
				Product:     x * s / den,
			})
		}
		sort.SliceStable(ex.Contributions, func(a, b int) bool {
			return ex.Contributions[a].Product > ex.Contributions[b].Product
		})
	}
	if words := ix.boosts(norm)[trigger]; len(words) > 0 {
		ex.BoostedBy = words
		if ex.Score < TriggerBoost {
			ex.Score = TriggerBoost
			ex.Source = search.SourceTrigger
		}
	}
	if mapped, ok := ix.corr.Lookup(norm); ok && mapped == trigger {
		ex.Score = lexicon.CorrectionScore
		ex.Source = search.SourceCorrection
	}
	return ex, nil
}

// Len returns the number of registered skills.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.skills)
}

// Built reports whether Build has run.
func (ix *Index) Built() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.built
}

// Skills returns the registered skills in registration order.
func (ix *Index) Skills() []Skill {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Skill, len(ix.skills))
	copy(out, ix.skills)
	return out
}

// Skill returns the registered skill for trigger.
func (ix *Index) Skill(trigger string) (Skill, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	i, ok := ix.byTrigger[trigger]
	if !ok {
		return Skill{}, false
	}
	return ix.skills[i], true
}

// SkillTokens returns the distinct tokens of a skill's text, sorted.
func (ix *Index) SkillTokens(trigger string) []string {
	s, ok := ix.Skill(trigger)
	if !ok {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	for _, tok := range ix.tok.Tokens(s.Text) {
		if _, dup := seen[tok]; !dup {
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	return out
}

// Tokens tokenizes text with the index tokenizer.
func (ix *Index) Tokens(text string) []string { return ix.tok.Tokens(text) }

// Thesaurus returns the thesaurus used for expansion.
func (ix *Index) Thesaurus() *lexicon.Thesaurus { return ix.th }

// Vocabulary returns a copy of the sorted vocabulary.
func (ix *Index) Vocabulary() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, len(ix.vocab))
	copy(out, ix.vocab)
	return out
}

// IDF returns the inverse document frequency of token.
func (ix *Index) IDF(token string) (float64, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	p, ok := ix.vocabPos[token]
	if !ok {
		return 0, false
	}
	return ix.idf[p], true
}

// Vector returns a copy of the stored vector for trigger.
func (ix *Index) Vector(trigger string) ([]float64, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	i, ok := ix.byTrigger[trigger]
	if !ok || !ix.built {
		return nil, false
	}
	out := make([]float64, len(ix.vectors[i]))
	copy(out, ix.vectors[i])
	return out, true
}

func cloneResults(rs []search.SearchResult) []search.SearchResult {
	out := make([]search.SearchResult, len(rs))
	copy(out, rs)
	return out
}

