package lexicon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	// MinWeight and MaxWeight bound every synonym weight.
	MinWeight = 0.1
	MaxWeight = 2.0

	// MaxThesaurusBytes is the largest thesaurus file that will be loaded.
	MaxThesaurusBytes = 2 << 20
)

// ErrThesaurusTooLarge is returned when a thesaurus file exceeds MaxThesaurusBytes.
var ErrThesaurusTooLarge = errors.New("thesaurus file too large")

var entryRe = regexp.MustCompile(`^-\s+(?:\*\*)?([\p{L}\p{N}\p{M}_]+)(?:\*\*)?\s*:\s*(.*)$`)

// SynonymSet maps a synonym to its weight.
type SynonymSet map[string]float64

// ParseIssue describes a thesaurus line that could not be used as written.
type ParseIssue struct {
	Line   int
	Text   string
	Reason string
}

func (p ParseIssue) String() string {
	return fmt.Sprintf("line %d: %s (%q)", p.Line, p.Reason, p.Text)
}

// Thesaurus maps a word to weighted synonyms.
type Thesaurus struct {
	entries map[string]SynonymSet
}

// NewThesaurus returns an empty Thesaurus.
func NewThesaurus() *Thesaurus {
	return &Thesaurus{entries: map[string]SynonymSet{}}
}

// ClampWeight bounds w to [MinWeight, MaxWeight].
func ClampWeight(w float64) float64 {
	if w < MinWeight {
		return MinWeight
	}
	if w > MaxWeight {
		return MaxWeight
	}
	return w
}

// LoadThesaurus reads a markdown thesaurus from path. A missing file yields an
// empty thesaurus.
func LoadThesaurus(path string) (*Thesaurus, []ParseIssue, error) {
	if path == "" {
		return NewThesaurus(), nil, nil
	}
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewThesaurus(), nil, nil
		}
		return nil, nil, fmt.Errorf("cannot stat thesaurus %s: %w", path, err)
	}
	if st.Size() > MaxThesaurusBytes {
		return nil, nil, fmt.Errorf("%s is %d bytes: %w", path, st.Size(), ErrThesaurusTooLarge)
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open thesaurus %s: %w", path, err)
	}
	defer f.Close()
	return ParseThesaurus(f)
}

// ParseThesaurus parses bullet lines of the form
//
//	- word: syn1:0.8, syn2, syn3:1.5
//	- **word**: syn1
//
// Lines that are not bullets are ignored. Bullets that do not parse are
// reported as issues and skipped; a bad weight falls back to 1.0.
func ParseThesaurus(r io.Reader) (*Thesaurus, []ParseIssue, error) {
	th := NewThesaurus()
	var issues []ParseIssue

	scanner := bufio.NewScanner(io.LimitReader(r, MaxThesaurusBytes+1))
	scanner.Buffer(make([]byte, 0, 64*1024), MaxThesaurusBytes)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		m := entryRe.FindStringSubmatch(line)
		if m == nil {
			issues = append(issues, ParseIssue{Line: n, Text: line, Reason: "not a word: synonyms entry"})
			continue
		}
		word := fold(m[1])
		added := 0
		for _, part := range strings.Split(m[2], ",") {
			part = strings.TrimSpace(fold(part))
			if part == "" {
				continue
			}
			name, weight := part, 1.0
			if i := strings.LastIndex(part, ":"); i >= 0 {
				name = strings.TrimSpace(part[:i])
				w, err := strconv.ParseFloat(strings.TrimSpace(part[i+1:]), 64)
				if err != nil {
					issues = append(issues, ParseIssue{Line: n, Text: line, Reason: fmt.Sprintf("bad weight for %q", name)})
				} else {
					weight = w
				}
			}
			if name == "" {
				issues = append(issues, ParseIssue{Line: n, Text: line, Reason: "empty synonym"})
				continue
			}
			th.SetWeight(word, name, weight)
			added++
		}
		if added == 0 {
			issues = append(issues, ParseIssue{Line: n, Text: line, Reason: "no synonyms"})
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, issues, ErrThesaurusTooLarge
		}
		return nil, issues, fmt.Errorf("cannot read thesaurus: %w", err)
	}
	return th, issues, nil
}

// Len returns the number of head words.
func (t *Thesaurus) Len() int { return len(t.entries) }

// Words returns the head words in sorted order.
func (t *Thesaurus) Words() []string {
	out := make([]string, 0, len(t.entries))
	for w := range t.entries {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the synonyms of word, or nil.
func (t *Thesaurus) Lookup(word string) SynonymSet {
	return t.entries[word]
}

// SelfWeight returns the weight a word carries as its own synonym.
func (t *Thesaurus) SelfWeight(word string) (float64, bool) {
	w, ok := t.entries[word][word]
	return w, ok
}

// SetWeight sets the clamped weight of syn under word.
func (t *Thesaurus) SetWeight(word, syn string, w float64) {
	set, ok := t.entries[word]
	if !ok {
		set = SynonymSet{}
		t.entries[word] = set
	}
	set[syn] = ClampWeight(w)
}

// Overlay injects synonym updates at weight 1.0.
func (t *Thesaurus) Overlay(updates map[string][]string) {
	for word, syns := range updates {
		word = NormalizeQuery(word)
		if word == "" {
			continue
		}
		for _, s := range syns {
			s = NormalizeQuery(s)
			if s != "" {
				t.SetWeight(word, s, 1.0)
			}
		}
	}
}

// Clone returns a deep copy.
func (t *Thesaurus) Clone() *Thesaurus {
	out := NewThesaurus()
	for w, set := range t.entries {
		cp := make(SynonymSet, len(set))
		for s, v := range set {
			cp[s] = v
		}
		out.entries[w] = cp
	}
	return out
}

// PatchSelfWeights sets the self-synonym weight of each word in weights by
// editing the bullet lines of a thesaurus document. An existing self entry is
// rewritten in place, a word with a bullet but no self entry gets one
// appended to its first bullet, and a word with no bullet gets a new bullet at
// the end. All other lines are kept byte for byte.
func PatchSelfWeights(content string, weights map[string]float64) string {
	lines := strings.Split(content, "\n")
	done := map[string]bool{}
	first := map[string]int{}

	for i, raw := range lines {
		word, lead, head, syns, ok := splitBullet(raw)
		if !ok {
			continue
		}
		w, want := weights[word]
		if !want {
			continue
		}
		if _, seen := first[word]; !seen {
			first[word] = i
		}
		patched := false
		for j, part := range syns {
			name := strings.TrimSpace(part)
			if k := strings.LastIndex(name, ":"); k >= 0 {
				name = strings.TrimSpace(name[:k])
			}
			if fold(name) == word {
				syns[j] = " " + selfEntry(word, w)
				patched = true
			}
		}
		if patched {
			syns[0] = strings.TrimPrefix(syns[0], " ")
			lines[i] = lead + head + strings.Join(syns, ",")
			done[word] = true
		}
	}

	var missing []string
	for word := range weights {
		if !done[word] {
			missing = append(missing, word)
		}
	}
	sort.Strings(missing)

	var appended []string
	for _, word := range missing {
		i, ok := first[word]
		if !ok {
			appended = append(appended, "- "+word+": "+selfEntry(word, weights[word]))
			continue
		}
		lines[i] = strings.TrimRight(lines[i], " \t")
		if strings.HasSuffix(lines[i], ":") {
			lines[i] += " " + selfEntry(word, weights[word])
		} else {
			lines[i] += ", " + selfEntry(word, weights[word])
		}
	}
	if len(appended) == 0 {
		return strings.Join(lines, "\n")
	}

	out := strings.Join(lines, "\n")
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out + strings.Join(appended, "\n") + "\n"
}

// splitBullet splits a thesaurus bullet into its folded head word, leading
// whitespace, the text up to the synonym list and the comma separated parts.
func splitBullet(raw string) (word, lead, head string, syns []string, ok bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "- ") {
		return "", "", "", nil, false
	}
	m := entryRe.FindStringSubmatch(trimmed)
	if m == nil {
		return "", "", "", nil, false
	}
	lead = raw[:len(raw)-len(strings.TrimLeft(raw, " \t"))]
	head = trimmed[:len(trimmed)-len(m[2])]
	if strings.TrimSpace(m[2]) == "" {
		return fold(m[1]), lead, head, []string{""}, true
	}
	return fold(m[1]), lead, head, strings.Split(m[2], ","), true
}

func selfEntry(word string, w float64) string {
	return word + ":" + strconv.FormatFloat(ClampWeight(w), 'f', 2, 64)
}

// PatchSelfWeightsFile applies PatchSelfWeights to the thesaurus at path and
// atomically replaces it. A missing file is created.
func PatchSelfWeightsFile(path string, weights map[string]float64) error {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot read thesaurus %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".thesaurus-*.md")
	if err != nil {
		return fmt.Errorf("cannot create temp thesaurus: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(PatchSelfWeights(string(b), weights)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("cannot write thesaurus: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("cannot replace %s: %w", path, err)
	}
	return nil
}
