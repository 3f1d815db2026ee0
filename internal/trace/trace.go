package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kamusis/skillroute/internal/metrics"
	"github.com/kamusis/skillroute/internal/search"
)

// Record is one captured routing observation.
type Record struct {
	Query      string    `json:"query"`
	Match      string    `json:"match"`
	Score      float64   `json:"score"`
	IsGlobal   bool      `json:"is_global"`
	Persona    string    `json:"persona"`
	Source     string    `json:"source,omitempty"`
	Expected   string    `json:"expected,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// Recorder writes one JSON file per captured query into a directory.
// Concurrent calls never write the same file.
type Recorder struct {
	dir     string
	persona string
	logger  *zap.Logger
	now     func() time.Time
}

// NewRecorder returns a Recorder writing into dir. A nil logger is replaced by a no-op logger.
func NewRecorder(dir, persona string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{dir: dir, persona: persona, logger: logger, now: time.Now}
}

// Dir returns the trace directory.
func (r *Recorder) Dir() string { return r.dir }

// Record captures query and its match and returns the written path.
// Nothing is validated here.
func (r *Recorder) Record(query string, match search.SearchResult) (string, error) {
	rec := Record{
		Query:      query,
		Match:      match.Trigger,
		Score:      match.Score,
		IsGlobal:   match.IsGlobal,
		Persona:    r.persona,
		Source:     match.Source,
		RecordedAt: r.now().UTC(),
	}
	return r.Write(rec)
}

// Write stores rec under a fresh file name.
func (r *Recorder) Write(rec Record) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create trace dir %s: %w", r.dir, err)
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("cannot marshal trace: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, ".trace-*.tmp")
	if err != nil {
		return "", fmt.Errorf("cannot create trace file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("cannot write trace: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}

	path := filepath.Join(r.dir, FileName(rec.Query, rec.Score))
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("cannot commit trace %s: %w", path, err)
	}
	metrics.TraceRecorded()
	r.logger.Debug("trace recorded", zap.String("path", path), zap.String("match", rec.Match))
	return path, nil
}

// FileName derives a trace file name from the first 20 runes of query, the
// score and a random suffix.
func FileName(query string, score float64) string {
	head := []rune(query)
	if len(head) > 20 {
		head = head[:20]
	}
	slug := strings.Trim(nonWord.ReplaceAllString(string(head), "_"), "_")
	if slug == "" {
		slug = "query"
	}
	return fmt.Sprintf("%s_%.2f_%s.json", slug, score, uuid.NewString())
}

// LoadDir reads every *.json trace in dir. Files that cannot be read or
// parsed are skipped and returned by name. A missing dir yields no records.
func LoadDir(dir string) ([]Record, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("cannot read trace dir %s: %w", dir, err)
	}

	var (
		out     []Record
		skipped []string
	)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			skipped = append(skipped, e.Name())
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			skipped = append(skipped, e.Name())
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, skipped, nil
}
