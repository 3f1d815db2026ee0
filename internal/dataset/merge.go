package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kamusis/skillroute/internal/metrics"
	"github.com/kamusis/skillroute/internal/trace"
)

const (
	// DefaultMaxTraceBytes is the largest trace file accepted by a merge.
	DefaultMaxTraceBytes = 5 << 20

	processedDir = "processed"
	failedDir    = "failed"
)

var (
	// ErrVerifyTimeout is returned when post-merge verification does not finish in time.
	ErrVerifyTimeout = errors.New("merge verification timed out")
	// ErrVerifyFailed wraps a verification error.
	ErrVerifyFailed = errors.New("merge verification failed")
	// errTraceTooLarge marks a trace file above the size limit.
	errTraceTooLarge = errors.New("trace file too large")
	// errNoValidTrace marks a trace file without a usable record.
	errNoValidTrace = errors.New("no valid trace")
)

// VerifyFunc checks a merged dataset before the merge commits.
// A returned error rolls the merge back.
type VerifyFunc func(ctx context.Context, ds *Dataset) error

// Option configures a Merger.
type Option func(*Merger)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(m *Merger) { m.logger = l } }

// WithMinScore sets the min_score of test cases created from traces.
func WithMinScore(s float64) Option { return func(m *Merger) { m.minScore = s } }

// WithMaxTraceBytes sets the trace file size limit.
func WithMaxTraceBytes(n int64) Option { return func(m *Merger) { m.maxTraceBytes = n } }

// WithWorkers sets the number of concurrent trace parsers.
func WithWorkers(n int) Option { return func(m *Merger) { m.workers = n } }

// WithLockTimeout bounds the wait for the dataset lock.
func WithLockTimeout(d time.Duration) Option { return func(m *Merger) { m.lockTimeout = d } }

// WithVerify installs a verification step run under timeout after the dataset is written.
func WithVerify(fn VerifyFunc, timeout time.Duration) Option {
	return func(m *Merger) {
		m.verify = fn
		m.verifyTimeout = timeout
	}
}

// Merger folds trace files into the canonical dataset. It is the dataset's
// only writer; concurrent merges on one dataset are rejected by a file lock.
type Merger struct {
	logger        *zap.Logger
	minScore      float64
	maxTraceBytes int64
	workers       int
	lockTimeout   time.Duration
	verify        VerifyFunc
	verifyTimeout time.Duration
}

// NewMerger returns a Merger with defaults applied.
func NewMerger(opts ...Option) *Merger {
	m := &Merger{
		logger:        zap.NewNop(),
		minScore:      DefaultMinScore,
		maxTraceBytes: DefaultMaxTraceBytes,
		workers:       4,
		lockTimeout:   5 * time.Second,
		verifyTimeout: 2 * time.Minute,
	}
	for _, o := range opts {
		o(m)
	}
	if m.workers <= 0 {
		m.workers = 1
	}
	return m
}

// Report summarizes one merge.
type Report struct {
	Files       int
	Applied     []string
	Unarchived  []string
	Quarantined []string
	Added       int
	Updated     int
	Skipped     int
	Recovered   bool
}

// NoOp reports whether the merge found nothing to apply.
func (r *Report) NoOp() bool { return len(r.Applied) == 0 && len(r.Unarchived) == 0 }

type parsed struct {
	path    string
	modTime time.Time
	records []trace.Record
	skipped int
	err     error
}

// Merge folds every *.json trace in incomingDir into the dataset at
// datasetPath. Malformed trace files move to incomingDir/failed. On any
// failure after the backup is taken, including a panic, the dataset is
// restored from the backup.
//
// Removing the backup is the commit point. Applied files move to
// incomingDir/processed only after it, so a file in processed/ is always
// reflected in the dataset. A file that cannot be archived stays in
// incomingDir and is reported in Unarchived; merging it again is harmless.
func (m *Merger) Merge(ctx context.Context, incomingDir, datasetPath string) (rep *Report, err error) {
	rep = &Report{}
	log := m.logger.With(zap.String("dataset", datasetPath), zap.String("incoming", incomingDir))

	unlock, err := acquireLock(ctx, datasetPath, m.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrMergeInProgress) {
			metrics.ObserveMerge("busy", 0, 0)
		}
		return rep, err
	}
	defer unlock()

	recovered, err := Recover(datasetPath)
	if err != nil {
		return rep, fmt.Errorf("cannot recover from previous merge: %w", err)
	}
	if recovered {
		rep.Recovered = true
		log.Warn("restored dataset from leftover backup")
	}

	files, err := listTraceFiles(incomingDir)
	if err != nil {
		return rep, err
	}
	rep.Files = len(files)
	if len(files) == 0 {
		log.Info("no trace files to merge")
		metrics.ObserveMerge("noop", 0, 0)
		return rep, nil
	}

	ds, err := Load(datasetPath)
	if err != nil {
		return rep, err
	}

	if err := createBackup(datasetPath); err != nil {
		return rep, err
	}

	var committed bool
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("merge panicked: %v", r)
		}
		if committed {
			return
		}
		if err == nil {
			err = errors.New("merge aborted")
		}
		if _, rerr := Recover(datasetPath); rerr != nil {
			log.Error("rollback failed; backup left in place", zap.Error(rerr))
		} else {
			log.Warn("merge rolled back", zap.Error(err))
		}
		rep.Applied = nil
		metrics.ObserveMerge("failed", 0, len(rep.Quarantined))
	}()

	results := m.parseAll(files)

	var valid []parsed
	for _, p := range results {
		if p.err == nil {
			valid = append(valid, p)
			continue
		}
		dst, merr := moveInto(p.path, filepath.Join(incomingDir, failedDir))
		if merr != nil {
			return rep, fmt.Errorf("cannot quarantine %s: %w", p.path, merr)
		}
		rep.Quarantined = append(rep.Quarantined, dst)
		log.Warn("quarantined trace file", zap.String("file", filepath.Base(p.path)), zap.Error(p.err))
	}

	sort.SliceStable(valid, func(i, j int) bool {
		if !valid[i].modTime.Equal(valid[j].modTime) {
			return valid[i].modTime.Before(valid[j].modTime)
		}
		return valid[i].path < valid[j].path
	})

	for _, p := range valid {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		for _, rec := range p.records {
			if ds.Observe(rec, m.minScore) {
				rep.Added++
			} else {
				rep.Updated++
			}
		}
		rep.Skipped += p.skipped
	}

	if len(valid) > 0 {
		if err := Save(datasetPath, ds); err != nil {
			return rep, err
		}
		if err := m.runVerify(ctx, ds); err != nil {
			return rep, err
		}
	}

	if err := cleanupBackup(BackupPath(datasetPath)); err != nil {
		return rep, fmt.Errorf("cannot remove backup: %w", err)
	}
	committed = true

	for _, p := range valid {
		dst, err := moveInto(p.path, filepath.Join(incomingDir, processedDir))
		if err != nil {
			log.Warn("trace merged but not archived", zap.String("file", filepath.Base(p.path)), zap.Error(err))
			rep.Unarchived = append(rep.Unarchived, p.path)
			continue
		}
		rep.Applied = append(rep.Applied, dst)
	}

	metrics.ObserveMerge("ok", len(rep.Applied), len(rep.Quarantined))
	log.Info("merge complete",
		zap.Int("files", rep.Files),
		zap.Int("applied", len(rep.Applied)),
		zap.Int("unarchived", len(rep.Unarchived)),
		zap.Int("quarantined", len(rep.Quarantined)),
		zap.Int("added", rep.Added),
		zap.Int("updated", rep.Updated),
	)
	return rep, nil
}

func (m *Merger) runVerify(ctx context.Context, ds *Dataset) error {
	if m.verify == nil {
		return nil
	}
	vctx, cancel := context.WithTimeout(ctx, m.verifyTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("verification panicked: %v", r)
			}
		}()
		done <- m.verify(vctx, ds)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %w", ErrVerifyFailed, err)
		}
		return nil
	case <-vctx.Done():
		if errors.Is(vctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrVerifyTimeout, m.verifyTimeout)
		}
		return vctx.Err()
	}
}

// parseAll parses files on a bounded worker pool. Result order equals input order.
func (m *Merger) parseAll(files []string) []parsed {
	out := make([]parsed, len(files))
	pool, err := ants.NewPool(m.workers)
	if err != nil {
		for i, f := range files {
			out[i] = m.parseFile(f)
		}
		return out
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			out[i] = m.parseFile(f)
		}); err != nil {
			wg.Done()
			out[i] = m.parseFile(f)
		}
	}
	wg.Wait()
	return out
}

// parseFile reads one trace file holding a record or an array of records.
// Entries without a query and match are skipped; a file with none is malformed.
func (m *Merger) parseFile(path string) parsed {
	p := parsed{path: path}
	st, err := os.Stat(path)
	if err != nil {
		p.err = err
		return p
	}
	p.modTime = st.ModTime()
	if st.Size() > m.maxTraceBytes {
		p.err = fmt.Errorf("%w: %d bytes", errTraceTooLarge, st.Size())
		return p
	}
	b, err := os.ReadFile(path)
	if err != nil {
		p.err = err
		return p
	}

	var raw []json.RawMessage
	trimmed := strings.TrimSpace(string(b))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(b, &raw); err != nil {
			p.err = err
			return p
		}
	} else {
		var single json.RawMessage
		if err := json.Unmarshal(b, &single); err != nil {
			p.err = err
			return p
		}
		raw = []json.RawMessage{single}
	}

	for _, r := range raw {
		var rec trace.Record
		if err := json.Unmarshal(r, &rec); err != nil ||
			strings.TrimSpace(rec.Query) == "" || strings.TrimSpace(rec.Match) == "" {
			p.skipped++
			continue
		}
		p.records = append(p.records, rec)
	}
	if len(p.records) == 0 {
		p.err = errNoValidTrace
	}
	return p
}

func listTraceFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read incoming dir %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}
