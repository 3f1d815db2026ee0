package index

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	manifestFile = "index_manifest.json"
	snapshotVer  = 1
)

// Snapshot captures the built state of the index for export.
func (ix *Index) Snapshot() (*Snapshot, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.built {
		return nil, ErrNotBuilt
	}

	dim := len(ix.vocab)
	snap := &Snapshot{
		Skills:  make([]SkillEntry, len(ix.skills)),
		Vocab:   make([]VocabEntry, dim),
		Vectors: make([]float64, 0, len(ix.skills)*dim),
	}
	hashes := make([]string, len(ix.skills))
	for i, s := range ix.skills {
		h := TextHash(s.Text)
		hashes[i] = s.Trigger + "=" + h
		snap.Skills[i] = SkillEntry{
			Trigger:         s.Trigger,
			Path:            s.Path,
			Global:          s.Global,
			ActivationWords: s.ActivationWords,
			TextHash:        h,
		}
		snap.Vectors = append(snap.Vectors, ix.vectors[i]...)
	}
	for i, tok := range ix.vocab {
		snap.Vocab[i] = VocabEntry{Token: tok, DF: ix.df[i], IDF: ix.idf[i]}
	}
	sort.Strings(hashes)

	snap.Manifest = Manifest{
		IndexVersion: snapshotVer,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		SkillCount:   len(ix.skills),
		Dim:          dim,
		CorpusHash:   TextHash(strings.Join(hashes, "\n")),
		VectorFile:   "vectors.f64",
		SkillsFile:   "skills.jsonl",
		VocabFile:    "vocab.jsonl",
	}
	return snap, nil
}

// Write writes snapshot artifacts to dir.
func Write(dir string, snap *Snapshot) error {
	m := snap.Manifest
	if m.Dim < 0 {
		return fmt.Errorf("invalid dim: %d", m.Dim)
	}
	if len(snap.Skills) != m.SkillCount || len(snap.Vocab) != m.Dim {
		return fmt.Errorf("manifest mismatch: skills=%d/%d vocab=%d/%d", len(snap.Skills), m.SkillCount, len(snap.Vocab), m.Dim)
	}
	if len(snap.Vectors) != m.SkillCount*m.Dim {
		return fmt.Errorf("%w: got %d want %d", ErrVectorLengthMismatch, len(snap.Vectors), m.SkillCount*m.Dim)
	}
	if m.VectorFile == "" {
		m.VectorFile = "vectors.f64"
	}
	if m.SkillsFile == "" {
		m.SkillsFile = "skills.jsonl"
	}
	if m.VocabFile == "" {
		m.VocabFile = "vocab.jsonl"
	}
	if m.CreatedAt == "" {
		m.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create index dir %s: %w", dir, err)
	}

	// manifest
	mb, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), mb, 0o644); err != nil {
		return fmt.Errorf("cannot write manifest: %w", err)
	}

	if err := writeJSONL(filepath.Join(dir, m.SkillsFile), len(snap.Skills), func(i int) any { return snap.Skills[i] }); err != nil {
		return fmt.Errorf("cannot write skills file: %w", err)
	}
	if err := writeJSONL(filepath.Join(dir, m.VocabFile), len(snap.Vocab), func(i int) any { return snap.Vocab[i] }); err != nil {
		return fmt.Errorf("cannot write vocab file: %w", err)
	}

	// vectors
	vf, err := os.Create(filepath.Join(dir, m.VectorFile))
	if err != nil {
		return fmt.Errorf("cannot create vectors file: %w", err)
	}
	if err := binary.Write(vf, binary.LittleEndian, snap.Vectors); err != nil {
		_ = vf.Close()
		return fmt.Errorf("cannot write vectors: %w", err)
	}
	return vf.Close()
}

func writeJSONL(path string, n int, row func(int) any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	for i := 0; i < n; i++ {
		line, err := json.Marshal(row(i))
		if err != nil {
			_ = f.Close()
			return err
		}
		if _, err := bw.Write(line); err != nil {
			_ = f.Close()
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
