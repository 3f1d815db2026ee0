package index

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Load reads a snapshot from dir containing manifest + skills + vocab + vectors.
func Load(dir string) (*Snapshot, error) {
	manifestPath := filepath.Join(dir, manifestFile)
	b, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read manifest %s: %w", manifestPath, err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest JSON %s: %w", manifestPath, err)
	}
	if m.Dim < 0 || m.SkillCount < 0 {
		return nil, fmt.Errorf("invalid manifest: dim=%d skills=%d", m.Dim, m.SkillCount)
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

	var skills []SkillEntry
	if err := loadJSONL(filepath.Join(dir, m.SkillsFile), func(line []byte) error {
		var e SkillEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		skills = append(skills, e)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("invalid skills JSONL: %w", err)
	}
	var vocab []VocabEntry
	if err := loadJSONL(filepath.Join(dir, m.VocabFile), func(line []byte) error {
		var e VocabEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		vocab = append(vocab, e)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("invalid vocab JSONL: %w", err)
	}
	if len(skills) != m.SkillCount {
		return nil, fmt.Errorf("skills count mismatch: got %d want %d", len(skills), m.SkillCount)
	}
	if len(vocab) != m.Dim {
		return nil, fmt.Errorf("vocab size mismatch: got %d want %d", len(vocab), m.Dim)
	}

	vectors, err := loadVectors(filepath.Join(dir, m.VectorFile), len(skills), m.Dim)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Manifest: m, Skills: skills, Vocab: vocab, Vectors: vectors}, nil
}

func loadJSONL(path string, fn func([]byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	return nil
}

func loadVectors(path string, nSkills, dim int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open vector file %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat vector file %s: %w", path, err)
	}
	expected := int64(nSkills * dim * 8)
	if expected != st.Size() {
		return nil, fmt.Errorf("vector file size mismatch: got %d want %d (skills=%d dim=%d)", st.Size(), expected, nSkills, dim)
	}

	out := make([]float64, nSkills*dim)
	if err := binary.Read(io.LimitReader(f, expected), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("cannot read vectors from %s: %w", path, err)
	}
	return out, nil
}
