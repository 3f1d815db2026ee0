package search

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// descriptor is the JSON form of a skill registration.
type descriptor struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Keywords        []string `json:"keywords"`
	ActivationWords []string `json:"activation_words"`
	Text            string   `json:"text"`
}

// DiscoverSkills scans root for */SKILL.md files and top-level *.json
// descriptors and returns SkillDoc entries sorted by ID. Each trigger is
// prefix + ID; a GlobalPrefix-style prefix marks the skills as global.
func DiscoverSkills(root, prefix string) ([]SkillDoc, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []SkillDoc{}, nil
		}
		return nil, fmt.Errorf("cannot stat skills directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("skills path is not a directory: %s", root)
	}

	global := strings.HasPrefix(strings.ToUpper(prefix), "GLOBAL")

	var out []SkillDoc
	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		switch {
		case d.Name() == "SKILL.md":
			doc, err := readSkillMarkdown(root, path)
			if err != nil {
				return err
			}
			out = append(out, doc)
		case filepath.Dir(path) == filepath.Clean(root) && strings.HasSuffix(d.Name(), ".json"):
			doc, err := readDescriptor(root, path)
			if err != nil {
				return err
			}
			out = append(out, doc)
		}
		return nil
	}

	if err := filepath.WalkDir(root, walkFn); err != nil {
		return nil, fmt.Errorf("cannot scan skills: %w", err)
	}

	for i := range out {
		out[i].Trigger = prefix + out[i].ID
		out[i].Global = global
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func readSkillMarkdown(root, path string) (SkillDoc, error) {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil {
		return SkillDoc{}, err
	}
	id := filepath.Base(filepath.Dir(path))

	b, err := os.ReadFile(path)
	if err != nil {
		return SkillDoc{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	h, body := splitFrontmatter(string(b))

	name := strings.TrimSpace(h["name"])
	desc := strings.TrimSpace(h["description"])
	keywords := strings.TrimSpace(h["keywords"])
	if keywords == "" {
		keywords = strings.TrimSpace(h["tags"])
	}
	if name == "" {
		name = id
	}
	if desc == "" {
		desc = inferDescriptionFromBody(body)
	}

	words := splitWords(h["activation_words"])
	words = append(words, ParseActivationWords(body)...)

	return SkillDoc{
		ID:              id,
		Path:            filepath.ToSlash(rel),
		Name:            name,
		Description:     desc,
		Keywords:        keywords,
		ActivationWords: words,
	}, nil
}

func readDescriptor(root, path string) (SkillDoc, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return SkillDoc{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var d descriptor
	if err := json.Unmarshal(b, &d); err != nil {
		return SkillDoc{}, fmt.Errorf("invalid skill descriptor %s: %w", path, err)
	}
	id := strings.TrimSpace(d.ID)
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return SkillDoc{}, err
	}
	name := strings.TrimSpace(d.Name)
	if name == "" {
		name = id
	}
	words := make([]string, 0, len(d.ActivationWords))
	for _, w := range d.ActivationWords {
		words = append(words, splitWords(w)...)
	}
	return SkillDoc{
		ID:              id,
		Path:            filepath.ToSlash(rel),
		Name:            name,
		Description:     strings.TrimSpace(d.Description),
		Keywords:        strings.Join(d.Keywords, ", "),
		ActivationWords: words,
		Text:            d.Text,
	}, nil
}

func inferDescriptionFromBody(body string) string {
	lines := strings.Split(body, "\n")
	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		if strings.HasPrefix(ln, "#") {
			continue
		}
		if strings.Contains(ln, activationMarker) {
			continue
		}
		return ln
	}
	return ""
}
