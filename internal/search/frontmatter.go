package search

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// splitFrontmatter separates a leading YAML block from the markdown body.
// Scalar values are kept as strings; list values are joined with ", ".
func splitFrontmatter(content string) (map[string]string, string) {
	s := strings.TrimPrefix(content, "\ufeff")
	if !strings.HasPrefix(s, "---") {
		return map[string]string{}, content
	}

	parts := strings.SplitN(s, "---", 3)
	if len(parts) < 3 {
		return map[string]string{}, content
	}

	fmText := strings.TrimSpace(parts[1])
	body := strings.TrimPrefix(parts[2], "\n")

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(fmText), &raw); err != nil {
		return map[string]string{}, content
	}

	out := make(map[string]string)
	for k, v := range raw {
		switch tv := v.(type) {
		case string:
			out[strings.ToLower(k)] = tv
		case []any:
			items := make([]string, 0, len(tv))
			for _, it := range tv {
				items = append(items, fmt.Sprint(it))
			}
			out[strings.ToLower(k)] = strings.Join(items, ", ")
		case int, float64, bool:
			out[strings.ToLower(k)] = fmt.Sprint(tv)
		}
	}
	return out, body
}
