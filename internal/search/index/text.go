package index

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/kamusis/skillroute/internal/search"
)

// CanonicalText returns the text a skill is indexed by: the explicit Text
// when set, otherwise ID, name, description, keywords and activation words.
func CanonicalText(s search.SkillDoc) string {
	if strings.TrimSpace(s.Text) != "" {
		return s.Text
	}
	parts := []string{strings.TrimSpace(s.ID)}
	for _, p := range []string{s.Name, s.Description, s.Keywords} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(s.ActivationWords) > 0 {
		parts = append(parts, strings.Join(s.ActivationWords, " "))
	}
	return strings.Join(parts, " ")
}

// TextHash returns a sha256 hash (hex) of text.
func TextHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
