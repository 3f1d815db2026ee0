package search

// Result sources.
const (
	SourceCorrection = "correction"
	SourceVector     = "vector"
	SourceTrigger    = "trigger"
)

// SkillDoc represents the routable metadata for a skill.
type SkillDoc struct {
	ID              string
	Trigger         string
	Path            string
	Name            string
	Description     string
	Keywords        string
	ActivationWords []string
	Global          bool
	// Text overrides the text derived from the fields above when set.
	Text string
}

// SearchResult represents one ranked trigger.
type SearchResult struct {
	Trigger  string  `json:"trigger"`
	Score    float64 `json:"score"`
	IsGlobal bool    `json:"is_global"`
	Source   string  `json:"source"`
}
