package index

// Skill is one registered routing target.
type Skill struct {
	Trigger         string
	Text            string
	Global          bool
	Path            string
	ActivationWords []string
}

// Manifest describes an exported index snapshot and how to interpret it.
type Manifest struct {
	IndexVersion int    `json:"index_version"`
	CreatedAt    string `json:"created_at"`
	SkillCount   int    `json:"skill_count"`
	Dim          int    `json:"dim"`
	CorpusHash   string `json:"corpus_hash"`
	VectorFile   string `json:"vector_file"`
	SkillsFile   string `json:"skills_file"`
	VocabFile    string `json:"vocab_file"`
}

// SkillEntry represents one skill row in skills.jsonl.
type SkillEntry struct {
	Trigger         string   `json:"trigger"`
	Path            string   `json:"path,omitempty"`
	Global          bool     `json:"is_global"`
	ActivationWords []string `json:"activation_words,omitempty"`
	TextHash        string   `json:"text_hash"`
}

// VocabEntry represents one token row in vocab.jsonl.
type VocabEntry struct {
	Token string  `json:"token"`
	DF    int     `json:"df"`
	IDF   float64 `json:"idf"`
}

// Snapshot is the exported, inspectable form of a built index.
// Vectors are stored row-major, SkillCount rows of Dim values.
type Snapshot struct {
	Manifest Manifest
	Skills   []SkillEntry
	Vocab    []VocabEntry
	Vectors  []float64
}

// Row returns the vector of the i-th skill.
func (s *Snapshot) Row(i int) []float64 {
	d := s.Manifest.Dim
	return s.Vectors[i*d : (i+1)*d]
}

// Contribution is one token's share of a query/skill similarity.
type Contribution struct {
	Token       string  `json:"token"`
	QueryWeight float64 `json:"query_weight"`
	SkillWeight float64 `json:"skill_weight"`
	Product     float64 `json:"product"`
}

// Explanation breaks a trigger's score for a query down by token.
type Explanation struct {
	Trigger       string         `json:"trigger"`
	Score         float64        `json:"score"`
	Cosine        float64        `json:"cosine"`
	Source        string         `json:"source"`
	BoostedBy     []string       `json:"boosted_by,omitempty"`
	Contributions []Contribution `json:"contributions"`
}
