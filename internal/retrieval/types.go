package retrieval

// #region config
// RetrievalConfig holds limits for the 3-gate knowledge retrieval pipeline.
type RetrievalConfig struct {
	MinShared      int // Gate 2: min keywords shared between query and entry
	TopK           int // Max entries returned
	MaxEvidenceLen int // Max chars per evidence string
}

// DefaultConfig returns sensible defaults for retrieval gating.
func DefaultConfig() RetrievalConfig {
	return RetrievalConfig{
		MinShared:      1,
		TopK:           3,
		MaxEvidenceLen: 400,
	}
}

// #endregion config

// #region evidence-record
// EvidenceRecord is one knowledge base entry, scored against a query.
type EvidenceRecord struct {
	ID    string   `yaml:"id"`
	Text  string   `yaml:"text"`
	Tags  []string `yaml:"tags"`
	Score float32  `yaml:"-"`
}

// knowledgeDoc is the on-disk knowledge base layout.
type knowledgeDoc struct {
	Version string           `yaml:"version"`
	Entries []EvidenceRecord `yaml:"entries"`
}

// #endregion evidence-record

// #region gate-result
// GateResult captures the outcome of the 3-gate retrieval pipeline.
type GateResult struct {
	Gate1Passed bool             // query produced usable keywords
	Gate2Count  int              // entries sharing enough keywords
	Gate3Count  int              // entries passing consistency check
	Retrieved   []EvidenceRecord // final evidence after all gates
	Reason      string           // human-readable explanation
}

// #endregion gate-result
