package model

// QueryRecord is one answered question in a user's query log. Averages are
// nil when no source contributed the score.
type QueryRecord struct {
	Query               string   `json:"query"`
	Timestamp           string   `json:"timestamp"`
	UserID              string   `json:"user_id"`
	ConfidenceLevel     string   `json:"confidence_level,omitempty"`
	ResponseLength      int      `json:"response_length"`
	ProcessingTimeMs    *int64   `json:"processing_time_ms,omitempty"`
	NumSources          int      `json:"num_sources"`
	AvgSemanticScore    *float64 `json:"avg_semantic_score,omitempty"`
	AvgCredibilityScore *float64 `json:"avg_credibility_score,omitempty"`
	AvgRecencyScore     *float64 `json:"avg_recency_score,omitempty"`
	// SourceTypes counts the cited sources per type, e.g. {"document": 3}.
	SourceTypes           map[string]int `json:"source_types"`
	HallucinationDetected *bool          `json:"hallucination_detected,omitempty"`
	Tags                  []string       `json:"tags"`
}

// QueryLog is the stored query log blob of one user.
type QueryLog struct {
	Queries []*QueryRecord `json:"queries"`
}
