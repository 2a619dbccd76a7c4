package model

import "fmt"

// Chunk is one embedded slice of a source item's text.
type Chunk struct {
	ChunkID   string         `json:"chunk_id"`
	SourceID  string         `json:"source_id"`
	Text      string         `json:"text"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata"`
}

// ChunkID derives the stable id of the i-th chunk of a source item.
func ChunkID(sourceID string, i int) string {
	return fmt.Sprintf("%s_chunk_%d", sourceID, i)
}

// ChunkSet is the stored chunk blob of one source item.
type ChunkSet struct {
	Chunks []Chunk `json:"chunks"`
}

// Scores holds the sub-scores of one chunk. Recency and Category are nil
// when the component is unavailable.
type Scores struct {
	Semantic    float64
	Recency     *float64
	Credibility float64
	Category    *float64
	Composite   float64
}

// SearchResult is one ranked chunk.
type SearchResult struct {
	ID               string         `json:"id"`
	Text             string         `json:"text"`
	Metadata         map[string]any `json:"metadata"`
	SourceType       SourceType     `json:"source_type"`
	Score            float64        `json:"score"`
	SemanticScore    float64        `json:"semantic_score"`
	RecencyScore     *float64       `json:"recency_score"`
	CredibilityScore float64        `json:"credibility_score"`
	CategoryScore    *float64       `json:"category_score"`
}

// SourceID returns the owning source id stored in the result metadata.
func (r *SearchResult) SourceID() string {
	key := "document_id"
	if r.SourceType == SourceURL {
		key = "url_id"
	}
	id, _ := r.Metadata[key].(string)
	return id
}

// SourceName returns the filename or title of the owning source.
func (r *SearchResult) SourceName() string {
	key := "document_name"
	if r.SourceType == SourceURL {
		key = "url_title"
	}
	name, _ := r.Metadata[key].(string)
	return name
}

// BatchFailure describes one item that failed during a batch run.
type BatchFailure struct {
	SourceID string `json:"source_id"`
	Name     string `json:"name"`
	Error    string `json:"error"`
}

// BatchReport summarizes a batch indexing run over one source type.
type BatchReport struct {
	Total    int            `json:"total"`
	Indexed  int            `json:"indexed"`
	Failed   int            `json:"failed"`
	Skipped  int            `json:"skipped"`
	Failures []BatchFailure `json:"failures"`
}

// BatchAllReport is the result of indexing both source types.
type BatchAllReport struct {
	Documents *BatchReport `json:"documents"`
	URLs      *BatchReport `json:"urls"`
}
