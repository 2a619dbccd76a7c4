package model

import "github.com/kart-io/retrieval-x/pkg/utils/json"

// DefaultURLCredibility 未评分 URL 的可信度
const DefaultURLCredibility = 0.6

// URLResource is a web page registered in a user's knowledge base.
type URLResource struct {
	ID          string
	URL         string
	Title       string
	Description string
	Category    string
	// CredibilityScore is the optional 1..5 user rating.
	CredibilityScore *int
	AddedDate        string
	UserID           string
	IndexState       IndexState
}

var _ Source = (*URLResource)(nil)

func (u *URLResource) SourceID() string       { return u.ID }
func (u *URLResource) Type() SourceType       { return SourceURL }
func (u *URLResource) Name() string           { return u.Title }
func (u *URLResource) SourceCategory() string { return u.Category }
func (u *URLResource) ReferenceDate() string  { return u.AddedDate }
func (u *URLResource) State() IndexState      { return u.IndexState }

// Credibility 评分 / 5；缺失或为 0 时取默认值
func (u *URLResource) Credibility() float64 {
	if u.CredibilityScore == nil || *u.CredibilityScore == 0 {
		return DefaultURLCredibility
	}
	return float64(*u.CredibilityScore) / 5.0
}

func (u *URLResource) rating() any {
	if u.CredibilityScore == nil {
		return nil
	}
	return *u.CredibilityScore
}

func (u *URLResource) ChunkMetadata() map[string]any {
	return map[string]any{
		"title":             u.Title,
		"description":       u.Description,
		"category":          u.Category,
		"credibility_score": u.rating(),
		"added_date":        u.AddedDate,
	}
}

func (u *URLResource) ResultMetadata() map[string]any {
	return map[string]any{
		"url_id":                u.ID,
		"url":                   u.URL,
		"url_title":             u.Title,
		"added_date":            u.AddedDate,
		"raw_credibility_score": u.rating(),
	}
}

type urlJSON struct {
	ID               string `json:"id"`
	URL              string `json:"url"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Category         string `json:"category"`
	CredibilityScore *int   `json:"credibility_score"`
	AddedDate        string `json:"added_date"`
	UserID           string `json:"user_id"`
	Indexed          *bool  `json:"indexed"`
	ChunkCount       *int   `json:"chunk_count,omitempty"`
}

func (u URLResource) MarshalJSON() ([]byte, error) {
	indexed, n := u.IndexState.wire()
	return json.Marshal(urlJSON{
		ID:               u.ID,
		URL:              u.URL,
		Title:            u.Title,
		Description:      u.Description,
		Category:         u.Category,
		CredibilityScore: u.CredibilityScore,
		AddedDate:        u.AddedDate,
		UserID:           u.UserID,
		Indexed:          indexed,
		ChunkCount:       n,
	})
}

func (u *URLResource) UnmarshalJSON(data []byte) error {
	var w urlJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*u = URLResource{
		ID:               w.ID,
		URL:              w.URL,
		Title:            w.Title,
		Description:      w.Description,
		Category:         w.Category,
		CredibilityScore: w.CredibilityScore,
		AddedDate:        w.AddedDate,
		UserID:           w.UserID,
		IndexState:       stateFromWire(w.Indexed, w.ChunkCount),
	}
	return nil
}

// URLList is the per-user URL metadata blob.
type URLList struct {
	URLs []*URLResource `json:"urls"`
}
