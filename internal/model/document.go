package model

import (
	"strings"

	"github.com/kart-io/retrieval-x/pkg/utils/json"
)

// Document is an uploaded file in a user's knowledge base.
type Document struct {
	ID          string
	Filename    string
	ContentType string
	Size        int64
	// UploadDate is RFC 3339; it drives recency.
	UploadDate string
	UserID     string
	Category   string
	IndexState IndexState
}

var _ Source = (*Document)(nil)

func (d *Document) SourceID() string       { return d.ID }
func (d *Document) Type() SourceType       { return SourceDocument }
func (d *Document) Name() string           { return d.Filename }
func (d *Document) SourceCategory() string { return d.Category }
func (d *Document) ReferenceDate() string  { return d.UploadDate }
func (d *Document) State() IndexState      { return d.IndexState }

// Credibility documents carry no rating; PDFs are trusted slightly more.
func (d *Document) Credibility() float64 {
	if strings.Contains(strings.ToLower(d.ContentType), "pdf") {
		return 0.85
	}
	return 0.75
}

func (d *Document) ChunkMetadata() map[string]any {
	return map[string]any{
		"filename":     d.Filename,
		"content_type": d.ContentType,
		"category":     d.Category,
		"upload_date":  d.UploadDate,
	}
}

func (d *Document) ResultMetadata() map[string]any {
	return map[string]any{
		"document_id":   d.ID,
		"document_name": d.Filename,
		"upload_date":   d.UploadDate,
	}
}

type documentJSON struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	UploadDate  string `json:"upload_date"`
	UserID      string `json:"user_id"`
	Category    string `json:"category"`
	Indexed     *bool  `json:"indexed"`
	ChunkCount  *int   `json:"chunk_count,omitempty"`
}

func (d Document) MarshalJSON() ([]byte, error) {
	indexed, n := d.IndexState.wire()
	return json.Marshal(documentJSON{
		ID:          d.ID,
		Filename:    d.Filename,
		ContentType: d.ContentType,
		Size:        d.Size,
		UploadDate:  d.UploadDate,
		UserID:      d.UserID,
		Category:    d.Category,
		Indexed:     indexed,
		ChunkCount:  n,
	})
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var w documentJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*d = Document{
		ID:          w.ID,
		Filename:    w.Filename,
		ContentType: w.ContentType,
		Size:        w.Size,
		UploadDate:  w.UploadDate,
		UserID:      w.UserID,
		Category:    w.Category,
		IndexState:  stateFromWire(w.Indexed, w.ChunkCount),
	}
	return nil
}

// DocumentList is the per-user document metadata blob.
type DocumentList struct {
	Documents []*Document `json:"documents"`
}
