// Package extract turns source items into plain text for indexing.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kart-io/retrieval-x/internal/model"
	apierrors "github.com/kart-io/retrieval-x/pkg/utils/errors"
)

// Extractor returns the plain text of a source item. Failures carry
// ErrExtraction; an empty text is always reported as an error.
type Extractor interface {
	Extract(ctx context.Context, user string, src model.Source) (string, error)
}

// ContentLoader reads the stored binary of an uploaded document.
type ContentLoader interface {
	GetContent(ctx context.Context, user, id string) ([]byte, error)
}

// Router dispatches on source type and, for documents, on file extension.
type Router struct {
	content ContentLoader
	pdf     *PDFExtractor
	text    *TextExtractor
	web     *WebExtractor
}

var _ Extractor = (*Router)(nil)

func NewRouter(content ContentLoader, web *WebExtractor) *Router {
	return &Router{
		content: content,
		pdf:     &PDFExtractor{},
		text:    &TextExtractor{},
		web:     web,
	}
}

func (r *Router) Extract(ctx context.Context, user string, src model.Source) (string, error) {
	var (
		text string
		err  error
	)
	switch s := src.(type) {
	case *model.URLResource:
		text, err = r.web.Fetch(ctx, s.URL)
	case *model.Document:
		text, err = r.document(ctx, user, s)
	default:
		return "", apierrors.ErrExtraction.WithMessagef("unsupported source %T", src)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", apierrors.ErrExtraction.WithMessagef("no content extracted from %s", src.Name())
	}
	return text, nil
}

func (r *Router) document(ctx context.Context, user string, d *model.Document) (string, error) {
	ext := strings.ToLower(filepath.Ext(d.Filename))
	var dec func([]byte) (string, error)
	switch ext {
	case ".pdf":
		dec = r.pdf.Decode
	case ".txt", ".md", ".doc", ".docx":
		dec = r.text.Decode
	default:
		return "", apierrors.ErrExtraction.WithMessagef("unsupported file type: %s", d.Filename)
	}

	data, err := r.content.GetContent(ctx, user, d.ID)
	if err != nil {
		return "", apierrors.ErrExtraction.WithMessagef("read %s", d.Filename).WithCause(err)
	}
	text, err := dec(data)
	if err != nil {
		return "", apierrors.ErrExtraction.WithMessagef("decode %s", d.Filename).WithCause(err)
	}
	return text, nil
}

func errDecode(kind string, err error) error {
	return fmt.Errorf("%s: %w", kind, err)
}
