package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	apierrors "github.com/kart-io/retrieval-x/pkg/utils/errors"
	"github.com/kart-io/retrieval-x/pkg/utils/httpclient"
)

const (
	// DefaultFetchTimeout bounds a single page fetch.
	DefaultFetchTimeout = 10 * time.Second
	// DefaultMaxPageBytes caps how much of a page body is read.
	DefaultMaxPageBytes = 10 << 20
)

// WebExtractor fetches a page and returns its visible text.
type WebExtractor struct {
	client   *httpclient.Client
	maxBytes int64
}

// NewWebExtractor builds a fetcher with its own timeout and no retries.
func NewWebExtractor(timeout time.Duration, opts ...httpclient.Option) *WebExtractor {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &WebExtractor{
		client:   httpclient.NewClient(timeout, 0, opts...),
		maxBytes: DefaultMaxPageBytes,
	}
}

// Fetch downloads rawURL and extracts its text.
func (w *WebExtractor) Fetch(ctx context.Context, rawURL string) (string, error) {
	resp, err := w.client.Get(ctx, rawURL, map[string]string{
		"User-Agent": "retrieval-x/1.0",
		"Accept":     "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5",
	})
	if err != nil {
		return "", apierrors.ErrExtraction.WithMessagef("fetch %s", rawURL).WithCause(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", apierrors.ErrExtraction.WithMessagef("fetch %s", rawURL).
			WithCause(&httpclient.StatusError{StatusCode: resp.StatusCode, Body: resp.Status})
	}

	body := io.LimitReader(resp.Body, w.maxBytes)
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		raw, err := io.ReadAll(body)
		if err != nil {
			return "", apierrors.ErrExtraction.WithMessagef("read %s", rawURL).WithCause(err)
		}
		return cleanText(string(raw)), nil
	}

	text, err := HTMLText(body)
	if err != nil {
		return "", apierrors.ErrExtraction.WithMessagef("parse %s", rawURL).WithCause(err)
	}
	return text, nil
}

// HTMLText returns the text nodes of a document, one per line, with script
// and style content removed and whitespace collapsed.
func HTMLText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	var parts []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				parts = append(parts, c.Text())
				return
			}
			walk(c)
		})
	}
	walk(doc.Selection)
	return cleanText(strings.Join(parts, "\n")), nil
}

// cleanText trims every line, splits phrases on double spaces and drops blanks.
func cleanText(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				out = append(out, phrase)
			}
		}
	}
	return strings.Join(out, "\n")
}
