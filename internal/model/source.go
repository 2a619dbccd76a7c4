// Package model provides the data models of the retrieval service.
package model

import (
	"fmt"
	"strings"
)

// SourceType discriminates the two kinds of knowledge-base items.
type SourceType string

const (
	SourceDocument SourceType = "document"
	SourceURL      SourceType = "url"
)

// SourceTypes lists every source type in search order: documents first.
var SourceTypes = []SourceType{SourceDocument, SourceURL}

// ParseSourceType accepts the singular or plural form.
func ParseSourceType(s string) (SourceType, error) {
	switch strings.ToLower(s) {
	case "document", "documents":
		return SourceDocument, nil
	case "url", "urls":
		return SourceURL, nil
	}
	return "", fmt.Errorf("unknown source type %q", s)
}

// Plural returns the collection name used in storage keys and batch routes.
func (t SourceType) Plural() string {
	return string(t) + "s"
}

// Source is the capability set the scorer and pipeline need from an item.
type Source interface {
	SourceID() string
	Type() SourceType
	// Name is the filename for documents and the title for URLs.
	Name() string
	SourceCategory() string
	// ReferenceDate is the raw upload/added date, "" when absent.
	ReferenceDate() string
	// Credibility is the normalized credibility signal in [0, 1].
	Credibility() float64
	State() IndexState
	// ChunkMetadata is the snapshot copied onto every chunk at index time.
	ChunkMetadata() map[string]any
	// ResultMetadata is merged over the chunk metadata in search results.
	ResultMetadata() map[string]any
}
