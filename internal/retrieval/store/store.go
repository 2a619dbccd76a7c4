// Package store persists the retrieval corpus in a key-value blob store.
//
// Every value is an opaque byte slice. JSON blobs (metadata and chunk sets)
// are encoded by the Corpus; document binaries are stored raw.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get and Delete when the key does not exist.
var ErrNotFound = errors.New("store: key not found")

// BlobStore is a flat key-value store with prefix listing.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Put creates or replaces the value at key.
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// List returns the keys starting with prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
	// Name identifies the backend in logs and readiness checks.
	Name() string
}
