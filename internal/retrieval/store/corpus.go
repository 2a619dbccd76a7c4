package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/kart-io/retrieval-x/internal/model"
	"github.com/kart-io/retrieval-x/pkg/utils/json"
)

// ErrInvalidKey is returned when a user or source id is not a canonical key
// segment, that is when SanitizeKey would change it.
var ErrInvalidKey = errors.New("store: invalid key segment")

// Filters narrows ListEligible. Empty fields do not filter.
type Filters struct {
	IDs        []string
	Categories []string
}

// Corpus is the per-user view over source metadata and chunk blobs.
// Metadata lives in one blob per user and source type, so writers in this
// process are serialized per metadata key.
type Corpus struct {
	blobs BlobStore
	locks keyedMutex
}

func NewCorpus(blobs BlobStore) *Corpus {
	return &Corpus{blobs: blobs}
}

// Blobs exposes the underlying store for health checks.
func (c *Corpus) Blobs() BlobStore { return c.blobs }

func checkSegments(segments ...string) error {
	for _, s := range segments {
		if s == "" || SanitizeKey(s) != s {
			return fmt.Errorf("%w: %q", ErrInvalidKey, s)
		}
	}
	return nil
}

// ---- metadata ----

func (c *Corpus) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := c.blobs.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (c *Corpus) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.blobs.Put(ctx, key, data)
}

// ListDocuments returns every document of user; a user without documents gets an empty slice.
func (c *Corpus) ListDocuments(ctx context.Context, user string) ([]*model.Document, error) {
	if err := checkSegments(user); err != nil {
		return nil, err
	}
	var list model.DocumentList
	if _, err := c.getJSON(ctx, MetaKey(user, model.SourceDocument), &list); err != nil {
		return nil, err
	}
	if list.Documents == nil {
		list.Documents = []*model.Document{}
	}
	return list.Documents, nil
}

// ListURLs returns every URL of user.
func (c *Corpus) ListURLs(ctx context.Context, user string) ([]*model.URLResource, error) {
	if err := checkSegments(user); err != nil {
		return nil, err
	}
	var list model.URLList
	if _, err := c.getJSON(ctx, MetaKey(user, model.SourceURL), &list); err != nil {
		return nil, err
	}
	if list.URLs == nil {
		list.URLs = []*model.URLResource{}
	}
	return list.URLs, nil
}

func (c *Corpus) GetDocument(ctx context.Context, user, id string) (*model.Document, error) {
	docs, err := c.ListDocuments(ctx, user)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
}

func (c *Corpus) GetURL(ctx context.Context, user, id string) (*model.URLResource, error) {
	urls, err := c.ListURLs(ctx, user)
	if err != nil {
		return nil, err
	}
	for _, u := range urls {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, fmt.Errorf("url %s: %w", id, ErrNotFound)
}

// MutateDocuments runs fn over the user's document list under the metadata
// lock and stores the returned list.
func (c *Corpus) MutateDocuments(ctx context.Context, user string, fn func([]*model.Document) ([]*model.Document, error)) error {
	key := MetaKey(user, model.SourceDocument)
	unlock := c.locks.lock(key)
	defer unlock()

	docs, err := c.ListDocuments(ctx, user)
	if err != nil {
		return err
	}
	docs, err = fn(docs)
	if err != nil {
		return err
	}
	return c.putJSON(ctx, key, model.DocumentList{Documents: docs})
}

// MutateURLs is MutateDocuments for URLs.
func (c *Corpus) MutateURLs(ctx context.Context, user string, fn func([]*model.URLResource) ([]*model.URLResource, error)) error {
	key := MetaKey(user, model.SourceURL)
	unlock := c.locks.lock(key)
	defer unlock()

	urls, err := c.ListURLs(ctx, user)
	if err != nil {
		return err
	}
	urls, err = fn(urls)
	if err != nil {
		return err
	}
	return c.putJSON(ctx, key, model.URLList{URLs: urls})
}

func (c *Corpus) AddDocument(ctx context.Context, user string, d *model.Document) error {
	if err := checkSegments(d.ID); err != nil {
		return err
	}
	return c.MutateDocuments(ctx, user, func(docs []*model.Document) ([]*model.Document, error) {
		return append(docs, d), nil
	})
}

func (c *Corpus) AddURL(ctx context.Context, user string, u *model.URLResource) error {
	if err := checkSegments(u.ID); err != nil {
		return err
	}
	return c.MutateURLs(ctx, user, func(urls []*model.URLResource) ([]*model.URLResource, error) {
		return append(urls, u), nil
	})
}

// UpdateDocument applies fn to one document and returns the stored result.
func (c *Corpus) UpdateDocument(ctx context.Context, user, id string, fn func(*model.Document) error) (*model.Document, error) {
	var out *model.Document
	err := c.MutateDocuments(ctx, user, func(docs []*model.Document) ([]*model.Document, error) {
		for _, d := range docs {
			if d.ID == id {
				if err := fn(d); err != nil {
					return nil, err
				}
				out = d
				return docs, nil
			}
		}
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	})
	return out, err
}

// UpdateURL applies fn to one URL and returns the stored result.
func (c *Corpus) UpdateURL(ctx context.Context, user, id string, fn func(*model.URLResource) error) (*model.URLResource, error) {
	var out *model.URLResource
	err := c.MutateURLs(ctx, user, func(urls []*model.URLResource) ([]*model.URLResource, error) {
		for _, u := range urls {
			if u.ID == id {
				if err := fn(u); err != nil {
					return nil, err
				}
				out = u
				return urls, nil
			}
		}
		return nil, fmt.Errorf("url %s: %w", id, ErrNotFound)
	})
	return out, err
}

// DeleteDocument drops the metadata entry and the stored binary. Chunk
// blobs are left behind; nothing can reach them once the entry is gone.
func (c *Corpus) DeleteDocument(ctx context.Context, user, id string) error {
	err := c.MutateDocuments(ctx, user, func(docs []*model.Document) ([]*model.Document, error) {
		i := slices.IndexFunc(docs, func(d *model.Document) bool { return d.ID == id })
		if i < 0 {
			return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		return slices.Delete(docs, i, i+1), nil
	})
	if err != nil {
		return err
	}
	if err := c.blobs.Delete(ctx, ContentKey(user, id)); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (c *Corpus) DeleteURL(ctx context.Context, user, id string) error {
	return c.MutateURLs(ctx, user, func(urls []*model.URLResource) ([]*model.URLResource, error) {
		i := slices.IndexFunc(urls, func(u *model.URLResource) bool { return u.ID == id })
		if i < 0 {
			return nil, fmt.Errorf("url %s: %w", id, ErrNotFound)
		}
		return slices.Delete(urls, i, i+1), nil
	})
}

func (c *Corpus) PutContent(ctx context.Context, user, id string, data []byte) error {
	if err := checkSegments(user, id); err != nil {
		return err
	}
	return c.blobs.Put(ctx, ContentKey(user, id), data)
}

func (c *Corpus) GetContent(ctx context.Context, user, id string) ([]byte, error) {
	if err := checkSegments(user, id); err != nil {
		return nil, err
	}
	return c.blobs.Get(ctx, ContentKey(user, id))
}

// ---- source view ----

// GetSource loads one item of either type.
func (c *Corpus) GetSource(ctx context.Context, user string, t model.SourceType, id string) (model.Source, error) {
	if t == model.SourceURL {
		u, err := c.GetURL(ctx, user, id)
		if err != nil {
			return nil, err
		}
		return u, nil
	}
	d, err := c.GetDocument(ctx, user, id)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListSources returns every item of type t regardless of index state.
func (c *Corpus) ListSources(ctx context.Context, user string, t model.SourceType) ([]model.Source, error) {
	if t == model.SourceURL {
		urls, err := c.ListURLs(ctx, user)
		if err != nil {
			return nil, err
		}
		out := make([]model.Source, len(urls))
		for i, u := range urls {
			out[i] = u
		}
		return out, nil
	}

	docs, err := c.ListDocuments(ctx, user)
	if err != nil {
		return nil, err
	}
	out := make([]model.Source, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out, nil
}

// ListEligible returns the indexed items that pass both filters.
func (c *Corpus) ListEligible(ctx context.Context, user string, t model.SourceType, f Filters) ([]model.Source, error) {
	all, err := c.ListSources(ctx, user, t)
	if err != nil {
		return nil, err
	}

	out := make([]model.Source, 0, len(all))
	for _, s := range all {
		if !s.State().IsIndexed() {
			continue
		}
		if len(f.IDs) > 0 && !slices.Contains(f.IDs, s.SourceID()) {
			continue
		}
		if len(f.Categories) > 0 && !slices.Contains(f.Categories, s.SourceCategory()) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// SetState records the index state of one item, leaving the rest of its metadata untouched.
func (c *Corpus) SetState(ctx context.Context, user string, t model.SourceType, id string, state model.IndexState) error {
	var err error
	if t == model.SourceURL {
		_, err = c.UpdateURL(ctx, user, id, func(u *model.URLResource) error {
			u.IndexState = state
			return nil
		})
	} else {
		_, err = c.UpdateDocument(ctx, user, id, func(d *model.Document) error {
			d.IndexState = state
			return nil
		})
	}
	return err
}

// ---- chunks ----

// StoreChunks replaces the chunk blob of one item, then marks it indexed.
// When the metadata update fails the new blob stays in place and the error
// is returned.
func (c *Corpus) StoreChunks(ctx context.Context, user string, t model.SourceType, id string,
	texts []string, embeddings [][]float32, metadata map[string]any,
) (int, error) {
	if err := checkSegments(user, id); err != nil {
		return 0, err
	}
	if len(texts) != len(embeddings) {
		return 0, fmt.Errorf("store chunks: %d texts but %d embeddings", len(texts), len(embeddings))
	}

	set := model.ChunkSet{Chunks: make([]model.Chunk, len(texts))}
	for i, text := range texts {
		set.Chunks[i] = model.Chunk{
			ChunkID:   model.ChunkID(id, i),
			SourceID:  id,
			Text:      text,
			Embedding: embeddings[i],
			Metadata:  maps.Clone(metadata),
		}
	}
	if err := c.putJSON(ctx, ChunkKey(user, t, id), set); err != nil {
		return 0, fmt.Errorf("write chunks: %w", err)
	}

	n := len(texts)
	if err := c.SetState(ctx, user, t, id, model.Indexed(n)); err != nil {
		return 0, fmt.Errorf("mark indexed: %w", err)
	}
	return n, nil
}

// LoadChunks returns the chunk set of one item, ErrNotFound when none was stored.
func (c *Corpus) LoadChunks(ctx context.Context, user string, t model.SourceType, id string) ([]model.Chunk, error) {
	if err := checkSegments(user, id); err != nil {
		return nil, err
	}
	var set model.ChunkSet
	found, err := c.getJSON(ctx, ChunkKey(user, t, id), &set)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("chunks of %s %s: %w", t, id, ErrNotFound)
	}
	return set.Chunks, nil
}

// ListChunkIDs returns the ids of every item of type t that has a chunk blob,
// including items whose metadata entry was deleted.
func (c *Corpus) ListChunkIDs(ctx context.Context, user string, t model.SourceType) ([]string, error) {
	if err := checkSegments(user); err != nil {
		return nil, err
	}
	prefix := ChunkPrefix(user, t)
	keys, err := c.blobs.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if id := strings.TrimPrefix(k, prefix); id != "" && !strings.Contains(id, "/") {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ---- query log ----

// AppendQuery adds rec to the user's query log. When limit is positive only
// the newest limit entries are kept.
func (c *Corpus) AppendQuery(ctx context.Context, user string, rec *model.QueryRecord, limit int) error {
	if err := checkSegments(user); err != nil {
		return err
	}
	key := QueryLogKey(user)
	unlock := c.locks.lock(key)
	defer unlock()

	var log model.QueryLog
	if _, err := c.getJSON(ctx, key, &log); err != nil {
		return err
	}
	log.Queries = append(log.Queries, rec)
	if limit > 0 && len(log.Queries) > limit {
		log.Queries = slices.Delete(log.Queries, 0, len(log.Queries)-limit)
	}
	return c.putJSON(ctx, key, log)
}

// ListQueries returns the user's query log in insertion order.
func (c *Corpus) ListQueries(ctx context.Context, user string) ([]*model.QueryRecord, error) {
	if err := checkSegments(user); err != nil {
		return nil, err
	}
	var log model.QueryLog
	if _, err := c.getJSON(ctx, QueryLogKey(user), &log); err != nil {
		return nil, err
	}
	if log.Queries == nil {
		log.Queries = []*model.QueryRecord{}
	}
	return log.Queries, nil
}

// keyedMutex hands out one mutex per key and forgets it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
