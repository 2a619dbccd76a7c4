package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/retrieval-x/internal/model"
)

func seedCorpus(t *testing.T) *Corpus {
	t.Helper()
	c := NewCorpus(NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, c.AddDocument(ctx, "alice", &model.Document{ID: "d1", Filename: "a.pdf", Category: "cardiology", IndexState: model.Indexed(1)}))
	require.NoError(t, c.AddDocument(ctx, "alice", &model.Document{ID: "d2", Filename: "b.txt", Category: "oncology", IndexState: model.Indexed(1)}))
	require.NoError(t, c.AddDocument(ctx, "alice", &model.Document{ID: "d3", Filename: "c.txt", Category: "cardiology", IndexState: model.NotIndexed()}))
	require.NoError(t, c.AddDocument(ctx, "alice", &model.Document{ID: "d4", Filename: "d.txt", Category: "cardiology", IndexState: model.Failed()}))
	require.NoError(t, c.AddURL(ctx, "alice", &model.URLResource{ID: "u1", URL: "https://a", Category: "cardiology", IndexState: model.Indexed(2)}))
	return c
}

func ids(sources []model.Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.SourceID()
	}
	return out
}

func TestListEligible(t *testing.T) {
	c := seedCorpus(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		typ    model.SourceType
		filter Filters
		want   []string
	}{
		{"unfiltered excludes unindexed and failed", model.SourceDocument, Filters{}, []string{"d1", "d2"}},
		{"by id", model.SourceDocument, Filters{IDs: []string{"d2", "d3"}}, []string{"d2"}},
		{"by category", model.SourceDocument, Filters{Categories: []string{"cardiology"}}, []string{"d1"}},
		{"intersection", model.SourceDocument, Filters{IDs: []string{"d2"}, Categories: []string{"cardiology"}}, []string{}},
		{"urls", model.SourceURL, Filters{}, []string{"u1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ListEligible(ctx, "alice", tt.typ, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}

	all, err := c.ListSources(ctx, "alice", model.SourceDocument)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	none, err := c.ListEligible(ctx, "bob", model.SourceDocument, Filters{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStoreChunksReplacesAndMarksIndexed(t *testing.T) {
	c := seedCorpus(t)
	ctx := context.Background()
	meta := map[string]any{"filename": "c.txt"}

	n, err := c.StoreChunks(ctx, "alice", model.SourceDocument, "d3",
		[]string{"one", "two", "three"}, [][]float32{{1}, {2}, {3}}, meta)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = c.StoreChunks(ctx, "alice", model.SourceDocument, "d3",
		[]string{"only"}, [][]float32{{9}}, meta)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	chunks, err := c.LoadChunks(ctx, "alice", model.SourceDocument, "d3")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "d3_chunk_0", chunks[0].ChunkID)
	assert.Equal(t, "d3", chunks[0].SourceID)
	assert.Equal(t, "c.txt", chunks[0].Metadata["filename"])

	d, err := c.GetDocument(ctx, "alice", "d3")
	require.NoError(t, err)
	assert.True(t, d.IndexState.IsIndexed())
	assert.Equal(t, 1, d.IndexState.ChunkCount())
	assert.Equal(t, "cardiology", d.Category)
}

func TestStoreChunksMismatch(t *testing.T) {
	c := seedCorpus(t)
	_, err := c.StoreChunks(context.Background(), "alice", model.SourceDocument, "d3", []string{"a", "b"}, [][]float32{{1}}, nil)
	assert.Error(t, err)
}

func TestStoreChunksMissingMetadataKeepsBlob(t *testing.T) {
	c := seedCorpus(t)
	ctx := context.Background()

	_, err := c.StoreChunks(ctx, "alice", model.SourceURL, "gone", []string{"a"}, [][]float32{{1}}, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	chunks, err := c.LoadChunks(ctx, "alice", model.SourceURL, "gone")
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestLoadChunksNotFound(t *testing.T) {
	c := seedCorpus(t)
	_, err := c.LoadChunks(context.Background(), "alice", model.SourceDocument, "d1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.LoadChunks(context.Background(), "alice", model.SourceDocument, "../")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestSetStateLeavesMetadata(t *testing.T) {
	c := seedCorpus(t)
	ctx := context.Background()

	require.NoError(t, c.SetState(ctx, "alice", model.SourceURL, "u1", model.Failed()))
	u, err := c.GetURL(ctx, "alice", "u1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, u.IndexState.Status())
	assert.Equal(t, "https://a", u.URL)

	assert.ErrorIs(t, c.SetState(ctx, "alice", model.SourceURL, "nope", model.Failed()), ErrNotFound)
}

func TestDeleteDocumentRemovesContent(t *testing.T) {
	c := seedCorpus(t)
	ctx := context.Background()

	require.NoError(t, c.PutContent(ctx, "alice", "d1", []byte("%PDF")))
	require.NoError(t, c.DeleteDocument(ctx, "alice", "d1"))

	_, err := c.GetDocument(ctx, "alice", "d1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.GetContent(ctx, "alice", "d1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, c.DeleteDocument(ctx, "alice", "d1"), ErrNotFound)
	require.NoError(t, c.DeleteURL(ctx, "alice", "u1"))
	assert.ErrorIs(t, c.DeleteURL(ctx, "alice", "u1"), ErrNotFound)
}

func TestUpdateAbortKeepsList(t *testing.T) {
	c := seedCorpus(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := c.UpdateURL(ctx, "alice", "u1", func(u *model.URLResource) error {
		u.Title = "changed"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	u, err := c.GetURL(ctx, "alice", "u1")
	require.NoError(t, err)
	assert.Empty(t, u.Title)
}

func TestConcurrentMetadataWrites(t *testing.T) {
	c := NewCorpus(NewMemoryStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.AddURL(ctx, "alice", &model.URLResource{ID: model.ChunkID("u", i)}))
		}(i)
	}
	wg.Wait()

	urls, err := c.ListURLs(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, urls, 50)
	assert.Empty(t, c.locks.locks)
}

func TestRejectsEmptySegments(t *testing.T) {
	c := NewCorpus(NewMemoryStore())
	_, err := c.ListDocuments(context.Background(), "///")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, c.AddDocument(context.Background(), "alice", &model.Document{ID: ".."}), ErrInvalidKey)
}

func TestDistinctUsersNeverShareKeys(t *testing.T) {
	ctx := context.Background()
	c := NewCorpus(NewMemoryStore())
	require.NoError(t, c.AddDocument(ctx, "bobcorp.com", &model.Document{ID: "d1", Filename: "salary.pdf"}))

	for _, alias := range []string{"bob@corp.com", "bob/corp.com", "bob corp.com"} {
		_, err := c.ListDocuments(ctx, alias)
		assert.ErrorIs(t, err, ErrInvalidKey, alias)
		assert.ErrorIs(t, c.AddDocument(ctx, alias, &model.Document{ID: "d2"}), ErrInvalidKey, alias)
	}
	_, err := c.LoadChunks(ctx, "bobcorp.com", model.SourceDocument, "d@1")
	assert.ErrorIs(t, err, ErrInvalidKey)

	docs, err := c.ListDocuments(ctx, "bobcorp.com")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestListChunkIDsSeesDeletedItems(t *testing.T) {
	ctx := context.Background()
	c := NewCorpus(NewMemoryStore())
	require.NoError(t, c.AddDocument(ctx, "alice", &model.Document{ID: "d1"}))
	require.NoError(t, c.AddDocument(ctx, "alice", &model.Document{ID: "d2"}))
	for _, id := range []string{"d1", "d2"} {
		_, err := c.StoreChunks(ctx, "alice", model.SourceDocument, id, []string{"t"}, [][]float32{{1}}, nil)
		require.NoError(t, err)
	}
	require.NoError(t, c.AddDocument(ctx, "alice-2", &model.Document{ID: "x1"}))
	_, err := c.StoreChunks(ctx, "alice-2", model.SourceDocument, "x1", []string{"t"}, [][]float32{{1}}, nil)
	require.NoError(t, err)
	require.NoError(t, c.DeleteDocument(ctx, "alice", "d1"))

	ids, err := c.ListChunkIDs(ctx, "alice", model.SourceDocument)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2"}, ids)

	ids, err = c.ListChunkIDs(ctx, "alice", model.SourceURL)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestQueryLogKeepsNewest(t *testing.T) {
	ctx := context.Background()
	c := NewCorpus(NewMemoryStore())

	empty, err := c.ListQueries(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, q := range []string{"q1", "q2", "q3"} {
		require.NoError(t, c.AppendQuery(ctx, "alice", &model.QueryRecord{Query: q}, 2))
	}
	got, err := c.ListQueries(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "q2", got[0].Query)
	assert.Equal(t, "q3", got[1].Query)

	other, err := c.ListQueries(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, other)

	assert.ErrorIs(t, c.AppendQuery(ctx, "bob@corp", &model.QueryRecord{Query: "q"}, 0), ErrInvalidKey)
}
