package biz

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/retrieval-x/internal/model"
	"github.com/kart-io/retrieval-x/internal/retrieval/metrics"
	"github.com/kart-io/retrieval-x/internal/retrieval/store"
	apierrors "github.com/kart-io/retrieval-x/pkg/utils/errors"
)

func newTestIndexer(c *store.Corpus, ext *fakeExtractor, emb *fakeEmbedder) *Indexer {
	return NewIndexer(c, ext, emb, &IndexerConfig{ChunkSize: 50, ChunkOverlap: 10, EmbedBatchSize: 2}, metrics.New())
}

func addDoc(t *testing.T, c *store.Corpus, id, name string, state model.IndexState) {
	t.Helper()
	require.NoError(t, c.AddDocument(context.Background(), "alice", &model.Document{
		ID: id, Filename: name, ContentType: "text/plain", UploadDate: testToday, Category: "general", IndexState: state,
	}))
}

func docState(t *testing.T, c *store.Corpus, id string) model.IndexState {
	t.Helper()
	d, err := c.GetDocument(context.Background(), "alice", id)
	require.NoError(t, err)
	return d.IndexState
}

func TestIndexSource(t *testing.T) {
	c := newCorpus()
	addDoc(t, c, "d1", "notes.txt", model.NotIndexed())
	long := strings.Repeat("heart rate variability ", 12)
	ext := &fakeExtractor{texts: map[string]string{"d1": long}}
	emb := &fakeEmbedder{fallback: []float32{1, 0}}
	ix := newTestIndexer(c, ext, emb)

	n, err := ix.IndexSource(context.Background(), "alice", model.SourceDocument, "d1")
	require.NoError(t, err)
	require.Greater(t, n, 1)

	state := docState(t, c, "d1")
	assert.True(t, state.IsIndexed())
	assert.Equal(t, n, state.ChunkCount())

	chunks, err := c.LoadChunks(context.Background(), "alice", model.SourceDocument, "d1")
	require.NoError(t, err)
	require.Len(t, chunks, n)
	for i, ch := range chunks {
		assert.Equal(t, model.ChunkID("d1", i), ch.ChunkID)
		assert.Equal(t, "notes.txt", ch.Metadata["filename"])
		assert.Equal(t, []float32{1, 0}, ch.Embedding)
	}
	// 批大小为 2，向量请求按批拆分
	assert.Equal(t, int32((n+1)/2), emb.calls.Load())
}

func TestIndexSourceReplacesChunks(t *testing.T) {
	c := newCorpus()
	addDoc(t, c, "d1", "notes.txt", model.NotIndexed())
	ext := &fakeExtractor{texts: map[string]string{"d1": strings.Repeat("first version ", 20)}}
	ix := newTestIndexer(c, ext, &fakeEmbedder{fallback: []float32{1, 0}})
	ctx := context.Background()

	first, err := ix.IndexSource(ctx, "alice", model.SourceDocument, "d1")
	require.NoError(t, err)
	require.Greater(t, first, 1)

	ext.texts["d1"] = "second"
	n, err := ix.IndexSource(ctx, "alice", model.SourceDocument, "d1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	chunks, err := c.LoadChunks(ctx, "alice", model.SourceDocument, "d1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "second", chunks[0].Text)
	assert.Equal(t, 1, docState(t, c, "d1").ChunkCount())
}

func TestIndexSourceFailures(t *testing.T) {
	tests := []struct {
		name string
		ext  *fakeExtractor
		emb  *fakeEmbedder
		want *apierrors.Errno
	}{
		{
			name: "extraction error",
			ext:  &fakeExtractor{errs: map[string]error{"d1": errors.New("corrupt")}},
			emb:  &fakeEmbedder{fallback: []float32{1}},
			want: apierrors.ErrExtraction,
		},
		{
			name: "typed extraction error is kept",
			ext:  &fakeExtractor{errs: map[string]error{"d1": apierrors.ErrUnsupportedFile}},
			emb:  &fakeEmbedder{fallback: []float32{1}},
			want: apierrors.ErrUnsupportedFile,
		},
		{
			name: "no text",
			ext:  &fakeExtractor{texts: map[string]string{"d1": "   \n\n "}},
			emb:  &fakeEmbedder{fallback: []float32{1}},
			want: apierrors.ErrExtraction,
		},
		{
			name: "embedding backend",
			ext:  &fakeExtractor{texts: map[string]string{"d1": "text"}},
			emb:  &fakeEmbedder{err: errBackend},
			want: apierrors.ErrEmbeddingBackend,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCorpus()
			addDoc(t, c, "d1", "notes.txt", model.Indexed(4))
			ix := newTestIndexer(c, tt.ext, tt.emb)

			n, err := ix.IndexSource(context.Background(), "alice", model.SourceDocument, "d1")
			assert.Zero(t, n)
			assert.ErrorIs(t, err, tt.want)

			state := docState(t, c, "d1")
			assert.Equal(t, model.StatusFailed, state.Status())
			assert.Zero(t, state.ChunkCount())

			d, err := c.GetDocument(context.Background(), "alice", "d1")
			require.NoError(t, err)
			assert.Equal(t, "notes.txt", d.Filename)
			assert.Equal(t, "general", d.Category)
		})
	}
}

func TestIndexSourceMissing(t *testing.T) {
	ix := newTestIndexer(newCorpus(), &fakeExtractor{}, &fakeEmbedder{})
	_, err := ix.IndexSource(context.Background(), "alice", model.SourceURL, "nope")
	assert.ErrorIs(t, err, apierrors.ErrSourceNotFound)
}

func TestBatchIndex(t *testing.T) {
	c := newCorpus()
	addDoc(t, c, "d1", "done.txt", model.Indexed(1))
	addDoc(t, c, "d2", "todo.txt", model.NotIndexed())
	addDoc(t, c, "d3", "broken.txt", model.Failed())
	ext := &fakeExtractor{
		texts: map[string]string{"d1": "one", "d2": "two"},
		errs:  map[string]error{"d3": errors.New("corrupt")},
	}
	ix := newTestIndexer(c, ext, &fakeEmbedder{fallback: []float32{1}})
	ctx := context.Background()

	report, err := ix.BatchIndex(ctx, "alice", model.SourceDocument, false)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Indexed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "d3", report.Failures[0].SourceID)
	assert.Equal(t, "broken.txt", report.Failures[0].Name)
	assert.NotEmpty(t, report.Failures[0].Error)

	report, err = ix.BatchIndex(ctx, "alice", model.SourceDocument, true)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Indexed)
	assert.Zero(t, report.Skipped)
	assert.Equal(t, 1, report.Failed)
}

func TestBatchIndexEmpty(t *testing.T) {
	ix := newTestIndexer(newCorpus(), &fakeExtractor{}, &fakeEmbedder{})
	report, err := ix.BatchIndex(context.Background(), "alice", model.SourceURL, false)
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.NotNil(t, report.Failures)
}

func TestBatchAll(t *testing.T) {
	c := newCorpus()
	addDoc(t, c, "d1", "a.txt", model.NotIndexed())
	require.NoError(t, c.AddURL(context.Background(), "alice", &model.URLResource{ID: "u1", URL: "https://example.org/a"}))
	require.NoError(t, c.AddURL(context.Background(), "alice", &model.URLResource{ID: "u2", URL: "https://example.org/b"}))
	ext := &fakeExtractor{
		texts: map[string]string{"d1": "doc", "u1": "page"},
		errs:  map[string]error{"u2": errors.New("404")},
	}
	ix := newTestIndexer(c, ext, &fakeEmbedder{fallback: []float32{1}})

	report, err := ix.BatchAll(context.Background(), "alice", false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents.Indexed)
	assert.Equal(t, 1, report.URLs.Indexed)
	require.Len(t, report.URLs.Failures, 1)
	assert.Equal(t, "https://example.org/b", report.URLs.Failures[0].Name)
}

func TestBatchIndexSkipsFullyIndexedCorpus(t *testing.T) {
	c := newCorpus()
	addDoc(t, c, "d1", "a.txt", model.Indexed(1))
	addDoc(t, c, "d2", "b.txt", model.Indexed(4))
	addDoc(t, c, "d3", "c.txt", model.Indexed(2))
	// 任何一次提取都会失败，确保已索引条目未被重新处理
	ext := &fakeExtractor{errs: map[string]error{
		"d1": errors.New("unexpected"), "d2": errors.New("unexpected"), "d3": errors.New("unexpected"),
	}}
	emb := &fakeEmbedder{fallback: []float32{1}}
	ix := newTestIndexer(c, ext, emb)

	report, err := ix.BatchIndex(context.Background(), "alice", model.SourceDocument, false)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Zero(t, report.Indexed)
	assert.Equal(t, 3, report.Skipped)
	assert.Zero(t, report.Failed)
	assert.Empty(t, report.Failures)
	assert.Zero(t, emb.calls.Load())
	assert.Equal(t, 4, docState(t, c, "d2").ChunkCount())
}
