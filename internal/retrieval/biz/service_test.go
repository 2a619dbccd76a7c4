package biz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/retrieval-x/internal/model"
	apierrors "github.com/kart-io/retrieval-x/pkg/utils/errors"
)

type enqueued struct {
	typ model.SourceType
	id  string
}

// recordingQueue 记录提交的索引请求。
type recordingQueue struct {
	mu   sync.Mutex
	reqs []enqueued
	err  error
}

func (r *recordingQueue) Enqueue(_ context.Context, _ string, t model.SourceType, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, enqueued{t, id})
	return r.err
}

func newTestService(q Enqueuer) *Service {
	s := NewService(newCorpus(), q)
	s.now = func() time.Time { return testNow }
	n := 0
	s.newID = func() string {
		n++
		return "id" + string(rune('0'+n))
	}
	return s
}

func TestUploadDocument(t *testing.T) {
	q := &recordingQueue{}
	s := newTestService(q)
	ctx := context.Background()

	doc, err := s.UploadDocument(ctx, "alice", UploadInput{
		Filename: "heart.pdf", ContentType: "application/pdf", Category: "cardiology", Data: []byte("%PDF"),
	})
	require.NoError(t, err)
	assert.Equal(t, "id1", doc.ID)
	assert.Equal(t, int64(4), doc.Size)
	assert.Equal(t, "2024-06-01T12:00:00Z", doc.UploadDate)
	assert.Equal(t, model.StatusNotIndexed, doc.IndexState.Status())
	assert.Equal(t, []enqueued{{model.SourceDocument, "id1"}}, q.reqs)

	got, data, err := s.GetDocumentContent(ctx, "alice", "id1")
	require.NoError(t, err)
	assert.Equal(t, "heart.pdf", got.Filename)
	assert.Equal(t, []byte("%PDF"), data)

	_, err = s.UploadDocument(ctx, "alice", UploadInput{Filename: "run.exe", Data: []byte("x")})
	assert.ErrorIs(t, err, apierrors.ErrUnsupportedFile)
	assert.Len(t, q.reqs, 1)
}

func TestUploadSurvivesFullQueue(t *testing.T) {
	s := newTestService(&recordingQueue{err: apierrors.ErrQueueFull})
	doc, err := s.UploadDocument(context.Background(), "alice", UploadInput{Filename: "a.txt", Data: []byte("x")})
	require.NoError(t, err)

	got, err := s.GetDocument(context.Background(), "alice", doc.ID)
	require.NoError(t, err)
	assert.False(t, got.IndexState.IsIndexed())
}

func TestDocumentLifecycle(t *testing.T) {
	s := newTestService(nil)
	ctx := context.Background()

	for _, in := range []UploadInput{
		{Filename: "a.txt", Category: "cardiology"},
		{Filename: "b.md", Category: "oncology"},
		{Filename: "c.docx", Category: "cardiology"},
		{Filename: "d.txt"},
	} {
		_, err := s.UploadDocument(ctx, "alice", in)
		require.NoError(t, err)
	}

	all, err := s.ListDocuments(ctx, "alice", "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	cardio, err := s.ListDocuments(ctx, "alice", "cardiology")
	require.NoError(t, err)
	assert.Len(t, cardio, 2)

	cats, err := s.DocumentCategories(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"cardiology", "oncology"}, cats)

	doc, err := s.UpdateDocumentCategory(ctx, "alice", "id2", "cardiology")
	require.NoError(t, err)
	assert.Equal(t, "cardiology", doc.Category)

	require.NoError(t, s.DeleteDocument(ctx, "alice", "id1"))
	_, err = s.GetDocument(ctx, "alice", "id1")
	assert.ErrorIs(t, err, apierrors.ErrSourceNotFound)
	assert.ErrorIs(t, s.DeleteDocument(ctx, "alice", "id1"), apierrors.ErrSourceNotFound)
	_, err = s.UpdateDocumentCategory(ctx, "alice", "missing", "x")
	assert.ErrorIs(t, err, apierrors.ErrSourceNotFound)

	mine, err := s.ListDocuments(ctx, "bob", "")
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestCreateURL(t *testing.T) {
	q := &recordingQueue{}
	s := newTestService(q)
	ctx := context.Background()

	u, err := s.CreateURL(ctx, "alice", URLInput{URL: "https://example.org/a", Title: "A", CredibilityScore: intPtr(4)})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01T12:00:00Z", u.AddedDate)
	assert.InDelta(t, 0.8, u.Credibility(), 1e-9)
	assert.Equal(t, []enqueued{{model.SourceURL, u.ID}}, q.reqs)

	tests := []struct {
		name string
		in   URLInput
		want *apierrors.Errno
	}{
		{"empty", URLInput{}, apierrors.ErrInvalidURL},
		{"relative", URLInput{URL: "/page"}, apierrors.ErrInvalidURL},
		{"ftp", URLInput{URL: "ftp://example.org"}, apierrors.ErrInvalidURL},
		{"rating too low", URLInput{URL: "https://example.org", CredibilityScore: intPtr(0)}, apierrors.ErrInvalidCredibility},
		{"rating too high", URLInput{URL: "https://example.org", CredibilityScore: intPtr(6)}, apierrors.ErrInvalidCredibility},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateURL(ctx, "alice", tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Len(t, q.reqs, 1)
}

func TestUpdateURL(t *testing.T) {
	s := newTestService(nil)
	ctx := context.Background()
	u, err := s.CreateURL(ctx, "alice", URLInput{URL: "https://example.org/a", Title: "A", Category: "x"})
	require.NoError(t, err)
	require.NoError(t, s.corpus.SetState(ctx, "alice", model.SourceURL, u.ID, model.Indexed(3)))

	title := "Renamed"
	got, err := s.UpdateURL(ctx, "alice", u.ID, URLPatch{Title: &title, CredibilityScore: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, "x", got.Category)
	require.NotNil(t, got.CredibilityScore)
	assert.Equal(t, 2, *got.CredibilityScore)
	assert.Equal(t, 3, got.IndexState.ChunkCount())

	_, err = s.UpdateURL(ctx, "alice", u.ID, URLPatch{CredibilityScore: intPtr(9)})
	assert.ErrorIs(t, err, apierrors.ErrInvalidCredibility)
	_, err = s.UpdateURL(ctx, "alice", "missing", URLPatch{Title: &title})
	assert.ErrorIs(t, err, apierrors.ErrSourceNotFound)

	cats, err := s.URLCategories(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, cats)

	require.NoError(t, s.DeleteURL(ctx, "alice", u.ID))
	urls, err := s.ListURLs(ctx, "alice", "")
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestStats(t *testing.T) {
	s := newTestService(nil)
	ctx := context.Background()

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		_, err := s.UploadDocument(ctx, "alice", UploadInput{Filename: name})
		require.NoError(t, err)
	}
	_, err := s.CreateURL(ctx, "alice", URLInput{URL: "https://example.org"})
	require.NoError(t, err)

	require.NoError(t, s.corpus.SetState(ctx, "alice", model.SourceDocument, "id1", model.Indexed(5)))
	require.NoError(t, s.corpus.SetState(ctx, "alice", model.SourceDocument, "id2", model.Failed()))

	st, err := s.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, SourceStats{Total: 3, Indexed: 1, Failed: 1, NotIndexed: 1, Chunks: 5}, st.Documents)
	assert.Equal(t, SourceStats{Total: 1, NotIndexed: 1}, st.URLs)
}

func TestInvalidUser(t *testing.T) {
	s := newTestService(nil)
	_, err := s.ListDocuments(context.Background(), "///", "")
	assert.ErrorIs(t, err, apierrors.ErrInvalidParam)
}

func TestStatsCountsOrphanedChunks(t *testing.T) {
	s := newTestService(nil)
	ctx := context.Background()

	for _, name := range []string{"a.txt", "b.txt"} {
		_, err := s.UploadDocument(ctx, "alice", UploadInput{Filename: name})
		require.NoError(t, err)
	}
	for _, id := range []string{"id1", "id2"} {
		_, err := s.corpus.StoreChunks(ctx, "alice", model.SourceDocument, id, []string{"x"}, [][]float32{{1, 0}}, nil)
		require.NoError(t, err)
	}
	require.NoError(t, s.DeleteDocument(ctx, "alice", "id1"))

	st, err := s.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, SourceStats{Total: 1, Indexed: 1, Chunks: 1, Orphaned: 1}, st.Documents)

	other, err := s.Stats(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, other.Documents.Orphaned)
}
