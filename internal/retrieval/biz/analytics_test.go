package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/retrieval-x/internal/model"
	"github.com/kart-io/retrieval-x/internal/retrieval/metrics"
	apierrors "github.com/kart-io/retrieval-x/pkg/utils/errors"
)

func newTestAnalytics(limit int) *Analytics {
	a := NewAnalytics(newCorpus(), limit)
	a.now = func() time.Time { return testNow }
	return a
}

func f64(v float64) *float64 { return &v }

func i64(v int64) *int64 { return &v }

func TestGeneratorRecordsQueries(t *testing.T) {
	a := newTestAnalytics(0)
	chat := &fakeChat{reply: "[MODERATE CONFIDENCE] Probably."}
	c := seedMixed(t)
	a.corpus = c
	g := NewGenerator(newTestRanker(c, &fakeEmbedder{fallback: []float32{1, 0}}), chat, nil, metrics.New()).WithRecorder(a)

	_, err := g.Answer(context.Background(), Query{Text: "blood pressure", UserID: "alice", TopK: 2})
	require.NoError(t, err)

	page, err := a.History(context.Background(), "alice", 1, 20)
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalCount)
	rec := page.Data[0]
	assert.Equal(t, "blood pressure", rec.Query)
	assert.Equal(t, "alice", rec.UserID)
	assert.Equal(t, "2024-06-01T12:00:00Z", rec.Timestamp)
	assert.Equal(t, "Amber", rec.ConfidenceLevel)
	assert.Equal(t, len("Probably."), rec.ResponseLength)
	assert.Equal(t, 2, rec.NumSources)
	assert.Equal(t, map[string]int{"url": 1, "document": 1}, rec.SourceTypes)
	require.NotNil(t, rec.ProcessingTimeMs)
	require.NotNil(t, rec.AvgSemanticScore)
	assert.InDelta(t, 1.0, *rec.AvgSemanticScore, 1e-9)
	require.NotNil(t, rec.AvgCredibilityScore)
	assert.InDelta(t, (1.0+0.85)/2, *rec.AvgCredibilityScore, 1e-9)
	require.NotNil(t, rec.AvgRecencyScore)
	assert.InDelta(t, 1.0, *rec.AvgRecencyScore, 1e-9)
}

func TestGeneratorRecordsUnansweredQueries(t *testing.T) {
	a := newTestAnalytics(0)
	g := NewGenerator(newTestRanker(a.corpus, &fakeEmbedder{fallback: []float32{1, 0}}), &fakeChat{}, nil, metrics.New()).WithRecorder(a)

	_, err := g.Answer(context.Background(), Query{Text: "anything", UserID: "alice", TopK: 3})
	require.NoError(t, err)

	page, err := a.History(context.Background(), "alice", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Red", page.Data[0].ConfidenceLevel)
	assert.Zero(t, page.Data[0].NumSources)
	assert.Nil(t, page.Data[0].AvgSemanticScore)
	assert.Empty(t, page.Data[0].SourceTypes)
}

type failingRecorder struct{ calls int }

func (f *failingRecorder) Record(context.Context, string, *model.QueryRecord) error {
	f.calls++
	return errors.New("disk full")
}

func TestRecorderFailureKeepsAnswer(t *testing.T) {
	rec := &failingRecorder{}
	g := NewGenerator(newTestRanker(seedMixed(t), &fakeEmbedder{fallback: []float32{1, 0}}),
		&fakeChat{reply: "[HIGH CONFIDENCE] ok"}, nil, metrics.New()).WithRecorder(rec)

	ans, err := g.Answer(context.Background(), Query{Text: "q", UserID: "alice", TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, ConfidenceGreen, ans.ConfidenceLevel)
	assert.Equal(t, 1, rec.calls)
}

func TestRecordValidatesTimestamp(t *testing.T) {
	a := newTestAnalytics(0)
	ctx := context.Background()

	err := a.Record(ctx, "alice", &model.QueryRecord{Query: "q", Timestamp: "yesterday"})
	assert.ErrorIs(t, err, apierrors.ErrInvalidParam)

	rec := &model.QueryRecord{Query: "q", UserID: "mallory"}
	require.NoError(t, a.Record(ctx, "alice", rec))
	assert.Equal(t, "alice", rec.UserID)

	assert.ErrorIs(t, a.Record(ctx, "bob@corp", &model.QueryRecord{Query: "q"}), apierrors.ErrInvalidParam)
}

func TestHistoryPagination(t *testing.T) {
	a := newTestAnalytics(0)
	ctx := context.Background()
	for _, ts := range []string{"2024-05-01T00:00:00Z", "2024-05-03T00:00:00Z", "2024-05-02T00:00:00Z"} {
		require.NoError(t, a.Record(ctx, "alice", &model.QueryRecord{Query: ts, Timestamp: ts}))
	}

	page, err := a.History(ctx, "alice", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "2024-05-03T00:00:00Z", page.Data[0].Timestamp)
	assert.Equal(t, "2024-05-02T00:00:00Z", page.Data[1].Timestamp)

	page, err = a.History(ctx, "alice", 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "2024-05-01T00:00:00Z", page.Data[0].Timestamp)

	page, err = a.History(ctx, "alice", 5, 2)
	require.NoError(t, err)
	assert.NotNil(t, page.Data)
	assert.Empty(t, page.Data)

	for _, bad := range [][2]int{{0, 10}, {1, 0}, {1, MaxPageSize + 1}} {
		_, err := a.History(ctx, "alice", bad[0], bad[1])
		assert.ErrorIs(t, err, apierrors.ErrInvalidPage, "%v", bad)
	}
}

func TestQueryLogLimit(t *testing.T) {
	a := newTestAnalytics(2)
	ctx := context.Background()
	for _, q := range []string{"a", "b", "c"} {
		require.NoError(t, a.Record(ctx, "alice", &model.QueryRecord{Query: q}))
	}
	page, err := a.History(ctx, "alice", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)
}

func TestQueryStats(t *testing.T) {
	a := newTestAnalytics(0)
	ctx := context.Background()
	records := []*model.QueryRecord{
		{Query: "bp", Timestamp: "2024-05-31T09:00:00Z", ConfidenceLevel: "Green", ProcessingTimeMs: i64(100),
			AvgSemanticScore: f64(0.8), AvgCredibilityScore: f64(1), AvgRecencyScore: f64(0.5),
			SourceTypes: map[string]int{"document": 2, "url": 1}},
		{Query: "bp", Timestamp: "2024-05-31T18:00:00Z", ConfidenceLevel: "Red", ProcessingTimeMs: i64(300),
			AvgSemanticScore: f64(0.4), SourceTypes: map[string]int{"document": 1}},
		{Query: "ecg", Timestamp: "2024-06-01T08:00:00Z", ConfidenceLevel: "Green"},
		{Query: "old", Timestamp: "2024-01-01T00:00:00Z", ConfidenceLevel: "Amber", ProcessingTimeMs: i64(9000)},
	}
	for _, r := range records {
		require.NoError(t, a.Record(ctx, "alice", r))
	}

	st, err := a.Stats(ctx, "alice", 30)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalQueries)
	require.NotNil(t, st.AvgProcessingTime)
	assert.InDelta(t, 200, *st.AvgProcessingTime, 1e-9)
	require.NotNil(t, st.AvgSemanticScore)
	assert.InDelta(t, 0.6, *st.AvgSemanticScore, 1e-9)
	require.NotNil(t, st.AvgCredibilityScore)
	assert.InDelta(t, 1.0, *st.AvgCredibilityScore, 1e-9)
	require.NotNil(t, st.AvgRecencyScore)
	assert.InDelta(t, 0.5, *st.AvgRecencyScore, 1e-9)
	assert.Equal(t, map[string]int{"Green": 2, "Red": 1}, st.ConfidenceDistribution)
	assert.Equal(t, map[string]int{"document": 3, "url": 1}, st.SourceTypeDistribution)
	assert.Equal(t, []QueryCount{{"bp", 2}, {"ecg", 1}}, st.TopQueries)
	assert.Equal(t, []DailyCount{{"2024-05-31", 2}, {"2024-06-01", 1}}, st.DailyQueryCounts)

	all, err := a.Stats(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, 4, all.TotalQueries)
	assert.Equal(t, "2024-01-01", all.DailyQueryCounts[0].Date)

	empty, err := a.Stats(ctx, "bob", 30)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalQueries)
	assert.Nil(t, empty.AvgProcessingTime)
	assert.NotNil(t, empty.TopQueries)
}
