package biz

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/retrieval-x/internal/model"
)

func TestRecencyScore(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		date string
		want *float64
	}{
		{"empty", "", nil},
		{"same day", "2024-06-01", ptr(1)},
		{"half a day ago", "2024-06-01T00:00:00Z", ptr(1)},
		{"one day", "2024-05-31T12:00:00Z", ptr(1 - 1.0/365)},
		{"182 days", "2023-12-02T12:00:00Z", ptr(1 - 182.0/365)},
		{"exactly a year", "2023-06-02T12:00:00Z", ptr(0)},
		{"older than a year", "2020-01-01", ptr(0)},
		{"future clamps", "2030-01-01", ptr(1)},
		{"naive iso", "2024-05-31T11:00:00.123456", ptr(1 - 1.0/365)},
		{"space separated", "2024-05-31 12:00:00", ptr(1 - 1.0/365)},
		{"malformed", "yesterday", ptr(0.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RecencyScore(tt.date, now)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func ptr(v float64) *float64 { return &v }

func TestComposite(t *testing.T) {
	t.Run("all components", func(t *testing.T) {
		sc := model.Scores{Semantic: 1, Recency: ptr(1), Credibility: 1, Category: ptr(1)}
		assert.InDelta(t, 1.0, Composite(sc), 1e-9)
	})

	t.Run("missing recency renormalizes", func(t *testing.T) {
		sc := model.Scores{Semantic: 0.5, Credibility: 0.8}
		want := (0.6*0.5 + 0.2*0.8) / 0.8
		assert.InDelta(t, want, Composite(sc), 1e-9)
	})

	t.Run("category mismatch", func(t *testing.T) {
		sc := model.Scores{Semantic: 1, Recency: ptr(1), Credibility: 1, Category: ptr(0.5)}
		assert.InDelta(t, 0.975, Composite(sc), 1e-9)
	})

	t.Run("negative semantic lowers composite", func(t *testing.T) {
		pos := Composite(model.Scores{Semantic: 0.2, Credibility: 0.6})
		neg := Composite(model.Scores{Semantic: -0.2, Credibility: 0.6})
		assert.Less(t, neg, pos)
	})
}

func TestScorerScore(t *testing.T) {
	s := NewScorer(func() time.Time { return testNow })
	doc := &model.Document{ID: "d1", ContentType: "application/pdf", UploadDate: testToday, Category: "cardiology"}
	chunk := &model.Chunk{ChunkID: "d1_chunk_0", Embedding: []float32{1, 0}}

	t.Run("without category filter", func(t *testing.T) {
		sc, err := s.Score([]float32{1, 0}, chunk, doc, nil)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, sc.Semantic, 1e-9)
		require.NotNil(t, sc.Recency)
		assert.InDelta(t, 1.0, *sc.Recency, 1e-9)
		assert.InDelta(t, 0.85, sc.Credibility, 1e-9)
		assert.Nil(t, sc.Category)
		assert.InDelta(t, (0.6+0.15+0.2*0.85)/0.95, sc.Composite, 1e-9)
	})

	t.Run("category match and mismatch", func(t *testing.T) {
		sc, err := s.Score([]float32{1, 0}, chunk, doc, []string{"cardiology"})
		require.NoError(t, err)
		require.NotNil(t, sc.Category)
		assert.Equal(t, 1.0, *sc.Category)

		sc, err = s.Score([]float32{1, 0}, chunk, doc, []string{"oncology"})
		require.NoError(t, err)
		assert.Equal(t, 0.5, *sc.Category)
	})

	t.Run("unscorable chunks", func(t *testing.T) {
		_, err := s.Score([]float32{1, 0}, &model.Chunk{}, doc, nil)
		assert.ErrorIs(t, err, ErrEmptyEmbedding)

		_, err = s.Score([]float32{1, 0}, &model.Chunk{Embedding: []float32{1, 0, 0}}, doc, nil)
		assert.ErrorIs(t, err, ErrDimensionMismatch)

		_, err = s.Score([]float32{1, 0}, &model.Chunk{Embedding: []float32{float32(math.NaN()), 0}}, doc, nil)
		assert.ErrorIs(t, err, ErrNonFiniteEmbedding)
	})

	t.Run("composite stays within bounds", func(t *testing.T) {
		for _, v := range [][]float32{{1, 0}, {0, 1}, {-1, 0}, {0.3, 0.7}} {
			sc, err := s.Score([]float32{1, 0}, &model.Chunk{Embedding: v}, doc, []string{"x"})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, sc.Composite, -1.0)
			assert.LessOrEqual(t, sc.Composite, 1.0)
		}
	})
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2024-06-01T08:00:00Z", "2024-06-01T08:00:00+02:00", "2024-06-01T08:00:00", "2024-06-01"} {
		_, ok := ParseDate(s)
		assert.True(t, ok, s)
	}
	_, ok := ParseDate("06/01/2024")
	assert.False(t, ok)
}
