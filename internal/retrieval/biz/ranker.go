package biz

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/kart-io/retrieval-x/internal/model"
	"github.com/kart-io/retrieval-x/internal/retrieval/metrics"
	"github.com/kart-io/retrieval-x/internal/retrieval/store"
	ctxlog "github.com/kart-io/retrieval-x/pkg/infra/logger"
	"github.com/kart-io/retrieval-x/pkg/infra/tracing"
	"github.com/kart-io/retrieval-x/pkg/llm"
	apierrors "github.com/kart-io/retrieval-x/pkg/utils/errors"
)

// Query 一次检索请求。
type Query struct {
	Text        string
	UserID      string
	TopK        int
	DocumentIDs []string
	URLIDs      []string
	Categories  []string
}

// Ranker 在用户的文档与 URL 分块中检索并排序。
type Ranker struct {
	corpus   *store.Corpus
	embedder llm.EmbeddingProvider
	scorer   *Scorer
	metrics  *metrics.Metrics
}

// NewRanker 创建排序器。
func NewRanker(corpus *store.Corpus, embedder llm.EmbeddingProvider, scorer *Scorer, m *metrics.Metrics) *Ranker {
	return &Ranker{corpus: corpus, embedder: embedder, scorer: scorer, metrics: m}
}

type scored struct {
	chunk  *model.Chunk
	src    model.Source
	scores model.Scores
}

// Rank 返回至多 TopK 个按综合分数降序排列的结果。查询向量只计算一次；
// 单个来源或分块的错误会被记录并跳过。
func (r *Ranker) Rank(ctx context.Context, q Query) (results []*model.SearchResult, err error) {
	start := time.Now()
	defer func() { r.metrics.ObserveSearch(time.Since(start), len(results), err) }()

	if q.TopK <= 0 {
		return nil, apierrors.ErrInvalidTopK
	}
	if strings.TrimSpace(q.Text) == "" {
		return nil, apierrors.ErrInvalidParam.WithMessage("query is required")
	}

	ctx, span := tracing.StartSpan(ctx, "Ranker.Rank",
		tracing.AttrUserID.String(q.UserID),
		tracing.AttrTopK.Int(q.TopK),
	)
	defer span.End()
	defer func() { tracing.RecordError(ctx, err) }()

	queryVec, err := r.embedder.EmbedSingle(ctx, q.Text)
	if err != nil {
		return nil, apierrors.ErrEmbeddingBackend.WithCause(err)
	}

	var all []scored
	for _, t := range model.SourceTypes {
		f := store.Filters{Categories: q.Categories, IDs: q.DocumentIDs}
		if t == model.SourceURL {
			f.IDs = q.URLIDs
		}
		items, err := r.scoreType(ctx, queryVec, q, t, f)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}

	slices.SortStableFunc(all, func(a, b scored) int {
		switch {
		case a.scores.Composite > b.scores.Composite:
			return -1
		case a.scores.Composite < b.scores.Composite:
			return 1
		}
		return 0
	})
	if len(all) > q.TopK {
		all = all[:q.TopK]
	}

	results = make([]*model.SearchResult, len(all))
	for i, s := range all {
		results[i] = toResult(s)
	}
	span.SetAttributes(tracing.AttrResults.Int(len(results)))
	return results, nil
}

func (r *Ranker) scoreType(ctx context.Context, queryVec []float32, q Query, t model.SourceType, f store.Filters) ([]scored, error) {
	sources, err := r.corpus.ListEligible(ctx, q.UserID, t, f)
	if err != nil {
		return nil, apierrors.ErrStorage.WithCause(err)
	}

	var out []scored
	for _, src := range sources {
		chunks, err := r.corpus.LoadChunks(ctx, q.UserID, t, src.SourceID())
		if err != nil {
			reason := "load_failed"
			if errors.Is(err, store.ErrNotFound) {
				reason = "chunks_missing"
			}
			r.metrics.SkipChunk(reason)
			ctxlog.GetLogger(ctx).Warnw("Skipping source during ranking",
				"source_type", t, "source_id", src.SourceID(), "error", err.Error())
			continue
		}

		for i := range chunks {
			sc, err := r.scorer.Score(queryVec, &chunks[i], src, q.Categories)
			if err != nil {
				r.metrics.SkipChunk(skipReason(err))
				ctxlog.GetLogger(ctx).Warnw("Skipping chunk during ranking",
					"source_type", t, "source_id", src.SourceID(), "error", err.Error())
				continue
			}
			out = append(out, scored{chunk: &chunks[i], src: src, scores: sc})
		}
	}
	return out, nil
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyEmbedding):
		return "empty_embedding"
	case errors.Is(err, ErrDimensionMismatch):
		return "dimension"
	case errors.Is(err, ErrNonFiniteEmbedding):
		return "non_finite"
	}
	return "score_failed"
}

func toResult(s scored) *model.SearchResult {
	meta := maps.Clone(s.chunk.Metadata)
	if meta == nil {
		meta = make(map[string]any)
	}
	maps.Copy(meta, s.src.ResultMetadata())

	return &model.SearchResult{
		ID:               s.chunk.ChunkID,
		Text:             s.chunk.Text,
		Metadata:         meta,
		SourceType:       s.src.Type(),
		Score:            s.scores.Composite,
		SemanticScore:    s.scores.Semantic,
		RecencyScore:     s.scores.Recency,
		CredibilityScore: s.scores.Credibility,
		CategoryScore:    s.scores.Category,
	}
}
