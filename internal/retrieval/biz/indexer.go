package biz

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/kart-io/retrieval-x/internal/model"
	"github.com/kart-io/retrieval-x/internal/pkg/rag/textutil"
	"github.com/kart-io/retrieval-x/internal/retrieval/extract"
	"github.com/kart-io/retrieval-x/internal/retrieval/metrics"
	"github.com/kart-io/retrieval-x/internal/retrieval/store"
	ctxlog "github.com/kart-io/retrieval-x/pkg/infra/logger"
	"github.com/kart-io/retrieval-x/pkg/infra/tracing"
	"github.com/kart-io/retrieval-x/pkg/llm"
	apierrors "github.com/kart-io/retrieval-x/pkg/utils/errors"
)

// IndexerConfig 索引器配置。
type IndexerConfig struct {
	// ChunkSize 分块大小（字符）
	ChunkSize int
	// ChunkOverlap 相邻分块重叠（字符）
	ChunkOverlap int
	// EmbedBatchSize 单次向量化请求的分块数，0 表示不拆分
	EmbedBatchSize int
	// EmbedRateLimit 每秒向量化请求上限，0 表示不限
	EmbedRateLimit float64
	// EmbedBurst 限流桶容量
	EmbedBurst int
}

// DefaultIndexerConfig 返回默认索引配置。
func DefaultIndexerConfig() *IndexerConfig {
	return &IndexerConfig{
		ChunkSize:      textutil.DefaultChunkSize,
		ChunkOverlap:   textutil.DefaultChunkOverlap,
		EmbedBatchSize: 32,
	}
}

// Indexer 负责单个来源的索引：提取、分块、向量化、存储。
type Indexer struct {
	corpus    *store.Corpus
	extractor extract.Extractor
	embedder  llm.EmbeddingProvider
	splitter  *textutil.Splitter
	limiter   *rate.Limiter
	batchSize int
	metrics   *metrics.Metrics
}

// NewIndexer 创建索引器实例。
func NewIndexer(corpus *store.Corpus, extractor extract.Extractor, embedder llm.EmbeddingProvider, config *IndexerConfig, m *metrics.Metrics) *Indexer {
	if config == nil {
		config = DefaultIndexerConfig()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.EmbedRateLimit > 0 {
		burst := config.EmbedBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.EmbedRateLimit), burst)
	}
	return &Indexer{
		corpus:    corpus,
		extractor: extractor,
		embedder:  embedder,
		splitter:  textutil.NewSplitter(config.ChunkSize, config.ChunkOverlap),
		limiter:   limiter,
		batchSize: config.EmbedBatchSize,
		metrics:   m,
	}
}

// IndexSource 索引一个来源并返回分块数。任何步骤失败都会把来源标记为 Failed，
// 其余元数据保持不变。已索引或失败的来源可以再次索引，新分块整体替换旧分块。
func (ix *Indexer) IndexSource(ctx context.Context, user string, t model.SourceType, id string) (n int, err error) {
	ctx, span := tracing.StartSpan(ctx, "Indexer.IndexSource",
		tracing.AttrUserID.String(user),
		tracing.AttrSourceType.String(string(t)),
		tracing.AttrSourceID.String(id),
	)
	defer span.End()

	src, err := ix.corpus.GetSource(ctx, user, t, id)
	if err != nil {
		tracing.RecordError(ctx, err)
		if errors.Is(err, store.ErrNotFound) {
			return 0, apierrors.ErrSourceNotFound.WithMessagef("%s %s not found", t, id)
		}
		return 0, apierrors.ErrStorage.WithCause(err)
	}

	start := time.Now()
	n, err = ix.run(ctx, user, src)
	ix.metrics.ObserveIndex(string(t), time.Since(start), n, err)
	if err != nil {
		tracing.RecordError(ctx, err)
		if serr := ix.corpus.SetState(ctx, user, t, id, model.Failed()); serr != nil {
			ctxlog.GetLogger(ctx).Errorw("Failed to mark source as failed",
				"source_type", t, "source_id", id, "error", serr.Error())
		}
		ctxlog.GetLogger(ctx).Warnw("Indexing failed", "source_type", t, "source_id", id, "error", err.Error())
		return 0, err
	}

	span.SetAttributes(tracing.AttrChunks.Int(n))
	ctxlog.GetLogger(ctx).Infow("Source indexed", "source_type", t, "source_id", id, "chunks", n,
		"duration_ms", time.Since(start).Milliseconds())
	return n, nil
}

func (ix *Indexer) run(ctx context.Context, user string, src model.Source) (int, error) {
	text, err := ix.extractor.Extract(ctx, user, src)
	if err != nil {
		if apierrors.GetCode(err) == -1 {
			err = apierrors.ErrExtraction.WithCause(err)
		}
		return 0, err
	}

	chunks := ix.splitter.Split(text)
	if len(chunks) == 0 {
		return 0, apierrors.ErrExtraction.WithMessagef("no content to index in %s", src.Name())
	}

	embeddings, err := llm.EmbedInBatches(ctx, chunks, ix.batchSize, func(ctx context.Context, batch []string) ([][]float32, error) {
		if err := ix.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return ix.embedder.Embed(ctx, batch)
	})
	if err != nil {
		return 0, apierrors.ErrEmbeddingBackend.WithCause(err)
	}

	n, err := ix.corpus.StoreChunks(ctx, user, src.Type(), src.SourceID(), chunks, embeddings, src.ChunkMetadata())
	if err != nil {
		return 0, apierrors.ErrIndexFailed.WithCause(err)
	}
	return n, nil
}
