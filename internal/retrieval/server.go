package retrieval

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/retrieval-x/internal/retrieval/biz"
	"github.com/kart-io/retrieval-x/internal/retrieval/extract"
	"github.com/kart-io/retrieval-x/internal/retrieval/handler"
	"github.com/kart-io/retrieval-x/internal/retrieval/metrics"
	"github.com/kart-io/retrieval-x/internal/retrieval/router"
	"github.com/kart-io/retrieval-x/internal/retrieval/store"
	"github.com/kart-io/retrieval-x/pkg/infra/middleware/auth"
	"github.com/kart-io/retrieval-x/pkg/infra/pool"
	"github.com/kart-io/retrieval-x/pkg/infra/tracing"
	"github.com/kart-io/retrieval-x/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/retrieval-x/pkg/llm/ollama"
	_ "github.com/kart-io/retrieval-x/pkg/llm/openai"
	"github.com/kart-io/retrieval-x/pkg/llm/resilience"
)

// Server is the assembled retrieval service.
type Server struct {
	http            *http.Server
	shutdownTimeout time.Duration

	queue  *biz.IndexQueue
	pools  *pool.Manager
	blobs  store.BlobStore
	tracer *tracing.Provider
	redis  *goredis.Client
}

// NewServer wires every component from opts. The logger must already be
// initialised.
func NewServer(ctx context.Context, opts *Options) (_ *Server, err error) {
	s := &Server{shutdownTimeout: opts.HTTP.ShutdownTimeout}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	// 1. 初始化链路追踪
	s.tracer, err = tracing.NewProvider(ctx, opts.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	logger.Infow("Tracing initialized", "enabled", s.tracer.Enabled(), "exporter", opts.Tracing.ExporterType)

	// 2. 初始化 Store 层
	s.blobs, err = store.New(ctx, opts.Storage, store.Connections{
		Redis:    opts.Redis,
		MySQL:    opts.MySQL,
		Postgres: opts.Postgres,
		MongoDB:  opts.MongoDB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}
	corpus := store.NewCorpus(s.blobs)

	// 3. 初始化 LLM 供应商
	embedding, chat, breakers, err := s.newProviders(ctx, opts)
	if err != nil {
		return nil, err
	}

	// 4. 初始化指标与工作池
	m := metrics.New()
	s.pools = pool.NewManager()
	poolConfig := pool.IndexingPoolConfig()
	poolConfig.Capacity = opts.Indexing.Workers
	indexPool, err := s.pools.Register(pool.IndexingPool, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexing pool: %w", err)
	}
	m.RegisterGauge("indexing_workers_running", "Index jobs currently running.", func() float64 {
		return float64(indexPool.Running())
	})
	for i, backend := range []string{"embedding", "chat"} {
		b := breakers[i]
		m.RegisterGauge(backend+"_breaker_state", "Circuit breaker state: 0 closed, 1 open, 2 half-open.", func() float64 {
			return float64(b.State())
		})
	}

	// 5. 初始化 Biz 层
	extractor := extract.NewRouter(corpus, extract.NewWebExtractor(opts.Indexing.FetchTimeout))
	indexer := biz.NewIndexer(corpus, extractor, embedding, &biz.IndexerConfig{
		ChunkSize:      opts.Indexing.ChunkSize,
		ChunkOverlap:   opts.Indexing.ChunkOverlap,
		EmbedBatchSize: opts.Embedding.BatchSize,
		EmbedRateLimit: opts.Indexing.EmbedRateLimit,
		EmbedBurst:     opts.Indexing.EmbedBurst,
	}, m)
	s.queue = biz.NewIndexQueue(indexer, indexPool, opts.Indexing.QueueSize, m)
	m.RegisterGauge("indexing_queue_pending", "Background index requests waiting for a worker.", func() float64 {
		return float64(s.queue.Len())
	})
	ranker := biz.NewRanker(corpus, embedding, biz.NewScorer(time.Now), m)
	analytics := biz.NewAnalytics(corpus, opts.Search.QueryLogLimit)
	generator := biz.NewGenerator(ranker, chat, &biz.GeneratorConfig{SystemPrompt: opts.Search.SystemPrompt}, m).WithRecorder(analytics)
	svc := biz.NewService(corpus, s.queue)
	logger.Infow("Retrieval service initialized",
		"chunk_size", opts.Indexing.ChunkSize,
		"chunk_overlap", opts.Indexing.ChunkOverlap,
		"workers", opts.Indexing.Workers,
		"queue_size", opts.Indexing.QueueSize,
	)

	// 6. 初始化 Handler 层
	checks := []handler.ReadinessCheck{{Name: "store", Check: s.blobs.Ping}}
	if p, ok := embedding.(llm.Pinger); ok {
		checks = append(checks, handler.ReadinessCheck{Name: "embedding", Check: p.Ping})
	}
	h := handler.New(handler.Deps{
		Service:   svc,
		Ranker:    ranker,
		Indexer:   indexer,
		Generator: generator,
		Analytics: analytics,
		Queue:     s.queue,
		Pools:     s.pools,
		Checks:    checks,
		Breakers:  breakers,
	}, handler.Config{
		DefaultTopK:   opts.Search.DefaultTopK,
		MaxUploadSize: opts.HTTP.MaxUploadSize,
	})

	// 7. 注册路由
	routerConfig := router.Config{Mode: opts.HTTP.Mode, Metrics: m}
	if opts.JWT.Disabled {
		logger.Warn("JWT verification disabled, trusting the X-User-ID header")
	} else {
		verifier, verr := auth.NewVerifier(opts.JWT)
		if verr != nil {
			return nil, fmt.Errorf("failed to initialize token verifier: %w", verr)
		}
		routerConfig.Verifier = verifier
	}
	engine := router.New(h, routerConfig)

	s.http = opts.HTTP.NewServer(engine)
	return s, nil
}

// newProviders builds the embedding and chat providers with retry and
// circuit breaking, plus the optional redis embedding cache. The breakers
// are returned for stats and metrics.
func (s *Server) newProviders(ctx context.Context, opts *Options) (llm.EmbeddingProvider, llm.ChatProvider, []*resilience.CircuitBreaker, error) {
	e := opts.Embedding
	rawEmbed, err := llm.NewEmbeddingProvider(e.Provider, llm.Config{
		BaseURL:    e.BaseURL,
		APIKey:     e.APIKey,
		EmbedModel: e.Model,
		Timeout:    e.Timeout,
		BatchSize:  e.BatchSize,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	resilientEmbed := resilience.WrapEmbedding(rawEmbed, retryConfig(e), breakerConfig(e))
	var embedding llm.EmbeddingProvider = resilientEmbed
	logger.Infow("Embedding provider initialized", "provider", e.Provider, "model", e.Model)

	// Redis 不可用时禁用缓存，不影响启动
	if opts.Cache.Enabled {
		client, cerr := opts.Redis.NewClient(ctx)
		if cerr != nil {
			logger.Warnw("failed to connect to redis, cache will be disabled", "error", cerr.Error())
		} else {
			s.redis = client
			embedding = &pingableEmbedding{
				CachedEmbeddingProvider: llm.NewCachedEmbeddingProvider(resilientEmbed, client, &llm.EmbeddingCacheConfig{
					TTL:       opts.Cache.TTL,
					KeyPrefix: opts.Cache.KeyPrefix,
					Namespace: e.Provider + "/" + e.Model,
				}),
				pinger: resilientEmbed,
			}
			logger.Infow("Embedding cache initialized", "addr", opts.Redis.Addr(), "ttl", opts.Cache.TTL)
		}
	} else {
		logger.Info("Embedding cache is disabled")
	}

	c := opts.Chat
	rawChat, err := llm.NewChatProvider(c.Provider, llm.Config{
		BaseURL:     c.BaseURL,
		APIKey:      c.APIKey,
		ChatModel:   c.Model,
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized", "provider", c.Provider, "model", c.Model)

	resilientChat := resilience.WrapChat(rawChat, retryConfig(c), breakerConfig(c))
	return embedding, resilientChat, []*resilience.CircuitBreaker{resilientEmbed.Breaker(), resilientChat.Breaker()}, nil
}

// pingableEmbedding keeps the readiness check of the wrapped provider
// visible through the cache layer.
type pingableEmbedding struct {
	*llm.CachedEmbeddingProvider
	pinger llm.Pinger
}

func (p *pingableEmbedding) Ping(ctx context.Context) error { return p.pinger.Ping(ctx) }

func retryConfig(o *LLMProviderOptions) *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = o.MaxRetries
	return cfg
}

func breakerConfig(o *LLMProviderOptions) *resilience.CircuitBreakerConfig {
	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.MaxFailures = o.BreakerFailures
	cfg.Timeout = o.BreakerTimeout
	return cfg
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.close()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down retrieval service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("Retrieval service stopped")
	return nil
}

// close releases resources in reverse order of creation. Safe on a
// partially built server.
func (s *Server) close() {
	if s.queue != nil {
		s.queue.Close()
	}
	if s.pools != nil {
		if err := s.pools.ReleaseAllTimeout(s.shutdownTimeout); err != nil {
			logger.Warnw("Worker pools did not drain in time", "error", err.Error())
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.blobs != nil {
		if err := s.blobs.Close(); err != nil {
			logger.Warnw("Failed to close blob store", "error", err.Error())
		}
	}
	if s.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.tracer.Shutdown(ctx); err != nil {
			logger.Warnw("Failed to flush traces", "error", err.Error())
		}
	}
}
