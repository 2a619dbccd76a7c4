package retrieval

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/retrieval-x/internal/pkg/rag/textutil"
	"github.com/kart-io/retrieval-x/internal/retrieval/biz"
	"github.com/kart-io/retrieval-x/internal/retrieval/extract"
	"github.com/kart-io/retrieval-x/internal/retrieval/handler"
	"github.com/kart-io/retrieval-x/internal/retrieval/store"
	"github.com/kart-io/retrieval-x/pkg/infra/app"
	"github.com/kart-io/retrieval-x/pkg/infra/tracing"
	"github.com/kart-io/retrieval-x/pkg/options"
	jwtopts "github.com/kart-io/retrieval-x/pkg/options/jwt"
	logopts "github.com/kart-io/retrieval-x/pkg/options/logger"
	mongoopts "github.com/kart-io/retrieval-x/pkg/options/mongodb"
	mysqlopts "github.com/kart-io/retrieval-x/pkg/options/mysql"
	pgopts "github.com/kart-io/retrieval-x/pkg/options/postgres"
	redisopts "github.com/kart-io/retrieval-x/pkg/options/redis"
	httpopts "github.com/kart-io/retrieval-x/pkg/options/server/http"
)

// Options contains all retrieval service options.
type Options struct {
	HTTP     *httpopts.Options  `json:"http" mapstructure:"http"`
	Log      *logopts.Options   `json:"log" mapstructure:"log"`
	JWT      *jwtopts.Options   `json:"jwt" mapstructure:"jwt"`
	Tracing  *tracing.Options   `json:"tracing" mapstructure:"tracing"`
	Redis    *redisopts.Options `json:"redis" mapstructure:"redis"`
	MySQL    *mysqlopts.Options `json:"mysql" mapstructure:"mysql"`
	Postgres *pgopts.Options    `json:"postgres" mapstructure:"postgres"`
	MongoDB  *mongoopts.Options `json:"mongodb" mapstructure:"mongodb"`

	// Storage selects the blob backend.
	Storage *store.Options `json:"storage" mapstructure:"storage"`

	Embedding *LLMProviderOptions `json:"embedding" mapstructure:"embedding"`
	Chat      *LLMProviderOptions `json:"chat" mapstructure:"chat"`

	Indexing *IndexingOptions `json:"indexing" mapstructure:"indexing"`
	Search   *SearchOptions   `json:"search" mapstructure:"search"`
	Cache    *CacheOptions    `json:"cache" mapstructure:"cache"`
}

// LLMProviderOptions 定义 LLM 供应商配置。
type LLMProviderOptions struct {
	// Provider 供应商名称（ollama, openai）。
	Provider string `json:"provider" mapstructure:"provider"`
	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`
	// APIKey API 密钥（OpenAI 需要）。
	APIKey string `json:"-" mapstructure:"api-key"`
	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`
	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	// MaxRetries 最大尝试次数，包括首次调用。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`
	// BatchSize 单次请求的最大文本数，仅对 embedding 生效。
	BatchSize int `json:"batch-size" mapstructure:"batch-size"`
	// Temperature 采样温度，仅对 chat 生效。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	// BreakerFailures 连续失败多少次后熔断。
	BreakerFailures int `json:"breaker-failures" mapstructure:"breaker-failures"`
	// BreakerTimeout 熔断后多久进入半开状态。
	BreakerTimeout time.Duration `json:"breaker-timeout" mapstructure:"breaker-timeout"`
}

// NewLLMProviderOptions 创建默认 LLM 供应商配置。
func NewLLMProviderOptions() *LLMProviderOptions {
	return &LLMProviderOptions{
		Provider:        "ollama",
		BaseURL:         "http://localhost:11434",
		Timeout:         120 * time.Second,
		MaxRetries:      3,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

func (o *LLMProviderOptions) addFlags(fs *pflag.FlagSet, p string) {
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Provider name (ollama, openai)")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "Provider API base URL")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Provider API key (for OpenAI)")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Request timeout")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Max attempts per call, including the first")
	fs.IntVar(&o.BreakerFailures, p+"breaker-failures", o.BreakerFailures, "Consecutive failures before the circuit opens")
	fs.DurationVar(&o.BreakerTimeout, p+"breaker-timeout", o.BreakerTimeout, "How long the circuit stays open")
}

func (o *LLMProviderOptions) validate(prefix string) error {
	if o.Provider == "" {
		return fmt.Errorf("%s.provider is required", prefix)
	}
	if o.BaseURL == "" {
		return fmt.Errorf("%s.base-url is required", prefix)
	}
	if o.Model == "" {
		return fmt.Errorf("%s.model is required", prefix)
	}
	// OpenAI 供应商需要 API key
	if o.Provider == "openai" && o.APIKey == "" {
		return fmt.Errorf("%s.api-key is required for openai provider", prefix)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("%s.timeout must be positive", prefix)
	}
	if o.MaxRetries < 1 {
		return fmt.Errorf("%s.max-retries must be at least 1", prefix)
	}
	return nil
}

// IndexingOptions configures the indexing pipeline and its worker pool.
type IndexingOptions struct {
	ChunkSize    int `json:"chunk-size" mapstructure:"chunk-size"`
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`
	// Workers bounds concurrent background index jobs.
	Workers int `json:"workers" mapstructure:"workers"`
	// QueueSize bounds pending background requests; beyond it Enqueue fails.
	QueueSize    int           `json:"queue-size" mapstructure:"queue-size"`
	FetchTimeout time.Duration `json:"fetch-timeout" mapstructure:"fetch-timeout"`
	// EmbedRateLimit caps embed calls per second; 0 disables the limiter.
	EmbedRateLimit float64 `json:"embed-rate-limit" mapstructure:"embed-rate-limit"`
	EmbedBurst     int     `json:"embed-burst" mapstructure:"embed-burst"`
}

// NewIndexingOptions returns the default pipeline settings.
func NewIndexingOptions() *IndexingOptions {
	return &IndexingOptions{
		ChunkSize:    textutil.DefaultChunkSize,
		ChunkOverlap: textutil.DefaultChunkOverlap,
		Workers:      4,
		QueueSize:    biz.DefaultQueueSize,
		FetchTimeout: extract.DefaultFetchTimeout,
		EmbedBurst:   1,
	}
}

// SearchOptions configures ranking defaults.
type SearchOptions struct {
	DefaultTopK int `json:"default-top-k" mapstructure:"default-top-k"`
	// SystemPrompt overrides the chat system prompt.
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`
	// QueryLogLimit bounds the per-user query log kept for analytics.
	QueryLogLimit int `json:"query-log-limit" mapstructure:"query-log-limit"`
}

// CacheOptions embedding 缓存配置，复用 redis 连接配置。
type CacheOptions struct {
	// Enabled 是否启用缓存。
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	// TTL 缓存过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`
	// KeyPrefix 缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	// 默认 embedding 配置
	embeddingOpts := NewLLMProviderOptions()
	embeddingOpts.Model = "nomic-embed-text"
	embeddingOpts.BatchSize = 32

	// 默认 chat 配置
	chatOpts := NewLLMProviderOptions()
	chatOpts.Model = "llama3.1:8b"
	chatOpts.Temperature = 0.2

	tracingOpts := tracing.NewOptions()
	tracingOpts.ServiceName = Name

	return &Options{
		HTTP:      httpopts.NewOptions(),
		Log:       logopts.NewOptions(),
		JWT:       jwtopts.NewOptions(),
		Tracing:   tracingOpts,
		Redis:     redisopts.NewOptions(),
		MySQL:     mysqlopts.NewOptions(),
		Postgres:  pgopts.NewOptions(),
		MongoDB:   mongoopts.NewOptions(),
		Storage:   store.NewOptions(),
		Embedding: embeddingOpts,
		Chat:      chatOpts,
		Indexing:  NewIndexingOptions(),
		Search:    &SearchOptions{DefaultTopK: handler.DefaultTopK, QueryLogLimit: biz.DefaultQueryLogLimit},
		Cache: &CacheOptions{
			TTL:       24 * time.Hour,
			KeyPrefix: "retrieval:emb:",
		},
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.HTTP.AddFlags(fs)
	o.Log.AddFlags(fs)
	o.JWT.AddFlags(fs)
	o.Tracing.AddFlags(fs)
	o.Redis.AddFlags(fs)
	o.MySQL.AddFlags(fs)
	o.Postgres.AddFlags(fs)
	o.MongoDB.AddFlags(fs)
	o.Storage.AddFlags(fs)

	o.Embedding.addFlags(fs, "embedding.")
	fs.IntVar(&o.Embedding.BatchSize, "embedding.batch-size", o.Embedding.BatchSize, "Texts per embedding request, 0 sends everything at once")
	o.Chat.addFlags(fs, "chat.")
	fs.Float64Var(&o.Chat.Temperature, "chat.temperature", o.Chat.Temperature, "Chat sampling temperature")

	o.addIndexingFlags(fs)

	fs.IntVar(&o.Search.DefaultTopK, "search.default-top-k", o.Search.DefaultTopK, "Results returned when a request omits top_k")
	fs.StringVar(&o.Search.SystemPrompt, "search.system-prompt", o.Search.SystemPrompt, "Chat system prompt override")
	fs.IntVar(&o.Search.QueryLogLimit, "search.query-log-limit", o.Search.QueryLogLimit, "Answered questions kept per user for analytics")

	fs.BoolVar(&o.Cache.Enabled, "cache.enabled", o.Cache.Enabled, "Cache embeddings in redis")
	fs.DurationVar(&o.Cache.TTL, "cache.ttl", o.Cache.TTL, "Embedding cache TTL")
	fs.StringVar(&o.Cache.KeyPrefix, "cache.key-prefix", o.Cache.KeyPrefix, "Embedding cache key prefix")
}

func (o *Options) addIndexingFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.Indexing.ChunkSize, "indexing.chunk-size", o.Indexing.ChunkSize, "Chunk size in characters")
	fs.IntVar(&o.Indexing.ChunkOverlap, "indexing.chunk-overlap", o.Indexing.ChunkOverlap, "Overlap between consecutive chunks")
	fs.IntVar(&o.Indexing.Workers, "indexing.workers", o.Indexing.Workers, "Concurrent background index jobs")
	fs.IntVar(&o.Indexing.QueueSize, "indexing.queue-size", o.Indexing.QueueSize, "Pending background index requests")
	fs.DurationVar(&o.Indexing.FetchTimeout, "indexing.fetch-timeout", o.Indexing.FetchTimeout, "Timeout for fetching a URL")
	fs.Float64Var(&o.Indexing.EmbedRateLimit, "indexing.embed-rate-limit", o.Indexing.EmbedRateLimit, "Embed calls per second, 0 for unlimited")
	fs.IntVar(&o.Indexing.EmbedBurst, "indexing.embed-burst", o.Indexing.EmbedBurst, "Embed rate limiter burst")
}

// Complete completes the options.
func (o *Options) Complete() error {
	if err := options.CompleteAll(
		o.HTTP, o.Log, o.JWT, o.Tracing, o.Redis, o.MySQL, o.Postgres, o.MongoDB, o.Storage,
	); err != nil {
		return err
	}
	if o.Tracing.ServiceVersion == "" {
		o.Tracing.ServiceVersion = app.GetVersion()
	}
	if o.Indexing.EmbedBurst <= 0 {
		o.Indexing.EmbedBurst = 1
	}
	return nil
}

// Validate validates the options. Connection sections are only checked
// when the selected backend or the cache needs them.
func (o *Options) Validate() error {
	sections := []options.Validator{o.HTTP, o.Log, o.JWT, o.Tracing, o.Storage}
	switch o.Storage.Backend {
	case store.BackendRedis:
		sections = append(sections, o.Redis)
	case store.BackendMySQL:
		sections = append(sections, o.MySQL)
	case store.BackendPostgres:
		sections = append(sections, o.Postgres)
	case store.BackendMongoDB:
		sections = append(sections, o.MongoDB)
	}
	if o.Cache.Enabled && o.Storage.Backend != store.BackendRedis {
		sections = append(sections, o.Redis)
	}
	if err := options.ValidateAll(sections...); err != nil {
		return err
	}
	if o.Cache.Enabled && o.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}

	if err := o.Embedding.validate("embedding"); err != nil {
		return err
	}
	if err := o.Chat.validate("chat"); err != nil {
		return err
	}
	if o.Embedding.BatchSize < 0 {
		return fmt.Errorf("embedding.batch-size must not be negative")
	}

	if o.Indexing.ChunkSize <= 0 {
		return fmt.Errorf("indexing.chunk-size must be positive")
	}
	if o.Indexing.ChunkOverlap < 0 || o.Indexing.ChunkOverlap >= o.Indexing.ChunkSize {
		return fmt.Errorf("indexing.chunk-overlap must be in [0, chunk-size)")
	}
	if o.Indexing.Workers <= 0 {
		return fmt.Errorf("indexing.workers must be positive")
	}
	if o.Indexing.QueueSize <= 0 {
		return fmt.Errorf("indexing.queue-size must be positive")
	}
	if o.Indexing.FetchTimeout <= 0 {
		return fmt.Errorf("indexing.fetch-timeout must be positive")
	}
	if o.Indexing.EmbedRateLimit < 0 {
		return fmt.Errorf("indexing.embed-rate-limit must not be negative")
	}
	if o.Search.DefaultTopK <= 0 {
		return fmt.Errorf("search.default-top-k must be positive")
	}
	if o.Search.QueryLogLimit <= 0 {
		return fmt.Errorf("search.query-log-limit must be positive")
	}
	return nil
}
