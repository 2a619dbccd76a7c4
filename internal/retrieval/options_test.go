package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/retrieval-x/internal/retrieval/store"
	"github.com/kart-io/retrieval-x/pkg/infra/app"
)

func devOptions(t *testing.T) *Options {
	t.Helper()
	opts := NewOptions()
	opts.JWT.Disabled = true
	opts.Storage.Backend = store.BackendMemory
	require.NoError(t, opts.Complete())
	return opts
}

func TestDefaultsValidate(t *testing.T) {
	opts := devOptions(t)
	require.NoError(t, opts.Validate())

	assert.Equal(t, 1000, opts.Indexing.ChunkSize)
	assert.Equal(t, 200, opts.Indexing.ChunkOverlap)
	assert.Equal(t, 10*time.Second, opts.Indexing.FetchTimeout)
	assert.Equal(t, 5, opts.Search.DefaultTopK)
	assert.Equal(t, 1000, opts.Search.QueryLogLimit)
	assert.Equal(t, Name, opts.Tracing.ServiceName)
	assert.NotEmpty(t, opts.Tracing.ServiceVersion)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"overlap not below size", func(o *Options) { o.Indexing.ChunkOverlap = o.Indexing.ChunkSize }},
		{"negative overlap", func(o *Options) { o.Indexing.ChunkOverlap = -1 }},
		{"no workers", func(o *Options) { o.Indexing.Workers = 0 }},
		{"no queue", func(o *Options) { o.Indexing.QueueSize = 0 }},
		{"no fetch timeout", func(o *Options) { o.Indexing.FetchTimeout = 0 }},
		{"negative rate", func(o *Options) { o.Indexing.EmbedRateLimit = -1 }},
		{"zero top k", func(o *Options) { o.Search.DefaultTopK = 0 }},
		{"no query log", func(o *Options) { o.Search.QueryLogLimit = 0 }},
		{"openai without key", func(o *Options) { o.Chat.Provider = "openai" }},
		{"embedding without model", func(o *Options) { o.Embedding.Model = "" }},
		{"no attempts", func(o *Options) { o.Embedding.MaxRetries = 0 }},
		{"unknown backend", func(o *Options) { o.Storage.Backend = "etcd" }},
		{"redis backend without host", func(o *Options) {
			o.Storage.Backend = store.BackendRedis
			o.Redis.Host = ""
		}},
		{"cache without redis host", func(o *Options) {
			o.Cache.Enabled = true
			o.Redis.Host = ""
		}},
		{"jwt without key", func(o *Options) {
			o.JWT.Disabled = false
			o.JWT.Key = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := devOptions(t)
			tt.mutate(opts)
			assert.Error(t, opts.Validate())
		})
	}
}

func TestUnusedConnectionSectionsSkipValidation(t *testing.T) {
	opts := devOptions(t)
	opts.MySQL.Database = ""
	opts.Postgres.Database = ""
	opts.Redis.Host = ""
	assert.NoError(t, opts.Validate())
}

func TestFlagsCoverEverySection(t *testing.T) {
	opts := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.AddFlags(fs)

	for _, name := range []string{
		"http.addr", "log.level", "jwt.key", "tracing.enabled",
		"redis.host", "mysql.host", "postgres.host", "mongodb.database",
		"storage.backend", "embedding.batch-size", "chat.temperature",
		"indexing.workers", "indexing.embed-rate-limit", "search.default-top-k",
		"cache.enabled",
	} {
		assert.NotNil(t, fs.Lookup(name), name)
	}

	require.NoError(t, fs.Parse([]string{"--indexing.chunk-size=500", "--chat.model=qwen2"}))
	assert.Equal(t, 500, opts.Indexing.ChunkSize)
	assert.Equal(t, "qwen2", opts.Chat.Model)
}

func TestShippedConfigLoads(t *testing.T) {
	t.Setenv("JWT_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("RETRIEVAL_X_STORAGE_BACKEND", "memory")

	opts := NewOptions()
	ran := false
	a := app.NewApp(
		app.WithName(Name),
		app.WithOptions(opts),
		app.WithNoVersion(),
		app.WithRunFunc(func(context.Context) error {
			ran = true
			return nil
		}),
	)
	a.Command().SetArgs([]string{"--config", "../../configs/retrieval-x.yaml", "--indexing.workers=8"})
	require.NoError(t, a.Command().Execute())
	require.True(t, ran)

	assert.Equal(t, store.BackendMemory, opts.Storage.Backend, "env overrides file")
	assert.Equal(t, 8, opts.Indexing.Workers, "flag overrides file")
	assert.Equal(t, "nomic-embed-text", opts.Embedding.Model)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", opts.JWT.Key)
	assert.Equal(t, ":8100", opts.HTTP.Addr)
}
