package biz

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kart-io/retrieval-x/internal/model"
	"github.com/kart-io/retrieval-x/internal/retrieval/store"
	"github.com/kart-io/retrieval-x/pkg/llm"
)

var (
	testNow    = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	testToday  = "2024-06-01T08:00:00Z"
	errBackend = errors.New("backend unavailable")
)

// fakeEmbedder 按文本查表返回向量，未命中时返回 fallback。
type fakeEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	err      error
	calls    atomic.Int32
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
			continue
		}
		out[i] = f.fallback
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	v, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

// fakeExtractor 按来源 id 返回文本或错误。
type fakeExtractor struct {
	texts map[string]string
	errs  map[string]error
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, src model.Source) (string, error) {
	if err := f.errs[src.SourceID()]; err != nil {
		return "", err
	}
	return f.texts[src.SourceID()], nil
}

type fakeChat struct {
	reply      string
	err        error
	lastPrompt string
	lastSystem string
	calls      int
}

func (f *fakeChat) Name() string { return "fake-chat" }

func (f *fakeChat) Chat(context.Context, []llm.Message) (string, error) { return f.reply, f.err }

func (f *fakeChat) Generate(_ context.Context, prompt, systemPrompt string) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	f.lastSystem = systemPrompt
	return f.reply, f.err
}

var (
	_ llm.EmbeddingProvider = (*fakeEmbedder)(nil)
	_ llm.ChatProvider      = (*fakeChat)(nil)
)

func newCorpus() *store.Corpus {
	return store.NewCorpus(store.NewMemoryStore())
}

func intPtr(v int) *int { return &v }

// seedIndexed 写入元数据并直接存入分块向量。
func seedIndexed(t *testing.T, c *store.Corpus, user string, src model.Source, texts []string, vecs [][]float32) {
	t.Helper()
	ctx := context.Background()
	switch s := src.(type) {
	case *model.Document:
		require.NoError(t, c.AddDocument(ctx, user, s))
	case *model.URLResource:
		require.NoError(t, c.AddURL(ctx, user, s))
	}
	_, err := c.StoreChunks(ctx, user, src.Type(), src.SourceID(), texts, vecs, src.ChunkMetadata())
	require.NoError(t, err)
}
