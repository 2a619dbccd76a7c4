package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/retrieval-x/pkg/llm"
	"github.com/kart-io/retrieval-x/pkg/utils/json"
)

const testAPIKey = "test-key"

func TestNewProviderPresets(t *testing.T) {
	tests := []struct {
		name      string
		provider  string
		cfg       llm.Config
		wantBase  string
		wantChat  string
		wantError bool
	}{
		{"openai defaults", ProviderName, llm.Config{APIKey: testAPIKey}, "https://api.openai.com/v1", "gpt-4o-mini", false},
		{"deepseek defaults", DeepSeekProviderName, llm.Config{APIKey: testAPIKey}, "https://api.deepseek.com", "deepseek-chat", false},
		{"siliconflow override", SiliconFlowProviderName, llm.Config{APIKey: testAPIKey, ChatModel: "Qwen/Qwen3-8B"}, "https://api.siliconflow.cn/v1", "Qwen/Qwen3-8B", false},
		{"missing api key", ProviderName, llm.Config{}, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.provider, tt.cfg)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, p.Name())
			assert.Equal(t, tt.wantBase, p.config.BaseURL)
			assert.Equal(t, tt.wantChat, p.config.ChatModel)
		})
	}
}

func TestEmbedReordersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input, 2)

		// 故意倒序返回
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0,1],"index":1},{"embedding":[1,0],"index":0}],"model":"m"}`))
	}))
	defer srv.Close()

	p, err := NewProvider(ProviderName, llm.Config{APIKey: testAPIKey, BaseURL: srv.URL})
	require.NoError(t, err)

	vecs, err := p.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestEmbedWithoutModel(t *testing.T) {
	p, err := NewProvider(DeepSeekProviderName, llm.Config{APIKey: testAPIKey})
	require.NoError(t, err)
	_, err = p.Embed(context.Background(), []string{"x"})
	assert.Error(t, err)
}

func TestChatAndGenerate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"answer"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	p, err := NewProvider(ProviderName, llm.Config{APIKey: testAPIKey, BaseURL: srv.URL, Temperature: 0.2})
	require.NoError(t, err)

	out, err := p.Generate(context.Background(), "question", "system prompt")
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.InDelta(t, 0.2, got.Temperature, 1e-9)
}

func TestChatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p, err := NewProvider(ProviderName, llm.Config{APIKey: testAPIKey, BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	assert.Error(t, err)
}

func TestPingUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := NewProvider(ProviderName, llm.Config{APIKey: "bad", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Error(t, p.Ping(context.Background()))
}

func TestRegistered(t *testing.T) {
	for _, name := range []string{ProviderName, DeepSeekProviderName, SiliconFlowProviderName} {
		assert.Contains(t, llm.ListProviders(), name)
	}
}
