// Package llm 提供统一的 LLM 供应商抽象层。
// Embedding 与 Chat 可以分别使用不同供应商的模型。
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrEmptyEmbedding 供应商返回的向量数量与输入不一致。
var ErrEmptyEmbedding = errors.New("llm: embedding response is empty")

// EmbeddingProvider 定义 Embedding 供应商接口。
type EmbeddingProvider interface {
	// Embed 为多个文本生成向量，返回顺序与输入一致。
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle 为单个文本生成向量。
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Name 返回供应商名称。
	Name() string
}

// ChatProvider 定义 Chat 供应商接口。
type ChatProvider interface {
	// Chat 进行多轮对话。
	Chat(ctx context.Context, messages []Message) (string, error)

	// Generate 根据提示生成文本（单轮）。
	Generate(ctx context.Context, prompt string, systemPrompt string) (string, error)

	// Name 返回供应商名称。
	Name() string
}

// Pinger 由可以探测后端可用性的供应商实现，用于就绪检查。
type Pinger interface {
	Ping(ctx context.Context) error
}

// Message 表示对话中的一条消息。
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role 定义消息角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Provider 同时支持 Embedding 和 Chat 的完整供应商。
type Provider interface {
	EmbeddingProvider
	ChatProvider
}

// Config 供应商通用配置，零值字段由各供应商填充默认值。
type Config struct {
	BaseURL     string        `json:"base_url" mapstructure:"base_url"`
	APIKey      string        `json:"-" mapstructure:"api_key"`
	EmbedModel  string        `json:"embed_model" mapstructure:"embed_model"`
	ChatModel   string        `json:"chat_model" mapstructure:"chat_model"`
	Temperature float64       `json:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
	// BatchSize 单次 Embed 请求的最大文本数，0 表示不拆分。
	BatchSize int `json:"batch_size" mapstructure:"batch_size"`
}

// Factory 供应商工厂函数类型。
type Factory func(cfg Config) (Provider, error)

var registry = struct {
	mu        sync.RWMutex
	factories map[string]Factory
}{factories: make(map[string]Factory)}

// Register 注册供应商工厂，同名注册会覆盖。
func Register(name string, factory Factory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.factories[name] = factory
}

// NewProvider 根据名称创建供应商实例。
func NewProvider(name string, cfg Config) (Provider, error) {
	registry.mu.RLock()
	factory, ok := registry.factories[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown llm provider: %s (registered: %v)", name, ListProviders())
	}
	return factory(cfg)
}

// NewEmbeddingProvider 创建 Embedding 供应商。
func NewEmbeddingProvider(name string, cfg Config) (EmbeddingProvider, error) {
	return NewProvider(name, cfg)
}

// NewChatProvider 创建 Chat 供应商。
func NewChatProvider(name string, cfg Config) (ChatProvider, error) {
	return NewProvider(name, cfg)
}

// ListProviders 按名称排序列出已注册的供应商。
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.factories))
	for name := range registry.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EmbedInBatches 将 texts 按 size 拆分后依次调用 embed，并校验返回数量。
func EmbedInBatches(ctx context.Context, texts []string, size int,
	embed func(ctx context.Context, batch []string) ([][]float32, error),
) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if size <= 0 {
		size = len(texts)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("%w: want %d vectors, got %d", ErrEmptyEmbedding, end-start, len(vecs))
		}
		out = append(out, vecs...)
	}
	return out, nil
}
