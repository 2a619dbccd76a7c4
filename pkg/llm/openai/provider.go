// Package openai 提供 OpenAI 及兼容 OpenAI API 的供应商实现。
//
// 注册了三个名称，区别仅在默认地址和模型：
//
//	openai       https://api.openai.com/v1
//	deepseek     https://api.deepseek.com      （仅 Chat）
//	siliconflow  https://api.siliconflow.cn/v1
package openai

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kart-io/retrieval-x/pkg/llm"
	"github.com/kart-io/retrieval-x/pkg/utils/httpclient"
)

// 供应商名称
const (
	ProviderName            = "openai"
	DeepSeekProviderName    = "deepseek"
	SiliconFlowProviderName = "siliconflow"
)

var presets = map[string]llm.Config{
	ProviderName: {
		BaseURL:    "https://api.openai.com/v1",
		EmbedModel: "text-embedding-3-small",
		ChatModel:  "gpt-4o-mini",
		BatchSize:  256,
	},
	DeepSeekProviderName: {
		BaseURL:   "https://api.deepseek.com",
		ChatModel: "deepseek-chat",
	},
	SiliconFlowProviderName: {
		BaseURL:    "https://api.siliconflow.cn/v1",
		EmbedModel: "BAAI/bge-m3",
		ChatModel:  "Qwen/Qwen2.5-7B-Instruct",
		BatchSize:  32,
	},
}

func init() {
	for name := range presets {
		name := name
		llm.Register(name, func(cfg llm.Config) (llm.Provider, error) {
			return NewProvider(name, cfg)
		})
	}
}

// Provider OpenAI 兼容供应商实现。
type Provider struct {
	name   string
	config llm.Config
	client *httpclient.Client
}

var _ llm.Provider = (*Provider)(nil)

// NewProvider 以 name 对应的预设补全 cfg 并创建供应商。
func NewProvider(name string, cfg llm.Config) (*Provider, error) {
	preset, ok := presets[name]
	if !ok {
		preset = presets[ProviderName]
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = preset.BaseURL
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = preset.EmbedModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = preset.ChatModel
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = preset.BatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api_key 是必需的", name)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Provider{
		name:   name,
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, 0),
	}, nil
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return p.name
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed 调用 /embeddings 生成向量。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if p.config.EmbedModel == "" {
		return nil, fmt.Errorf("%s: 未配置 embed_model", p.name)
	}
	return llm.EmbedInBatches(ctx, texts, p.config.BatchSize, p.embedBatch)
}

func (p *Provider) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var resp embeddingResponse
	err := p.client.PostJSON(ctx, p.config.BaseURL+"/embeddings", p.headers(),
		embeddingRequest{Model: p.config.EmbedModel, Input: texts}, &resp)
	if err != nil {
		return nil, fmt.Errorf("%s embed 请求失败: %w", p.name, err)
	}

	// 按 index 排序确保顺序与输入一致
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := make([][]float32, 0, len(resp.Data))
	for _, d := range resp.Data {
		out = append(out, d.Embedding)
	}
	return out, nil
}

// EmbedSingle 为单个文本生成向量。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Chat 调用 /chat/completions 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	req := chatRequest{
		Model:       p.config.ChatModel,
		Messages:    make([]chatMessage, len(messages)),
		Temperature: p.config.Temperature,
	}
	for i, msg := range messages {
		req.Messages[i] = chatMessage{Role: string(msg.Role), Content: msg.Content}
	}

	var resp chatResponse
	if err := p.client.PostJSON(ctx, p.config.BaseURL+"/chat/completions", p.headers(), req, &resp); err != nil {
		return "", fmt.Errorf("%s chat 请求失败: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: 未返回响应内容", p.name)
	}
	return resp.Choices[0].Message.Content, nil
}

// Generate 以可选的系统提示进行单轮生成。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	messages := make([]llm.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})
	return p.Chat(ctx, messages)
}

// Ping 通过 /models 检查 API 可达且密钥有效。
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	for k, v := range p.headers() {
		req.Header.Set(k, v)
	}
	return p.client.DoJSON(req, nil)
}

func (p *Provider) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.config.APIKey}
}
