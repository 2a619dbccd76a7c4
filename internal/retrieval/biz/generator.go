package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/retrieval-x/internal/model"
	"github.com/kart-io/retrieval-x/internal/pkg/rag/textutil"
	"github.com/kart-io/retrieval-x/internal/retrieval/metrics"
	ctxlog "github.com/kart-io/retrieval-x/pkg/infra/logger"
	"github.com/kart-io/retrieval-x/pkg/llm"
	apierrors "github.com/kart-io/retrieval-x/pkg/utils/errors"
)

// Confidence 回答置信度等级。
type Confidence string

const (
	ConfidenceGreen Confidence = "Green"
	ConfidenceAmber Confidence = "Amber"
	ConfidenceRed   Confidence = "Red"
)

// 模型在回答开头给出的置信度标签
const (
	LabelHigh         = "HIGH CONFIDENCE"
	LabelModerate     = "MODERATE CONFIDENCE"
	LabelLow          = "LOW CONFIDENCE"
	LabelInsufficient = "INSUFFICIENT DATA"
)

// labelScanWindow 只在回答开头的若干字符内查找标签
const labelScanWindow = 100

const excerptLen = 300

// NoDataMessage 无检索结果时的固定回答。
const NoDataMessage = "I couldn't find any relevant information in your knowledge base for this question. " +
	"Try indexing more documents or URLs, or rephrase the question."

// DefaultSystemPrompt 默认系统提示词。
const DefaultSystemPrompt = `You are a research assistant answering questions from the user's own knowledge base.

Guidelines:
1. Only use information contained in the provided context. If the context does not contain relevant information, say so clearly.
2. Cite every statement with the source it came from, as [Document: Document Name] or [URL: Title].
3. Be concise and factual. Use Markdown paragraphs and bullet lists where they help readability.
4. When sources disagree, describe the disagreement instead of choosing silently.
5. Begin the answer with exactly one confidence label:
   - [HIGH CONFIDENCE]: the information is consistent across several reliable sources
   - [MODERATE CONFIDENCE]: limited but reliable information is available
   - [LOW CONFIDENCE]: the information is limited, outdated or from weaker sources
   - [INSUFFICIENT DATA]: the knowledge base lacks the information needed to answer`

// AnswerSource 回答引用的来源。
type AnswerSource struct {
	ID         string           `json:"id"`
	SourceID   string           `json:"source_id"`
	SourceType model.SourceType `json:"source_type"`
	Name       string           `json:"name"`
	Excerpt    string           `json:"excerpt"`
	Score      float64          `json:"score"`
}

// Answer 问答结果。
type Answer struct {
	Message         string         `json:"message"`
	ConfidenceLevel Confidence     `json:"confidence_level"`
	ConfidenceLabel string         `json:"confidence_label,omitempty"`
	Sources         []AnswerSource `json:"sources"`
}

// GeneratorConfig 生成器配置。
type GeneratorConfig struct {
	// SystemPrompt 系统提示词，为空时使用 DefaultSystemPrompt
	SystemPrompt string
}

// Generator 基于检索结果生成带引用的回答。
type Generator struct {
	ranker       *Ranker
	chatProvider llm.ChatProvider
	config       *GeneratorConfig
	metrics      *metrics.Metrics
	recorder     QueryRecorder
}

// NewGenerator 创建生成器实例。
func NewGenerator(ranker *Ranker, chatProvider llm.ChatProvider, config *GeneratorConfig, m *metrics.Metrics) *Generator {
	if config == nil {
		config = &GeneratorConfig{}
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = DefaultSystemPrompt
	}
	return &Generator{ranker: ranker, chatProvider: chatProvider, config: config, metrics: m}
}

// WithRecorder 为每次回答写入查询统计。
func (g *Generator) WithRecorder(r QueryRecorder) *Generator {
	g.recorder = r
	return g
}

// Answer 检索并生成回答。没有检索结果时不调用模型，直接返回 Red。
func (g *Generator) Answer(ctx context.Context, q Query) (*Answer, error) {
	begin := time.Now()
	results, err := g.ranker.Rank(ctx, q)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		g.metrics.ObserveChat(string(ConfidenceRed))
		answer := &Answer{
			Message:         NoDataMessage,
			ConfidenceLevel: ConfidenceRed,
			ConfidenceLabel: LabelInsufficient,
			Sources:         []AnswerSource{},
		}
		g.record(ctx, q, answer, results, time.Since(begin))
		return answer, nil
	}

	prompt := fmt.Sprintf("I need information about: %s\n\n%s", q.Text, BuildContext(results))

	start := time.Now()
	text, err := g.chatProvider.Generate(ctx, prompt, g.config.SystemPrompt)
	if err != nil {
		ctxlog.GetLogger(ctx).Errorw("Chat generation failed", "provider", g.chatProvider.Name(), "error", err.Error())
		return nil, apierrors.ErrChatBackend.WithCause(err)
	}
	ctxlog.GetLogger(ctx).Infow("Answer generated", "provider", g.chatProvider.Name(),
		"length", len(text), "sources", len(results), "duration_ms", time.Since(start).Milliseconds())

	label, message := ParseConfidence(text)
	level := ConfidenceFor(label)
	g.metrics.ObserveChat(string(level))

	answer := &Answer{
		Message:         message,
		ConfidenceLevel: level,
		ConfidenceLabel: label,
		Sources:         answerSources(results),
	}
	g.record(ctx, q, answer, results, time.Since(begin))
	return answer, nil
}

// record 写入查询统计；失败只记录日志，不影响回答。
func (g *Generator) record(ctx context.Context, q Query, a *Answer, results []*model.SearchResult, elapsed time.Duration) {
	if g.recorder == nil {
		return
	}
	if err := g.recorder.Record(ctx, q.UserID, queryRecord(q, a, results, elapsed)); err != nil {
		ctxlog.GetLogger(ctx).Warnw("Query not recorded", "user_id", q.UserID, "error", err.Error())
	}
}

// BuildContext 将检索结果拼接为模型上下文。
func BuildContext(results []*model.SearchResult) string {
	var b strings.Builder
	for _, r := range results {
		switch r.SourceType {
		case model.SourceURL:
			url, _ := r.Metadata["url"].(string)
			fmt.Fprintf(&b, "URL ID: %s\nTitle: %s\nURL: %s\nContent:\n%s\n\n", r.SourceID(), r.SourceName(), url, r.Text)
		default:
			fmt.Fprintf(&b, "Document Name: %s\nDocument ID: %s\nContent:\n%s\n\n", r.SourceName(), r.SourceID(), r.Text)
		}
	}
	return b.String()
}

// ParseConfidence 在回答开头查找置信度标签，返回标签与去掉标签后的正文。
// 未找到时标签为空，正文原样返回。
func ParseConfidence(text string) (label, message string) {
	text = strings.TrimSpace(text)
	head := text
	if r := []rune(head); len(r) > labelScanWindow {
		head = string(r[:labelScanWindow])
	}
	for _, l := range []string{LabelHigh, LabelModerate, LabelLow, LabelInsufficient} {
		tag := "[" + l + "]"
		if strings.Contains(head, tag) {
			return l, strings.TrimSpace(strings.Replace(text, tag, "", 1))
		}
	}
	return "", text
}

// ConfidenceFor 标签到等级的映射；缺失或未知标签为 Red。
func ConfidenceFor(label string) Confidence {
	switch label {
	case LabelHigh:
		return ConfidenceGreen
	case LabelModerate:
		return ConfidenceAmber
	default:
		return ConfidenceRed
	}
}

func answerSources(results []*model.SearchResult) []AnswerSource {
	out := make([]AnswerSource, len(results))
	for i, r := range results {
		out[i] = AnswerSource{
			ID:         r.ID,
			SourceID:   r.SourceID(),
			SourceType: r.SourceType,
			Name:       r.SourceName(),
			Excerpt:    textutil.TruncateString(r.Text, excerptLen),
			Score:      r.Score,
		}
	}
	return out
}
