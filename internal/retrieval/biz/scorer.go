package biz

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/kart-io/retrieval-x/internal/model"
	"github.com/kart-io/retrieval-x/internal/pkg/rag/textutil"
)

// 融合权重
const (
	WeightSemantic    = 0.60
	WeightRecency     = 0.15
	WeightCredibility = 0.20
	WeightCategory    = 0.05
)

const (
	// recencyHorizonDays 超过该天数时效分为 0
	recencyHorizonDays = 365.0
	// malformedDateScore 日期无法解析时的中性时效分
	malformedDateScore = 0.5

	categoryMatch    = 1.0
	categoryMismatch = 0.5
)

// 分块无法打分的原因
var (
	ErrEmptyEmbedding     = errors.New("chunk has no embedding")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrNonFiniteEmbedding = errors.New("embedding contains NaN or Inf")
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Scorer 计算单个分块的子分数与综合分数。
type Scorer struct {
	now func() time.Time
}

// NewScorer 创建打分器，now 为 nil 时使用系统时钟。
func NewScorer(now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{now: now}
}

// Score 对一个分块打分。categories 为空表示调用方未指定类别过滤。
func (s *Scorer) Score(query []float32, chunk *model.Chunk, src model.Source, categories []string) (model.Scores, error) {
	if err := checkEmbedding(query, chunk.Embedding); err != nil {
		return model.Scores{}, fmt.Errorf("chunk %s: %w", chunk.ChunkID, err)
	}

	sc := model.Scores{
		Semantic:    textutil.CosineSimilarity(query, chunk.Embedding),
		Recency:     RecencyScore(src.ReferenceDate(), s.now()),
		Credibility: src.Credibility(),
	}
	if len(categories) > 0 {
		v := categoryMismatch
		if slices.Contains(categories, src.SourceCategory()) {
			v = categoryMatch
		}
		sc.Category = &v
	}
	sc.Composite = Composite(sc)
	return sc, nil
}

func checkEmbedding(query, emb []float32) error {
	if len(emb) == 0 {
		return ErrEmptyEmbedding
	}
	if len(emb) != len(query) {
		return fmt.Errorf("%w: query %d, chunk %d", ErrDimensionMismatch, len(query), len(emb))
	}
	for _, v := range emb {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrNonFiniteEmbedding
		}
	}
	return nil
}

// Composite 按可用分量加权平均，并以实际使用的权重之和归一化。
func Composite(sc model.Scores) float64 {
	sum := WeightSemantic * sc.Semantic
	used := WeightSemantic

	if sc.Recency != nil {
		sum += WeightRecency * *sc.Recency
		used += WeightRecency
	}
	sum += WeightCredibility * sc.Credibility
	used += WeightCredibility
	if sc.Category != nil {
		sum += WeightCategory * *sc.Category
		used += WeightCategory
	}

	if used == 0 {
		return sc.Semantic
	}
	return sum / used
}

// RecencyScore 返回 max(0, 1 - days/365)。空日期返回 nil，无法解析返回 0.5，
// 未来日期按 0 天计。
func RecencyScore(date string, now time.Time) *float64 {
	if date == "" {
		return nil
	}

	v := malformedDateScore
	t, ok := ParseDate(date)
	if ok {
		days := math.Floor(now.Sub(t).Hours() / 24)
		if days < 0 {
			days = 0
		}
		v = math.Max(0, 1-days/recencyHorizonDays)
	}
	return &v
}

// ParseDate 解析 RFC 3339 与 ISO 8601 日期；不带时区的按 UTC 处理。
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
