package biz

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/kart-io/retrieval-x/internal/model"
	"github.com/kart-io/retrieval-x/internal/retrieval/store"
	ctxlog "github.com/kart-io/retrieval-x/pkg/infra/logger"
	apierrors "github.com/kart-io/retrieval-x/pkg/utils/errors"
)

const (
	// DefaultQueryLogLimit 每个用户保留的查询记录条数
	DefaultQueryLogLimit = 1000

	// MaxPageSize 查询历史单页上限
	MaxPageSize = 100

	topQueriesLimit = 10
)

// QueryRecorder 接收已回答问题的统计记录。
type QueryRecorder interface {
	Record(ctx context.Context, user string, rec *model.QueryRecord) error
}

// Analytics 用户查询日志与统计。
type Analytics struct {
	corpus *store.Corpus
	limit  int
	now    func() time.Time
}

var _ QueryRecorder = (*Analytics)(nil)

// NewAnalytics 创建统计服务；limit <= 0 时使用 DefaultQueryLogLimit。
func NewAnalytics(corpus *store.Corpus, limit int) *Analytics {
	if limit <= 0 {
		limit = DefaultQueryLogLimit
	}
	return &Analytics{corpus: corpus, limit: limit, now: time.Now}
}

// Record 写入一条记录。用户 id 以调用方身份为准，缺省时间戳取当前时间。
func (a *Analytics) Record(ctx context.Context, user string, rec *model.QueryRecord) error {
	rec.UserID = user
	if rec.Timestamp == "" {
		rec.Timestamp = a.now().UTC().Format(time.RFC3339)
	} else if _, err := time.Parse(time.RFC3339, rec.Timestamp); err != nil {
		return apierrors.ErrInvalidParam.WithMessagef("timestamp %q is not RFC 3339", rec.Timestamp)
	}
	if rec.SourceTypes == nil {
		rec.SourceTypes = map[string]int{}
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	if err := a.corpus.AppendQuery(ctx, user, rec, a.limit); err != nil {
		return storeErr(err, "query log", user)
	}
	return nil
}

// QueryPage 分页的查询历史。
type QueryPage struct {
	Data       []*model.QueryRecord `json:"data"`
	TotalCount int                  `json:"total_count"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
}

// History 按时间倒序分页返回查询历史，page 从 1 开始。
func (a *Analytics) History(ctx context.Context, user string, page, pageSize int) (*QueryPage, error) {
	if page < 1 || pageSize < 1 || pageSize > MaxPageSize {
		return nil, apierrors.ErrInvalidPage.WithMessagef("page must be >= 1 and page_size within 1..%d", MaxPageSize)
	}
	records, err := a.corpus.ListQueries(ctx, user)
	if err != nil {
		return nil, storeErr(err, "query log", user)
	}

	// RFC 3339 UTC 时间戳按字典序即时间序
	slices.SortStableFunc(records, func(x, y *model.QueryRecord) int {
		return strings.Compare(y.Timestamp, x.Timestamp)
	})

	out := &QueryPage{Data: []*model.QueryRecord{}, TotalCount: len(records), Page: page, PageSize: pageSize}
	if start := (page - 1) * pageSize; start < len(records) {
		out.Data = records[start:min(start+pageSize, len(records))]
	}
	return out, nil
}

// QueryCount 某个问题的出现次数。
type QueryCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// DailyCount 某天的查询次数，日期为 YYYY-MM-DD。
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// QueryStats 查询统计。平均值在没有样本时为 null。
type QueryStats struct {
	TotalQueries           int            `json:"total_queries"`
	AvgProcessingTime      *float64       `json:"avg_processing_time"`
	AvgSemanticScore       *float64       `json:"avg_semantic_score"`
	AvgCredibilityScore    *float64       `json:"avg_credibility_score"`
	AvgRecencyScore        *float64       `json:"avg_recency_score"`
	ConfidenceDistribution map[string]int `json:"confidence_distribution"`
	SourceTypeDistribution map[string]int `json:"source_type_distribution"`
	TopQueries             []QueryCount   `json:"top_queries"`
	DailyQueryCounts       []DailyCount   `json:"daily_query_counts"`
}

// Stats 汇总最近 days 天的查询；days <= 0 表示全部。
func (a *Analytics) Stats(ctx context.Context, user string, days int) (*QueryStats, error) {
	records, err := a.corpus.ListQueries(ctx, user)
	if err != nil {
		return nil, storeErr(err, "query log", user)
	}
	now := a.now()
	if days > 0 {
		cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
		records = slices.DeleteFunc(records, func(r *model.QueryRecord) bool {
			ts, err := time.Parse(time.RFC3339, r.Timestamp)
			if err != nil {
				ctxlog.GetLogger(ctx).Debugw("Query record without usable timestamp", "timestamp", r.Timestamp)
				return false
			}
			return !ts.After(cutoff)
		})
	}

	out := &QueryStats{
		TotalQueries:           len(records),
		ConfidenceDistribution: map[string]int{},
		SourceTypeDistribution: map[string]int{},
		TopQueries:             []QueryCount{},
		DailyQueryCounts:       []DailyCount{},
	}

	var latency, semantic, credibility, recency mean
	queries := map[string]int{}
	daily := map[string]int{}
	for _, r := range records {
		if r.ProcessingTimeMs != nil {
			latency.add(float64(*r.ProcessingTimeMs))
		}
		semantic.addPtr(r.AvgSemanticScore)
		credibility.addPtr(r.AvgCredibilityScore)
		recency.addPtr(r.AvgRecencyScore)

		if r.ConfidenceLevel != "" {
			out.ConfidenceDistribution[r.ConfidenceLevel]++
		}
		for t, n := range r.SourceTypes {
			out.SourceTypeDistribution[t] += n
		}
		if r.Query != "" {
			queries[r.Query]++
		}
		if date, _, _ := strings.Cut(r.Timestamp, "T"); date != "" {
			daily[date]++
		}
	}
	out.AvgProcessingTime = latency.value()
	out.AvgSemanticScore = semantic.value()
	out.AvgCredibilityScore = credibility.value()
	out.AvgRecencyScore = recency.value()

	for q, n := range queries {
		out.TopQueries = append(out.TopQueries, QueryCount{Query: q, Count: n})
	}
	slices.SortFunc(out.TopQueries, func(x, y QueryCount) int {
		return cmp.Or(cmp.Compare(y.Count, x.Count), strings.Compare(x.Query, y.Query))
	})
	if len(out.TopQueries) > topQueriesLimit {
		out.TopQueries = out.TopQueries[:topQueriesLimit]
	}

	for _, date := range slices.Sorted(maps.Keys(daily)) {
		out.DailyQueryCounts = append(out.DailyQueryCounts, DailyCount{Date: date, Count: daily[date]})
	}
	return out, nil
}

// mean 增量均值，无样本时 value 返回 nil。
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.n++
}

func (m *mean) addPtr(v *float64) {
	if v != nil {
		m.add(*v)
	}
}

func (m *mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := m.sum / float64(m.n)
	return &v
}

// queryRecord 根据一次问答生成统计记录。
func queryRecord(q Query, a *Answer, results []*model.SearchResult, elapsed time.Duration) *model.QueryRecord {
	ms := elapsed.Milliseconds()
	rec := &model.QueryRecord{
		Query:            q.Text,
		ConfidenceLevel:  string(a.ConfidenceLevel),
		ResponseLength:   len(a.Message),
		ProcessingTimeMs: &ms,
		NumSources:       len(results),
		SourceTypes:      map[string]int{},
		Tags:             []string{},
	}

	var semantic, credibility, recency mean
	for _, r := range results {
		semantic.add(r.SemanticScore)
		credibility.add(r.CredibilityScore)
		recency.addPtr(r.RecencyScore)
		rec.SourceTypes[string(r.SourceType)]++
	}
	rec.AvgSemanticScore = semantic.value()
	rec.AvgCredibilityScore = credibility.value()
	rec.AvgRecencyScore = recency.value()
	return rec
}
