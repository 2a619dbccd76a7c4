// Package metrics 提供检索服务的 Prometheus 指标。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "retrieval"

// Metrics 检索服务指标集合。nil *Metrics 上的方法均为空操作。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	// 检索
	searches       *prometheus.CounterVec
	searchDuration prometheus.Histogram
	searchResults  prometheus.Histogram
	chunksSkipped  *prometheus.CounterVec

	// 索引
	indexRuns     *prometheus.CounterVec
	indexDuration *prometheus.HistogramVec
	indexedChunks *prometheus.CounterVec
	queueRejected prometheus.Counter

	// 问答
	chatAnswers *prometheus.CounterVec
}

// New 创建指标集合并注册到独立的 registry，附带 Go 运行时与进程指标。
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"method", "route"}),

		searches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of ranked searches",
		}, []string{"status"}),
		searchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Ranked search duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		searchResults: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of results returned per search",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		chunksSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_skipped_total",
			Help:      "Chunks or sources skipped while ranking",
		}, []string{"reason"}),

		indexRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_runs_total",
			Help:      "Indexing runs per source type and outcome",
		}, []string{"source_type", "status"}),
		indexDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_duration_seconds",
			Help:      "Indexing duration of one source item in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"source_type"}),
		indexedChunks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexed_chunks_total",
			Help:      "Chunks written by successful indexing runs",
		}, []string{"source_type"}),
		queueRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_queue_rejected_total",
			Help:      "Background indexing requests rejected by a full queue",
		}),

		chatAnswers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_answers_total",
			Help:      "Chat answers per confidence level",
		}, []string{"confidence"}),
	}
}

// Registry 返回底层 registry。
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler 返回 /metrics 处理器。
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterGauge 注册按需求值的指标，例如工作池运行数。
func (m *Metrics) RegisterGauge(name, help string, fn func() float64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

func (m *Metrics) ObserveHTTP(method, route, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, code).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveSearch 记录一次检索。
func (m *Metrics) ObserveSearch(d time.Duration, results int, err error) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(status(err)).Inc()
	if err != nil {
		return
	}
	m.searchDuration.Observe(d.Seconds())
	m.searchResults.Observe(float64(results))
}

// SkipChunk 记录排序时被跳过的分块或来源。
func (m *Metrics) SkipChunk(reason string) {
	if m == nil {
		return
	}
	m.chunksSkipped.WithLabelValues(reason).Inc()
}

// ObserveIndex 记录一次索引。
func (m *Metrics) ObserveIndex(sourceType string, d time.Duration, chunks int, err error) {
	if m == nil {
		return
	}
	m.indexRuns.WithLabelValues(sourceType, status(err)).Inc()
	m.indexDuration.WithLabelValues(sourceType).Observe(d.Seconds())
	if err == nil {
		m.indexedChunks.WithLabelValues(sourceType).Add(float64(chunks))
	}
}

// QueueRejected 记录被拒绝的后台索引请求。
func (m *Metrics) QueueRejected() {
	if m == nil {
		return
	}
	m.queueRejected.Inc()
}

// ObserveChat 记录问答置信度。
func (m *Metrics) ObserveChat(confidence string) {
	if m == nil {
		return
	}
	m.chatAnswers.WithLabelValues(confidence).Inc()
}
