package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveSearch(10*time.Millisecond, 3, nil)
	m.ObserveSearch(time.Millisecond, 0, errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searches.WithLabelValues("error")))

	m.ObserveIndex("document", time.Second, 4, nil)
	m.ObserveIndex("document", time.Second, 0, errors.New("extract"))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.indexedChunks.WithLabelValues("document")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.indexRuns.WithLabelValues("document", "error")))

	m.SkipChunk("dimension")
	m.QueueRejected()
	m.ObserveChat("green")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queueRejected))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", "/healthz", "200", time.Millisecond)
	m.RegisterGauge("pool_running", "Running workers", func() float64 { return 2 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `retrieval_http_requests_total{code="200",method="GET",route="/healthz"} 1`))
	assert.Contains(t, body, "retrieval_pool_running 2")
	assert.Contains(t, body, "go_goroutines")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSearch(time.Second, 1, nil)
		m.ObserveIndex("url", time.Second, 1, nil)
		m.SkipChunk("nan")
		m.QueueRejected()
		m.ObserveChat("red")
		m.ObserveHTTP("GET", "/", "200", time.Second)
		m.RegisterGauge("x", "x", func() float64 { return 0 })
	})
}
