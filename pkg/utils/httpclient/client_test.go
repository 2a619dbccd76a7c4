package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// setupTracer 设置测试用的 OpenTelemetry Tracer。
func setupTracer() (trace.Tracer, *sdktrace.TracerProvider) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Tracer("test"), tp
}

func TestInjectTraceContext(t *testing.T) {
	tracer, tp := setupTracer()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	client := NewClient(10*time.Second, 0)

	t.Run("with span", func(t *testing.T) {
		ctx, span := tracer.Start(context.Background(), "embed")
		defer span.End()

		req := httptest.NewRequest(http.MethodGet, "http://example.com/api/embed", nil).WithContext(ctx)
		client.injectTraceContext(req)

		// version-trace_id-parent_id-trace_flags
		assert.GreaterOrEqual(t, len(req.Header.Get("traceparent")), 55)
	})

	t.Run("without span", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "http://example.com/api/embed", nil)
		client.injectTraceContext(req)
		assert.Empty(t, req.Header.Get("traceparent"))
	})

	t.Run("nil request", func(t *testing.T) {
		assert.NotPanics(t, func() { client.injectTraceContext(nil) })
	})
}

func TestDoRequestPropagatesTrace(t *testing.T) {
	tracer, tp := setupTracer()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var received string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, span := tracer.Start(context.Background(), "client-request")
	defer span.End()

	resp, err := NewClient(5*time.Second, 0).Get(ctx, srv.URL, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.NotEmpty(t, received)
}

func TestDoRequestRetriesServerErrors(t *testing.T) {
	var calls int32
	var lastBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		lastBody = string(b)
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding":[0.5,0.25]}`))
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, 2, WithBackoff(time.Millisecond))

	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	err := client.PostJSON(context.Background(), srv.URL, map[string]string{"Authorization": "Bearer k"},
		map[string]string{"input": "hello"}, &out)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []float32{0.5, 0.25}, out.Embedding)
	assert.JSONEq(t, `{"input":"hello"}`, lastBody, "body must be replayed on retry")
}

func TestDoRequestGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(5*time.Second, 1, WithBackoff(time.Millisecond)).Get(context.Background(), srv.URL, nil)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDoJSONClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("model not found"))
	}))
	defer srv.Close()

	err := NewClient(5*time.Second, 3, WithBackoff(time.Millisecond)).
		PostJSON(context.Background(), srv.URL, nil, map[string]string{}, nil)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Contains(t, se.Body, "model not found")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoRequestHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(5*time.Second, 5, WithBackoff(time.Second)).Get(ctx, srv.URL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
