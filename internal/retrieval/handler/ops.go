package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/retrieval-x/internal/pkg/httputils"
	"github.com/kart-io/retrieval-x/internal/retrieval/biz"
	"github.com/kart-io/retrieval-x/pkg/infra/app"
	"github.com/kart-io/retrieval-x/pkg/infra/pool"
	"github.com/kart-io/retrieval-x/pkg/llm/resilience"
	"github.com/kart-io/retrieval-x/pkg/utils/errors"
	"github.com/kart-io/retrieval-x/pkg/utils/response"
)

const readinessTimeout = 3 * time.Second

// QueueInfo is the indexing queue depth.
type QueueInfo struct {
	Pending  int `json:"pending"`
	Capacity int `json:"capacity"`
}

// StatsResponse is the body of GET /embeddings/stats.
type StatsResponse struct {
	*biz.Stats
	Queue    *QueueInfo                `json:"queue,omitempty"`
	Pools    []pool.Stats              `json:"pools,omitempty"`
	Breakers []resilience.BreakerStats `json:"breakers,omitempty"`
}

// Stats reports the caller's index coverage plus queue, pool and breaker state.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context(), user(c))
	if err != nil {
		fail(c, err)
		return
	}
	out := StatsResponse{Stats: stats}
	if h.queue != nil {
		out.Queue = &QueueInfo{Pending: h.queue.Len(), Capacity: h.queue.Cap()}
	}
	if h.pools != nil {
		out.Pools = h.pools.Stats()
	}
	for _, b := range h.breakers {
		out.Breakers = append(out.Breakers, b.Stats())
	}
	ok(c, out)
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	ok(c, gin.H{"status": "ok", "version": app.GetVersion()})
}

// Readyz checks every registered dependency and answers 503 when any fails.
func (h *Handler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	ready := true
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			logger.Warnw("Readiness check failed", "check", check.Name, "error", err.Error())
			checks[check.Name] = err.Error()
			ready = false
			continue
		}
		checks[check.Name] = "ok"
	}

	if !ready {
		resp := response.Err(errors.ErrServiceUnavailable)
		defer response.Release(resp)
		resp.Data = gin.H{"status": "not ready", "checks": checks}
		resp.WithRequestID(c.GetString(httputils.RequestIDKey))
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	ok(c, gin.H{"status": "ready", "checks": checks})
}
