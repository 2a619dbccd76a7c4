// Package router wires the retrieval HTTP routes and middleware chain.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/retrieval-x/internal/pkg/httputils"
	"github.com/kart-io/retrieval-x/internal/retrieval/handler"
	"github.com/kart-io/retrieval-x/internal/retrieval/metrics"
	"github.com/kart-io/retrieval-x/internal/retrieval/store"
	"github.com/kart-io/retrieval-x/pkg/infra/middleware"
	"github.com/kart-io/retrieval-x/pkg/infra/middleware/auth"
	"github.com/kart-io/retrieval-x/pkg/utils/errors"
)

// Config selects the gin mode and the collaborators of the middleware chain.
type Config struct {
	// Mode is a gin mode: debug, release or test.
	Mode string
	// Verifier authenticates bearer tokens; nil trusts the X-User-ID header.
	Verifier auth.TokenVerifier
	Metrics  *metrics.Metrics
}

// New builds the gin engine with every route registered.
func New(h *handler.Handler, cfg Config) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.Metrics(cfg.Metrics),
	)
	engine.HandleMethodNotAllowed = true
	engine.NoRoute(func(c *gin.Context) {
		httputils.WriteResponse(c, errors.ErrRouteNotFound.WithMessagef("route %s %s not found", c.Request.Method, c.Request.URL.Path), nil)
	})
	engine.NoMethod(func(c *gin.Context) {
		httputils.WriteResponse(c, errors.ErrRouteNotFound.WithMessagef("method %s not allowed on %s", c.Request.Method, c.Request.URL.Path), nil)
	})

	// 探针与指标不需要身份
	engine.GET("/healthz", h.Healthz)
	engine.GET("/readyz", h.Readyz)
	engine.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))

	api := engine.Group("", auth.Auth(cfg.Verifier, store.SanitizeKey))
	{
		embeddings := api.Group("/embeddings")
		embeddings.POST("/search", h.Search)
		embeddings.POST("/index/:type/:id", h.IndexSource)
		embeddings.POST("/batch/:type", h.BatchIndex)
		embeddings.GET("/stats", h.Stats)

		documents := api.Group("/documents")
		documents.POST("", h.UploadDocument)
		documents.GET("", h.ListDocuments)
		documents.GET("/categories/list", h.DocumentCategories)
		documents.GET("/:id", h.GetDocument)
		documents.GET("/:id/content", h.GetDocumentContent)
		documents.PUT("/:id", h.UpdateDocument)
		documents.DELETE("/:id", h.DeleteDocument)

		urls := api.Group("/urls")
		urls.POST("", h.CreateURL)
		urls.GET("", h.ListURLs)
		urls.GET("/categories/list", h.URLCategories)
		urls.GET("/:id", h.GetURL)
		urls.PUT("/:id", h.UpdateURL)
		urls.DELETE("/:id", h.DeleteURL)

		api.POST("/chat", h.Chat)

		analytics := api.Group("/analytics")
		analytics.POST("/log-query", h.LogQuery)
		analytics.GET("/queries", h.QueryHistory)
		analytics.GET("/stats", h.QueryStats)
	}

	logger.Infow("HTTP routes registered", "routes", len(engine.Routes()))
	return engine
}
