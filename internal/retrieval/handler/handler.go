// Package handler provides the HTTP handlers of the retrieval service.
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/retrieval-x/internal/pkg/httputils"
	"github.com/kart-io/retrieval-x/internal/retrieval/biz"
	"github.com/kart-io/retrieval-x/pkg/infra/middleware"
	"github.com/kart-io/retrieval-x/pkg/infra/pool"
	"github.com/kart-io/retrieval-x/pkg/llm/resilience"
	"github.com/kart-io/retrieval-x/pkg/utils/errors"
	"github.com/kart-io/retrieval-x/pkg/utils/validator"
)

const (
	// DefaultTopK is used when a search or chat request omits top_k.
	DefaultTopK = 5

	// DefaultMaxUploadSize bounds a document upload body.
	DefaultMaxUploadSize int64 = 50 << 20
)

// QueueStats reports the background indexing queue depth.
type QueueStats interface {
	Len() int
	Cap() int
}

// PoolStats reports worker pool statistics.
type PoolStats interface {
	Stats() []pool.Stats
}

// ReadinessCheck is one dependency checked by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Config holds handler tunables.
type Config struct {
	DefaultTopK   int
	MaxUploadSize int64
}

// Deps are the collaborators the handlers dispatch to.
type Deps struct {
	Service   *biz.Service
	Ranker    *biz.Ranker
	Indexer   *biz.Indexer
	Generator *biz.Generator
	Analytics *biz.Analytics
	Queue     QueueStats
	Pools     PoolStats
	Checks    []ReadinessCheck
	// Breakers guard the embedding and chat backends.
	Breakers []*resilience.CircuitBreaker
}

// Handler serves the search, indexing, document, URL, chat, analytics
// and operational endpoints.
type Handler struct {
	svc       *biz.Service
	ranker    *biz.Ranker
	indexer   *biz.Indexer
	generator *biz.Generator
	analytics *biz.Analytics
	queue     QueueStats
	pools     PoolStats
	checks    []ReadinessCheck
	breakers  []*resilience.CircuitBreaker
	config    Config
}

// New creates a Handler. Zero config values fall back to defaults.
func New(deps Deps, config Config) *Handler {
	if config.DefaultTopK <= 0 {
		config.DefaultTopK = DefaultTopK
	}
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = DefaultMaxUploadSize
	}
	return &Handler{
		svc:       deps.Service,
		ranker:    deps.Ranker,
		indexer:   deps.Indexer,
		generator: deps.Generator,
		analytics: deps.Analytics,
		queue:     deps.Queue,
		pools:     deps.Pools,
		checks:    deps.Checks,
		breakers:  deps.Breakers,
		config:    config,
	}
}

// bind decodes the JSON body into req and runs struct validation with
// messages in the caller's Accept-Language.
func bind(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return errors.ErrBadRequest.WithMessage(err.Error())
	}
	if verrs := validator.StructWithLang(req, c.GetHeader("Accept-Language")); verrs.HasErrors() {
		return errors.ErrValidationFailed.WithMessage(verrs.First())
	}
	return nil
}

func user(c *gin.Context) string {
	return middleware.UserID(c)
}

func fail(c *gin.Context, err error) {
	httputils.WriteResponse(c, err, nil)
}

func ok(c *gin.Context, data interface{}) {
	httputils.WriteResponse(c, nil, data)
}
