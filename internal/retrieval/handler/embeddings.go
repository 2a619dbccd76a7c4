package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/retrieval-x/internal/model"
	"github.com/kart-io/retrieval-x/internal/retrieval/biz"
	"github.com/kart-io/retrieval-x/pkg/utils/errors"
	"github.com/kart-io/retrieval-x/pkg/utils/validator"
)

// SearchRequest is the body of POST /embeddings/search.
type SearchRequest struct {
	Query       string   `json:"query" validate:"required,max=4096"`
	TopK        *int     `json:"top_k" validate:"omitempty"`
	DocumentIDs []string `json:"document_ids" validate:"omitempty,dive,sourceid"`
	URLIDs      []string `json:"url_ids" validate:"omitempty,dive,sourceid"`
	Categories  []string `json:"categories" validate:"omitempty,dive,category"`
}

// SearchResponse wraps ranked results.
type SearchResponse struct {
	Results []*model.SearchResult `json:"results"`
}

func (h *Handler) query(c *gin.Context, text string, topK *int, docIDs, urlIDs, categories []string) (biz.Query, error) {
	k := h.config.DefaultTopK
	if topK != nil {
		if *topK <= 0 {
			return biz.Query{}, errors.ErrInvalidTopK
		}
		k = *topK
	}
	return biz.Query{
		Text:        text,
		UserID:      user(c),
		TopK:        k,
		DocumentIDs: docIDs,
		URLIDs:      urlIDs,
		Categories:  categories,
	}, nil
}

// Search ranks the caller's indexed chunks against a query.
func (h *Handler) Search(c *gin.Context) {
	var req SearchRequest
	if err := bind(c, &req); err != nil {
		fail(c, err)
		return
	}
	q, err := h.query(c, req.Query, req.TopK, req.DocumentIDs, req.URLIDs, req.Categories)
	if err != nil {
		fail(c, err)
		return
	}

	results, err := h.ranker.Rank(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	if results == nil {
		results = []*model.SearchResult{}
	}
	ok(c, SearchResponse{Results: results})
}

// IndexSource synchronously indexes one document or URL.
func (h *Handler) IndexSource(c *gin.Context) {
	t, err := model.ParseSourceType(c.Param("type"))
	if err != nil {
		fail(c, errors.ErrInvalidSourceType.WithMessagef("unknown source type %q", c.Param("type")))
		return
	}
	id := c.Param("id")
	if verr := validator.Var(id, "required,sourceid"); verr != nil {
		fail(c, errors.ErrInvalidParam.WithMessagef("invalid %s id", t))
		return
	}

	// 客户端断开不应中断写入中的分块集
	ctx := context.WithoutCancel(c.Request.Context())
	n, err := h.indexer.IndexSource(ctx, user(c), t, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{
		string(t) + "_id": id,
		"chunk_count":     n,
	})
}

// BatchIndex indexes every document, URL or both for the caller.
// Already indexed items are skipped unless force=true.
func (h *Handler) BatchIndex(c *gin.Context) {
	force, err := strconv.ParseBool(c.DefaultQuery("force", "false"))
	if err != nil {
		fail(c, errors.ErrBadRequest.WithMessage("force must be a boolean"))
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	target := c.Param("type")
	if target == "all" {
		report, err := h.indexer.BatchAll(ctx, user(c), force)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, report)
		return
	}

	t, perr := model.ParseSourceType(target)
	if perr != nil || target != t.Plural() {
		fail(c, errors.ErrInvalidSourceType.WithMessagef("unknown batch target %q", target))
		return
	}
	report, err := h.indexer.BatchIndex(ctx, user(c), t, force)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, report)
}
