package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/retrieval-x/internal/model"
	"github.com/kart-io/retrieval-x/internal/retrieval/biz"
	"github.com/kart-io/retrieval-x/pkg/utils/errors"
	"github.com/kart-io/retrieval-x/pkg/utils/response"
	"github.com/kart-io/retrieval-x/pkg/utils/validator"
)

// CreateURLRequest is the body of POST /urls.
type CreateURLRequest struct {
	URL              string `json:"url" validate:"required,httpurl,max=2048"`
	Title            string `json:"title" validate:"required,max=512"`
	Description      string `json:"description" validate:"max=4096"`
	Category         string `json:"category" validate:"category"`
	CredibilityScore *int   `json:"credibility_score" validate:"omitempty,min=1,max=5"`
}

// UpdateURLRequest is the body of PUT /urls/:id. Absent fields are kept.
type UpdateURLRequest struct {
	Title            *string `json:"title" validate:"omitempty,max=512"`
	Description      *string `json:"description" validate:"omitempty,max=4096"`
	Category         *string `json:"category" validate:"omitempty,category"`
	CredibilityScore *int    `json:"credibility_score" validate:"omitempty,min=1,max=5"`
}

func urlID(c *gin.Context) (string, error) {
	id := c.Param("id")
	if err := validator.Var(id, "required,sourceid"); err != nil {
		return "", errors.ErrInvalidParam.WithMessage("invalid url id")
	}
	return id, nil
}

// CreateURL registers a web page and schedules background indexing.
func (h *Handler) CreateURL(c *gin.Context) {
	var req CreateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.ErrBadRequest.WithMessage(err.Error()))
		return
	}
	// 可信度与 URL 格式有专用错误码，交给业务层判定
	if verrs := validator.StructWithLang(&req, c.GetHeader("Accept-Language")); verrs.HasErrors() {
		switch verrs.FirstField() {
		case "credibility_score":
			fail(c, errors.ErrInvalidCredibility)
		case "url":
			fail(c, errors.ErrInvalidURL.WithMessage(verrs.First()))
		default:
			fail(c, errors.ErrValidationFailed.WithMessage(verrs.First()))
		}
		return
	}

	u, err := h.svc.CreateURL(c.Request.Context(), user(c), biz.URLInput{
		URL:              req.URL,
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		CredibilityScore: req.CredibilityScore,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, response.Accepted("URL added, indexing scheduled", u))
}

// ListURLs lists the caller's URLs, optionally by category.
func (h *Handler) ListURLs(c *gin.Context) {
	urls, err := h.svc.ListURLs(c.Request.Context(), user(c), c.Query("category"))
	if err != nil {
		fail(c, err)
		return
	}
	if urls == nil {
		urls = []*model.URLResource{}
	}
	ok(c, model.URLList{URLs: urls})
}

// GetURL returns URL metadata.
func (h *Handler) GetURL(c *gin.Context) {
	id, err := urlID(c)
	if err != nil {
		fail(c, err)
		return
	}
	u, err := h.svc.GetURL(c.Request.Context(), user(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, u)
}

// UpdateURL applies a partial update.
func (h *Handler) UpdateURL(c *gin.Context) {
	id, err := urlID(c)
	if err != nil {
		fail(c, err)
		return
	}
	var req UpdateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.ErrBadRequest.WithMessage(err.Error()))
		return
	}
	if verrs := validator.StructWithLang(&req, c.GetHeader("Accept-Language")); verrs.HasErrors() {
		if verrs.FirstField() == "credibility_score" {
			fail(c, errors.ErrInvalidCredibility)
			return
		}
		fail(c, errors.ErrValidationFailed.WithMessage(verrs.First()))
		return
	}

	u, err := h.svc.UpdateURL(c.Request.Context(), user(c), id, biz.URLPatch{
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		CredibilityScore: req.CredibilityScore,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, u)
}

// DeleteURL removes a URL.
func (h *Handler) DeleteURL(c *gin.Context) {
	id, err := urlID(c)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.svc.DeleteURL(c.Request.Context(), user(c), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"url_id": id})
}

// URLCategories lists the distinct URL categories.
func (h *Handler) URLCategories(c *gin.Context) {
	categories, err := h.svc.URLCategories(c.Request.Context(), user(c))
	if err != nil {
		fail(c, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	ok(c, gin.H{"categories": categories})
}
