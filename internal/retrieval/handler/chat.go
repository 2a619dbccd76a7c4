package handler

import (
	"github.com/gin-gonic/gin"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message     string   `json:"message" validate:"required,max=4096"`
	TopK        *int     `json:"top_k" validate:"omitempty"`
	DocumentIDs []string `json:"document_ids" validate:"omitempty,dive,sourceid"`
	URLIDs      []string `json:"url_ids" validate:"omitempty,dive,sourceid"`
	Categories  []string `json:"categories" validate:"omitempty,dive,category"`
}

// Chat answers a question from the caller's knowledge base with a
// confidence level and the sources it drew on.
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := bind(c, &req); err != nil {
		fail(c, err)
		return
	}
	q, err := h.query(c, req.Message, req.TopK, req.DocumentIDs, req.URLIDs, req.Categories)
	if err != nil {
		fail(c, err)
		return
	}

	answer, err := h.generator.Answer(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, answer)
}
