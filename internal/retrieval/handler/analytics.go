package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/retrieval-x/internal/model"
	"github.com/kart-io/retrieval-x/pkg/utils/errors"
)

const (
	defaultPageSize  = 20
	defaultStatsDays = 30
)

// LogQueryRequest is the body of POST /analytics/log-query. The user id is
// always the caller's; a user_id in the body is ignored.
type LogQueryRequest struct {
	Query                 string         `json:"query" validate:"required,max=4096"`
	Timestamp             string         `json:"timestamp" validate:"omitempty,max=64"`
	ConfidenceLevel       string         `json:"confidence_level" validate:"omitempty,oneof=Green Amber Red"`
	ResponseLength        int            `json:"response_length" validate:"min=0"`
	ProcessingTimeMs      *int64         `json:"processing_time_ms" validate:"omitempty,min=0"`
	NumSources            int            `json:"num_sources" validate:"min=0"`
	AvgSemanticScore      *float64       `json:"avg_semantic_score" validate:"omitempty,min=-1,max=1"`
	AvgCredibilityScore   *float64       `json:"avg_credibility_score" validate:"omitempty,min=0,max=1"`
	AvgRecencyScore       *float64       `json:"avg_recency_score" validate:"omitempty,min=0,max=1"`
	SourceTypes           map[string]int `json:"source_types" validate:"omitempty,dive,keys,oneof=document url,endkeys,min=0"`
	HallucinationDetected *bool          `json:"hallucination_detected"`
	Tags                  []string       `json:"tags" validate:"omitempty,max=32,dive,max=64"`
}

// LogQuery appends one entry to the caller's query log.
func (h *Handler) LogQuery(c *gin.Context) {
	var req LogQueryRequest
	if err := bind(c, &req); err != nil {
		fail(c, err)
		return
	}
	rec := &model.QueryRecord{
		Query:                 req.Query,
		Timestamp:             req.Timestamp,
		ConfidenceLevel:       req.ConfidenceLevel,
		ResponseLength:        req.ResponseLength,
		ProcessingTimeMs:      req.ProcessingTimeMs,
		NumSources:            req.NumSources,
		AvgSemanticScore:      req.AvgSemanticScore,
		AvgCredibilityScore:   req.AvgCredibilityScore,
		AvgRecencyScore:       req.AvgRecencyScore,
		SourceTypes:           req.SourceTypes,
		HallucinationDetected: req.HallucinationDetected,
		Tags:                  req.Tags,
	}
	if err := h.analytics.Record(c.Request.Context(), user(c), rec); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"success": true})
}

// QueryHistory returns the caller's query log, newest first.
func (h *Handler) QueryHistory(c *gin.Context) {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		fail(c, err)
		return
	}
	size, err := intQuery(c, "page_size", defaultPageSize)
	if err != nil {
		fail(c, err)
		return
	}
	out, err := h.analytics.History(c.Request.Context(), user(c), page, size)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

// QueryStats aggregates the caller's queries of the last days days.
func (h *Handler) QueryStats(c *gin.Context) {
	days, err := intQuery(c, "days", defaultStatsDays)
	if err != nil {
		fail(c, err)
		return
	}
	out, err := h.analytics.Stats(c.Request.Context(), user(c), days)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.ErrInvalidParam.WithMessagef("%s must be an integer", name)
	}
	return v, nil
}
