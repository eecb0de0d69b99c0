package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/response"
	"github.com/0xteamCookie/LearnAbility-backend/internal/service"
)

type QueryHandler struct {
	queries *service.QueryService
}

func NewQueryHandler(queries *service.QueryService) *QueryHandler {
	return &QueryHandler{queries: queries}
}

type queryRequest struct {
	Query      interface{}      `json:"query"`
	ScopeHints model.ScopeHints `json:"scopeHints"`
	TopK       int              `json:"topK"`
}

func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	query, ok := req.Query.(string)
	if !ok || strings.TrimSpace(query) == "" {
		badRequest(c, "Query is required and must be a string")
		return
	}
	if req.TopK < 0 {
		badRequest(c, "topK must not be negative")
		return
	}
	ans, err := h.queries.Answer(c.Request.Context(), getUserID(c), service.QueryRequest{
		Query:      query,
		ScopeHints: req.ScopeHints,
		TopK:       req.TopK,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, ans)
}
