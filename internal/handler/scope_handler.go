package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/response"
	"github.com/0xteamCookie/LearnAbility-backend/internal/service"
)

type ScopeHandler struct {
	scopes *service.ScopeService
}

func NewScopeHandler(scopes *service.ScopeService) *ScopeHandler {
	return &ScopeHandler{scopes: scopes}
}

type subjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type topicRequest struct {
	Name string `json:"name"`
}

func (h *ScopeHandler) CreateSubject(c *gin.Context) {
	var req subjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	subject, err := h.scopes.CreateSubject(c.Request.Context(), getUserID(c), req.Name, req.Description)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, subject)
}

func (h *ScopeHandler) ListSubjects(c *gin.Context) {
	items, err := h.scopes.ListSubjects(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, items)
}

func (h *ScopeHandler) DeleteSubject(c *gin.Context) {
	if err := h.scopes.DeleteSubject(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

func (h *ScopeHandler) CreateTopic(c *gin.Context) {
	var req topicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	topic, err := h.scopes.CreateTopic(c.Request.Context(), getUserID(c), c.Param("id"), req.Name)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Created(c, topic)
}

func (h *ScopeHandler) ListTopics(c *gin.Context) {
	items, err := h.scopes.ListTopics(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, items)
}

func (h *ScopeHandler) DeleteTopic(c *gin.Context) {
	if err := h.scopes.DeleteTopic(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
