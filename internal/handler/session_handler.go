package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/response"
	"github.com/0xteamCookie/LearnAbility-backend/internal/service"
)

type SessionHandler struct {
	sessions *service.SessionService
}

func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Get(c *gin.Context) {
	st, err := h.sessions.Status(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, st)
}
