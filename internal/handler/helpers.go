package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/0xteamCookie/LearnAbility-backend/internal/middleware"
	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/errcode"
	appErr "github.com/0xteamCookie/LearnAbility-backend/internal/pkg/errors"
	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/response"
)

const maxListLimit = 200

func getUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIDKey)
}

// handleError maps service errors onto HTTP status codes. Validation
// messages are passed through, everything else gets a fixed message.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, http.StatusForbidden, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, http.StatusNotFound, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, detail(err, appErr.ErrInvalid))
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, http.StatusConflict, errcode.ErrConflict, detail(err, appErr.ErrConflict))
	case errors.Is(err, appErr.ErrTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, errcode.ErrTooLarge, "payload too large")
	case errors.Is(err, appErr.ErrUnavailable):
		response.Error(c, http.StatusInternalServerError, errcode.ErrAIUnavailable, "Failed to process query")
	default:
		response.Error(c, http.StatusInternalServerError, errcode.ErrInternal, "internal error")
	}
}

// detail strips the sentinel prefix from a wrapped error message.
func detail(err, sentinel error) string {
	msg := err.Error()
	if trimmed := strings.TrimPrefix(msg, sentinel.Error()+": "); trimmed != msg {
		return trimmed
	}
	return msg
}

func badRequest(c *gin.Context, msg string) {
	response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, msg)
}

func parsePaging(c *gin.Context) (uint, uint) {
	var offset, limit uint
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = uint(v)
	}
	limit = 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = uint(v)
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return offset, limit
}
