package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/errcode"
	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/jwt"
	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/response"
)

const ContextUserIDKey = "user_id"

// OwnerAuth resolves the bearer token to the owner id that scopes every
// document, session and query of the request.
func OwnerAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "missing or invalid authorization")
			c.Abort()
			return
		}
		claims, err := jwt.ParseToken(strings.TrimSpace(token), secret)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextUserIDKey, claims.OwnerID)
		c.Next()
	}
}
