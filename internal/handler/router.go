package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/0xteamCookie/LearnAbility-backend/internal/config"
	"github.com/0xteamCookie/LearnAbility-backend/internal/middleware"
)

type RouterDeps struct {
	Documents *DocumentHandler
	Sessions  *SessionHandler
	Queries   *QueryHandler
	Scopes    *ScopeHandler
	JWTSecret []byte
	RateLimit config.RateLimitConfig
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	limited := middleware.RateLimit(deps.RateLimit.RPS, deps.RateLimit.Burst)

	authGroup := api.Group("")
	authGroup.Use(middleware.OwnerAuth(deps.JWTSecret))

	authGroup.POST("/documents/upload", limited, deps.Documents.Upload)
	authGroup.POST("/documents", deps.Documents.Create)
	authGroup.GET("/documents", deps.Documents.List)
	authGroup.GET("/documents/:id", deps.Documents.Get)
	authGroup.POST("/documents/:id/reingest", limited, deps.Documents.Reingest)
	authGroup.DELETE("/documents/:id", deps.Documents.Delete)

	authGroup.GET("/sessions/:id", deps.Sessions.Get)
	authGroup.POST("/query", limited, deps.Queries.Query)

	authGroup.POST("/subjects", deps.Scopes.CreateSubject)
	authGroup.GET("/subjects", deps.Scopes.ListSubjects)
	authGroup.DELETE("/subjects/:id", deps.Scopes.DeleteSubject)
	authGroup.POST("/subjects/:id/topics", deps.Scopes.CreateTopic)
	authGroup.GET("/subjects/:id/topics", deps.Scopes.ListTopics)
	authGroup.DELETE("/topics/:id", deps.Scopes.DeleteTopic)
}
