package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/errcode"
	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/response"
)

const (
	limiterCacheSize = 10000
	limiterIdleTTL   = 10 * time.Minute
)

type rateLimiter struct {
	rps      rate.Limit
	burst    int
	limiters *expirable.LRU[string, *rate.Limiter]
}

// RateLimit applies a token bucket per owner and route. Idle buckets are
// evicted after ten minutes.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = 1
	}
	l := &rateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: expirable.NewLRU[string, *rate.Limiter](limiterCacheSize, nil, limiterIdleTTL),
	}
	return l.handle
}

func (l *rateLimiter) limiter(key string) *rate.Limiter {
	if lim, ok := l.limiters.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	l.limiters.Add(key, lim)
	return lim
}

func (l *rateLimiter) handle(c *gin.Context) {
	owner := c.GetString(ContextUserIDKey)
	if owner == "" {
		owner = c.ClientIP()
	}
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	if !l.limiter(owner + "|" + path).Allow() {
		logutil.GetLogger(c.Request.Context()).Warn("rate limit hit",
			zap.String("owner", owner),
			zap.String("path", path),
		)
		response.Error(c, http.StatusTooManyRequests, errcode.ErrTooMany, http.StatusText(http.StatusTooManyRequests))
		c.Abort()
		return
	}
	c.Next()
}
