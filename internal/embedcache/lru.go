package embedcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/0xteamCookie/LearnAbility-backend/internal/ai"
)

// WrapLRU keeps recently embedded chunks in memory. A non-positive size or
// ttl disables the layer.
func WrapLRU(e ai.IEmbedder, size int, ttl time.Duration) ai.IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  ai.IEmbedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	key := NewKey(l.next.ModelName(), taskType, text).String()
	if cached, ok := l.cache.Get(key); ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit", zap.String("layer", "lru"), zap.String("task_type", taskType))
		return cloneVector(cached), nil
	}
	vec, err := l.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, cloneVector(vec))
	return vec, nil
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}
