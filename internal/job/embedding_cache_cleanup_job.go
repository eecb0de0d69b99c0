package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type CacheCleaner interface {
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

// EmbeddingCacheCleanupJob drops persisted embeddings older than maxAge.
type EmbeddingCacheCleanupJob struct {
	cache  CacheCleaner
	maxAge time.Duration
	now    func() time.Time
}

func NewEmbeddingCacheCleanupJob(cache CacheCleaner, maxAgeDays int) *EmbeddingCacheCleanupJob {
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	return &EmbeddingCacheCleanupJob{
		cache:  cache,
		maxAge: time.Duration(maxAgeDays) * 24 * time.Hour,
		now:    time.Now,
	}
}

func (j *EmbeddingCacheCleanupJob) Name() string {
	return "embedding_cache_cleanup"
}

func (j *EmbeddingCacheCleanupJob) Run(ctx context.Context) error {
	if j.cache == nil {
		return nil
	}
	cutoff := j.now().Add(-j.maxAge).Unix()
	n, err := j.cache.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		logutil.GetLogger(ctx).Info("embedding cache pruned", zap.Int64("rows", n), zap.Int64("cutoff", cutoff))
	}
	return nil
}
