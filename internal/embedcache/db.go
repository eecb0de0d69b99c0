package embedcache

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/0xteamCookie/LearnAbility-backend/internal/ai"
	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/timeutil"
)

// Store is the persistent side of the cache, see repo.EmbeddingCacheRepo.
type Store interface {
	Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error)
	Save(ctx context.Context, item *model.EmbeddingCache) error
}

// WrapDB consults the persistent cache before calling the embedder. Cache
// read and write failures are logged and never fail the embedding.
func WrapDB(e ai.IEmbedder, store Store) ai.IEmbedder {
	if e == nil || store == nil {
		return e
	}
	return &dbEmbedder{next: e, store: store}
}

type dbEmbedder struct {
	next  ai.IEmbedder
	store Store
}

func (d *dbEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	key := NewKey(d.next.ModelName(), taskType, text)
	values, ok, err := d.store.Get(ctx, key.Model, key.TaskType, key.ContentHash)
	if err != nil {
		logutil.GetLogger(ctx).Warn("read embedding cache failed", zap.Error(err))
	} else if ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit", zap.String("layer", "db"), zap.String("task_type", taskType))
		return values, nil
	}
	vec, err := d.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if err := d.store.Save(ctx, &model.EmbeddingCache{
		ModelName:   key.Model,
		TaskType:    key.TaskType,
		ContentHash: key.ContentHash,
		Embedding:   vec,
		Ctime:       timeutil.NowUnix(),
	}); err != nil {
		logutil.GetLogger(ctx).Warn("save embedding cache failed", zap.Error(err))
	}
	return vec, nil
}

func (d *dbEmbedder) ModelName() string {
	return d.next.ModelName()
}
