package retrieval

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/0xteamCookie/LearnAbility-backend/internal/ai"
	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
	"github.com/0xteamCookie/LearnAbility-backend/internal/observability"
	"github.com/0xteamCookie/LearnAbility-backend/internal/vectorstore"
)

const DefaultTopK = 2

type Searcher interface {
	Search(ctx context.Context, vector []float32, filter vectorstore.Filter, topK int) ([]model.SearchHit, error)
}

type Query struct {
	Text    string
	OwnerID string
	TopK    int
	Hints   model.ScopeHints
}

type Result struct {
	Text       string                 `json:"text"`
	Score      float32                `json:"score"`
	DocumentID string                 `json:"documentId"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// Planner turns a question into an owner-scoped vector search. It never
// fails: an unusable query, embedding or store yields no results.
type Planner struct {
	embedder    ai.IEmbedder
	store       Searcher
	defaultTopK int
}

func NewPlanner(embedder ai.IEmbedder, store Searcher, defaultTopK int) *Planner {
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &Planner{embedder: embedder, store: store, defaultTopK: defaultTopK}
}

func (p *Planner) Retrieve(ctx context.Context, q Query) []Result {
	topK := q.TopK
	if topK <= 0 {
		topK = p.defaultTopK
	}
	ctx, span := observability.StartRetrieveSpan(ctx, q.OwnerID, topK)
	defer span.End()
	logger := logutil.GetLogger(ctx).With(zap.String("owner_id", q.OwnerID))

	if q.OwnerID == "" || q.Text == "" {
		return nil
	}
	vec, err := p.embedder.Embed(ctx, q.Text, ai.TaskRetrievalQuery)
	if err != nil {
		observability.RecordError(span, err)
		logger.Warn("embed query failed, continuing without context", zap.Error(err))
		return nil
	}

	filter := vectorstore.Filter{
		OwnerID:     q.OwnerID,
		SubjectID:   q.Hints.SubjectID,
		TopicID:     q.Hints.TopicID,
		DocumentIDs: q.Hints.DocumentIDs,
	}
	hits, err := p.store.Search(ctx, vec, filter, topK)
	if err != nil {
		observability.RecordError(span, err)
		logger.Warn("vector search failed", zap.Error(err))
		return nil
	}
	if len(hits) == 0 && len(filter.DocumentIDs) > 0 && q.Hints.HasScope() {
		logger.Debug("no hits for pinned documents, retrying with subject/topic scope")
		filter.DocumentIDs = nil
		hits, err = p.store.Search(ctx, vec, filter, topK)
		if err != nil {
			observability.RecordError(span, err)
			logger.Warn("fallback vector search failed", zap.Error(err))
			return nil
		}
	}

	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		out = append(out, Result{Text: h.Text, Score: h.Score, DocumentID: h.DocumentID, Metadata: h.Metadata})
	}
	return out
}

// RelevanceScore is the similarity of the best result, 0 when empty.
func RelevanceScore(results []Result) float32 {
	if len(results) == 0 {
		return 0
	}
	return results[0].Score
}
