package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/0xteamCookie/LearnAbility-backend/internal/ai"
	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
	appErr "github.com/0xteamCookie/LearnAbility-backend/internal/pkg/errors"
	"github.com/0xteamCookie/LearnAbility-backend/internal/retrieval"
)

type Retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) []retrieval.Result
}

type QueryRequest struct {
	Query      string
	ScopeHints model.ScopeHints
	TopK       int
}

type Source struct {
	DocumentID string  `json:"documentId"`
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
}

type QueryAnswer struct {
	Answer         string   `json:"answer"`
	RelevanceScore float32  `json:"relevanceScore"`
	Query          string   `json:"query"`
	Sources        []Source `json:"sources"`
}

// QueryService answers a question from the owner's own material.
type QueryService struct {
	retriever Retriever
	generator ai.IGenerator
}

func NewQueryService(retriever Retriever, generator ai.IGenerator) *QueryService {
	return &QueryService{retriever: retriever, generator: generator}
}

func (s *QueryService) Answer(ctx context.Context, userID string, req QueryRequest) (*QueryAnswer, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", appErr.ErrInvalid)
	}
	results := s.retriever.Retrieve(ctx, retrieval.Query{
		Text:    query,
		OwnerID: userID,
		TopK:    req.TopK,
		Hints:   req.ScopeHints,
	})
	passages := make([]string, 0, len(results))
	sources := make([]Source, 0, len(results))
	for _, r := range results {
		passages = append(passages, r.Text)
		sources = append(sources, Source{DocumentID: r.DocumentID, Score: r.Score, Text: r.Text})
	}

	answer, err := s.generator.Generate(ctx, ai.BuildAnswerPrompt(query, passages))
	if err != nil {
		logutil.GetLogger(ctx).Error("generate answer failed", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", appErr.ErrUnavailable, err)
	}
	return &QueryAnswer{
		Answer:         answer,
		RelevanceScore: retrieval.RelevanceScore(results),
		Query:          query,
		Sources:        sources,
	}, nil
}
