package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
	"github.com/0xteamCookie/LearnAbility-backend/internal/testutil"
	"github.com/0xteamCookie/LearnAbility-backend/internal/vectorstore"
)

type recordingSearcher struct {
	filters []vectorstore.Filter
	results [][]model.SearchHit
	err     error
}

func (r *recordingSearcher) Search(ctx context.Context, vector []float32, filter vectorstore.Filter, topK int) ([]model.SearchHit, error) {
	r.filters = append(r.filters, filter)
	if r.err != nil {
		return nil, r.err
	}
	if len(r.results) == 0 {
		return nil, nil
	}
	next := r.results[0]
	r.results = r.results[1:]
	if len(next) > topK {
		next = next[:topK]
	}
	return next, nil
}

func TestRetrieveFiltersByOwnerAndScope(t *testing.T) {
	s := &recordingSearcher{results: [][]model.SearchHit{{{Text: "a", Score: 0.9, DocumentID: "d1"}}}}
	p := NewPlanner(&testutil.FakeEmbedder{}, s, 0)
	res := p.Retrieve(context.Background(), Query{
		Text: "what is osmosis", OwnerID: "alice",
		Hints: model.ScopeHints{SubjectID: "bio", TopicID: "cells"},
	})
	require.Len(t, res, 1)
	require.Equal(t, float32(0.9), RelevanceScore(res))
	require.Equal(t, []vectorstore.Filter{{OwnerID: "alice", SubjectID: "bio", TopicID: "cells"}}, s.filters)
}

func TestRetrieveDefaultTopK(t *testing.T) {
	hits := []model.SearchHit{{Text: "1"}, {Text: "2"}, {Text: "3"}}
	s := &recordingSearcher{results: [][]model.SearchHit{hits}}
	res := NewPlanner(&testutil.FakeEmbedder{}, s, 0).Retrieve(context.Background(), Query{Text: "q", OwnerID: "u"})
	require.Len(t, res, DefaultTopK)
}

func TestRetrieveFallsBackToScope(t *testing.T) {
	s := &recordingSearcher{results: [][]model.SearchHit{nil, {{Text: "scoped", DocumentID: "d9"}}}}
	p := NewPlanner(&testutil.FakeEmbedder{}, s, 2)
	res := p.Retrieve(context.Background(), Query{
		Text: "q", OwnerID: "u",
		Hints: model.ScopeHints{SubjectID: "bio", DocumentIDs: []string{"missing"}},
	})
	require.Len(t, res, 1)
	require.Equal(t, "scoped", res[0].Text)
	require.Len(t, s.filters, 2)
	require.Equal(t, []string{"missing"}, s.filters[0].DocumentIDs)
	require.Nil(t, s.filters[1].DocumentIDs)
	require.Equal(t, "bio", s.filters[1].SubjectID)
}

func TestRetrieveNoFallbackWithoutScope(t *testing.T) {
	s := &recordingSearcher{}
	p := NewPlanner(&testutil.FakeEmbedder{}, s, 2)
	res := p.Retrieve(context.Background(), Query{Text: "q", OwnerID: "u", Hints: model.ScopeHints{DocumentIDs: []string{"d"}}})
	require.Empty(t, res)
	require.Len(t, s.filters, 1)
	require.Zero(t, RelevanceScore(res))
}

func TestRetrieveDegradesToEmpty(t *testing.T) {
	t.Run("embed failure", func(t *testing.T) {
		s := &recordingSearcher{}
		p := NewPlanner(&testutil.FakeEmbedder{Err: errors.New("quota")}, s, 2)
		require.Empty(t, p.Retrieve(context.Background(), Query{Text: "q", OwnerID: "u"}))
		require.Empty(t, s.filters)
	})
	t.Run("search failure", func(t *testing.T) {
		s := &recordingSearcher{err: errors.New("store down")}
		p := NewPlanner(&testutil.FakeEmbedder{}, s, 2)
		require.Empty(t, p.Retrieve(context.Background(), Query{Text: "q", OwnerID: "u"}))
	})
	t.Run("no owner", func(t *testing.T) {
		s := &recordingSearcher{}
		p := NewPlanner(&testutil.FakeEmbedder{}, s, 2)
		require.Empty(t, p.Retrieve(context.Background(), Query{Text: "q"}))
		require.Empty(t, s.filters)
	})
}

func TestRetrieveEmbedsEveryCall(t *testing.T) {
	e := &testutil.FakeEmbedder{}
	p := NewPlanner(e, &recordingSearcher{}, 2)
	p.Retrieve(context.Background(), Query{Text: "same", OwnerID: "u"})
	p.Retrieve(context.Background(), Query{Text: "same", OwnerID: "u"})
	require.Equal(t, 2, e.Calls())
}
