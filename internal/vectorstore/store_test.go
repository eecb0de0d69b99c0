package vectorstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/0xteamCookie/LearnAbility-backend/internal/config"
	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
	"github.com/0xteamCookie/LearnAbility-backend/internal/testutil"
)

const testDim = 3

func newSqlite(t *testing.T) Store {
	t.Helper()
	s, err := New(Deps{}, config.VectorStoreConfig{Type: "sqlite", Collection: "test_sources", Dimension: testDim})
	require.NoError(t, err)
	require.NoError(t, s.EnsureCollection(context.Background(), "test_sources", testDim))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func rec(owner, subject, topic, doc, text string, vec ...float32) model.VectorRecord {
	return model.VectorRecord{
		Text:       text,
		Embedding:  vec,
		OwnerID:    owner,
		SubjectID:  subject,
		TopicID:    topic,
		DocumentID: doc,
		Metadata:   map[string]interface{}{"source": doc},
	}
}

func texts(hits []model.SearchHit) []string {
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Text)
	}
	return out
}

func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("owner isolation", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Insert(ctx,
			rec("alice", "s1", "", "d1", "alice chunk", 1, 0, 0),
			rec("bob", "s1", "", "d2", "bob chunk", 1, 0, 0),
		))
		hits, err := s.Search(ctx, []float32{1, 0, 0}, Filter{OwnerID: "alice", SubjectID: "s1"}, 10)
		require.NoError(t, err)
		require.Equal(t, []string{"alice chunk"}, texts(hits))
		hits, err = s.Search(ctx, []float32{1, 0, 0}, Filter{OwnerID: "bob", SubjectID: "s1"}, 10)
		require.NoError(t, err)
		require.Equal(t, []string{"bob chunk"}, texts(hits))
		hits, err = s.Search(ctx, []float32{1, 0, 0}, Filter{OwnerID: "alice"}, 10)
		require.NoError(t, err)
		require.Equal(t, []string{"alice chunk"}, texts(hits))
		require.Equal(t, "d1", hits[0].DocumentID)
		require.Equal(t, "d1", hits[0].Metadata["source"])
		require.InDelta(t, 1.0, hits[0].Score, 1e-4)
	})

	t.Run("empty owner rejected", func(t *testing.T) {
		s := open(t)
		_, err := s.Search(ctx, []float32{1, 0, 0}, Filter{}, 10)
		require.ErrorIs(t, err, ErrOwnerRequired)
	})

	t.Run("ordered by similarity", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Insert(ctx,
			rec("u", "", "", "d1", "far", 0, 1, 0),
			rec("u", "", "", "d1", "near", 1, 0.1, 0),
			rec("u", "", "", "d1", "mid", 1, 1, 0),
		))
		hits, err := s.Search(ctx, []float32{1, 0, 0}, Filter{OwnerID: "u"}, 2)
		require.NoError(t, err)
		require.Equal(t, []string{"near", "mid"}, texts(hits))
		require.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
	})

	t.Run("ties keep insertion order", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Insert(ctx, rec("u", "", "", "d1", "first", 0, 0, 1)))
		require.NoError(t, s.Insert(ctx, rec("u", "", "", "d2", "second", 0, 0, 1)))
		require.NoError(t, s.Insert(ctx, rec("u", "", "", "d3", "third", 0, 0, 1)))
		hits, err := s.Search(ctx, []float32{0, 0, 1}, Filter{OwnerID: "u"}, 3)
		require.NoError(t, err)
		require.Equal(t, []string{"first", "second", "third"}, texts(hits))
	})

	t.Run("document ids override scope", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Insert(ctx,
			rec("u", "math", "algebra", "d1", "in scope", 1, 0, 0),
			rec("u", "bio", "", "d2", "pinned", 1, 0, 0),
		))
		hits, err := s.Search(ctx, []float32{1, 0, 0}, Filter{OwnerID: "u", SubjectID: "math", DocumentIDs: []string{"d2"}}, 10)
		require.NoError(t, err)
		require.Equal(t, []string{"pinned"}, texts(hits))

		hits, err = s.Search(ctx, []float32{1, 0, 0}, Filter{OwnerID: "u", SubjectID: "math", TopicID: "algebra"}, 10)
		require.NoError(t, err)
		require.Equal(t, []string{"in scope"}, texts(hits))
	})

	t.Run("delete by document and scope", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Insert(ctx,
			rec("u", "math", "algebra", "d1", "a", 1, 0, 0),
			rec("u", "math", "", "d2", "b", 1, 0, 0),
			rec("u", "bio", "cells", "d3", "c", 1, 0, 0),
		))
		require.NoError(t, s.DeleteByDocument(ctx, "d2"))
		hits, err := s.Search(ctx, []float32{1, 0, 0}, Filter{OwnerID: "u"}, 10)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"a", "c"}, texts(hits))

		require.NoError(t, s.DeleteByScope(ctx, "cells"))
		hits, err = s.Search(ctx, []float32{1, 0, 0}, Filter{OwnerID: "u"}, 10)
		require.NoError(t, err)
		require.Equal(t, []string{"a"}, texts(hits))

		require.NoError(t, s.DeleteByScope(ctx, "math"))
		hits, err = s.Search(ctx, []float32{1, 0, 0}, Filter{OwnerID: "u"}, 10)
		require.NoError(t, err)
		require.Empty(t, hits)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		s := open(t)
		err := s.Insert(ctx, rec("u", "", "", "d1", "x", 1, 0))
		require.ErrorIs(t, err, ErrDimension)
	})
}

func TestSqliteStore(t *testing.T) {
	runStoreSuite(t, newSqlite)
}

func TestSqliteRecreatesMissingCollection(t *testing.T) {
	ctx := context.Background()
	s := newSqlite(t)
	require.NoError(t, s.Insert(ctx, rec("u", "", "", "d1", "x", 1, 0, 0)))
	require.NoError(t, s.DropCollection(ctx, "test_sources"))

	hits, err := s.Search(ctx, []float32{1, 0, 0}, Filter{OwnerID: "u"}, 5)
	require.NoError(t, err)
	require.Empty(t, hits)
	require.NoError(t, s.Insert(ctx, rec("u", "", "", "d1", "y", 1, 0, 0)))
}

func TestEnsureCollectionIdempotent(t *testing.T) {
	s := newSqlite(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.EnsureCollection(context.Background(), "test_sources", testDim))
	}
}

func TestValidateCollection(t *testing.T) {
	require.NoError(t, ValidateCollection("learnability_sources"))
	for _, name := range []string{"", "1abc", "drop table;", "a-b"} {
		require.ErrorIs(t, ValidateCollection(name), ErrInvalidCollection, name)
	}
	_, err := New(Deps{}, config.VectorStoreConfig{Type: "sqlite", Collection: "bad name", Dimension: 3})
	require.Error(t, err)
	_, err = New(Deps{}, config.VectorStoreConfig{Type: "nope", Collection: "ok", Dimension: 3})
	require.Error(t, err)
}

func TestFilterEffective(t *testing.T) {
	f := Filter{OwnerID: "u", SubjectID: "s", TopicID: "t", DocumentIDs: []string{"d"}}
	require.Equal(t, Filter{OwnerID: "u", DocumentIDs: []string{"d"}}, f.Effective())
	f.DocumentIDs = nil
	require.Equal(t, Filter{OwnerID: "u", SubjectID: "s", TopicID: "t"}, f.Effective())
}

func TestCosine(t *testing.T) {
	require.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-6)
	require.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	require.Zero(t, cosine([]float32{0, 0}, []float32{1, 1}))
	require.Equal(t, []float32{1.5, -2}, blobToVector(vectorToBlob([]float32{1.5, -2})))
}

// runCrowdedOwner fills the collection with another owner's rows, all
// closer to the query than the searching owner's own rows.
func runCrowdedOwner(t *testing.T, s Store) {
	ctx := context.Background()
	const foreign = 3000
	batch := make([]model.VectorRecord, 0, 500)
	for i := 0; i < foreign; i++ {
		batch = append(batch, rec("bob", "s1", "", fmt.Sprintf("b%d", i%50), "bob", 1, float32(i%97)/1000, 0))
		if len(batch) == cap(batch) {
			require.NoError(t, s.Insert(ctx, batch...))
			batch = batch[:0]
		}
	}
	require.NoError(t, s.Insert(ctx, batch...))
	require.NoError(t, s.Insert(ctx,
		rec("alice", "s1", "", "a1", "alice 1", 0.2, 1, 0),
		rec("alice", "s1", "", "a2", "alice 2", 0.1, 1, 0),
		rec("alice", "s1", "", "a2", "alice 3", 0, 1, 0.3),
	))

	hits, err := s.Search(ctx, []float32{1, 0, 0}, Filter{OwnerID: "alice", SubjectID: "s1"}, 3)
	require.NoError(t, err)
	require.Equal(t, []string{"alice 1", "alice 2", "alice 3"}, texts(hits))

	hits, err = s.Search(ctx, []float32{1, 0, 0}, Filter{OwnerID: "alice", DocumentIDs: []string{"a2"}}, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"alice 2", "alice 3"}, texts(hits))
}

func TestSqliteCrowdedOwner(t *testing.T) {
	runCrowdedOwner(t, newSqlite(t))
}

func TestPgvectorStore(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	open := func(t *testing.T) Store {
		name := fmt.Sprintf("test_vec_%d", time.Now().UnixNano())
		s, err := New(Deps{DB: conn}, config.VectorStoreConfig{Type: "pgvector", Collection: name, Dimension: testDim})
		require.NoError(t, err)
		require.NoError(t, s.EnsureCollection(context.Background(), name, testDim))
		t.Cleanup(func() { _ = s.DropCollection(context.Background(), name) })
		return s
	}
	runStoreSuite(t, open)
	t.Run("crowded owner", func(t *testing.T) {
		runCrowdedOwner(t, open(t))
	})
}

func TestSupportsIterativeScan(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"0.7.4", false},
		{"0.8.0", true},
		{"0.10.1", true},
		{"1.0", true},
		{"garbage", false},
		{"", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, supportsIterativeScan(tt.version), tt.version)
	}
	require.Len(t, scanSettings(true), 2)
	require.Equal(t, []string{"SET LOCAL hnsw.ef_search = 1000"}, scanSettings(false))
}

func TestSortHitsByScore(t *testing.T) {
	hits := []model.SearchHit{
		{Text: "late tie", Score: 0.9},
		{Text: "low", Score: 0.1},
		{Text: "early tie", Score: 0.9},
		{Text: "top", Score: 0.95},
	}
	ids := []int64{30, 5, 10, 40}
	sortHitsByScore(hits, ids)
	require.Equal(t, []string{"top", "early tie", "late tie", "low"}, texts(hits))
	require.Equal(t, []int64{40, 10, 30, 5}, ids)
}
