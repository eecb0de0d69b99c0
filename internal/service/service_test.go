package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/0xteamCookie/LearnAbility-backend/internal/chunker"
	"github.com/0xteamCookie/LearnAbility-backend/internal/config"
	"github.com/0xteamCookie/LearnAbility-backend/internal/extractor"
	"github.com/0xteamCookie/LearnAbility-backend/internal/ingest"
	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
	appErr "github.com/0xteamCookie/LearnAbility-backend/internal/pkg/errors"
	"github.com/0xteamCookie/LearnAbility-backend/internal/retrieval"
	"github.com/0xteamCookie/LearnAbility-backend/internal/testutil"
	"github.com/0xteamCookie/LearnAbility-backend/internal/vectorstore"
)

type env struct {
	docs      *testutil.MemoryDocumentRepo
	scopes    *testutil.MemoryScopeRepo
	files     *testutil.MemoryFileStore
	embedder  *testutil.FakeEmbedder
	generator *testutil.FakeGenerator
	vectors   vectorstore.Store
	pool      *ingest.Pool

	documents *DocumentService
	sessions  *SessionService
	scopeSvc  *ScopeService
	query     *QueryService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithExtractor(t, extractor.NewRegistry(extractor.NewPlaintext(), extractor.NewMarkdown()))
}

func newEnvWithExtractor(t *testing.T, ext extractor.Extractor) *env {
	t.Helper()
	vs, err := vectorstore.New(vectorstore.Deps{}, config.VectorStoreConfig{
		Type: "sqlite", Collection: "service_test", Dimension: testutil.FakeDimension,
	})
	require.NoError(t, err)
	require.NoError(t, vs.EnsureCollection(context.Background(), "service_test", testutil.FakeDimension))

	e := &env{
		docs:      testutil.NewMemoryDocumentRepo(),
		scopes:    testutil.NewMemoryScopeRepo(),
		files:     testutil.NewMemoryFileStore(),
		embedder:  &testutil.FakeEmbedder{},
		generator: &testutil.FakeGenerator{Answer: "Plants make sugar from light."},
		vectors:   vs,
	}
	coord := ingest.NewCoordinator(e.docs, e.files,
		ext,
		chunker.New(chunker.WithMaxSize(80), chunker.WithOverlap(10)),
		e.embedder, vs)
	e.pool = ingest.NewPool(context.Background(), 2, coord.Process)
	t.Cleanup(func() {
		_ = e.pool.Close(context.Background())
		_ = vs.Close()
	})

	e.documents = NewDocumentService(e.docs, e.scopes, e.files, vs, e.pool)
	e.sessions = NewSessionService(e.docs)
	e.scopeSvc = NewScopeService(e.scopes, e.docs, e.files, vs)
	e.query = NewQueryService(retrieval.NewPlanner(e.embedder, vs, 2), e.generator)
	return e
}

func textFile(name, body string) UploadFile {
	return UploadFile{
		Name:     name,
		MimeType: "text/plain",
		Size:     int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewBufferString(body)), nil
		},
	}
}

func (e *env) waitSession(t *testing.T, user, session string) *model.SessionStatus {
	t.Helper()
	var st *model.SessionStatus
	require.Eventually(t, func() bool {
		var err error
		st, err = e.sessions.Status(context.Background(), user, session)
		return err == nil && st.IsComplete
	}, 5*time.Second, 10*time.Millisecond)
	return st
}

func TestSubmitFilesIngestsInBackground(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res, err := e.documents.SubmitFiles(ctx, "alice", SubmitFilesRequest{Files: []UploadFile{
		textFile("photosynthesis.txt", "Photosynthesis turns light into sugar inside chloroplasts."),
		textFile("cells.md", "# Cells\n\nMitochondria release energy from sugar."),
	}})
	require.NoError(t, err)
	require.Len(t, res.DocumentIDs, 2)
	require.True(t, strings.HasPrefix(res.SessionID, "session-"))

	st := e.waitSession(t, "alice", res.SessionID)
	require.Equal(t, 2, st.Total)
	require.Equal(t, 2, st.Completed)
	require.Len(t, st.Documents, 2)

	doc, err := e.documents.Get(ctx, "alice", res.DocumentIDs[0])
	require.NoError(t, err)
	require.Equal(t, model.TypeDocs, doc.Type)
	require.Equal(t, "txt", doc.FileType)
	require.Contains(t, doc.Content, "chloroplasts")

	_, err = e.documents.Get(ctx, "bob", res.DocumentIDs[0])
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestSubmitFilesStoreFailure(t *testing.T) {
	e := newEnv(t)
	broken := UploadFile{Name: "broken.pdf", Open: func() (io.ReadCloser, error) { return nil, errors.New("disk gone") }}
	res, err := e.documents.SubmitFiles(context.Background(), "alice", SubmitFilesRequest{
		SessionID: "s1",
		Files:     []UploadFile{broken, textFile("ok.txt", "Osmosis moves water across membranes.")},
	})
	require.NoError(t, err)
	require.Equal(t, "s1", res.SessionID)

	st := e.waitSession(t, "alice", "s1")
	require.Equal(t, 1, st.Completed)
	require.Equal(t, 1, st.Errored)

	doc, err := e.documents.Get(context.Background(), "alice", res.DocumentIDs[0])
	require.NoError(t, err)
	require.Equal(t, model.StatusError, doc.Status)
	require.True(t, strings.HasPrefix(doc.Content, "Error processing: "))
	require.Equal(t, model.TypePDF, doc.Type)
}

func TestSubmitFilesValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.documents.SubmitFiles(ctx, "alice", SubmitFilesRequest{})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = e.documents.SubmitFiles(ctx, "alice", SubmitFilesRequest{SubjectID: "nope", Files: []UploadFile{textFile("a.txt", "x")}})
	require.ErrorIs(t, err, appErr.ErrNotFound)

	subject, err := e.scopeSvc.CreateSubject(ctx, "alice", "Biology", "")
	require.NoError(t, err)
	topic, err := e.scopeSvc.CreateTopic(ctx, "alice", subject.ID, "Cells")
	require.NoError(t, err)

	res, err := e.documents.SubmitFiles(ctx, "alice", SubmitFilesRequest{TopicID: topic.ID, Files: []UploadFile{textFile("a.txt", "cells")}})
	require.NoError(t, err)
	doc, err := e.documents.Get(ctx, "alice", res.DocumentIDs[0])
	require.NoError(t, err)
	require.Equal(t, subject.ID, doc.SubjectID)
	require.Equal(t, topic.ID, doc.TopicID)

	_, err = e.documents.SubmitFiles(ctx, "bob", SubmitFilesRequest{TopicID: topic.ID, Files: []UploadFile{textFile("a.txt", "x")}})
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestSubmitContent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tests := []struct {
		name   string
		req    SubmitContentRequest
		err    error
		status model.DocumentStatus
	}{
		{name: "missing type", req: SubmitContentRequest{Source: "notes"}, err: appErr.ErrInvalid},
		{name: "missing source", req: SubmitContentRequest{Type: "TEXT"}, err: appErr.ErrInvalid},
		{name: "unknown type", req: SubmitContentRequest{Type: "SPREADSHEET", Source: "x"}, err: appErr.ErrInvalid},
		{name: "with content", req: SubmitContentRequest{Type: "text", Source: "notes", Content: "Cells divide."}, status: model.StatusCompleted},
		{name: "without content", req: SubmitContentRequest{Type: "VIDEO", Source: "https://example.com/v"}, status: model.StatusReady},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := e.documents.SubmitContent(ctx, "alice", tt.req)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.status, doc.Status)
			require.True(t, strings.HasPrefix(doc.SessionID, "session-"))
		})
	}
}

func TestReingest(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res, err := e.documents.SubmitFiles(ctx, "alice", SubmitFilesRequest{SessionID: "s", Files: []UploadFile{textFile("a.txt", "Enzymes speed up reactions.")}})
	require.NoError(t, err)
	e.waitSession(t, "alice", "s")
	id := res.DocumentIDs[0]

	require.NoError(t, e.documents.Reingest(ctx, "alice", id))
	e.waitSession(t, "alice", "s")
	doc, err := e.documents.Get(ctx, "alice", id)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, doc.Status)

	hits, err := e.vectors.Search(ctx, testutil.FakeVector("enzymes"), vectorstore.Filter{OwnerID: "alice"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	text, err := e.documents.SubmitContent(ctx, "alice", SubmitContentRequest{Type: "TEXT", Source: "n", Content: "c"})
	require.NoError(t, err)
	require.ErrorIs(t, e.documents.Reingest(ctx, "alice", text.ID), appErr.ErrInvalid)
	require.ErrorIs(t, e.documents.Reingest(ctx, "bob", id), appErr.ErrNotFound)

	require.NoError(t, e.docs.MarkProcessing(ctx, "alice", id, 1))
	require.ErrorIs(t, e.documents.Reingest(ctx, "alice", id), appErr.ErrConflict)
}

func TestDeleteDocument(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res, err := e.documents.SubmitFiles(ctx, "alice", SubmitFilesRequest{SessionID: "s", Files: []UploadFile{textFile("a.txt", "Neurons carry signals.")}})
	require.NoError(t, err)
	e.waitSession(t, "alice", "s")
	id := res.DocumentIDs[0]
	doc, err := e.docs.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, e.files.Has(doc.FileKey))

	require.NoError(t, e.documents.Delete(ctx, "alice", id))
	require.False(t, e.files.Has(doc.FileKey))
	hits, err := e.vectors.Search(ctx, testutil.FakeVector("neurons"), vectorstore.Filter{OwnerID: "alice"}, 10)
	require.NoError(t, err)
	require.Empty(t, hits)
	require.ErrorIs(t, e.documents.Delete(ctx, "alice", id), appErr.ErrNotFound)
}

func TestSessionStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.sessions.Status(ctx, "alice", "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = e.sessions.Status(ctx, "alice", " ")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	for i, status := range []model.DocumentStatus{model.StatusProcessing, model.StatusCompleted, model.StatusError, model.StatusReady} {
		require.NoError(t, e.docs.Create(ctx, &model.Document{
			ID: string(rune('a' + i)), UserID: "alice", SessionID: "s1", Status: status, Type: model.TypeText,
		}))
	}
	st, err := e.sessions.Status(ctx, "alice", "s1")
	require.NoError(t, err)
	require.Equal(t, 4, st.Total)
	require.Equal(t, 1, st.Processing)
	require.Equal(t, 1, st.Completed)
	require.Equal(t, 1, st.Errored)
	require.Equal(t, 1, st.Ready)
	require.False(t, st.IsComplete)

	require.NoError(t, e.docs.Finish(ctx, "a", model.StatusCompleted, "", 2))
	st, err = e.sessions.Status(ctx, "alice", "s1")
	require.NoError(t, err)
	require.True(t, st.IsComplete)

	_, err = e.sessions.Status(ctx, "bob", "s1")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestDeleteScopeCascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	subject, err := e.scopeSvc.CreateSubject(ctx, "alice", "Physics", "")
	require.NoError(t, err)
	topic, err := e.scopeSvc.CreateTopic(ctx, "alice", subject.ID, "Optics")
	require.NoError(t, err)
	res, err := e.documents.SubmitFiles(ctx, "alice", SubmitFilesRequest{
		SessionID: "s", TopicID: topic.ID,
		Files: []UploadFile{textFile("lens.txt", "Lenses refract light.")},
	})
	require.NoError(t, err)
	e.waitSession(t, "alice", "s")

	require.NoError(t, e.scopeSvc.DeleteTopic(ctx, "alice", topic.ID))
	hits, err := e.vectors.Search(ctx, testutil.FakeVector("lenses"), vectorstore.Filter{OwnerID: "alice"}, 10)
	require.NoError(t, err)
	require.Empty(t, hits)
	_, err = e.documents.Get(ctx, "alice", res.DocumentIDs[0])
	require.ErrorIs(t, err, appErr.ErrNotFound)

	topics, err := e.scopeSvc.ListTopics(ctx, "alice", subject.ID)
	require.NoError(t, err)
	require.Empty(t, topics)
	require.NoError(t, e.scopeSvc.DeleteSubject(ctx, "alice", subject.ID))
	require.ErrorIs(t, e.scopeSvc.DeleteSubject(ctx, "alice", subject.ID), appErr.ErrNotFound)

	_, err = e.scopeSvc.CreateSubject(ctx, "alice", " ", "")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestDeleteScopeRefusedWhileIngesting(t *testing.T) {
	gate := testutil.NewGateExtractor(extractor.NewRegistry(extractor.NewPlaintext()))
	e := newEnvWithExtractor(t, gate)
	ctx := context.Background()
	subject, err := e.scopeSvc.CreateSubject(ctx, "alice", "Biology", "")
	require.NoError(t, err)
	topic, err := e.scopeSvc.CreateTopic(ctx, "alice", subject.ID, "Plants")
	require.NoError(t, err)
	res, err := e.documents.SubmitFiles(ctx, "alice", SubmitFilesRequest{
		SessionID: "s", TopicID: topic.ID,
		Files: []UploadFile{textFile("a.txt", "Photosynthesis uses light")},
	})
	require.NoError(t, err)

	select {
	case <-gate.Entered():
	case <-time.After(5 * time.Second):
		t.Fatal("ingestion never started")
	}
	require.ErrorIs(t, e.scopeSvc.DeleteSubject(ctx, "alice", subject.ID), appErr.ErrConflict)
	require.ErrorIs(t, e.scopeSvc.DeleteTopic(ctx, "alice", topic.ID), appErr.ErrConflict)
	_, err = e.documents.Get(ctx, "alice", res.DocumentIDs[0])
	require.NoError(t, err)

	gate.Release()
	st := e.waitSession(t, "alice", "s")
	require.Equal(t, 1, st.Completed)

	require.NoError(t, e.scopeSvc.DeleteSubject(ctx, "alice", subject.ID))
	hits, err := e.vectors.Search(ctx, testutil.FakeVector("photosynthesis"), vectorstore.Filter{OwnerID: "alice"}, 10)
	require.NoError(t, err)
	require.Empty(t, hits)
	_, err = e.documents.Get(ctx, "alice", res.DocumentIDs[0])
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestQueryAnswer(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.documents.SubmitFiles(ctx, "alice", SubmitFilesRequest{SessionID: "s", Files: []UploadFile{
		textFile("plants.txt", "Chlorophyll captures light for photosynthesis."),
	}})
	require.NoError(t, err)
	e.waitSession(t, "alice", "s")

	ans, err := e.query.Answer(ctx, "alice", QueryRequest{Query: "how does chlorophyll use light"})
	require.NoError(t, err)
	require.Equal(t, "Plants make sugar from light.", ans.Answer)
	require.NotEmpty(t, ans.Sources)
	require.Greater(t, ans.RelevanceScore, float32(0))
	require.Contains(t, e.generator.Prompt(), "Chlorophyll captures light")

	// another owner gets no context and the general-knowledge prompt
	ans, err = e.query.Answer(ctx, "bob", QueryRequest{Query: "how does chlorophyll use light"})
	require.NoError(t, err)
	require.Empty(t, ans.Sources)
	require.Zero(t, ans.RelevanceScore)
	require.Contains(t, e.generator.Prompt(), "general knowledge")
}

func TestQueryDegradesAndFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.query.Answer(ctx, "alice", QueryRequest{Query: "  "})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	e.embedder.Err = errors.New("embedding outage")
	ans, err := e.query.Answer(ctx, "alice", QueryRequest{Query: "what is osmosis"})
	require.NoError(t, err)
	require.Empty(t, ans.Sources)

	e.generator.Err = errors.New("model down")
	_, err = e.query.Answer(ctx, "alice", QueryRequest{Query: "what is osmosis"})
	require.ErrorIs(t, err, appErr.ErrUnavailable)
}
