package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	out string
	err error
}

func (s stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return s.out, s.err
}

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	s.calls++
	return s.vec, s.err
}

func (s *stubEmbedder) ModelName() string { return "stub" }

func TestGroupGeneratorFallback(t *testing.T) {
	g := NewGroupGenerator([]GeneratorEntry{
		{Name: "a", Generator: stubGenerator{err: errors.New("down")}},
		{Name: "b", Generator: stubGenerator{out: "ok"}},
	})
	out, err := g.Generate(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "ok", out)

	g = NewGroupGenerator([]GeneratorEntry{
		{Name: "a", Generator: stubGenerator{err: errors.New("down")}},
		{Name: "b", Generator: stubGenerator{err: errors.New("also down")}},
	})
	_, err = g.Generate(context.Background(), "p")
	require.EqualError(t, err, "generator b: also down")

	g = NewGroupGenerator([]GeneratorEntry{
		{Name: "blank", Generator: stubGenerator{out: "  \n"}},
		{Name: "none"},
		{Name: "real", Generator: stubGenerator{out: "answer"}},
	})
	out, err = g.Generate(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "answer", out)

	_, err = NewGroupGenerator([]GeneratorEntry{{Name: "a"}, {Name: "b"}}).Generate(context.Background(), "p")
	require.EqualError(t, err, "generator not configured")
}

func TestGroupEmbedderFallback(t *testing.T) {
	first := &stubEmbedder{err: errors.New("down")}
	second := &stubEmbedder{vec: []float32{1, 2}}
	e := NewGroupEmbedder([]EmbedderEntry{{Name: "x", Embedder: first}, {Name: "y", Embedder: second}}, 0)
	vec, err := e.Embed(context.Background(), "t", TaskRetrievalDocument)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2}, vec)
	require.Equal(t, 1, first.calls)
	require.Equal(t, "x|y", e.ModelName())
}

func TestGroupEmbedderSkipsWrongDimension(t *testing.T) {
	wide := &stubEmbedder{vec: []float32{1, 2, 3, 4}}
	fit := &stubEmbedder{vec: []float32{1, 2, 3}}
	e := NewGroupEmbedder([]EmbedderEntry{{Name: "wide", Embedder: wide}, {Name: "fit", Embedder: fit}}, 3)
	vec, err := e.Embed(context.Background(), "t", TaskRetrievalQuery)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3}, vec)
	require.Equal(t, 1, wide.calls)

	only := NewGroupEmbedder([]EmbedderEntry{{Name: "wide", Embedder: &stubEmbedder{vec: []float32{1}}}}, 3)
	_, err = only.Embed(context.Background(), "t", TaskRetrievalQuery)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestGroupStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	first := &stubEmbedder{err: context.Canceled}
	second := &stubEmbedder{vec: []float32{1}}
	e := NewGroupEmbedder([]EmbedderEntry{{Name: "x", Embedder: first}, {Name: "y", Embedder: second}}, 0)
	_, err := e.Embed(ctx, "t", TaskRetrievalQuery)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, second.calls)
}

func TestTimeoutGeneratorRejectsBlank(t *testing.T) {
	g := WrapTimeoutGenerator(stubGenerator{out: "  \n"}, time.Second)
	_, err := g.Generate(context.Background(), "p")
	require.Error(t, err)

	g = WrapTimeoutGenerator(stubGenerator{out: " answer "}, 0)
	out, err := g.Generate(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "answer", out)
}

func TestRateLimitEmbedderHonoursContext(t *testing.T) {
	inner := &stubEmbedder{vec: []float32{1}}
	e := WrapRateLimitEmbedder(inner, 0.001, 1)
	_, err := e.Embed(context.Background(), "a", "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = e.Embed(ctx, "b", "")
	require.Error(t, err)
	require.Equal(t, 1, inner.calls)
}

func TestBuildAnswerPrompt(t *testing.T) {
	p := BuildAnswerPrompt("what is x?", []string{"x is a letter", "x marks the spot"})
	require.Contains(t, p, "Context:\nx is a letter\n\nx marks the spot")
	require.True(t, strings.HasSuffix(p, "User Question: what is x?"))

	p = BuildAnswerPrompt("what is x?", nil)
	require.NotContains(t, p, "Context:")
	require.Contains(t, p, "general knowledge")
}
