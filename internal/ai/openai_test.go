package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAICompatGenerateAndEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/chat/completions":
			var req chatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "m1", req.Model)
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  hi there  "}}]}`))
		case "/embeddings":
			var req embedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, 3, req.Dimensions)
			_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	args := map[string]interface{}{"api_key": "key", "base_url": srv.URL, "dimensions": 3}
	gen, err := NewProvider("openai", args)
	require.NoError(t, err)
	text, err := NewGenerator(gen, "m1").Generate(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, "hi there", text)

	emb, err := NewEmbedProvider("OpenAI", args)
	require.NoError(t, err)
	vec, err := NewEmbedder(emb, "e1").Embed(context.Background(), "hello", TaskRetrievalQuery)
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOpenAICompatErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := NewProvider("openrouter", map[string]interface{}{"api_key": "key", "base_url": srv.URL})
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), "m", "hello")
	require.Error(t, err)

	p, err = NewProvider("openai", map[string]interface{}{})
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), "m", "hello")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestUnknownProvider(t *testing.T) {
	_, err := NewProvider("nope", nil)
	require.Error(t, err)
	_, err = NewEmbedProvider("openrouter", map[string]interface{}{})
	require.Error(t, err)
}
