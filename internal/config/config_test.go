package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const baseConfig = `{
	"jwt_secret": "secret",
	"database": {"host": "localhost", "user": "learn", "dbname": "learn"},
	"ai": {
		"providers": [{"name": "g", "type": "gemini", "data": {"api_key": "k"}}],
		"generator": [{"provider": "g", "model": "gemini-2.0-flash"}],
		"embedder": [{"provider": "g", "model": "text-embedding-004"}]
	}
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, baseConfig))
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, "pgvector", cfg.VectorStore.Type)
	require.Equal(t, "learnability_sources", cfg.VectorStore.Collection)
	require.Equal(t, 768, cfg.VectorStore.Dimension)
	require.Equal(t, 2000, cfg.Ingest.ChunkSize)
	require.Equal(t, 200, cfg.Ingest.ChunkOverlap)
	require.Equal(t, []string{"\n\n", "\n", " ", ""}, cfg.Ingest.Separators)
	require.Equal(t, 2, cfg.Retrieval.TopK)
	require.Equal(t, "local", cfg.FileStore.Type)
	require.Equal(t, "g", cfg.AI.Providers[0].Name)
	require.Equal(t, "k", cfg.AI.Providers[0].Data["api_key"])
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LEARNABILITY_PORT", "9090")
	t.Setenv("LEARNABILITY_RETRIEVAL_TOP_K", "5")
	cfg, err := Load(writeConfig(t, baseConfig))
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 5, cfg.Retrieval.TopK)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing secret", func(c *Config) { c.JWTSecret = "" }},
		{"missing database", func(c *Config) { c.Database = DatabaseConfig{} }},
		{"overlap too large", func(c *Config) { c.Ingest.ChunkOverlap = c.Ingest.ChunkSize }},
		{"chunk too large", func(c *Config) { c.Ingest.ChunkSize = MaxChunkSize + 1 }},
		{"unknown provider", func(c *Config) { c.AI.Generator[0].Provider = "missing" }},
		{"no embedder", func(c *Config) { c.AI.Embedder = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, baseConfig))
			require.NoError(t, err)
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
