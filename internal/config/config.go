package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "LEARNABILITY"

// MaxChunkSize is bounded by the width of the vector text column.
const MaxChunkSize = 4000

type Config struct {
	Port          int               `mapstructure:"port"`
	JWTSecret     string            `mapstructure:"jwt_secret"`
	CORSAllowlist []string          `mapstructure:"cors_allowlist"`
	LogConfig     LogConfig         `mapstructure:"log_config"`
	Database      DatabaseConfig    `mapstructure:"database"`
	FileStore     FileStoreConfig   `mapstructure:"file_store"`
	VectorStore   VectorStoreConfig `mapstructure:"vector_store"`
	AI            AIConfig          `mapstructure:"ai"`
	Ingest        IngestConfig      `mapstructure:"ingest"`
	Retrieval     RetrievalConfig   `mapstructure:"retrieval"`
	EmbedCache    EmbedCacheConfig  `mapstructure:"embed_cache"`
	Schedule      ScheduleConfig    `mapstructure:"schedule"`
	Tracing       TracingConfig     `mapstructure:"tracing"`
	RateLimit     RateLimitConfig   `mapstructure:"rate_limit"`
}

type LogConfig struct {
	File      string `mapstructure:"file"`
	Level     string `mapstructure:"level"`
	FileCount int    `mapstructure:"file_count"`
	FileSize  int    `mapstructure:"file_size"`
	KeepDays  int    `mapstructure:"keep_days"`
	Console   bool   `mapstructure:"console"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	DSN      string `mapstructure:"dsn"`
}

type FileStoreConfig struct {
	Type string                 `mapstructure:"type"`
	Data map[string]interface{} `mapstructure:"data"`
}

type VectorStoreConfig struct {
	Type       string                 `mapstructure:"type"`
	Collection string                 `mapstructure:"collection"`
	Dimension  int                    `mapstructure:"dimension"`
	Data       map[string]interface{} `mapstructure:"data"`
}

type AIProviderConfig struct {
	Name string                 `mapstructure:"name"`
	Type string                 `mapstructure:"type"`
	Data map[string]interface{} `mapstructure:"data"`
}

// ModelRef points at a model served by one of the configured providers.
type ModelRef struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
}

type AIConfig struct {
	Providers  []AIProviderConfig `mapstructure:"providers"`
	Generator  []ModelRef         `mapstructure:"generator"`
	Embedder   []ModelRef         `mapstructure:"embedder"`
	Extractor  ModelRef           `mapstructure:"extractor"`
	Timeout    int                `mapstructure:"timeout"`
	EmbedRPS   float64            `mapstructure:"embed_rps"`
	EmbedBurst int                `mapstructure:"embed_burst"`
}

type IngestConfig struct {
	Workers           int      `mapstructure:"workers"`
	ChunkSize         int      `mapstructure:"chunk_size"`
	ChunkOverlap      int      `mapstructure:"chunk_overlap"`
	Separators        []string `mapstructure:"separators"`
	MaxUploadMB       int64    `mapstructure:"max_upload_mb"`
	StaleAfterMinutes int      `mapstructure:"stale_after_minutes"`
}

type RetrievalConfig struct {
	TopK int `mapstructure:"top_k"`
}

type EmbedCacheConfig struct {
	LRUSize       int  `mapstructure:"lru_size"`
	LRUTTLSeconds int  `mapstructure:"lru_ttl_seconds"`
	DBEnabled     bool `mapstructure:"db_enabled"`
	MaxAgeDays    int  `mapstructure:"max_age_days"`
}

type ScheduleConfig struct {
	EmbedCacheCleanup string `mapstructure:"embed_cache_cleanup"`
	StaleSweep        string `mapstructure:"stale_sweep"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// RateLimitConfig bounds how often one owner may call the model-backed
// endpoints. A non-positive RPS disables limiting.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("log_config.level", "info")
	v.SetDefault("log_config.console", true)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("file_store.type", "local")
	v.SetDefault("vector_store.type", "pgvector")
	v.SetDefault("vector_store.collection", "learnability_sources")
	v.SetDefault("vector_store.dimension", 768)
	v.SetDefault("ai.timeout", 60)
	v.SetDefault("ai.embed_burst", 1)
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.chunk_size", 2000)
	v.SetDefault("ingest.chunk_overlap", 200)
	v.SetDefault("ingest.separators", []string{"\n\n", "\n", " ", ""})
	v.SetDefault("ingest.max_upload_mb", 20)
	v.SetDefault("ingest.stale_after_minutes", 30)
	v.SetDefault("retrieval.top_k", 2)
	v.SetDefault("embed_cache.lru_size", 1024)
	v.SetDefault("embed_cache.lru_ttl_seconds", 3600)
	v.SetDefault("embed_cache.max_age_days", 30)
	v.SetDefault("schedule.embed_cache_cleanup", "0 3 * * *")
	v.SetDefault("schedule.stale_sweep", "*/5 * * * *")
	v.SetDefault("tracing.service_name", "learnability")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("rate_limit.rps", 2.0)
	v.SetDefault("rate_limit.burst", 5)
}

// Load reads a JSON config file; LEARNABILITY_* environment variables
// override file values (nested keys joined by "_").
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("database.host or database.dsn is required")
	}
	if c.VectorStore.Dimension <= 0 {
		return fmt.Errorf("vector_store.dimension must be positive")
	}
	if c.VectorStore.Collection == "" {
		return fmt.Errorf("vector_store.collection is required")
	}
	if c.Ingest.ChunkSize <= 0 || c.Ingest.ChunkSize > MaxChunkSize {
		return fmt.Errorf("ingest.chunk_size must be in (0, %d]", MaxChunkSize)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be smaller than ingest.chunk_size")
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest.workers must be positive")
	}
	if len(c.AI.Embedder) == 0 {
		return fmt.Errorf("ai.embedder is required")
	}
	if len(c.AI.Generator) == 0 {
		return fmt.Errorf("ai.generator is required")
	}
	known := make(map[string]struct{}, len(c.AI.Providers))
	for _, p := range c.AI.Providers {
		if p.Name == "" || p.Type == "" {
			return fmt.Errorf("ai.providers entries need name and type")
		}
		known[p.Name] = struct{}{}
	}
	refs := append(append([]ModelRef{}, c.AI.Generator...), c.AI.Embedder...)
	if c.AI.Extractor.Provider != "" {
		refs = append(refs, c.AI.Extractor)
	}
	for _, ref := range refs {
		if _, ok := known[ref.Provider]; !ok {
			return fmt.Errorf("ai provider %q is not configured", ref.Provider)
		}
		if ref.Model == "" {
			return fmt.Errorf("ai model for provider %q is required", ref.Provider)
		}
	}
	return nil
}
