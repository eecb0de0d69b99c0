package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/0xteamCookie/LearnAbility-backend/internal/ai"
	"github.com/0xteamCookie/LearnAbility-backend/internal/chunker"
	"github.com/0xteamCookie/LearnAbility-backend/internal/config"
	"github.com/0xteamCookie/LearnAbility-backend/internal/db"
	"github.com/0xteamCookie/LearnAbility-backend/internal/embedcache"
	"github.com/0xteamCookie/LearnAbility-backend/internal/extractor"
	"github.com/0xteamCookie/LearnAbility-backend/internal/filestore"
	"github.com/0xteamCookie/LearnAbility-backend/internal/ingest"
	"github.com/0xteamCookie/LearnAbility-backend/internal/observability"
	"github.com/0xteamCookie/LearnAbility-backend/internal/repo"
	"github.com/0xteamCookie/LearnAbility-backend/internal/vectorstore"
)

// app holds the components shared by every subcommand.
type app struct {
	cfg        *config.Config
	db         *sql.DB
	tracer     *observability.TracerProvider
	ai         *ai.Clients
	docs       *repo.DocumentRepo
	scopes     *repo.ScopeRepo
	embedCache *repo.EmbeddingCacheRepo
	files      filestore.Store
	vectors    vectorstore.Store
	coord      *ingest.Coordinator
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	return config.Load(path)
}

func bootstrap(ctx context.Context, configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		cfg.LogConfig.FileCount,
		cfg.LogConfig.FileSize,
		cfg.LogConfig.KeepDays,
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(ctx).Info("config loaded", zap.String("config", configPath))

	tp, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	clients, err := ai.Build(cfg.AI, cfg.VectorStore.Dimension)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init ai: %w", err)
	}
	files, err := filestore.New(cfg.FileStore)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init file store: %w", err)
	}
	vectors, err := vectorstore.New(vectorstore.Deps{DB: conn}, cfg.VectorStore)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init vector store: %w", err)
	}

	a := &app{
		cfg:        cfg,
		db:         conn,
		tracer:     tp,
		ai:         clients,
		docs:       repo.NewDocumentRepo(conn),
		scopes:     repo.NewScopeRepo(conn),
		embedCache: repo.NewEmbeddingCacheRepo(conn),
		files:      files,
		vectors:    vectors,
	}

	handlers := []extractor.Handler{extractor.NewPlaintext(), extractor.NewMarkdown()}
	if clients.Reader != nil {
		handlers = append(handlers, extractor.NewModel(clients.Reader))
	}
	a.coord = ingest.NewCoordinator(
		a.docs,
		files,
		extractor.NewRegistry(handlers...),
		chunker.New(
			chunker.WithMaxSize(cfg.Ingest.ChunkSize),
			chunker.WithOverlap(cfg.Ingest.ChunkOverlap),
			chunker.WithSeparators(cfg.Ingest.Separators),
		),
		a.ingestEmbedder(),
		vectors,
	)
	return a, nil
}

// ingestEmbedder layers the caches over the model client. Query
// embeddings use the bare client.
func (a *app) ingestEmbedder() ai.IEmbedder {
	e := a.ai.Embedder
	if a.cfg.EmbedCache.DBEnabled {
		e = embedcache.WrapDB(e, a.embedCache)
	}
	if a.cfg.EmbedCache.LRUSize > 0 {
		e = embedcache.WrapLRU(e, a.cfg.EmbedCache.LRUSize, time.Duration(a.cfg.EmbedCache.LRUTTLSeconds)*time.Second)
	}
	return e
}

func (a *app) close(ctx context.Context) {
	logger := logutil.GetLogger(ctx)
	if err := a.vectors.Close(); err != nil {
		logger.Warn("close vector store failed", zap.Error(err))
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		logger.Warn("shutdown tracing failed", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		logger.Warn("close db failed", zap.Error(err))
	}
}
