package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/0xteamCookie/LearnAbility-backend/internal/handler"
	"github.com/0xteamCookie/LearnAbility-backend/internal/ingest"
	"github.com/0xteamCookie/LearnAbility-backend/internal/job"
	"github.com/0xteamCookie/LearnAbility-backend/internal/middleware"
	"github.com/0xteamCookie/LearnAbility-backend/internal/retrieval"
	"github.com/0xteamCookie/LearnAbility-backend/internal/schedule"
	"github.com/0xteamCookie/LearnAbility-backend/internal/service"
)

const shutdownTimeout = 30 * time.Second

func runServer(a *app) error {
	cfg := a.cfg
	logger := logutil.GetLogger(context.Background())
	logger.Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", a.files.Type()),
		zap.String("vector_store", a.vectors.Type()),
		zap.String("collection", cfg.VectorStore.Collection),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.vectors.EnsureCollection(ctx, cfg.VectorStore.Collection, cfg.VectorStore.Dimension); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	pool := ingest.NewPool(context.Background(), cfg.Ingest.Workers, a.coord.Process)
	planner := retrieval.NewPlanner(a.ai.Embedder, a.vectors, cfg.Retrieval.TopK)

	documentService := service.NewDocumentService(a.docs, a.scopes, a.files, a.vectors, pool)
	sessionService := service.NewSessionService(a.docs)
	scopeService := service.NewScopeService(a.scopes, a.docs, a.files, a.vectors)
	queryService := service.NewQueryService(planner, a.ai.Generator)

	deps := handler.RouterDeps{
		Documents: handler.NewDocumentHandler(documentService, cfg.Ingest.MaxUploadMB*1024*1024),
		Sessions:  handler.NewSessionHandler(sessionService),
		Queries:   handler.NewQueryHandler(queryService),
		Scopes:    handler.NewScopeHandler(scopeService),
		JWTSecret: []byte(cfg.JWTSecret),
		RateLimit: cfg.RateLimit,
	}

	sched := schedule.New()
	if err := sched.Add(job.NewStaleDocumentJob(a.docs, pool, cfg.Ingest.StaleAfterMinutes), cfg.Schedule.StaleSweep); err != nil {
		return err
	}
	if cfg.EmbedCache.DBEnabled {
		if err := sched.Add(job.NewEmbeddingCacheCleanupJob(a.embedCache, cfg.EmbedCache.MaxAgeDays), cfg.Schedule.EmbedCacheCleanup); err != nil {
			return err
		}
	}
	sched.Start(ctx)

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logger.Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("server stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler stop timed out", zap.Error(err))
	}
	// Tasks cut off here stay PROCESSING until the stale sweep fails them.
	if err := pool.Close(shutdownCtx); err != nil {
		logger.Warn("ingestion pool did not drain", zap.Error(err))
	}
	a.close(shutdownCtx)
	return nil
}
