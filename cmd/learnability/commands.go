package main

import (
	"context"
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/0xteamCookie/LearnAbility-backend/internal/ingest"
	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
	appErr "github.com/0xteamCookie/LearnAbility-backend/internal/pkg/errors"
	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/timeutil"
)

func ensureCollection(ctx context.Context, a *app, reset bool) error {
	name := a.cfg.VectorStore.Collection
	logger := logutil.GetLogger(ctx).With(zap.String("collection", name), zap.String("store", a.vectors.Type()))
	if reset {
		if err := a.vectors.DropCollection(ctx, name); err != nil {
			return fmt.Errorf("drop collection: %w", err)
		}
		logger.Info("collection dropped")
	}
	if err := a.vectors.EnsureCollection(ctx, name, a.cfg.VectorStore.Dimension); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	logger.Info("collection ready", zap.Int("dimension", a.cfg.VectorStore.Dimension))
	return nil
}

// reindex runs ingestion synchronously for each of the owner's
// file-backed documents that is not already being processed.
func reindex(ctx context.Context, a *app, owner, documentID string, out io.Writer) error {
	var docs []*model.Document
	if documentID != "" {
		doc, err := a.docs.GetByID(ctx, owner, documentID)
		if err != nil {
			return err
		}
		docs = []*model.Document{doc}
	} else {
		items, err := a.docs.ListFileBacked(ctx, owner)
		if err != nil {
			return err
		}
		docs = items
	}
	if len(docs) == 0 {
		_, err := fmt.Fprintln(out, "nothing to reindex")
		return err
	}

	logger := logutil.GetLogger(ctx).With(zap.String("user_id", owner))
	bar := progressbar.NewOptions(len(docs),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("reindexing"),
		progressbar.OptionShowCount(),
	)
	var completed, failed, skipped int
	for _, doc := range docs {
		if err := a.docs.MarkProcessing(ctx, owner, doc.ID, timeutil.NowUnix()); err != nil {
			if !appErr.IsConflict(err) {
				return err
			}
			logger.Warn("document busy, skipped", zap.String("document_id", doc.ID))
			skipped++
			_ = bar.Add(1)
			continue
		}
		a.coord.Process(ctx, ingest.Task{DocumentID: doc.ID, OwnerID: owner})
		after, err := a.docs.Get(ctx, doc.ID)
		if err != nil {
			return err
		}
		if after.Status == model.StatusCompleted {
			completed++
		} else {
			failed++
			logger.Warn("reindex failed", zap.String("document_id", doc.ID), zap.String("reason", after.Content))
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	_, err := fmt.Fprintf(out, "\ncompleted=%d failed=%d skipped=%d\n", completed, failed, skipped)
	return err
}
