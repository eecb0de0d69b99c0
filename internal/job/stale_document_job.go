package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/0xteamCookie/LearnAbility-backend/internal/ingest"
	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
	appErr "github.com/0xteamCookie/LearnAbility-backend/internal/pkg/errors"
)

const staleBatchSize = 100

type StaleDocuments interface {
	ListStale(ctx context.Context, before int64, limit uint) ([]*model.Document, error)
	Finish(ctx context.Context, docID string, status model.DocumentStatus, content string, mtime int64) error
}

type ActiveChecker interface {
	IsActive(documentID string) bool
}

// StaleDocumentJob fails documents left in PROCESSING by a task that no
// longer exists, typically after a restart.
type StaleDocumentJob struct {
	docs   StaleDocuments
	active ActiveChecker
	after  time.Duration
	now    func() time.Time
}

func NewStaleDocumentJob(docs StaleDocuments, active ActiveChecker, staleAfterMinutes int) *StaleDocumentJob {
	if staleAfterMinutes <= 0 {
		staleAfterMinutes = 30
	}
	return &StaleDocumentJob{
		docs:   docs,
		active: active,
		after:  time.Duration(staleAfterMinutes) * time.Minute,
		now:    time.Now,
	}
}

func (j *StaleDocumentJob) Name() string {
	return "stale_document_sweep"
}

func (j *StaleDocumentJob) Run(ctx context.Context) error {
	now := j.now()
	docs, err := j.docs.ListStale(ctx, now.Add(-j.after).Unix(), staleBatchSize)
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx)
	for _, doc := range docs {
		if j.active != nil && j.active.IsActive(doc.ID) {
			continue
		}
		err := j.docs.Finish(ctx, doc.ID, model.StatusError, ingest.ErrorPrefix+"interrupted", now.Unix())
		switch {
		case err == nil:
			logger.Warn("stale document failed", zap.String("document_id", doc.ID), zap.String("user_id", doc.UserID))
		case appErr.IsConflict(err):
			// finished concurrently
		default:
			return err
		}
	}
	return nil
}
