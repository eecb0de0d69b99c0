package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/0xteamCookie/LearnAbility-backend/internal/ai"
	"github.com/0xteamCookie/LearnAbility-backend/internal/chunker"
	"github.com/0xteamCookie/LearnAbility-backend/internal/extractor"
	"github.com/0xteamCookie/LearnAbility-backend/internal/filestore"
	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
	"github.com/0xteamCookie/LearnAbility-backend/internal/observability"
	appErr "github.com/0xteamCookie/LearnAbility-backend/internal/pkg/errors"
	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/timeutil"
)

const (
	ErrorPrefix = "Error processing: "

	insertBatchSize = 64
)

type DocumentStore interface {
	Get(ctx context.Context, docID string) (*model.Document, error)
	Finish(ctx context.Context, docID string, status model.DocumentStatus, content string, mtime int64) error
}

type VectorWriter interface {
	Insert(ctx context.Context, records ...model.VectorRecord) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

type Coordinator struct {
	docs      DocumentStore
	files     filestore.Store
	extractor extractor.Extractor
	chunker   *chunker.Chunker
	embedder  ai.IEmbedder
	vectors   VectorWriter
}

func NewCoordinator(docs DocumentStore, files filestore.Store, ext extractor.Extractor, ch *chunker.Chunker, embedder ai.IEmbedder, vectors VectorWriter) *Coordinator {
	return &Coordinator{
		docs:      docs,
		files:     files,
		extractor: ext,
		chunker:   ch,
		embedder:  embedder,
		vectors:   vectors,
	}
}

// Process runs one unit of work for a PROCESSING document and always
// leaves it in COMPLETED or ERROR. Records in any other state are left
// alone.
func (c *Coordinator) Process(ctx context.Context, task Task) {
	ctx, span := observability.StartIngestSpan(ctx, task.DocumentID)
	defer span.End()
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", task.DocumentID))

	doc, err := c.docs.Get(ctx, task.DocumentID)
	if err != nil {
		observability.RecordError(span, err)
		logger.Error("load document for ingestion failed", zap.Error(err))
		return
	}
	if doc.Status != model.StatusProcessing {
		logger.Info("skip ingestion, document not processing", zap.String("status", string(doc.Status)))
		return
	}

	text, chunks, err := c.ingest(ctx, doc)
	if err != nil {
		observability.RecordError(span, err)
		logger.Error("ingest document failed", zap.Error(err))
		if derr := c.vectors.DeleteByDocument(ctx, doc.ID); derr != nil {
			logger.Warn("cleanup partial vectors failed", zap.Error(derr))
		}
		_ = c.finish(ctx, doc.ID, model.StatusError, ErrorPrefix+err.Error())
		return
	}
	if err := c.finish(ctx, doc.ID, model.StatusCompleted, text); err != nil {
		// the record was deleted or failed elsewhere while this task ran;
		// vectors written here must not outlive it
		if derr := c.vectors.DeleteByDocument(ctx, doc.ID); derr != nil {
			logger.Error("remove vectors of abandoned document failed", zap.Error(derr))
		}
		return
	}
	logger.Info("document ingested", zap.Int("chunks", chunks))
}

func (c *Coordinator) ingest(ctx context.Context, doc *model.Document) (string, int, error) {
	if !doc.HasFile() {
		return "", 0, fmt.Errorf("document has no stored file")
	}
	data, err := filestore.ReadAll(ctx, c.files, doc.FileKey)
	if err != nil {
		return "", 0, fmt.Errorf("read file: %w", err)
	}
	text, err := c.extractor.Extract(ctx, extractor.Input{Name: doc.Name, MimeType: doc.MimeType, Data: data})
	if err != nil {
		return "", 0, fmt.Errorf("extract text: %w", err)
	}
	chunks := c.chunker.Split(text)

	// re-ingestion replaces whatever an earlier run stored
	if err := c.vectors.DeleteByDocument(ctx, doc.ID); err != nil {
		return "", 0, fmt.Errorf("clear previous vectors: %w", err)
	}
	batch := make([]model.VectorRecord, 0, insertBatchSize)
	for _, ch := range chunks {
		vec, err := c.embedder.Embed(ctx, ch.Text, ai.TaskRetrievalDocument)
		if err != nil {
			return "", 0, fmt.Errorf("embed chunk %d: %w", ch.Index, err)
		}
		batch = append(batch, model.VectorRecord{
			Text:       ch.Text,
			Embedding:  vec,
			OwnerID:    doc.UserID,
			SubjectID:  doc.SubjectID,
			TopicID:    doc.TopicID,
			DocumentID: doc.ID,
			Metadata: map[string]interface{}{
				"chunk_index": ch.Index,
				"source":      doc.Name,
				"file_type":   string(doc.Type),
			},
		})
		if len(batch) == insertBatchSize {
			if err := c.vectors.Insert(ctx, batch...); err != nil {
				return "", 0, fmt.Errorf("store vectors: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := c.vectors.Insert(ctx, batch...); err != nil {
		return "", 0, fmt.Errorf("store vectors: %w", err)
	}
	return text, len(chunks), nil
}

// finish reports ErrConflict when the record is no longer PROCESSING.
func (c *Coordinator) finish(ctx context.Context, docID string, status model.DocumentStatus, content string) error {
	err := c.docs.Finish(ctx, docID, status, content, timeutil.NowUnix())
	if err == nil {
		return nil
	}
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", docID), zap.String("status", string(status)))
	if errors.Is(err, appErr.ErrConflict) {
		logger.Warn("document left processing before task finished")
		return err
	}
	logger.Error("update document status failed", zap.Error(err))
	return nil
}
