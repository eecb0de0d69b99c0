package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/0xteamCookie/LearnAbility-backend/internal/filestore"
	"github.com/0xteamCookie/LearnAbility-backend/internal/ingest"
	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
	appErr "github.com/0xteamCookie/LearnAbility-backend/internal/pkg/errors"
	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/timeutil"
)

type DocumentService struct {
	docs    DocumentRepository
	scopes  ScopeRepository
	files   filestore.Store
	vectors VectorCleaner
	queue   TaskQueue
}

func NewDocumentService(docs DocumentRepository, scopes ScopeRepository, files filestore.Store, vectors VectorCleaner, queue TaskQueue) *DocumentService {
	return &DocumentService{docs: docs, scopes: scopes, files: files, vectors: vectors, queue: queue}
}

// UploadFile is one file of a multipart submission. Open is called once,
// after the document record exists.
type UploadFile struct {
	Name     string
	MimeType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

type SubmitFilesRequest struct {
	SubjectID   string
	TopicID     string
	SessionID   string
	Description string
	Files       []UploadFile
}

type SubmitFilesResult struct {
	DocumentIDs []string `json:"documentIds"`
	SessionID   string   `json:"sessionId"`
}

type SubmitContentRequest struct {
	Type        string `json:"type"`
	Source      string `json:"source"`
	Content     string `json:"content"`
	SubjectID   string `json:"subjectId"`
	TopicID     string `json:"topicId"`
	SessionID   string `json:"sessionId"`
	Description string `json:"description"`
}

// SubmitFiles records every file as PROCESSING and hands each one to the
// ingestion queue. A file that cannot be stored is recorded as ERROR
// without affecting the others.
func (s *DocumentService) SubmitFiles(ctx context.Context, userID string, req SubmitFilesRequest) (*SubmitFilesResult, error) {
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", appErr.ErrInvalid)
	}
	subjectID, topicID, err := s.resolveScope(ctx, userID, req.SubjectID, req.TopicID)
	if err != nil {
		return nil, err
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = newSessionID()
	}
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID), zap.String("session_id", sessionID))

	ids := make([]string, 0, len(req.Files))
	for _, f := range req.Files {
		now := timeutil.NowUnix()
		ext := strings.ToLower(filepath.Ext(f.Name))
		doc := &model.Document{
			ID:          newID(),
			UserID:      userID,
			SubjectID:   subjectID,
			TopicID:     topicID,
			SessionID:   sessionID,
			Name:        f.Name,
			Type:        model.DetectDocumentType(f.Name),
			FileType:    strings.TrimPrefix(ext, "."),
			MimeType:    f.MimeType,
			Size:        f.Size,
			Source:      f.Name,
			Description: req.Description,
			Status:      model.StatusProcessing,
			Ctime:       now,
			Mtime:       now,
		}
		doc.FileKey = doc.ID + ext
		if err := s.docs.Create(ctx, doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)

		if err := s.storeFile(ctx, doc.FileKey, f); err != nil {
			logger.Error("store uploaded file failed", zap.String("document_id", doc.ID), zap.Error(err))
			s.fail(ctx, doc.ID, fmt.Errorf("store file: %w", err))
			continue
		}
		if err := s.queue.Submit(ingest.Task{DocumentID: doc.ID, OwnerID: userID}); err != nil {
			logger.Error("queue ingestion failed", zap.String("document_id", doc.ID), zap.Error(err))
			s.fail(ctx, doc.ID, err)
		}
	}
	return &SubmitFilesResult{DocumentIDs: ids, SessionID: sessionID}, nil
}

func (s *DocumentService) storeFile(ctx context.Context, key string, f UploadFile) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return s.files.Save(ctx, key, rc, f.Size)
}

func (s *DocumentService) fail(ctx context.Context, docID string, cause error) {
	if err := s.docs.Finish(ctx, docID, model.StatusError, ingest.ErrorPrefix+cause.Error(), timeutil.NowUnix()); err != nil {
		logutil.GetLogger(ctx).Error("mark document failed", zap.String("document_id", docID), zap.Error(err))
	}
}

// SubmitContent stores directly supplied text. The record is terminal on
// creation: COMPLETED with content, READY without.
func (s *DocumentService) SubmitContent(ctx context.Context, userID string, req SubmitContentRequest) (*model.Document, error) {
	if strings.TrimSpace(req.Type) == "" || strings.TrimSpace(req.Source) == "" {
		return nil, fmt.Errorf("%w: type and source are required", appErr.ErrInvalid)
	}
	docType, ok := model.ParseDocumentType(req.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported type %q", appErr.ErrInvalid, req.Type)
	}
	subjectID, topicID, err := s.resolveScope(ctx, userID, req.SubjectID, req.TopicID)
	if err != nil {
		return nil, err
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = newSessionID()
	}
	status := model.StatusCompleted
	if req.Content == "" {
		status = model.StatusReady
	}
	now := timeutil.NowUnix()
	doc := &model.Document{
		ID:          newID(),
		UserID:      userID,
		SubjectID:   subjectID,
		TopicID:     topicID,
		SessionID:   sessionID,
		Name:        req.Source,
		Type:        docType,
		Source:      req.Source,
		Description: req.Description,
		Status:      status,
		Content:     req.Content,
		Ctime:       now,
		Mtime:       now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, userID, docID string) (*model.Document, error) {
	return s.docs.GetByID(ctx, userID, docID)
}

func (s *DocumentService) List(ctx context.Context, userID string, filter model.DocumentFilter, offset, limit uint) ([]*model.Document, error) {
	return s.docs.List(ctx, userID, filter, offset, limit)
}

// Reingest starts a fresh unit of work for a file-backed document that
// is not already being processed.
func (s *DocumentService) Reingest(ctx context.Context, userID, docID string) error {
	doc, err := s.docs.GetByID(ctx, userID, docID)
	if err != nil {
		return err
	}
	if !doc.HasFile() {
		return fmt.Errorf("%w: document has no stored file", appErr.ErrInvalid)
	}
	if err := s.docs.MarkProcessing(ctx, userID, docID, timeutil.NowUnix()); err != nil {
		return err
	}
	if err := s.queue.Submit(ingest.Task{DocumentID: docID, OwnerID: userID}); err != nil {
		s.fail(ctx, docID, err)
		return err
	}
	return nil
}

// Delete removes the document, its vectors and its stored file. Documents
// still being ingested cannot be deleted.
func (s *DocumentService) Delete(ctx context.Context, userID, docID string) error {
	doc, err := s.docs.GetByID(ctx, userID, docID)
	if err != nil {
		return err
	}
	if doc.Status == model.StatusProcessing {
		return fmt.Errorf("%w: document is still processing", appErr.ErrConflict)
	}
	if err := s.vectors.DeleteByDocument(ctx, docID); err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, userID, docID); err != nil {
		return err
	}
	if doc.HasFile() {
		if err := s.files.Delete(ctx, doc.FileKey); err != nil {
			logutil.GetLogger(ctx).Warn("delete stored file failed", zap.String("document_id", docID), zap.Error(err))
		}
	}
	return nil
}

// resolveScope validates the owner's subject/topic and fills the subject
// from the topic when only the topic is given.
func (s *DocumentService) resolveScope(ctx context.Context, userID, subjectID, topicID string) (string, string, error) {
	subjectID = strings.TrimSpace(subjectID)
	topicID = strings.TrimSpace(topicID)
	if topicID != "" {
		topic, err := s.scopes.GetTopic(ctx, userID, topicID)
		if err != nil {
			return "", "", err
		}
		if subjectID != "" && subjectID != topic.SubjectID {
			return "", "", fmt.Errorf("%w: topic does not belong to subject", appErr.ErrInvalid)
		}
		return topic.SubjectID, topic.ID, nil
	}
	if subjectID != "" {
		if _, err := s.scopes.GetSubject(ctx, userID, subjectID); err != nil {
			return "", "", err
		}
	}
	return subjectID, "", nil
}
