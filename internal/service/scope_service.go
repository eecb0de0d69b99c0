package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/0xteamCookie/LearnAbility-backend/internal/filestore"
	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
	appErr "github.com/0xteamCookie/LearnAbility-backend/internal/pkg/errors"
	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/timeutil"
)

// ScopeService manages subjects and topics. Deleting either removes the
// vectors and documents filed under it.
type ScopeService struct {
	scopes  ScopeRepository
	docs    DocumentRepository
	files   filestore.Store
	vectors VectorCleaner
}

func NewScopeService(scopes ScopeRepository, docs DocumentRepository, files filestore.Store, vectors VectorCleaner) *ScopeService {
	return &ScopeService{scopes: scopes, docs: docs, files: files, vectors: vectors}
}

func (s *ScopeService) CreateSubject(ctx context.Context, userID, name, description string) (*model.Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", appErr.ErrInvalid)
	}
	now := timeutil.NowUnix()
	subject := &model.Subject{ID: newID(), UserID: userID, Name: name, Description: description, Ctime: now, Mtime: now}
	if err := s.scopes.CreateSubject(ctx, subject); err != nil {
		return nil, err
	}
	return subject, nil
}

func (s *ScopeService) ListSubjects(ctx context.Context, userID string) ([]*model.Subject, error) {
	return s.scopes.ListSubjects(ctx, userID)
}

func (s *ScopeService) CreateTopic(ctx context.Context, userID, subjectID, name string) (*model.Topic, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", appErr.ErrInvalid)
	}
	if _, err := s.scopes.GetSubject(ctx, userID, subjectID); err != nil {
		return nil, err
	}
	now := timeutil.NowUnix()
	topic := &model.Topic{ID: newID(), UserID: userID, SubjectID: subjectID, Name: name, Ctime: now, Mtime: now}
	if err := s.scopes.CreateTopic(ctx, topic); err != nil {
		return nil, err
	}
	return topic, nil
}

func (s *ScopeService) ListTopics(ctx context.Context, userID, subjectID string) ([]*model.Topic, error) {
	if _, err := s.scopes.GetSubject(ctx, userID, subjectID); err != nil {
		return nil, err
	}
	return s.scopes.ListTopics(ctx, userID, subjectID)
}

func (s *ScopeService) DeleteSubject(ctx context.Context, userID, subjectID string) error {
	if _, err := s.scopes.GetSubject(ctx, userID, subjectID); err != nil {
		return err
	}
	if err := s.dropDocuments(ctx, userID, subjectID, model.DocumentFilter{SubjectID: subjectID}); err != nil {
		return err
	}
	return s.scopes.DeleteSubject(ctx, userID, subjectID)
}

func (s *ScopeService) DeleteTopic(ctx context.Context, userID, topicID string) error {
	if _, err := s.scopes.GetTopic(ctx, userID, topicID); err != nil {
		return err
	}
	if err := s.dropDocuments(ctx, userID, topicID, model.DocumentFilter{TopicID: topicID}); err != nil {
		return err
	}
	return s.scopes.DeleteTopic(ctx, userID, topicID)
}

// dropDocuments clears the scope's vectors, then its document records and
// stored files. A scope with a document still being ingested is refused.
func (s *ScopeService) dropDocuments(ctx context.Context, userID, scopeID string, filter model.DocumentFilter) error {
	docs, err := s.docs.List(ctx, userID, filter, 0, 0)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if doc.Status == model.StatusProcessing {
			return fmt.Errorf("%w: document %s is still processing", appErr.ErrConflict, doc.ID)
		}
	}
	if err := s.vectors.DeleteByScope(ctx, scopeID); err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("scope_id", scopeID))
	for _, doc := range docs {
		if err := s.docs.Delete(ctx, userID, doc.ID); err != nil && !appErr.IsNotFound(err) {
			return err
		}
		if doc.HasFile() {
			if err := s.files.Delete(ctx, doc.FileKey); err != nil {
				logger.Warn("delete stored file failed", zap.String("document_id", doc.ID), zap.Error(err))
			}
		}
	}
	return nil
}
