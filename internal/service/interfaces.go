package service

import (
	"context"

	"github.com/0xteamCookie/LearnAbility-backend/internal/ingest"
	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, userID, docID string) (*model.Document, error)
	List(ctx context.Context, userID string, filter model.DocumentFilter, offset, limit uint) ([]*model.Document, error)
	ListBySession(ctx context.Context, userID, sessionID string) ([]*model.Document, error)
	MarkProcessing(ctx context.Context, userID, docID string, mtime int64) error
	Finish(ctx context.Context, docID string, status model.DocumentStatus, content string, mtime int64) error
	Delete(ctx context.Context, userID, docID string) error
}

type ScopeRepository interface {
	CreateSubject(ctx context.Context, s *model.Subject) error
	GetSubject(ctx context.Context, userID, id string) (*model.Subject, error)
	ListSubjects(ctx context.Context, userID string) ([]*model.Subject, error)
	DeleteSubject(ctx context.Context, userID, id string) error
	CreateTopic(ctx context.Context, t *model.Topic) error
	GetTopic(ctx context.Context, userID, id string) (*model.Topic, error)
	ListTopics(ctx context.Context, userID, subjectID string) ([]*model.Topic, error)
	DeleteTopic(ctx context.Context, userID, id string) error
}

type VectorCleaner interface {
	DeleteByDocument(ctx context.Context, documentID string) error
	DeleteByScope(ctx context.Context, scopeID string) error
}

type TaskQueue interface {
	Submit(task ingest.Task) error
}
