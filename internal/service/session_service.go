package service

import (
	"context"
	"strings"

	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
	appErr "github.com/0xteamCookie/LearnAbility-backend/internal/pkg/errors"
)

type SessionService struct {
	docs DocumentRepository
}

func NewSessionService(docs DocumentRepository) *SessionService {
	return &SessionService{docs: docs}
}

// Status aggregates the owner's documents submitted under sessionID. It
// is recomputed on every call.
func (s *SessionService) Status(ctx context.Context, userID, sessionID string) (*model.SessionStatus, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, appErr.ErrNotFound
	}
	docs, err := s.docs.ListBySession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, appErr.ErrNotFound
	}
	out := &model.SessionStatus{
		SessionID: sessionID,
		Total:     len(docs),
		Documents: make([]model.SessionDocument, 0, len(docs)),
	}
	for _, d := range docs {
		switch d.Status {
		case model.StatusCompleted:
			out.Completed++
		case model.StatusProcessing:
			out.Processing++
		case model.StatusError:
			out.Errored++
		case model.StatusReady:
			out.Ready++
		}
		out.Documents = append(out.Documents, model.SessionDocument{
			ID:     d.ID,
			Name:   d.Name,
			Type:   d.Type,
			Status: d.Status,
			Ctime:  d.Ctime,
			Mtime:  d.Mtime,
		})
	}
	out.IsComplete = out.Processing == 0
	return out, nil
}
