package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
	appErr "github.com/0xteamCookie/LearnAbility-backend/internal/pkg/errors"
)

// MemoryDocumentRepo mirrors repo.DocumentRepo, including its conditional
// status transitions, without a database.
type MemoryDocumentRepo struct {
	mu   sync.Mutex
	docs map[string]*model.Document
	seq  int
	// FinishErr, when set, is returned by Finish instead of writing.
	FinishErr error
}

func NewMemoryDocumentRepo() *MemoryDocumentRepo {
	return &MemoryDocumentRepo{docs: map[string]*model.Document{}}
}

func (m *MemoryDocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; ok {
		return appErr.ErrConflict
	}
	m.seq++
	cp := *doc
	if cp.Ctime == 0 {
		cp.Ctime = int64(m.seq)
	}
	m.docs[doc.ID] = &cp
	return nil
}

func (m *MemoryDocumentRepo) Get(ctx context.Context, docID string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[docID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *MemoryDocumentRepo) GetByID(ctx context.Context, userID, docID string) (*model.Document, error) {
	doc, err := m.Get(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	return doc, nil
}

func (m *MemoryDocumentRepo) List(ctx context.Context, userID string, filter model.DocumentFilter, offset, limit uint) ([]*model.Document, error) {
	items := m.filter(func(d *model.Document) bool {
		return d.UserID == userID &&
			(filter.SubjectID == "" || d.SubjectID == filter.SubjectID) &&
			(filter.TopicID == "" || d.TopicID == filter.TopicID) &&
			(filter.SessionID == "" || d.SessionID == filter.SessionID) &&
			(filter.Status == "" || d.Status == filter.Status)
	})
	if int(offset) >= len(items) {
		return nil, nil
	}
	items = items[offset:]
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

func (m *MemoryDocumentRepo) ListBySession(ctx context.Context, userID, sessionID string) ([]*model.Document, error) {
	return m.filter(func(d *model.Document) bool {
		return d.UserID == userID && d.SessionID == sessionID
	}), nil
}

func (m *MemoryDocumentRepo) ListFileBacked(ctx context.Context, userID string) ([]*model.Document, error) {
	return m.filter(func(d *model.Document) bool {
		return d.UserID == userID && d.FileKey != ""
	}), nil
}

func (m *MemoryDocumentRepo) ListStale(ctx context.Context, before int64, limit uint) ([]*model.Document, error) {
	items := m.filter(func(d *model.Document) bool {
		return d.Status == model.StatusProcessing && d.Mtime < before
	})
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

func (m *MemoryDocumentRepo) MarkProcessing(ctx context.Context, userID, docID string, mtime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[docID]
	if !ok || doc.UserID != userID {
		return appErr.ErrNotFound
	}
	if doc.Status == model.StatusProcessing {
		return appErr.ErrConflict
	}
	doc.Status = model.StatusProcessing
	doc.Content = ""
	doc.Mtime = mtime
	return nil
}

func (m *MemoryDocumentRepo) Finish(ctx context.Context, docID string, status model.DocumentStatus, content string, mtime int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FinishErr != nil {
		return m.FinishErr
	}
	doc, ok := m.docs[docID]
	if !ok || doc.Status != model.StatusProcessing {
		return appErr.ErrConflict
	}
	doc.Status = status
	doc.Content = content
	doc.Mtime = mtime
	return nil
}

func (m *MemoryDocumentRepo) Delete(ctx context.Context, userID, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[docID]
	if !ok || doc.UserID != userID {
		return appErr.ErrNotFound
	}
	delete(m.docs, docID)
	return nil
}

// Status is a test shortcut returning the current status of a document.
func (m *MemoryDocumentRepo) Status(docID string) model.DocumentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc, ok := m.docs[docID]; ok {
		return doc.Status
	}
	return ""
}

func (m *MemoryDocumentRepo) filter(keep func(*model.Document) bool) []*model.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Document
	for _, d := range m.docs {
		if keep(d) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ctime != out[j].Ctime {
			return out[i].Ctime > out[j].Ctime
		}
		return out[i].ID < out[j].ID
	})
	return out
}
