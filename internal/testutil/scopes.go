package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/0xteamCookie/LearnAbility-backend/internal/model"
	appErr "github.com/0xteamCookie/LearnAbility-backend/internal/pkg/errors"
)

type MemoryScopeRepo struct {
	mu       sync.Mutex
	subjects map[string]*model.Subject
	topics   map[string]*model.Topic
}

func NewMemoryScopeRepo() *MemoryScopeRepo {
	return &MemoryScopeRepo{subjects: map[string]*model.Subject{}, topics: map[string]*model.Topic{}}
}

func (m *MemoryScopeRepo) CreateSubject(ctx context.Context, s *model.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subjects[s.ID]; ok {
		return appErr.ErrConflict
	}
	cp := *s
	m.subjects[s.ID] = &cp
	return nil
}

func (m *MemoryScopeRepo) GetSubject(ctx context.Context, userID, id string) (*model.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subjects[id]
	if !ok || s.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryScopeRepo) ListSubjects(ctx context.Context, userID string) ([]*model.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subject
	for _, s := range m.subjects {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryScopeRepo) DeleteSubject(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subjects[id]
	if !ok || s.UserID != userID {
		return appErr.ErrNotFound
	}
	delete(m.subjects, id)
	for tid, t := range m.topics {
		if t.SubjectID == id {
			delete(m.topics, tid)
		}
	}
	return nil
}

func (m *MemoryScopeRepo) CreateTopic(ctx context.Context, t *model.Topic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.topics[t.ID]; ok {
		return appErr.ErrConflict
	}
	cp := *t
	m.topics[t.ID] = &cp
	return nil
}

func (m *MemoryScopeRepo) GetTopic(ctx context.Context, userID, id string) (*model.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topics[id]
	if !ok || t.UserID != userID {
		return nil, appErr.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryScopeRepo) ListTopics(ctx context.Context, userID, subjectID string) ([]*model.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Topic
	for _, t := range m.topics {
		if t.UserID == userID && t.SubjectID == subjectID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryScopeRepo) DeleteTopic(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topics[id]
	if !ok || t.UserID != userID {
		return appErr.ErrNotFound
	}
	delete(m.topics, id)
	return nil
}
