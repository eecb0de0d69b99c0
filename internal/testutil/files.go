package testutil

import (
	"bytes"
	"context"
	"io"
	"sync"

	appErr "github.com/0xteamCookie/LearnAbility-backend/internal/pkg/errors"
)

type MemoryFileStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	SaveErr error
}

func NewMemoryFileStore() *MemoryFileStore {
	return &MemoryFileStore{files: map[string][]byte{}}
}

func (m *MemoryFileStore) Type() string { return "memory" }

func (m *MemoryFileStore) Save(ctx context.Context, key string, r io.Reader, size int64) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = data
	return nil
}

func (m *MemoryFileStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryFileStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

func (m *MemoryFileStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[key]
	return ok
}
