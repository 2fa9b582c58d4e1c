package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/alice21mota/oppia/pkg/apperr"
)

// MemoryStore is an in-process FileStore.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: map[string][]byte{}}
}

// Get returns the file contents.
func (m *MemoryStore) Get(_ context.Context, entityType, entityID, filename string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := Key(entityType, entityID, filename)
	data, ok := m.files[key]
	if !ok {
		return nil, apperr.NotFound("File %s not found.", key)
	}
	return slices.Clone(data), nil
}

// Put creates or replaces a file.
func (m *MemoryStore) Put(_ context.Context, entityType, entityID, filename string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[Key(entityType, entityID, filename)] = slices.Clone(data)
	return nil
}

// Delete removes a file.
func (m *MemoryStore) Delete(_ context.Context, entityType, entityID, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, Key(entityType, entityID, filename))
	return nil
}

// Exists reports whether the file exists.
func (m *MemoryStore) Exists(_ context.Context, entityType, entityID, filename string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[Key(entityType, entityID, filename)]
	return ok, nil
}

// Verify interface compliance.
var _ FileStore = (*MemoryStore)(nil)
