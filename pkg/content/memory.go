package content

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/alice21mota/oppia/pkg/apperr"
)

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]*Document
	seq  map[string][]string
	now  func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: map[string]map[string]*Document{},
		seq:  map[string][]string{},
		now:  time.Now,
	}
}

// Put inserts or replaces a document.
func (m *MemoryStore) Put(_ context.Context, kind, id string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	byID := m.docs[kind]
	if byID == nil {
		byID = map[string]*Document{}
		m.docs[kind] = byID
	}
	if existing, ok := byID[id]; ok {
		existing.Body = slices.Clone(body)
		existing.UpdatedAt = now
		return nil
	}
	byID[id] = &Document{Kind: kind, ID: id, Body: slices.Clone(body), CreatedAt: now, UpdatedAt: now}
	m.seq[kind] = append(m.seq[kind], id)
	return nil
}

// Get returns a document.
func (m *MemoryStore) Get(_ context.Context, kind, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[kind][id]
	if !ok {
		return nil, apperr.NotFound("Entity %s with id %s not found.", kind, id)
	}
	cp := *doc
	cp.Body = slices.Clone(doc.Body)
	return &cp, nil
}

// Delete removes a document.
func (m *MemoryStore) Delete(_ context.Context, kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[kind][id]; !ok {
		return nil
	}
	delete(m.docs[kind], id)
	m.seq[kind] = slices.DeleteFunc(m.seq[kind], func(s string) bool { return s == id })
	return nil
}

// List returns every document of a kind in insertion order.
func (m *MemoryStore) List(_ context.Context, kind string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Document, 0, len(m.seq[kind]))
	for _, id := range m.seq[kind] {
		doc := *m.docs[kind][id]
		doc.Body = slices.Clone(doc.Body)
		out = append(out, doc)
	}
	return out, nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
