package platformparam

import (
	"context"
	"slices"
	"sync"
	"time"
)

type memoryVersion struct {
	rev  Revision
	snap Snapshot
}

// MemoryStore keeps rule-set versions in process.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int
	versions map[string][]memoryVersion
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{versions: map[string][]memoryVersion{}, now: time.Now}
}

// Load returns the latest snapshot for a parameter.
func (m *MemoryStore) Load(_ context.Context, name string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vs := m.versions[name]
	if len(vs) == 0 {
		return nil, nil //nolint:nilnil // nil snapshot means never edited
	}
	snap := vs[len(vs)-1].snap
	snap.Rules = slices.Clone(snap.Rules)
	return &snap, nil
}

// Save appends a new version.
func (m *MemoryStore) Save(_ context.Context, name string, snap Snapshot, meta SaveMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	snap.Rules = slices.Clone(snap.Rules)
	m.versions[name] = append(m.versions[name], memoryVersion{
		rev: Revision{
			ID:        m.nextID,
			Name:      name,
			Version:   len(m.versions[name]) + 1,
			Author:    meta.Author,
			Comment:   meta.Comment,
			CreatedAt: m.now().UTC(),
		},
		snap: snap,
	})
	return nil
}

// History returns revisions newest first.
func (m *MemoryStore) History(_ context.Context, name string, limit int) ([]Revision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var revs []Revision
	for _, v := range slices.Backward(m.versions[name]) {
		if limit > 0 && len(revs) >= limit {
			break
		}
		revs = append(revs, v.rev)
	}
	return revs, nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
