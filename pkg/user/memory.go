package user

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/alice21mota/oppia/pkg/apperr"
)

// MemoryStore keeps users in process.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*User
	order    []string
	requests map[string]PendingDeletionRequest
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    map[string]*User{},
		requests: map[string]PendingDeletionRequest{},
	}
}

// Create adds a user.
func (m *MemoryStore) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return apperr.InvalidInput("User %s already exists.", u.ID)
	}
	c := u.clone()
	c.normalize()
	m.users[u.ID] = c
	m.order = append(m.order, u.ID)
	return nil
}

// GetByID returns a user by id.
func (m *MemoryStore) GetByID(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("User with id %s does not exist.", id)
	}
	return u.clone(), nil
}

// GetByUsername returns a user by case-insensitive username.
func (m *MemoryStore) GetByUsername(_ context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		u := m.users[id]
		if u.Username != "" && strings.EqualFold(u.Username, username) {
			return u.clone(), nil
		}
	}
	return nil, apperr.NotFound("User with given username does not exist.")
}

// GetByEmail returns a user by email.
func (m *MemoryStore) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		if u := m.users[id]; u.Email == email {
			return u.clone(), nil
		}
	}
	return nil, apperr.NotFound("User with email %s does not exist.", email)
}

// Update replaces a stored user.
func (m *MemoryStore) Update(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return apperr.NotFound("User with id %s does not exist.", u.ID)
	}
	c := u.clone()
	c.normalize()
	m.users[u.ID] = c
	return nil
}

// ListByRole returns users holding role in creation order.
func (m *MemoryStore) ListByRole(_ context.Context, role string) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.FilterMap(m.order, func(id string, _ int) (User, bool) {
		u := m.users[id]
		return *u.clone(), slices.Contains(u.Roles, role)
	}), nil
}

// CreatePendingDeletion records a deletion request.
func (m *MemoryStore) CreatePendingDeletion(_ context.Context, req PendingDeletionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.UserID] = req
	return nil
}

// GetPendingDeletion returns the deletion request of a user.
func (m *MemoryStore) GetPendingDeletion(_ context.Context, userID string) (*PendingDeletionRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[userID]
	if !ok {
		return nil, apperr.NotFound("No pending deletion request for user %s.", userID)
	}
	return &req, nil
}

// CountPendingDeletions returns the number of deletion requests.
func (m *MemoryStore) CountPendingDeletions(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests), nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
