// Package session stores per-connection conversation state.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/siddhartha-04/itcprj/internal/domain"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Store persists conversation sessions keyed by id. Implementations return
// copies so callers never share mutable state.
type Store interface {
	Create(ctx context.Context, id string) (*domain.ConversationSession, error)
	Get(ctx context.Context, id string) (*domain.ConversationSession, error)
	Save(ctx context.Context, s *domain.ConversationSession) error
	Delete(ctx context.Context, id string) error
	Len() int
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.ConversationSession
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.ConversationSession)}
}

// Create registers a fresh idle session, replacing any previous one with the same id.
func (m *MemoryStore) Create(_ context.Context, id string) (*domain.ConversationSession, error) {
	s := domain.NewConversationSession(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = s
	return s.Clone(), nil
}

// Get returns a copy of the session.
func (m *MemoryStore) Get(_ context.Context, id string) (*domain.ConversationSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// Save stores a copy of s.
func (m *MemoryStore) Save(_ context.Context, s *domain.ConversationSession) error {
	if s == nil || s.ID == "" {
		return errors.New("save session: missing id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

// Delete removes the session. Deleting an unknown id is not an error.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
