package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"mwanga/types"
)

// MemoryStore keeps sessions in process memory. Sessions are lost on restart and expire
// ttl after their last update; a zero ttl keeps them until deleted.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]types.Session
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uuid.UUID]types.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) CreateSession(_ context.Context, s *types.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id uuid.UUID) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.live(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *MemoryStore) UpdateDocument(_ context.Context, id uuid.UUID, name, path string) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.live(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.DocumentName = name
	s.DocumentPath = path
	s.UpdatedAt = m.now().UTC()
	m.sessions[id] = s
	return &s, nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(id); !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

// DeleteExpired removes every session past its lifetime.
func (m *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }

// live returns the session if it exists and has not expired. m.mu must be held.
func (m *MemoryStore) live(id uuid.UUID) (types.Session, bool) {
	s, ok := m.sessions[id]
	if !ok {
		return types.Session{}, false
	}
	if m.expired(s) {
		delete(m.sessions, id)
		return types.Session{}, false
	}
	return s, true
}

func (m *MemoryStore) expired(s types.Session) bool {
	return m.ttl > 0 && !m.now().Before(s.UpdatedAt.Add(m.ttl))
}
