package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo keeps sessions in process memory. It is the default store when no
// database is configured.
type MemoryRepo struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	now      func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{sessions: make(map[uuid.UUID]*Session), now: time.Now}
}

func (m *MemoryRepo) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok && s.ID != uuid.Nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, s.ID)
	}
	m.insert(s)
	return nil
}

// CreateBatch inserts all sessions under a single lock so readers never observe a
// partially committed plan. Every id is checked before anything is stored.
func (m *MemoryRepo) CreateBatch(_ context.Context, sessions []*Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[uuid.UUID]bool, len(sessions))
	for _, s := range sessions {
		if s.ID == uuid.Nil {
			continue
		}
		if _, ok := m.sessions[s.ID]; ok || seen[s.ID] {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, s.ID)
		}
		seen[s.ID] = true
	}
	for _, s := range sessions {
		m.insert(s)
	}
	return nil
}

func (m *MemoryRepo) insert(s *Session) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := m.now()
	s.VersionID = 1
	s.CreatedAt = now
	s.UpdatedAt = now
	stored := s.Clone()
	stored.Conflicts = nil
	m.sessions[s.ID] = &stored
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := s.Clone()
	return &c, nil
}

func (m *MemoryRepo) Update(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.VersionID != s.VersionID {
		return ErrVersionConflict
	}
	s.VersionID++
	s.CreatedAt = cur.CreatedAt
	s.UpdatedAt = m.now()
	stored := s.Clone()
	stored.Conflicts = nil
	m.sessions[s.ID] = &stored
	return nil
}

func (m *MemoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// List returns matching sessions ordered by date and start time.
func (m *MemoryRepo) List(_ context.Context, f Filter) ([]*Session, error) {
	m.mu.RLock()
	matched := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if f.Match(s) {
			matched = append(matched, s.Clone())
		}
	}
	m.mu.RUnlock()

	SortByTime(matched)
	out := make([]*Session, len(matched))
	for i := range matched {
		out[i] = &matched[i]
	}
	return out, nil
}
