package application

import (
	"context"
	"sync"
	"time"
)

// SessionStore keeps working sessions between requests. Implementations
// return ErrSessionNotFound for unknown or expired sessions.
type SessionStore interface {
	Create(ctx context.Context, session WorkingSession) error
	Get(ctx context.Context, id string) (WorkingSession, error)
	Save(ctx context.Context, session WorkingSession) error
	Delete(ctx context.Context, id string) error
}

// DefaultMaxSessions caps the memory session store.
const DefaultMaxSessions = 1024

// MemorySessionStore keeps sessions in process memory. Expired entries are
// dropped lazily on access.
type MemorySessionStore struct {
	mu         sync.RWMutex
	now        func() time.Time
	maxEntries int
	entries    map[string]WorkingSession
}

// NewMemorySessionStore creates an in-memory session store.
func NewMemorySessionStore(maxEntries int, now func() time.Time) *MemorySessionStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxSessions
	}
	if now == nil {
		now = time.Now
	}
	return &MemorySessionStore{
		now:        now,
		maxEntries: maxEntries,
		entries:    make(map[string]WorkingSession),
	}
}

func (s *MemorySessionStore) Create(_ context.Context, session WorkingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupLocked()
	if len(s.entries) >= s.maxEntries {
		s.evictOldestLocked()
	}
	s.entries[session.ID] = cloneSession(session)
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (WorkingSession, error) {
	s.mu.RLock()
	session, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return WorkingSession{}, ErrSessionNotFound
	}
	if s.expired(session) {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
		return WorkingSession{}, ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func (s *MemorySessionStore) Save(_ context.Context, session WorkingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entries[session.ID]
	if !ok || s.expired(existing) {
		delete(s.entries, session.ID)
		return ErrSessionNotFound
	}
	s.entries[session.ID] = cloneSession(session)
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entries[id]
	if !ok {
		return ErrSessionNotFound
	}
	delete(s.entries, id)
	if s.expired(existing) {
		return ErrSessionNotFound
	}
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemorySessionStore) expired(session WorkingSession) bool {
	return !session.ExpiresAt.IsZero() && !s.now().Before(session.ExpiresAt)
}

func (s *MemorySessionStore) cleanupLocked() {
	for id, session := range s.entries {
		if s.expired(session) {
			delete(s.entries, id)
		}
	}
}

func (s *MemorySessionStore) evictOldestLocked() {
	var (
		oldestID string
		oldestAt time.Time
	)
	for id, session := range s.entries {
		if oldestID == "" || session.CreatedAt.Before(oldestAt) {
			oldestID, oldestAt = id, session.CreatedAt
		}
	}
	if oldestID != "" {
		delete(s.entries, oldestID)
	}
}
