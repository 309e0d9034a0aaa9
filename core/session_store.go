package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemorySessionStore keeps sessions in process memory. Suitable for tests and
// single-instance deployments.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: map[string]Session{}}
}

func (s *MemorySessionStore) Get(_ context.Context, key string) (Session, error) {
	if s == nil {
		return Session{}, fmt.Errorf("core: session store is not configured")
	}
	s.mu.RLock()
	session, ok := s.sessions[strings.TrimSpace(key)]
	s.mu.RUnlock()
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *MemorySessionStore) Set(_ context.Context, key string, session Session) error {
	if s == nil {
		return fmt.Errorf("core: session store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("core: session context key is required")
	}
	if strings.TrimSpace(session.User.UserID) == "" || strings.TrimSpace(session.User.DID) == "" {
		return fmt.Errorf("core: session principal is required")
	}
	s.mu.Lock()
	s.sessions[key] = session
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) Remove(_ context.Context, key string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	delete(s.sessions, strings.TrimSpace(key))
	s.mu.Unlock()
	return nil
}
