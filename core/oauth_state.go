package core

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultStateMaxEntries = 10000

// MemoryStateStore is a process-local StateStore with TTL expiry.
type MemoryStateStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	entries    map[string]CorrelationState
}

func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	return NewMemoryStateStoreWithLimits(ttl, defaultStateMaxEntries)
}

func NewMemoryStateStoreWithLimits(ttl time.Duration, maxEntries int) *MemoryStateStore {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultStateMaxEntries
	}
	return &MemoryStateStore{
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        defaultClock,
		entries:    map[string]CorrelationState{},
	}
}

func (s *MemoryStateStore) Set(_ context.Context, key string, state CorrelationState) error {
	if s == nil {
		return fmt.Errorf("core: state store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("core: state context key is required")
	}
	if strings.TrimSpace(state.State) == "" {
		return fmt.Errorf("core: oauth state is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	if state.ExpiresAt.IsZero() {
		state.ExpiresAt = state.CreatedAt.Add(s.ttl)
	}
	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxEntries {
		s.pruneLocked(now)
	}
	s.entries[key] = state
	return nil
}

func (s *MemoryStateStore) Get(_ context.Context, key string) (CorrelationState, error) {
	if s == nil {
		return CorrelationState{}, fmt.Errorf("core: state store is not configured")
	}
	key = strings.TrimSpace(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.entries[key]
	if !ok {
		return CorrelationState{}, ErrStateNotFound
	}
	if state.Expired(s.now()) {
		delete(s.entries, key)
		return CorrelationState{}, ErrStateNotFound
	}
	return state, nil
}

func (s *MemoryStateStore) Take(_ context.Context, key string) (CorrelationState, error) {
	if s == nil {
		return CorrelationState{}, fmt.Errorf("core: state store is not configured")
	}
	key = strings.TrimSpace(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.entries[key]
	if !ok {
		return CorrelationState{}, ErrStateNotFound
	}
	delete(s.entries, key)
	if state.Expired(s.now()) {
		return CorrelationState{}, ErrStateNotFound
	}
	return state, nil
}

func (s *MemoryStateStore) Delete(_ context.Context, key string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	delete(s.entries, strings.TrimSpace(key))
	s.mu.Unlock()
	return nil
}

// pruneLocked drops expired entries, then the oldest ones until there is room.
func (s *MemoryStateStore) pruneLocked(now time.Time) {
	for key, state := range s.entries {
		if state.Expired(now) {
			delete(s.entries, key)
		}
	}
	for len(s.entries) >= s.maxEntries {
		var oldestKey string
		var oldest time.Time
		for key, state := range s.entries {
			if oldestKey == "" || state.CreatedAt.Before(oldest) {
				oldestKey, oldest = key, state.CreatedAt
			}
		}
		delete(s.entries, oldestKey)
	}
}

// GenerateState returns 24 random bytes, base64url encoded.
func GenerateState() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func statesEqual(expected string, received string) bool {
	if expected == "" || received == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}
