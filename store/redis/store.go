package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-accounts/core"
	goredis "github.com/redis/go-redis/v9"
)

const (
	DefaultStatePrefix   = "accounts:state:"
	DefaultSessionPrefix = "accounts:session:"
	defaultStateTTL      = 15 * time.Minute
)

type Option func(*options)

type options struct {
	prefix     string
	ttl        time.Duration
	sessionTTL time.Duration
	now        func() time.Time
}

// WithKeyPrefix overrides the namespace used for keys.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if strings.TrimSpace(prefix) != "" {
			o.prefix = prefix
		}
	}
}

// WithTTL sets the fallback expiry for states that do not carry ExpiresAt.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithSessionTTL bounds session lifetime. Zero keeps sessions until removed.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl >= 0 {
			o.sessionTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func resolveOptions(prefix string, opts []Option) options {
	resolved := options{
		prefix: prefix,
		ttl:    defaultStateTTL,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&resolved)
		}
	}
	return resolved
}

type statePayload struct {
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StateStore implements core.StateStore on a Redis keyspace. Expiry is
// delegated to the key TTL.
type StateStore struct {
	client goredis.UniversalClient
	opts   options
}

func NewStateStore(client goredis.UniversalClient, opts ...Option) (*StateStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis: client is required")
	}
	return &StateStore{client: client, opts: resolveOptions(DefaultStatePrefix, opts)}, nil
}

func (s *StateStore) Set(ctx context.Context, key string, state core.CorrelationState) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("redis: state context key is required")
	}
	if strings.TrimSpace(state.State) == "" {
		return fmt.Errorf("redis: oauth state is required")
	}
	now := s.opts.now()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	if state.ExpiresAt.IsZero() {
		state.ExpiresAt = state.CreatedAt.Add(s.opts.ttl)
	}
	ttl := state.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return fmt.Errorf("redis: oauth state already expired")
	}

	payload, err := json.Marshal(statePayload{
		State:     state.State,
		CreatedAt: state.CreatedAt.UTC(),
		ExpiresAt: state.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("redis: marshal state: %w", err)
	}
	if err := s.client.Set(ctx, s.opts.prefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis: persist state: %w", err)
	}
	return nil
}

func (s *StateStore) Get(ctx context.Context, key string) (core.CorrelationState, error) {
	raw, err := s.client.Get(ctx, s.opts.prefix+strings.TrimSpace(key)).Bytes()
	return s.decodeState(raw, err)
}

// Take consumes the state with GETDEL so two callbacks racing on the same
// context key cannot both verify it.
func (s *StateStore) Take(ctx context.Context, key string) (core.CorrelationState, error) {
	raw, err := s.client.GetDel(ctx, s.opts.prefix+strings.TrimSpace(key)).Bytes()
	return s.decodeState(raw, err)
}

func (s *StateStore) decodeState(raw []byte, err error) (core.CorrelationState, error) {
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return core.CorrelationState{}, core.ErrStateNotFound
		}
		return core.CorrelationState{}, fmt.Errorf("redis: load state: %w", err)
	}
	var payload statePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return core.CorrelationState{}, fmt.Errorf("redis: decode state: %w", err)
	}
	state := core.CorrelationState{
		State:     payload.State,
		CreatedAt: payload.CreatedAt,
		ExpiresAt: payload.ExpiresAt,
	}
	if state.Expired(s.opts.now()) {
		return core.CorrelationState{}, core.ErrStateNotFound
	}
	return state, nil
}

func (s *StateStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.opts.prefix+strings.TrimSpace(key)).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis: delete state: %w", err)
	}
	return nil
}

type sessionPayload struct {
	UserID    string    `json:"user_id"`
	DID       string    `json:"did"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore implements core.SessionStore on a Redis keyspace so sessions
// survive restarts and are shared between instances.
type SessionStore struct {
	client goredis.UniversalClient
	opts   options
}

func NewSessionStore(client goredis.UniversalClient, opts ...Option) (*SessionStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis: client is required")
	}
	return &SessionStore{client: client, opts: resolveOptions(DefaultSessionPrefix, opts)}, nil
}

func (s *SessionStore) Get(ctx context.Context, key string) (core.Session, error) {
	raw, err := s.client.Get(ctx, s.opts.prefix+strings.TrimSpace(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return core.Session{}, core.ErrSessionNotFound
		}
		return core.Session{}, fmt.Errorf("redis: load session: %w", err)
	}
	var payload sessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return core.Session{}, fmt.Errorf("redis: decode session: %w", err)
	}
	return core.Session{
		User:      core.Principal{UserID: payload.UserID, DID: payload.DID},
		CreatedAt: payload.CreatedAt,
	}, nil
}

func (s *SessionStore) Set(ctx context.Context, key string, session core.Session) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("redis: session context key is required")
	}
	if strings.TrimSpace(session.User.UserID) == "" || strings.TrimSpace(session.User.DID) == "" {
		return fmt.Errorf("redis: session principal is required")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.opts.now()
	}
	payload, err := json.Marshal(sessionPayload{
		UserID:    session.User.UserID,
		DID:       session.User.DID,
		CreatedAt: session.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("redis: marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.opts.prefix+key, payload, s.opts.sessionTTL).Err(); err != nil {
		return fmt.Errorf("redis: persist session: %w", err)
	}
	return nil
}

func (s *SessionStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.opts.prefix+strings.TrimSpace(key)).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis: remove session: %w", err)
	}
	return nil
}

var (
	_ core.StateStore   = (*StateStore)(nil)
	_ core.SessionStore = (*SessionStore)(nil)
)
