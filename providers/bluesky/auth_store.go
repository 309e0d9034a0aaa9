package bluesky

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bluesky-social/indigo/atproto/auth/oauth"
	"github.com/goliatone/go-accounts/core"
)

const DefaultAuthRequestTTL = 15 * time.Minute

// AuthStore persists pushed authorization requests and OAuth sessions, and
// links each request's OAuth state to the accounts correlation state.
type AuthStore interface {
	oauth.ClientAuthStore
	LinkAuthRequest(ctx context.Context, requestState, state string) error
	// TakeAuthRequestLink returns and removes the link. Missing or expired
	// links report core.ErrStateNotFound.
	TakeAuthRequestLink(ctx context.Context, requestState string) (string, error)
}

// MemoryAuthStore keeps auth data in process. Suitable for a single node.
type MemoryAuthStore struct {
	*oauth.MemStore

	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	links map[string]authRequestLink
}

type authRequestLink struct {
	state     string
	expiresAt time.Time
}

func NewMemoryAuthStore(ttl time.Duration) *MemoryAuthStore {
	if ttl <= 0 {
		ttl = DefaultAuthRequestTTL
	}
	return &MemoryAuthStore{
		MemStore: oauth.NewMemStore(),
		ttl:      ttl,
		now:      time.Now,
		links:    make(map[string]authRequestLink),
	}
}

func (s *MemoryAuthStore) LinkAuthRequest(_ context.Context, requestState, state string) error {
	requestState = strings.TrimSpace(requestState)
	if requestState == "" || strings.TrimSpace(state) == "" {
		return fmt.Errorf("bluesky: request state and state are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[requestState] = authRequestLink{state: state, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryAuthStore) TakeAuthRequestLink(_ context.Context, requestState string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[requestState]
	if !ok {
		return "", core.ErrStateNotFound
	}
	delete(s.links, requestState)
	if !s.now().Before(link.expiresAt) {
		return "", core.ErrStateNotFound
	}
	return link.state, nil
}

// pendingRequest captures the auth request saved during StartAuthFlow, which
// does not surface the request state or the save error to its caller.
type pendingRequest struct {
	state string
	err   error
}

type pendingRequestKey struct{}

func withPendingRequest(ctx context.Context, pending *pendingRequest) context.Context {
	return context.WithValue(ctx, pendingRequestKey{}, pending)
}

type trackingStore struct {
	AuthStore
}

func (s *trackingStore) SaveAuthRequestInfo(ctx context.Context, info oauth.AuthRequestData) error {
	err := s.AuthStore.SaveAuthRequestInfo(ctx, info)
	if pending, ok := ctx.Value(pendingRequestKey{}).(*pendingRequest); ok {
		pending.state = info.State
		pending.err = err
	}
	return err
}

var (
	_ AuthStore              = (*MemoryAuthStore)(nil)
	_ oauth.ClientAuthStore = (*trackingStore)(nil)
)
