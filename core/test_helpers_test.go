package core

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type fakeIdentityProvider struct {
	mu            sync.Mutex
	authorizeURL  string
	callbackDID   string
	callbackErr   error
	validateErr   error
	profileErr    error
	profiles      map[string]ProviderProfile
	profileCalls  int
	validateCalls int
	lastState     string
	lastHandle    string
}

func newFakeIdentityProvider() *fakeIdentityProvider {
	return &fakeIdentityProvider{
		authorizeURL: "https://bsky.example/oauth/authorize",
		callbackDID:  "did:plc:alice",
		profiles: map[string]ProviderProfile{
			"did:plc:alice": {Handle: "alice.bsky.social"},
		},
	}
}

func (p *fakeIdentityProvider) Authorize(_ context.Context, handle string, state string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastHandle = handle
	p.lastState = state
	return p.authorizeURL + "?" + url.Values{"login_hint": {handle}, "state": {state}}.Encode(), nil
}

func (p *fakeIdentityProvider) Callback(_ context.Context, params url.Values) (CallbackIdentity, error) {
	if p.callbackErr != nil {
		return CallbackIdentity{}, p.callbackErr
	}
	return CallbackIdentity{DID: p.callbackDID, State: params.Get("state")}, nil
}

func (p *fakeIdentityProvider) ValidateSession(_ context.Context, did string) (string, error) {
	p.mu.Lock()
	p.validateCalls++
	p.mu.Unlock()
	if p.validateErr != nil {
		return "", p.validateErr
	}
	return did, nil
}

func (p *fakeIdentityProvider) GetUserProfile(_ context.Context, did string) (ProviderProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profileCalls++
	if p.profileErr != nil {
		return ProviderProfile{}, p.profileErr
	}
	profile, ok := p.profiles[did]
	if !ok {
		return ProviderProfile{}, ErrProfileNotFound
	}
	return profile, nil
}

type fakeTokenProvider struct {
	mu            sync.Mutex
	grant         TokenGrant
	exchangeErr   error
	refreshGrant  TokenGrant
	refreshErr    error
	refreshCalls  atomic.Int32
	refreshGate   chan struct{}
	exchangeCalls int
	listErr       error
	installations []Installation
	listedWith    []string
}

func (p *fakeTokenProvider) GetAccessToken(_ context.Context, code string) (TokenGrant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangeCalls++
	if p.exchangeErr != nil {
		return TokenGrant{}, p.exchangeErr
	}
	return p.grant, nil
}

func (p *fakeTokenProvider) RefreshAccessToken(ctx context.Context, refreshToken string) (TokenGrant, error) {
	p.refreshCalls.Add(1)
	if p.refreshGate != nil {
		select {
		case <-p.refreshGate:
		case <-ctx.Done():
			return TokenGrant{}, ctx.Err()
		}
	}
	if p.refreshErr != nil {
		return TokenGrant{}, p.refreshErr
	}
	return p.refreshGrant, nil
}

func (p *fakeTokenProvider) ListInstallations(_ context.Context, accessToken string) ([]Installation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listedWith = append(p.listedWith, accessToken)
	if p.listErr != nil {
		return nil, p.listErr
	}
	return append([]Installation(nil), p.installations...), nil
}

type memoryAccountStore struct {
	mu          sync.Mutex
	next        int
	byID        map[string]UserAccount
	createCalls int
	failCreate  error
	// lostRace makes Create insert the row as a concurrent request would
	// before returning failCreate.
	lostRace bool
}

func newMemoryAccountStore() *memoryAccountStore {
	return &memoryAccountStore{byID: map[string]UserAccount{}}
}

func (s *memoryAccountStore) seed(account UserAccount) UserAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account.ID == "" {
		s.next++
		account.ID = fmt.Sprintf("usr_%d", s.next)
	}
	s.byID[account.ID] = account
	return account
}

func (s *memoryAccountStore) FindByDID(_ context.Context, did string) (UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.byID {
		if account.DID == did {
			return account, nil
		}
	}
	return UserAccount{}, ErrAccountNotFound
}

func (s *memoryAccountStore) FindByID(_ context.Context, id string) (UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return UserAccount{}, ErrAccountNotFound
	}
	return account, nil
}

func (s *memoryAccountStore) FindByHandle(_ context.Context, handle string) (UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.byID {
		if strings.EqualFold(account.Handle, handle) {
			return account, nil
		}
	}
	return UserAccount{}, ErrAccountNotFound
}

func (s *memoryAccountStore) Create(_ context.Context, in CreateAccountInput) (UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.failCreate != nil && !s.lostRace {
		return UserAccount{}, s.failCreate
	}
	s.next++
	account := UserAccount{
		ID:      fmt.Sprintf("usr_%d", s.next),
		DID:     in.DID,
		Handle:  in.Handle,
		Profile: in.Profile,
	}
	s.byID[account.ID] = account
	if s.failCreate != nil {
		return UserAccount{}, s.failCreate
	}
	return account, nil
}

func (s *memoryAccountStore) Update(_ context.Context, account UserAccount) (UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[account.ID]; !ok {
		return UserAccount{}, ErrAccountNotFound
	}
	s.byID[account.ID] = account
	return account, nil
}

func (s *memoryAccountStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrAccountNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *memoryAccountStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID), nil
}

func (s *memoryAccountStore) List(_ context.Context, opts ListUsersOptions) ([]UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := []UserAccount{}
	for index, id := range ids {
		if index < opts.Offset {
			continue
		}
		if len(out) >= opts.Limit {
			break
		}
		out = append(out, s.byID[id])
	}
	return out, nil
}

type memoryConnectionStore struct {
	mu       sync.Mutex
	next     int
	byUserID map[string]GitHubConnection
	updates  int
}

func newMemoryConnectionStore() *memoryConnectionStore {
	return &memoryConnectionStore{byUserID: map[string]GitHubConnection{}}
}

func (s *memoryConnectionStore) seed(conn GitHubConnection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn.ID == "" {
		s.next++
		conn.ID = fmt.Sprintf("conn_%d", s.next)
	}
	s.byUserID[conn.UserID] = cloneConnection(conn)
}

func (s *memoryConnectionStore) FindByUserID(_ context.Context, userID string) (GitHubConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.byUserID[userID]
	if !ok {
		return GitHubConnection{}, ErrConnectionNotFound
	}
	return cloneConnection(conn), nil
}

func (s *memoryConnectionStore) Create(_ context.Context, in CreateConnectionInput) (GitHubConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.byUserID[in.UserID]
	if !ok {
		s.next++
		conn = GitHubConnection{ID: fmt.Sprintf("conn_%d", s.next), UserID: in.UserID}
	}
	conn.AccessToken = in.AccessToken
	conn.RefreshToken = cloneString(in.RefreshToken)
	conn.ExpiresAt = cloneTime(in.ExpiresAt)
	s.byUserID[in.UserID] = conn
	return cloneConnection(conn), nil
}

func (s *memoryConnectionStore) Update(_ context.Context, conn GitHubConnection) (GitHubConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUserID[conn.UserID]; !ok {
		return GitHubConnection{}, ErrConnectionNotFound
	}
	s.updates++
	s.byUserID[conn.UserID] = cloneConnection(conn)
	return cloneConnection(conn), nil
}

func (s *memoryConnectionStore) DeleteByUserID(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byUserID, userID)
	return nil
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	orchestrator *Orchestrator
	identity     *fakeIdentityProvider
	tokens       *fakeTokenProvider
	accounts     *memoryAccountStore
	connections  *memoryConnectionStore
	states       StateStore
	sessions     *MemorySessionStore
	clock        *testClock
}

func newHarness(cfg Config, extra ...Option) (*harness, error) {
	h := &harness{
		identity:    newFakeIdentityProvider(),
		tokens:      &fakeTokenProvider{},
		accounts:    newMemoryAccountStore(),
		connections: newMemoryConnectionStore(),
		sessions:    NewMemorySessionStore(),
		clock:       newTestClock(),
	}
	stateStore := NewMemoryStateStore(0)
	stateStore.now = h.clock.Now
	h.states = stateStore

	options := []Option{
		WithClock(h.clock.Now),
		WithStateStore(stateStore),
		WithSessionStore(h.sessions),
		WithIdentityProvider(h.identity),
		WithGitHubTokenProvider(h.tokens),
		WithAccountStore(h.accounts),
		WithConnectionStore(h.connections),
	}
	options = append(options, extra...)
	orchestrator, err := NewOrchestrator(cfg, options...)
	if err != nil {
		return nil, err
	}
	h.orchestrator = orchestrator
	return h, nil
}

func stringRef(value string) *string {
	return &value
}

func timeRef(value time.Time) *time.Time {
	return &value
}

func stateFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("state")
}
