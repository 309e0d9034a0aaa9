package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bluesky-social/indigo/atproto/auth/oauth"
	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/goliatone/go-accounts/core"
	goredis "github.com/redis/go-redis/v9"
)

const DefaultBlueskyPrefix = "accounts:bluesky:"

// BlueskyAuthStore keeps pushed authorization requests, their links to the
// accounts state and atproto OAuth sessions in Redis, so a callback can land
// on any instance. Requests and links expire with WithTTL; sessions with
// WithSessionTTL.
type BlueskyAuthStore struct {
	client goredis.UniversalClient
	opts   options
}

func NewBlueskyAuthStore(client goredis.UniversalClient, opts ...Option) (*BlueskyAuthStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis: client is required")
	}
	return &BlueskyAuthStore{client: client, opts: resolveOptions(DefaultBlueskyPrefix, opts)}, nil
}

func (s *BlueskyAuthStore) requestKey(state string) string {
	return s.opts.prefix + "request:" + state
}

func (s *BlueskyAuthStore) linkKey(state string) string {
	return s.opts.prefix + "link:" + state
}

func (s *BlueskyAuthStore) sessionKey(did syntax.DID, sessionID string) string {
	return s.opts.prefix + "session:" + did.String() + ":" + sessionID
}

func (s *BlueskyAuthStore) GetAuthRequestInfo(ctx context.Context, state string) (*oauth.AuthRequestData, error) {
	raw, err := s.client.Get(ctx, s.requestKey(state)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("redis: auth request %s: %w", state, core.ErrStateNotFound)
		}
		return nil, fmt.Errorf("redis: load auth request: %w", err)
	}
	var info oauth.AuthRequestData
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("redis: decode auth request: %w", err)
	}
	return &info, nil
}

// SaveAuthRequestInfo only creates; a second save for one state fails.
func (s *BlueskyAuthStore) SaveAuthRequestInfo(ctx context.Context, info oauth.AuthRequestData) error {
	if strings.TrimSpace(info.State) == "" {
		return fmt.Errorf("redis: auth request state is required")
	}
	payload, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("redis: marshal auth request: %w", err)
	}
	created, err := s.client.SetNX(ctx, s.requestKey(info.State), payload, s.opts.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis: persist auth request: %w", err)
	}
	if !created {
		return fmt.Errorf("redis: auth request already saved for state %s", info.State)
	}
	return nil
}

func (s *BlueskyAuthStore) DeleteAuthRequestInfo(ctx context.Context, state string) error {
	if err := s.client.Del(ctx, s.requestKey(state)).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis: delete auth request: %w", err)
	}
	return nil
}

func (s *BlueskyAuthStore) LinkAuthRequest(ctx context.Context, requestState, state string) error {
	requestState = strings.TrimSpace(requestState)
	if requestState == "" || strings.TrimSpace(state) == "" {
		return fmt.Errorf("redis: request state and state are required")
	}
	if err := s.client.Set(ctx, s.linkKey(requestState), state, s.opts.ttl).Err(); err != nil {
		return fmt.Errorf("redis: persist auth request link: %w", err)
	}
	return nil
}

func (s *BlueskyAuthStore) TakeAuthRequestLink(ctx context.Context, requestState string) (string, error) {
	state, err := s.client.GetDel(ctx, s.linkKey(strings.TrimSpace(requestState))).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", core.ErrStateNotFound
		}
		return "", fmt.Errorf("redis: load auth request link: %w", err)
	}
	return state, nil
}

func (s *BlueskyAuthStore) GetSession(ctx context.Context, did syntax.DID, sessionID string) (*oauth.ClientSessionData, error) {
	raw, err := s.client.Get(ctx, s.sessionKey(did, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("redis: oauth session for %s: %w", did, core.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("redis: load oauth session: %w", err)
	}
	var sess oauth.ClientSessionData
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("redis: decode oauth session: %w", err)
	}
	return &sess, nil
}

func (s *BlueskyAuthStore) SaveSession(ctx context.Context, sess oauth.ClientSessionData) error {
	if sess.AccountDID == "" || strings.TrimSpace(sess.SessionID) == "" {
		return fmt.Errorf("redis: oauth session did and id are required")
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("redis: marshal oauth session: %w", err)
	}
	if err := s.client.Set(ctx, s.sessionKey(sess.AccountDID, sess.SessionID), payload, s.opts.sessionTTL).Err(); err != nil {
		return fmt.Errorf("redis: persist oauth session: %w", err)
	}
	return nil
}

func (s *BlueskyAuthStore) DeleteSession(ctx context.Context, did syntax.DID, sessionID string) error {
	if err := s.client.Del(ctx, s.sessionKey(did, sessionID)).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis: delete oauth session: %w", err)
	}
	return nil
}

var _ oauth.ClientAuthStore = (*BlueskyAuthStore)(nil)
