package core

import (
	"context"
	"net/url"

	glog "github.com/goliatone/go-logger/glog"
)

// IdentityProvider performs the AT-Protocol OAuth handshake and profile
// lookups. Wire formats belong to the adapter.
type IdentityProvider interface {
	Authorize(ctx context.Context, handle string, state string) (string, error)
	Callback(ctx context.Context, params url.Values) (CallbackIdentity, error)
	ValidateSession(ctx context.Context, did string) (string, error)
	GetUserProfile(ctx context.Context, did string) (ProviderProfile, error)
}

type GitHubTokenProvider interface {
	GetAccessToken(ctx context.Context, code string) (TokenGrant, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (TokenGrant, error)
	ListInstallations(ctx context.Context, accessToken string) ([]Installation, error)
}

// StateStore keeps one CorrelationState per context key. Get and Take return
// ErrStateNotFound when the key is absent or the state has expired. Take
// reads and removes the entry in one step so a state verifies at most once.
type StateStore interface {
	Get(ctx context.Context, key string) (CorrelationState, error)
	Set(ctx context.Context, key string, state CorrelationState) error
	Take(ctx context.Context, key string) (CorrelationState, error)
	Delete(ctx context.Context, key string) error
}

// SessionStore keeps the signed-in principal per context key. Get returns
// ErrSessionNotFound when absent; Remove is idempotent.
type SessionStore interface {
	Get(ctx context.Context, key string) (Session, error)
	Set(ctx context.Context, key string, session Session) error
	Remove(ctx context.Context, key string) error
}

// AccountStore lookups return ErrAccountNotFound when no row matches.
type AccountStore interface {
	FindByDID(ctx context.Context, did string) (UserAccount, error)
	FindByID(ctx context.Context, id string) (UserAccount, error)
	FindByHandle(ctx context.Context, handle string) (UserAccount, error)
	Create(ctx context.Context, in CreateAccountInput) (UserAccount, error)
	Update(ctx context.Context, account UserAccount) (UserAccount, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, opts ListUsersOptions) ([]UserAccount, error)
}

// ConnectionStore holds at most one GitHubConnection per user. Create
// replaces an existing connection for the same user.
type ConnectionStore interface {
	FindByUserID(ctx context.Context, userID string) (GitHubConnection, error)
	Create(ctx context.Context, in CreateConnectionInput) (GitHubConnection, error)
	Update(ctx context.Context, conn GitHubConnection) (GitHubConnection, error)
	DeleteByUserID(ctx context.Context, userID string) error
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// Dependencies exposes the resolved collaborators of an Orchestrator.
type Dependencies struct {
	Logger              Logger
	LoggerProvider      LoggerProvider
	MetricsRecorder     MetricsRecorder
	ErrorMapper         ErrorMapper
	ConfigProvider      ConfigProvider
	OptionsResolver     OptionsResolver
	StateStore          StateStore
	SessionStore        SessionStore
	IdentityProvider    IdentityProvider
	GitHubTokenProvider GitHubTokenProvider
	AccountStore        AccountStore
	ConnectionStore     ConnectionStore
}
