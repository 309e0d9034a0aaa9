package accounts

import "github.com/goliatone/go-accounts/core"

type Config = core.Config

type Option = core.Option

type Orchestrator = core.Orchestrator

type Dependencies = core.Dependencies

type UserAccount = core.UserAccount
type Profile = core.Profile
type Principal = core.Principal
type Session = core.Session
type CorrelationState = core.CorrelationState
type GitHubConnection = core.GitHubConnection
type Installation = core.Installation
type ListUsersOptions = core.ListUsersOptions

type IdentityProvider = core.IdentityProvider
type GitHubTokenProvider = core.GitHubTokenProvider
type StateStore = core.StateStore
type SessionStore = core.SessionStore
type AccountStore = core.AccountStore
type ConnectionStore = core.ConnectionStore

type ProviderError = core.ProviderError

var (
	WithLogger              = core.WithLogger
	WithLoggerProvider      = core.WithLoggerProvider
	WithMetricsRecorder     = core.WithMetricsRecorder
	WithErrorMapper         = core.WithErrorMapper
	WithConfigProvider      = core.WithConfigProvider
	WithOptionsResolver     = core.WithOptionsResolver
	WithClock               = core.WithClock
	WithStateGenerator      = core.WithStateGenerator
	WithStateStore          = core.WithStateStore
	WithSessionStore        = core.WithSessionStore
	WithIdentityProvider    = core.WithIdentityProvider
	WithGitHubTokenProvider = core.WithGitHubTokenProvider
	WithAccountStore        = core.WithAccountStore
	WithConnectionStore     = core.WithConnectionStore
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewOrchestrator(cfg Config, opts ...Option) (*Orchestrator, error) {
	return core.NewOrchestrator(cfg, opts...)
}
