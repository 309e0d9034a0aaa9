package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/sync/singleflight"
)

// Orchestrator coordinates the identity, GitHub and session collaborators.
// It keeps no per-request state; everything durable lives in the stores.
type Orchestrator struct {
	config              Config
	logger              Logger
	loggerProvider      LoggerProvider
	metricsRecorder     MetricsRecorder
	errorMapper         ErrorMapper
	configProvider      ConfigProvider
	optionsResolver     OptionsResolver
	now                 func() time.Time
	generateState       StateGenerator
	stateStore          StateStore
	sessionStore        SessionStore
	identityProvider    IdentityProvider
	githubTokenProvider GitHubTokenProvider
	accountStore        AccountStore
	connectionStore     ConnectionStore
	refreshTimeout      time.Duration

	refreshGroup singleflight.Group
}

func NewOrchestrator(cfg Config, opts ...Option) (*Orchestrator, error) {
	builder := defaultOrchestratorBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("accounts", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("accounts"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = accountsErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.clock == nil {
		builder.clock = defaultClock
	}
	if builder.stateGenerator == nil {
		builder.stateGenerator = GenerateState
	}
	if builder.refreshTimeout <= 0 {
		builder.refreshTimeout = DefaultRefreshTimeout
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.stateStore == nil {
		store := NewMemoryStateStore(finalConfig.stateTTL())
		store.now = builder.clock
		builder.stateStore = store
	}
	if builder.sessionStore == nil {
		builder.sessionStore = NewMemorySessionStore()
	}

	return &Orchestrator{
		config:              finalConfig,
		logger:              logger,
		loggerProvider:      provider,
		metricsRecorder:     builder.metricsRecorder,
		errorMapper:         builder.errorMapper,
		configProvider:      builder.configProvider,
		optionsResolver:     builder.optionsResolver,
		now:                 builder.clock,
		generateState:       builder.stateGenerator,
		stateStore:          builder.stateStore,
		sessionStore:        builder.sessionStore,
		identityProvider:    builder.identityProvider,
		githubTokenProvider: builder.githubTokenProvider,
		accountStore:        builder.accountStore,
		connectionStore:     builder.connectionStore,
		refreshTimeout:      builder.refreshTimeout,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (o *Orchestrator) Config() Config {
	if o == nil {
		return Config{}
	}
	return o.config
}

func (o *Orchestrator) Dependencies() Dependencies {
	if o == nil {
		return Dependencies{}
	}
	return Dependencies{
		Logger:              o.logger,
		LoggerProvider:      o.loggerProvider,
		MetricsRecorder:     o.metricsRecorder,
		ErrorMapper:         o.errorMapper,
		ConfigProvider:      o.configProvider,
		OptionsResolver:     o.optionsResolver,
		StateStore:          o.stateStore,
		SessionStore:        o.sessionStore,
		IdentityProvider:    o.identityProvider,
		GitHubTokenProvider: o.githubTokenProvider,
		AccountStore:        o.accountStore,
		ConnectionStore:     o.connectionStore,
	}
}

// mapError turns any collaborator failure into the uniform envelope tagged
// with the public operation name and retry hint.
func (o *Orchestrator) mapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var mapped *goerrors.Error
	if o != nil && o.errorMapper != nil {
		mapped = o.errorMapper(err)
	}
	if mapped == nil {
		mapped = accountsErrorMapper(err)
	}
	if mapped == nil {
		return err
	}
	// Mappers may hand back the collaborator's own error, which coalesced
	// callers share. Stamp a private copy.
	mapped = ensureServiceErrorEnvelope(mapped.Clone())

	metadata := map[string]any{MetadataOperation: normalizeOperation(operation)}
	if _, exists := mapped.Metadata[MetadataRetryable]; !exists {
		metadata[MetadataRetryable] = isRetryableError(err)
	}
	return mapped.WithMetadata(metadata)
}

func (o *Orchestrator) issueState(ctx context.Context, contextKey string) (CorrelationState, error) {
	value, err := o.generateState()
	if err != nil {
		return CorrelationState{}, err
	}
	if strings.TrimSpace(value) == "" {
		return CorrelationState{}, fmt.Errorf("core: generated oauth state is empty")
	}
	now := o.now()
	state := CorrelationState{
		State:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(o.config.stateTTL()),
	}
	if err := o.stateStore.Set(ctx, contextKey, state); err != nil {
		return CorrelationState{}, err
	}
	return state, nil
}

// verifyState reads and consumes the stored state for contextKey and checks
// it against the value echoed back by the provider.
func (o *Orchestrator) verifyState(ctx context.Context, contextKey string, received string) error {
	stored, err := o.stateStore.Take(ctx, contextKey)
	if err != nil {
		return err
	}
	if !statesEqual(stored.State, received) {
		return ErrStateMismatch
	}
	return nil
}

func requireContextKey(contextKey string) error {
	if strings.TrimSpace(contextKey) == "" {
		return fmt.Errorf("core: context key is required")
	}
	return nil
}

func requireValue(name string, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("core: %s is required", name)
	}
	return nil
}

func (o *Orchestrator) requireIdentityProvider() error {
	if o.identityProvider == nil {
		return fmt.Errorf("identity provider: %w", ErrNotConfigured)
	}
	return nil
}

func (o *Orchestrator) requireGitHubTokenProvider() error {
	if o.githubTokenProvider == nil {
		return fmt.Errorf("github token provider: %w", ErrNotConfigured)
	}
	return nil
}

func (o *Orchestrator) requireAccountStore() error {
	if o.accountStore == nil {
		return fmt.Errorf("account store: %w", ErrNotConfigured)
	}
	return nil
}

func (o *Orchestrator) requireConnectionStore() error {
	if o.connectionStore == nil {
		return fmt.Errorf("connection store: %w", ErrNotConfigured)
	}
	return nil
}
