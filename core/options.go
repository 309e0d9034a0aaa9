package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// StateGenerator returns a fresh unguessable correlation value.
type StateGenerator func() (string, error)

type orchestratorBuilder struct {
	runtimeConfig       Config
	logger              Logger
	loggerProvider      LoggerProvider
	metricsRecorder     MetricsRecorder
	errorMapper         ErrorMapper
	configProvider      ConfigProvider
	optionsResolver     OptionsResolver
	clock               func() time.Time
	stateGenerator      StateGenerator
	stateStore          StateStore
	sessionStore        SessionStore
	identityProvider    IdentityProvider
	githubTokenProvider GitHubTokenProvider
	accountStore        AccountStore
	connectionStore     ConnectionStore
	refreshTimeout      time.Duration
}

type Option func(*orchestratorBuilder)

func WithLogger(logger Logger) Option {
	return func(b *orchestratorBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *orchestratorBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *orchestratorBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *orchestratorBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *orchestratorBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *orchestratorBuilder) {
		b.optionsResolver = resolver
	}
}

func WithClock(clock func() time.Time) Option {
	return func(b *orchestratorBuilder) {
		b.clock = clock
	}
}

func WithStateGenerator(generator StateGenerator) Option {
	return func(b *orchestratorBuilder) {
		b.stateGenerator = generator
	}
}

func WithStateStore(store StateStore) Option {
	return func(b *orchestratorBuilder) {
		b.stateStore = store
	}
}

func WithSessionStore(store SessionStore) Option {
	return func(b *orchestratorBuilder) {
		b.sessionStore = store
	}
}

func WithIdentityProvider(provider IdentityProvider) Option {
	return func(b *orchestratorBuilder) {
		b.identityProvider = provider
	}
}

func WithGitHubTokenProvider(provider GitHubTokenProvider) Option {
	return func(b *orchestratorBuilder) {
		b.githubTokenProvider = provider
	}
}

func WithAccountStore(store AccountStore) Option {
	return func(b *orchestratorBuilder) {
		b.accountStore = store
	}
}

func WithConnectionStore(store ConnectionStore) Option {
	return func(b *orchestratorBuilder) {
		b.connectionStore = store
	}
}

// WithRefreshTimeout bounds a coalesced refresh. The shared call outlives
// the caller that started it, so it needs its own deadline.
func WithRefreshTimeout(timeout time.Duration) Option {
	return func(b *orchestratorBuilder) {
		b.refreshTimeout = timeout
	}
}

func defaultOrchestratorBuilder(runtime Config) orchestratorBuilder {
	loggerProvider, logger := glog.Resolve("accounts", nil, nil)
	return orchestratorBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     accountsErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		clock:           defaultClock,
		stateGenerator:  GenerateState,
		refreshTimeout:  DefaultRefreshTimeout,
	}
}

func defaultClock() time.Time {
	return time.Now().UTC()
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// StaticConfigLoader serves a fixed raw map, useful for embedding callers
// that already parsed their configuration.
func StaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver merges defaults, loaded and runtime configuration with
// runtime values taking precedence.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	putString(layer, "service_name", cfg.ServiceName, includeZero)

	if includeZero || cfg.State.TTL > 0 {
		layer["state"] = map[string]any{"ttl": cfg.State.TTL}
	}

	github := map[string]any{}
	putString(github, "client_id", cfg.GitHub.ClientID, includeZero)
	putString(github, "client_secret", cfg.GitHub.ClientSecret, includeZero)
	putString(github, "redirect_url", cfg.GitHub.RedirectURL, includeZero)
	putString(github, "app_name", cfg.GitHub.AppName, includeZero)
	putString(github, "authorize_url", cfg.GitHub.AuthorizeURL, includeZero)
	putString(github, "install_url", cfg.GitHub.InstallURL, includeZero)
	putString(github, "api_url", cfg.GitHub.APIURL, includeZero)
	if len(github) > 0 {
		layer["github"] = github
	}

	bluesky := map[string]any{}
	putString(bluesky, "client_id", cfg.Bluesky.ClientID, includeZero)
	putString(bluesky, "redirect_url", cfg.Bluesky.RedirectURL, includeZero)
	putString(bluesky, "appview_url", cfg.Bluesky.AppViewURL, includeZero)
	putString(bluesky, "scope", cfg.Bluesky.Scope, includeZero)
	putString(bluesky, "user_agent", cfg.Bluesky.UserAgent, includeZero)
	if len(bluesky) > 0 {
		layer["bluesky"] = bluesky
	}

	defaultLogin := map[string]any{}
	putString(defaultLogin, "did", cfg.DefaultLogin.DID, includeZero)
	if len(defaultLogin) > 0 {
		layer["default_login"] = defaultLogin
	}
	return layer
}

func putString(layer map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		layer[key] = value
	}
}
