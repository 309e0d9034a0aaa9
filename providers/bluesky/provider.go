package bluesky

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/auth/oauth"
	"github.com/bluesky-social/indigo/atproto/identity"
	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/goliatone/go-accounts/core"
	"github.com/goliatone/go-accounts/providers"
)

const (
	ProviderName          = "bluesky"
	AppViewURL            = "https://public.api.bsky.app"
	DefaultScope          = "atproto transition:generic"
	DefaultRequestTimeout = 15 * time.Second
)

// Error names returned by the AppView when an actor cannot be served.
var unavailableActorErrors = map[string]struct{}{
	"InvalidRequest":     {},
	"AccountTakedown":    {},
	"AccountDeactivated": {},
	"ProfileNotFound":    {},
	"ActorNotFound":      {},
}

type Config struct {
	// ClientID is the URL of the client metadata document. Empty builds a
	// localhost development client.
	ClientID    string
	RedirectURL string
	AppViewURL  string
	Scope       string
	UserAgent   string

	// HTTPClient replaces the transport for auth server and AppView calls.
	// The default auth transport refuses private addresses.
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	Directory      identity.Directory
	Store          AuthStore
}

func ConfigFromCore(cfg core.BlueskyConfig) Config {
	return Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURL,
		AppViewURL:  cfg.AppViewURL,
		Scope:       cfg.Scope,
		UserAgent:   cfg.UserAgent,
	}
}

// Provider implements core.IdentityProvider with atproto OAuth (PAR, PKCE
// and DPoP bound tokens) and reads profiles from a Bluesky AppView.
type Provider struct {
	app     *oauth.ClientApp
	store   AuthStore
	appView *xrpc.Client
}

func New(cfg Config) (*Provider, error) {
	redirectURL := strings.TrimSpace(cfg.RedirectURL)
	if redirectURL == "" {
		return nil, fmt.Errorf("bluesky: redirect url is required")
	}
	scope := strings.TrimSpace(cfg.Scope)
	if scope == "" {
		scope = DefaultScope
	}
	scopes := strings.Fields(scope)
	if !slices.Contains(scopes, "atproto") {
		return nil, fmt.Errorf("bluesky: scope must include atproto")
	}

	var clientCfg oauth.ClientConfig
	if clientID := strings.TrimSpace(cfg.ClientID); clientID != "" {
		clientCfg = oauth.NewPublicConfig(clientID, redirectURL, scopes)
	} else {
		clientCfg = oauth.NewLocalhostConfig(redirectURL, scopes)
	}
	if ua := strings.TrimSpace(cfg.UserAgent); ua != "" {
		clientCfg.UserAgent = ua
	}

	store := cfg.Store
	if store == nil {
		store = NewMemoryAuthStore(0)
	}
	app := oauth.NewClientApp(&clientCfg, &trackingStore{AuthStore: store})
	if cfg.HTTPClient != nil {
		app.Client = cfg.HTTPClient
		app.Resolver.Client = cfg.HTTPClient
	}
	if cfg.Directory != nil {
		app.Dir = cfg.Directory
	}

	appViewClient := cfg.HTTPClient
	if appViewClient == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = DefaultRequestTimeout
		}
		appViewClient = &http.Client{Timeout: timeout}
	}
	appView := strings.TrimSuffix(strings.TrimSpace(cfg.AppViewURL), "/")
	if appView == "" {
		appView = AppViewURL
	}
	userAgent := clientCfg.UserAgent

	return &Provider{
		app:   app,
		store: store,
		appView: &xrpc.Client{
			Client:    appViewClient,
			Host:      appView,
			UserAgent: &userAgent,
		},
	}, nil
}

// Authorize resolves the handle to its authorization server, pushes the
// authorization request and returns the redirect URL. The request's own
// OAuth state is linked to state so Callback can report it back.
func (p *Provider) Authorize(ctx context.Context, handle string, state string) (string, error) {
	parsed, err := syntax.ParseHandle(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
	if err != nil {
		return "", fmt.Errorf("bluesky: handle is invalid: %w", err)
	}
	if strings.TrimSpace(state) == "" {
		return "", fmt.Errorf("bluesky: state is required")
	}

	pending := &pendingRequest{}
	redirectURL, err := p.app.StartAuthFlow(withPendingRequest(ctx, pending), parsed.Normalize().String())
	if err != nil {
		return "", providers.ClassifyError(ProviderName, "authorize", err)
	}
	if pending.err != nil {
		return "", fmt.Errorf("bluesky: persist auth request: %w", pending.err)
	}
	if pending.state == "" {
		return "", fmt.Errorf("bluesky: auth request was not persisted")
	}
	if err := p.store.LinkAuthRequest(ctx, pending.state, state); err != nil {
		return "", fmt.Errorf("bluesky: link auth request: %w", err)
	}
	return redirectURL, nil
}

// Callback consumes the link for the returned request state, then lets the
// OAuth client verify the issuer and redeem the code with the PKCE verifier
// and DPoP key from the pushed request.
func (p *Provider) Callback(ctx context.Context, params url.Values) (core.CallbackIdentity, error) {
	requestState := strings.TrimSpace(params.Get("state"))
	if requestState == "" {
		return core.CallbackIdentity{}, fmt.Errorf("bluesky: %w: callback state is missing", core.ErrStateMismatch)
	}
	state, err := p.store.TakeAuthRequestLink(ctx, requestState)
	if err != nil {
		if errors.Is(err, core.ErrStateNotFound) {
			return core.CallbackIdentity{}, fmt.Errorf("bluesky: %w: unknown auth request", core.ErrStateMismatch)
		}
		return core.CallbackIdentity{}, fmt.Errorf("bluesky: load auth request link: %w", err)
	}

	session, err := p.app.ProcessCallback(ctx, params)
	if err != nil {
		var callbackErr *oauth.AuthRequestCallbackError
		if errors.As(err, &callbackErr) {
			return core.CallbackIdentity{}, &core.ProviderError{
				Provider:  ProviderName,
				Operation: "authorize",
				Code:      callbackErr.ErrorCode,
				Err:       errors.New(callbackErr.ErrorDescription),
			}
		}
		return core.CallbackIdentity{}, &core.ProviderError{
			Provider:  ProviderName,
			Operation: "token exchange",
			Err:       err,
		}
	}
	return core.CallbackIdentity{DID: session.AccountDID.String(), State: state}, nil
}

// ValidateSession confirms the DID still resolves to a servable account.
func (p *Provider) ValidateSession(ctx context.Context, did string) (string, error) {
	parsed, err := syntax.ParseDID(strings.TrimSpace(did))
	if err != nil {
		return "", fmt.Errorf("bluesky: %w: %v", core.ErrIdentityInvalid, err)
	}
	profile, err := p.fetchProfile(ctx, parsed.String())
	if err != nil {
		if actorUnavailable(err) {
			return "", fmt.Errorf("bluesky: %w: %v", core.ErrIdentityInvalid, err)
		}
		return "", err
	}
	if profile.Did != "" && profile.Did != parsed.String() {
		return "", fmt.Errorf("bluesky: %w: appview returned %s", core.ErrIdentityInvalid, profile.Did)
	}
	return parsed.String(), nil
}

func (p *Provider) GetUserProfile(ctx context.Context, did string) (core.ProviderProfile, error) {
	parsed, err := syntax.ParseDID(strings.TrimSpace(did))
	if err != nil {
		return core.ProviderProfile{}, fmt.Errorf("bluesky: did is invalid: %w", err)
	}
	profile, err := p.fetchProfile(ctx, parsed.String())
	if err != nil {
		if actorUnavailable(err) {
			return core.ProviderProfile{}, fmt.Errorf("bluesky: %w: %v", core.ErrProfileNotFound, err)
		}
		return core.ProviderProfile{}, err
	}
	return core.ProviderProfile{
		Handle:      profile.Handle,
		DisplayName: optional(profile.DisplayName),
		Description: optional(profile.Description),
		Avatar:      optional(profile.Avatar),
		Banner:      optional(profile.Banner),
	}, nil
}

func (p *Provider) fetchProfile(ctx context.Context, actor string) (*bsky.ActorDefs_ProfileViewDetailed, error) {
	profile, err := bsky.ActorGetProfile(ctx, p.appView, actor)
	if err != nil {
		return nil, appViewError("get profile", err)
	}
	return profile, nil
}

// appViewError turns xrpc failures into provider errors so retry and
// throttling hints survive.
func appViewError(operation string, err error) error {
	var xrpcErr *xrpc.Error
	if !errors.As(err, &xrpcErr) {
		return providers.ClassifyError(ProviderName, operation, err)
	}
	out := &core.ProviderError{
		Provider:   ProviderName,
		Operation:  operation,
		StatusCode: xrpcErr.StatusCode,
		Retryable:  core.RetryableStatus(xrpcErr.StatusCode),
		Err:        err,
	}
	var body *xrpc.XRPCError
	if errors.As(err, &body) {
		out.Code = strings.TrimSpace(body.ErrStr)
	}
	if xrpcErr.IsThrottled() {
		out.Retryable = true
		if xrpcErr.Ratelimit != nil {
			if wait := time.Until(xrpcErr.Ratelimit.Reset); wait > 0 {
				out.RetryAfter = wait
			}
		}
		if out.Code == "" {
			out.Code = "rate_limited"
		}
	}
	return out
}

func actorUnavailable(err error) bool {
	switch providers.StatusOf(err) {
	case http.StatusNotFound:
		return true
	case http.StatusBadRequest:
		var providerErr *core.ProviderError
		if !errors.As(err, &providerErr) {
			return false
		}
		_, ok := unavailableActorErrors[providerErr.Code]
		return ok
	default:
		return false
	}
}

func optional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

var _ core.IdentityProvider = (*Provider)(nil)
