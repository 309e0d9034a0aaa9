package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-accounts/core"
	"golang.org/x/oauth2"
)

const defaultRequestTimeout = 30 * time.Second

type ProviderError = core.ProviderError

// OAuth2Client wraps an oauth2.Config with a request timeout, a dedicated
// HTTP client and provider-aware error classification.
type OAuth2Client struct {
	provider   string
	config     oauth2.Config
	httpClient *http.Client
	timeout    time.Duration
}

type OAuth2ClientConfig struct {
	Provider       string
	OAuth2         oauth2.Config
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

func NewOAuth2Client(cfg OAuth2ClientConfig) (*OAuth2Client, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider == "" {
		return nil, fmt.Errorf("providers: provider name is required")
	}
	if strings.TrimSpace(cfg.OAuth2.ClientID) == "" {
		return nil, fmt.Errorf("providers: client id is required for provider %q", provider)
	}
	if strings.TrimSpace(cfg.OAuth2.Endpoint.TokenURL) == "" {
		return nil, fmt.Errorf("providers: token url is required for provider %q", provider)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &OAuth2Client{
		provider:   provider,
		config:     cfg.OAuth2,
		httpClient: httpClient,
		timeout:    timeout,
	}, nil
}

func (c *OAuth2Client) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("providers: authorization code is required")
	}
	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	token, err := c.config.Exchange(requestCtx, code, opts...)
	if err != nil {
		return nil, ClassifyError(c.provider, "token exchange", err)
	}
	return token, nil
}

// Refresh forces a refresh_token grant regardless of the current expiry.
func (c *OAuth2Client) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, fmt.Errorf("providers: refresh token is required")
	}
	requestCtx, cancel := c.requestContext(ctx)
	defer cancel()

	source := c.config.TokenSource(requestCtx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, ClassifyError(c.provider, "token refresh", err)
	}
	return token, nil
}

func (c *OAuth2Client) HTTPClient() *http.Client {
	return c.httpClient
}

func (c *OAuth2Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return context.WithTimeout(ctx, c.timeout)
}

// GrantFromToken converts an oauth2 token, leaving absent values nil.
func GrantFromToken(token *oauth2.Token) core.TokenGrant {
	if token == nil {
		return core.TokenGrant{}
	}
	grant := core.TokenGrant{AccessToken: strings.TrimSpace(token.AccessToken)}
	if refresh := strings.TrimSpace(token.RefreshToken); refresh != "" {
		grant.RefreshToken = &refresh
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		grant.ExpiresAt = &expiry
	}
	return grant
}

// ClassifyError converts oauth2 and transport failures into a
// core.ProviderError carrying the retry hint.
func ClassifyError(provider string, operation string, err error) error {
	if err == nil {
		return nil
	}
	var providerErr *core.ProviderError
	if errors.As(err, &providerErr) {
		return err
	}
	out := &core.ProviderError{Provider: provider, Operation: operation, Err: err}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil {
			out.StatusCode = retrieveErr.Response.StatusCode
		}
		out.Code = strings.TrimSpace(retrieveErr.ErrorCode)
		out.Retryable = out.Code == "" && core.RetryableStatus(out.StatusCode)
		if out.Code == "slow_down" || out.Code == "temporarily_unavailable" {
			out.Retryable = true
		}
		if retrieveErr.Response != nil {
			applyRateLimit(out, retrieveErr.Response.Header)
		}
		return out
	}
	if errors.Is(err, context.Canceled) {
		return out
	}
	// Anything else is a transport failure.
	out.Retryable = true
	return out
}
