package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-accounts/core"
	"github.com/goliatone/go-accounts/providers"
	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"
)

const (
	ProviderName = "github"
	APIURL       = "https://api.github.com"
	APIVersion   = "2022-11-28"

	installationsPageSize = 100
	maxInstallationPages  = 50
)

type Config struct {
	ClientID       string
	ClientSecret   string
	RedirectURL    string
	Scopes         []string
	AuthURL        string
	TokenURL       string
	APIURL         string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

// ConfigFromCore maps the orchestrator configuration onto adapter settings.
func ConfigFromCore(cfg core.GitHubConfig) Config {
	return Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		AuthURL:      cfg.AuthorizeURL,
		APIURL:       cfg.APIURL,
	}
}

// TokenProvider exchanges OAuth codes, refreshes user-to-server tokens and
// lists the App installations a token can see.
type TokenProvider struct {
	oauth  *providers.OAuth2Client
	apiURL string
}

func NewTokenProvider(cfg Config) (*TokenProvider, error) {
	endpoint := oauthgithub.Endpoint
	if strings.TrimSpace(cfg.AuthURL) != "" {
		endpoint.AuthURL = strings.TrimSpace(cfg.AuthURL)
	}
	if strings.TrimSpace(cfg.TokenURL) != "" {
		endpoint.TokenURL = strings.TrimSpace(cfg.TokenURL)
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	client, err := providers.NewOAuth2Client(providers.OAuth2ClientConfig{
		Provider: ProviderName,
		OAuth2: oauth2.Config{
			ClientID:     strings.TrimSpace(cfg.ClientID),
			ClientSecret: strings.TrimSpace(cfg.ClientSecret),
			RedirectURL:  strings.TrimSpace(cfg.RedirectURL),
			Scopes:       append([]string(nil), cfg.Scopes...),
			Endpoint:     endpoint,
		},
		HTTPClient:     cfg.HTTPClient,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}

	apiURL := strings.TrimSuffix(strings.TrimSpace(cfg.APIURL), "/")
	if apiURL == "" {
		apiURL = APIURL
	}
	return &TokenProvider{oauth: client, apiURL: apiURL}, nil
}

func (p *TokenProvider) GetAccessToken(ctx context.Context, code string) (core.TokenGrant, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return core.TokenGrant{}, err
	}
	return providers.GrantFromToken(token), nil
}

func (p *TokenProvider) RefreshAccessToken(ctx context.Context, refreshToken string) (core.TokenGrant, error) {
	token, err := p.oauth.Refresh(ctx, refreshToken)
	if err != nil {
		return core.TokenGrant{}, err
	}
	return providers.GrantFromToken(token), nil
}

type installationsPage struct {
	TotalCount    int                  `json:"total_count"`
	Installations []installationRecord `json:"installations"`
}

type installationRecord struct {
	ID      int64  `json:"id"`
	AppSlug string `json:"app_slug"`
	Account struct {
		Login string `json:"login"`
		Type  string `json:"type"`
	} `json:"account"`
	TargetType          string    `json:"target_type"`
	RepositorySelection string    `json:"repository_selection"`
	HTMLURL             string    `json:"html_url"`
	CreatedAt           time.Time `json:"created_at"`
}

// ListInstallations walks GET /user/installations until every page is read.
func (p *TokenProvider) ListInstallations(ctx context.Context, accessToken string) ([]core.Installation, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, fmt.Errorf("github: access token is required")
	}

	out := []core.Installation{}
	for page := 1; page <= maxInstallationPages; page++ {
		query := url.Values{
			"per_page": []string{strconv.Itoa(installationsPageSize)},
			"page":     []string{strconv.Itoa(page)},
		}
		req, err := providers.NewGet(ctx, p.apiURL+"/user/installations?"+query.Encode())
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", APIVersion)

		var payload installationsPage
		if _, err := providers.GetJSON(p.oauth.HTTPClient(), req, ProviderName, "list installations", &payload); err != nil {
			return nil, err
		}
		for _, record := range payload.Installations {
			out = append(out, core.Installation{
				ID:                  record.ID,
				AppSlug:             record.AppSlug,
				AccountLogin:        record.Account.Login,
				AccountType:         record.Account.Type,
				TargetType:          record.TargetType,
				RepositorySelection: record.RepositorySelection,
				HTMLURL:             record.HTMLURL,
				CreatedAt:           record.CreatedAt.UTC(),
			})
		}
		if len(payload.Installations) < installationsPageSize || len(out) >= payload.TotalCount {
			break
		}
	}
	return out, nil
}

var _ core.GitHubTokenProvider = (*TokenProvider)(nil)
