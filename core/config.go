package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	defaultStateTTL            = 15 * time.Minute
	defaultGitHubAuthorizeURL  = "https://github.com/login/oauth/authorize"
	defaultGitHubInstallURL    = "https://github.com/apps"
	defaultGitHubAPIURL        = "https://api.github.com"
	defaultBlueskyAppViewURL   = "https://public.api.bsky.app"
	defaultBlueskyScope        = "atproto transition:generic"
	defaultAccountsServiceName = "accounts"
)

// DefaultRefreshTimeout bounds one shared GitHub token refresh.
const DefaultRefreshTimeout = 30 * time.Second

type Config struct {
	ServiceName  string             `koanf:"service_name" mapstructure:"service_name"`
	State        StateConfig        `koanf:"state" mapstructure:"state"`
	GitHub       GitHubConfig       `koanf:"github" mapstructure:"github"`
	Bluesky      BlueskyConfig      `koanf:"bluesky" mapstructure:"bluesky"`
	DefaultLogin DefaultLoginConfig `koanf:"default_login" mapstructure:"default_login"`
}

type StateConfig struct {
	TTL time.Duration `koanf:"ttl" mapstructure:"ttl"`
}

type GitHubConfig struct {
	ClientID     string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string `koanf:"client_secret" mapstructure:"client_secret"`
	RedirectURL  string `koanf:"redirect_url" mapstructure:"redirect_url"`
	AppName      string `koanf:"app_name" mapstructure:"app_name"`
	AuthorizeURL string `koanf:"authorize_url" mapstructure:"authorize_url"`
	InstallURL   string `koanf:"install_url" mapstructure:"install_url"`
	APIURL       string `koanf:"api_url" mapstructure:"api_url"`
}

// BlueskyConfig configures the atproto OAuth client. Authorization servers
// are discovered from each account's PDS, so none are configured here.
type BlueskyConfig struct {
	// ClientID is the client metadata document URL.
	ClientID    string `koanf:"client_id" mapstructure:"client_id"`
	RedirectURL string `koanf:"redirect_url" mapstructure:"redirect_url"`
	AppViewURL  string `koanf:"appview_url" mapstructure:"appview_url"`
	Scope       string `koanf:"scope" mapstructure:"scope"`
	UserAgent   string `koanf:"user_agent" mapstructure:"user_agent"`
}

// DefaultLoginConfig enables LoginAsDefaultUser when DID is set.
type DefaultLoginConfig struct {
	DID string `koanf:"did" mapstructure:"did"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: defaultAccountsServiceName,
		State: StateConfig{
			TTL: defaultStateTTL,
		},
		GitHub: GitHubConfig{
			AuthorizeURL: defaultGitHubAuthorizeURL,
			InstallURL:   defaultGitHubInstallURL,
			APIURL:       defaultGitHubAPIURL,
		},
		Bluesky: BlueskyConfig{
			AppViewURL: defaultBlueskyAppViewURL,
			Scope:      defaultBlueskyScope,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.State.TTL < 0 {
		return fmt.Errorf("core: state.ttl must not be negative")
	}
	for key, value := range map[string]string{
		"github.authorize_url": c.GitHub.AuthorizeURL,
		"github.install_url":   c.GitHub.InstallURL,
		"github.api_url":       c.GitHub.APIURL,
		"github.redirect_url":  c.GitHub.RedirectURL,
		"bluesky.client_id":    c.Bluesky.ClientID,
		"bluesky.appview_url":  c.Bluesky.AppViewURL,
		"bluesky.redirect_url": c.Bluesky.RedirectURL,
	} {
		if err := validateAbsoluteURL(key, value); err != nil {
			return err
		}
	}
	if did := strings.TrimSpace(c.DefaultLogin.DID); did != "" && !strings.HasPrefix(did, "did:") {
		return fmt.Errorf("core: default_login.did is invalid")
	}
	return nil
}

func (c Config) stateTTL() time.Duration {
	if c.State.TTL <= 0 {
		return defaultStateTTL
	}
	return c.State.TTL
}

func validateAbsoluteURL(key string, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("core: %s is invalid", key)
	}
	return nil
}
