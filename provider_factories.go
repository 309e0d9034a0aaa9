package accounts

import (
	"strings"

	"github.com/goliatone/go-accounts/core"
	"github.com/goliatone/go-accounts/providers/bluesky"
	"github.com/goliatone/go-accounts/providers/github"
)

func NewBlueskyProvider(cfg core.BlueskyConfig) (*bluesky.Provider, error) {
	return bluesky.New(bluesky.ConfigFromCore(cfg))
}

func NewGitHubTokenProvider(cfg core.GitHubConfig) (*github.TokenProvider, error) {
	return github.NewTokenProvider(github.ConfigFromCore(cfg))
}

// ProviderOptions builds the provider adapters for every configured section
// of cfg. Sections without a client id are skipped so the orchestrator
// reports them as not configured.
func ProviderOptions(cfg Config) ([]Option, error) {
	var opts []Option
	if strings.TrimSpace(cfg.Bluesky.ClientID) != "" {
		provider, err := NewBlueskyProvider(cfg.Bluesky)
		if err != nil {
			return nil, err
		}
		opts = append(opts, core.WithIdentityProvider(provider))
	}
	if strings.TrimSpace(cfg.GitHub.ClientID) != "" {
		provider, err := NewGitHubTokenProvider(cfg.GitHub)
		if err != nil {
			return nil, err
		}
		opts = append(opts, core.WithGitHubTokenProvider(provider))
	}
	return opts, nil
}
