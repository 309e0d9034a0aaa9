package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// StartGitHubAccessTokenFlow returns the GitHub OAuth authorize URL carrying
// a fresh correlation state for contextKey.
func (o *Orchestrator) StartGitHubAccessTokenFlow(ctx context.Context, contextKey string) (redirectURL string, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"context_key": contextKeyFingerprint(contextKey),
	}
	defer func() {
		o.observeOperation(ctx, startedAt, "start_github_access_token_flow", err, fields)
	}()

	redirectURL, err = o.startGitHubAccessTokenFlow(ctx, contextKey)
	if err != nil {
		return "", o.mapError("start_github_access_token_flow", err)
	}
	return redirectURL, nil
}

func (o *Orchestrator) startGitHubAccessTokenFlow(ctx context.Context, contextKey string) (string, error) {
	if err := requireContextKey(contextKey); err != nil {
		return "", err
	}
	cfg := o.config.GitHub
	if strings.TrimSpace(cfg.ClientID) == "" {
		return "", fmt.Errorf("github client_id: %w", ErrNotConfigured)
	}
	authorizeURL := strings.TrimSpace(cfg.AuthorizeURL)
	if authorizeURL == "" {
		authorizeURL = defaultGitHubAuthorizeURL
	}

	state, err := o.issueState(ctx, contextKey)
	if err != nil {
		return "", err
	}
	oauthCfg := oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: strings.TrimSpace(cfg.RedirectURL),
		Endpoint:    oauth2.Endpoint{AuthURL: authorizeURL},
	}
	return oauthCfg.AuthCodeURL(state.State), nil
}

// StartGitHubAppsInstallation returns the GitHub App installation URL
// carrying a fresh correlation state for contextKey.
func (o *Orchestrator) StartGitHubAppsInstallation(ctx context.Context, contextKey string) (redirectURL string, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"context_key": contextKeyFingerprint(contextKey),
		"app_name":    o.config.GitHub.AppName,
	}
	defer func() {
		o.observeOperation(ctx, startedAt, "start_github_apps_installation", err, fields)
	}()

	redirectURL, err = o.startGitHubAppsInstallation(ctx, contextKey)
	if err != nil {
		return "", o.mapError("start_github_apps_installation", err)
	}
	return redirectURL, nil
}

func (o *Orchestrator) startGitHubAppsInstallation(ctx context.Context, contextKey string) (string, error) {
	if err := requireContextKey(contextKey); err != nil {
		return "", err
	}
	appName := strings.TrimSpace(o.config.GitHub.AppName)
	if appName == "" {
		return "", fmt.Errorf("github app_name: %w", ErrNotConfigured)
	}
	base := strings.TrimSuffix(strings.TrimSpace(o.config.GitHub.InstallURL), "/")
	if base == "" {
		base = defaultGitHubInstallURL
	}

	state, err := o.issueState(ctx, contextKey)
	if err != nil {
		return "", err
	}
	query := url.Values{"state": []string{state.State}}
	return base + "/" + url.PathEscape(appName) + "/installations/new?" + query.Encode(), nil
}

// ConnectGitHub verifies the echoed state, exchanges code for tokens and
// stores the resulting connection for userID.
func (o *Orchestrator) ConnectGitHub(ctx context.Context, userID string, code string, state string, contextKey string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"context_key": contextKeyFingerprint(contextKey),
		"user_id":     strings.TrimSpace(userID),
	}
	defer func() {
		o.observeOperation(ctx, startedAt, "connect_github", err, fields)
	}()

	conn, err := o.connectGitHub(ctx, strings.TrimSpace(userID), code, state, contextKey)
	if err != nil {
		return o.mapError("connect_github", err)
	}
	fields["connection_id"] = conn.ID
	fields["refreshable"] = conn.Refreshable()
	return nil
}

func (o *Orchestrator) connectGitHub(ctx context.Context, userID string, code string, state string, contextKey string) (GitHubConnection, error) {
	if err := requireContextKey(contextKey); err != nil {
		return GitHubConnection{}, err
	}
	if err := requireValue("user id", userID); err != nil {
		return GitHubConnection{}, err
	}
	if err := requireValue("authorization code", code); err != nil {
		return GitHubConnection{}, err
	}
	if err := o.requireGitHubTokenProvider(); err != nil {
		return GitHubConnection{}, err
	}
	if err := o.requireConnectionStore(); err != nil {
		return GitHubConnection{}, err
	}

	if err := o.verifyState(ctx, contextKey, state); err != nil {
		return GitHubConnection{}, err
	}
	grant, err := o.githubTokenProvider.GetAccessToken(ctx, code)
	if err != nil {
		return GitHubConnection{}, err
	}
	if strings.TrimSpace(grant.AccessToken) == "" {
		return GitHubConnection{}, &ProviderError{Provider: "github", Operation: "token exchange", Err: fmt.Errorf("empty access token")}
	}
	return o.connectionStore.Create(ctx, CreateConnectionInput{
		UserID:       userID,
		AccessToken:  grant.AccessToken,
		RefreshToken: nonEmpty(grant.RefreshToken),
		ExpiresAt:    cloneTime(grant.ExpiresAt),
	})
}

func (o *Orchestrator) DisconnectGitHub(ctx context.Context, userID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": strings.TrimSpace(userID)}
	defer func() {
		o.observeOperation(ctx, startedAt, "disconnect_github", err, fields)
	}()

	if err := requireValue("user id", userID); err != nil {
		return o.mapError("disconnect_github", err)
	}
	if err := o.requireConnectionStore(); err != nil {
		return o.mapError("disconnect_github", err)
	}
	if err := o.connectionStore.DeleteByUserID(ctx, strings.TrimSpace(userID)); err != nil {
		return o.mapError("disconnect_github", err)
	}
	return nil
}

// ListGitHubInstallations lists the App installations visible to the user,
// refreshing the access token first when it has expired.
func (o *Orchestrator) ListGitHubInstallations(ctx context.Context, userID string) (installations []Installation, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": strings.TrimSpace(userID)}
	defer func() {
		o.observeOperation(ctx, startedAt, "list_github_installations", err, fields)
	}()

	installations, refreshed, err := o.listGitHubInstallations(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, o.mapError("list_github_installations", err)
	}
	fields["refreshed"] = refreshed
	fields["count"] = len(installations)
	return installations, nil
}

func (o *Orchestrator) listGitHubInstallations(ctx context.Context, userID string) ([]Installation, bool, error) {
	if err := requireValue("user id", userID); err != nil {
		return nil, false, err
	}
	if err := o.requireGitHubTokenProvider(); err != nil {
		return nil, false, err
	}
	if err := o.requireConnectionStore(); err != nil {
		return nil, false, err
	}

	conn, err := o.connectionStore.FindByUserID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	refreshed := false
	if conn.Expired(o.now()) {
		conn, err = o.refreshCoalesced(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		refreshed = true
	}
	installations, err := o.githubTokenProvider.ListInstallations(ctx, conn.AccessToken)
	if err != nil {
		return nil, refreshed, err
	}
	return installations, refreshed, nil
}
