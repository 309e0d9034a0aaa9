package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RefreshGitHubConnection exchanges the stored refresh token for new tokens.
// Concurrent calls for the same user share one provider round trip.
func (o *Orchestrator) RefreshGitHubConnection(ctx context.Context, userID string) (conn GitHubConnection, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": strings.TrimSpace(userID)}
	defer func() {
		o.observeOperation(ctx, startedAt, "refresh_github_connection", err, fields)
	}()

	if err := requireValue("user id", userID); err != nil {
		return GitHubConnection{}, o.mapError("refresh_github_connection", err)
	}
	if err := o.requireGitHubTokenProvider(); err != nil {
		return GitHubConnection{}, o.mapError("refresh_github_connection", err)
	}
	if err := o.requireConnectionStore(); err != nil {
		return GitHubConnection{}, o.mapError("refresh_github_connection", err)
	}

	conn, err = o.refreshCoalesced(ctx, strings.TrimSpace(userID))
	if err != nil {
		return GitHubConnection{}, o.mapError("refresh_github_connection", err)
	}
	fields["connection_id"] = conn.ID
	if conn.ExpiresAt != nil {
		fields["expires_at"] = conn.ExpiresAt.Format(time.RFC3339)
	}
	return conn, nil
}

func (o *Orchestrator) refreshCoalesced(ctx context.Context, userID string) (GitHubConnection, error) {
	timeout := o.refreshTimeout
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	// The shared call must not inherit the cancellation of whichever caller
	// happened to start it; every waiter selects on its own ctx instead.
	results := o.refreshGroup.DoChan(userID, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return o.refreshConnection(shared, userID)
	})

	select {
	case <-ctx.Done():
		return GitHubConnection{}, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return GitHubConnection{}, res.Err
		}
		conn, ok := res.Val.(GitHubConnection)
		if !ok {
			return GitHubConnection{}, fmt.Errorf("core: unexpected refresh result %T", res.Val)
		}
		return cloneConnection(conn), nil
	}
}

func (o *Orchestrator) refreshConnection(ctx context.Context, userID string) (GitHubConnection, error) {
	current, err := o.connectionStore.FindByUserID(ctx, userID)
	if err != nil {
		return GitHubConnection{}, err
	}
	if !current.Refreshable() {
		return GitHubConnection{}, ErrUnrefreshable
	}

	grant, err := o.githubTokenProvider.RefreshAccessToken(ctx, *current.RefreshToken)
	if err != nil {
		return GitHubConnection{}, err
	}
	if strings.TrimSpace(grant.AccessToken) == "" {
		return GitHubConnection{}, &ProviderError{Provider: "github", Operation: "token refresh", Err: fmt.Errorf("empty access token")}
	}

	next := cloneConnection(current)
	next.AccessToken = grant.AccessToken
	if refreshToken := nonEmpty(grant.RefreshToken); refreshToken != nil {
		next.RefreshToken = refreshToken
	}
	// Keep the old expiry when the provider does not report a new one.
	if grant.ExpiresAt != nil {
		next.ExpiresAt = cloneTime(grant.ExpiresAt)
	}
	next.UpdatedAt = o.now()
	return o.connectionStore.Update(ctx, next)
}
