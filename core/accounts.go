package core

import (
	"context"
	"strings"
	"time"
)

func (o *Orchestrator) GetUserByID(ctx context.Context, userID string) (account UserAccount, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": strings.TrimSpace(userID)}
	defer func() {
		o.observeOperation(ctx, startedAt, "get_user_by_id", err, fields)
	}()

	if err := requireValue("user id", userID); err != nil {
		return UserAccount{}, o.mapError("get_user_by_id", err)
	}
	if err := o.requireAccountStore(); err != nil {
		return UserAccount{}, o.mapError("get_user_by_id", err)
	}
	account, err = o.accountStore.FindByID(ctx, strings.TrimSpace(userID))
	if err != nil {
		return UserAccount{}, o.mapError("get_user_by_id", err)
	}
	return account, nil
}

func (o *Orchestrator) GetUserByHandle(ctx context.Context, handle string) (account UserAccount, err error) {
	startedAt := time.Now().UTC()
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	fields := map[string]any{"handle": handle}
	defer func() {
		o.observeOperation(ctx, startedAt, "get_user_by_handle", err, fields)
	}()

	if err := requireValue("handle", handle); err != nil {
		return UserAccount{}, o.mapError("get_user_by_handle", err)
	}
	if err := o.requireAccountStore(); err != nil {
		return UserAccount{}, o.mapError("get_user_by_handle", err)
	}
	account, err = o.accountStore.FindByHandle(ctx, handle)
	if err != nil {
		return UserAccount{}, o.mapError("get_user_by_handle", err)
	}
	fields["user_id"] = account.ID
	return account, nil
}

// SyncProfile re-fetches the provider profile and replaces the stored handle
// and profile fields wholesale.
func (o *Orchestrator) SyncProfile(ctx context.Context, userID string) (account UserAccount, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": strings.TrimSpace(userID)}
	defer func() {
		o.observeOperation(ctx, startedAt, "sync_profile", err, fields)
	}()

	account, err = o.syncProfile(ctx, strings.TrimSpace(userID))
	if err != nil {
		return UserAccount{}, o.mapError("sync_profile", err)
	}
	fields["did"] = account.DID
	return account, nil
}

func (o *Orchestrator) syncProfile(ctx context.Context, userID string) (UserAccount, error) {
	if err := requireValue("user id", userID); err != nil {
		return UserAccount{}, err
	}
	if err := o.requireIdentityProvider(); err != nil {
		return UserAccount{}, err
	}
	if err := o.requireAccountStore(); err != nil {
		return UserAccount{}, err
	}

	account, err := o.accountStore.FindByID(ctx, userID)
	if err != nil {
		return UserAccount{}, err
	}
	profile, err := o.identityProvider.GetUserProfile(ctx, account.DID)
	if err != nil {
		return UserAccount{}, err
	}
	if handle := strings.TrimSpace(profile.Handle); handle != "" {
		account.Handle = handle
	}
	account.Profile = profileFromProvider(profile)
	account.UpdatedAt = o.now()
	return o.accountStore.Update(ctx, account)
}

func (o *Orchestrator) DeleteUser(ctx context.Context, userID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": strings.TrimSpace(userID)}
	defer func() {
		o.observeOperation(ctx, startedAt, "delete_user", err, fields)
	}()

	if err := requireValue("user id", userID); err != nil {
		return o.mapError("delete_user", err)
	}
	if err := o.requireAccountStore(); err != nil {
		return o.mapError("delete_user", err)
	}
	if err := o.accountStore.Delete(ctx, strings.TrimSpace(userID)); err != nil {
		return o.mapError("delete_user", err)
	}
	return nil
}

func (o *Orchestrator) GetGitHubConnection(ctx context.Context, userID string) (conn GitHubConnection, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": strings.TrimSpace(userID)}
	defer func() {
		o.observeOperation(ctx, startedAt, "get_github_connection", err, fields)
	}()

	if err := requireValue("user id", userID); err != nil {
		return GitHubConnection{}, o.mapError("get_github_connection", err)
	}
	if err := o.requireConnectionStore(); err != nil {
		return GitHubConnection{}, o.mapError("get_github_connection", err)
	}
	conn, err = o.connectionStore.FindByUserID(ctx, strings.TrimSpace(userID))
	if err != nil {
		return GitHubConnection{}, o.mapError("get_github_connection", err)
	}
	fields["connection_id"] = conn.ID
	return conn, nil
}

func (o *Orchestrator) CountUsers(ctx context.Context) (count int, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		o.observeOperation(ctx, startedAt, "count_users", err, fields)
	}()

	if err := o.requireAccountStore(); err != nil {
		return 0, o.mapError("count_users", err)
	}
	count, err = o.accountStore.Count(ctx)
	if err != nil {
		return 0, o.mapError("count_users", err)
	}
	fields["count"] = count
	return count, nil
}

func (o *Orchestrator) ListUsers(ctx context.Context, opts ListUsersOptions) (accounts []UserAccount, err error) {
	startedAt := time.Now().UTC()
	opts = opts.Normalize()
	fields := map[string]any{"limit": opts.Limit, "offset": opts.Offset}
	defer func() {
		o.observeOperation(ctx, startedAt, "list_users", err, fields)
	}()

	if err := o.requireAccountStore(); err != nil {
		return nil, o.mapError("list_users", err)
	}
	accounts, err = o.accountStore.List(ctx, opts)
	if err != nil {
		return nil, o.mapError("list_users", err)
	}
	fields["count"] = len(accounts)
	return accounts, nil
}
