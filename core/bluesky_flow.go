package core

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

// StartBlueskyAuth issues a fresh correlation state for contextKey and returns
// the provider authorization URL the user agent should be redirected to.
func (o *Orchestrator) StartBlueskyAuth(ctx context.Context, handle string, contextKey string) (redirectURL string, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"context_key": contextKeyFingerprint(contextKey),
		"handle":      strings.TrimSpace(handle),
	}
	defer func() {
		o.observeOperation(ctx, startedAt, "start_bluesky_auth", err, fields)
	}()

	if err := requireContextKey(contextKey); err != nil {
		return "", o.mapError("start_bluesky_auth", err)
	}
	if err := requireValue("handle", handle); err != nil {
		return "", o.mapError("start_bluesky_auth", err)
	}
	if err := o.requireIdentityProvider(); err != nil {
		return "", o.mapError("start_bluesky_auth", err)
	}

	state, err := o.issueState(ctx, contextKey)
	if err != nil {
		return "", o.mapError("start_bluesky_auth", err)
	}
	redirectURL, err = o.identityProvider.Authorize(ctx, strings.TrimSpace(handle), state.State)
	if err != nil {
		return "", o.mapError("start_bluesky_auth", err)
	}
	return redirectURL, nil
}

// HandleBlueskyAuthCallback completes the sign-in, creating the account on
// first login and writing the session for contextKey.
func (o *Orchestrator) HandleBlueskyAuthCallback(ctx context.Context, params url.Values, contextKey string) (account UserAccount, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"context_key": contextKeyFingerprint(contextKey),
	}
	defer func() {
		o.observeOperation(ctx, startedAt, "handle_bluesky_auth_callback", err, fields)
	}()

	account, created, err := o.completeBlueskyCallback(ctx, params, contextKey)
	if err != nil {
		return UserAccount{}, o.mapError("handle_bluesky_auth_callback", err)
	}
	fields["user_id"] = account.ID
	fields["did"] = account.DID
	fields["account_created"] = created
	return account, nil
}

func (o *Orchestrator) completeBlueskyCallback(ctx context.Context, params url.Values, contextKey string) (UserAccount, bool, error) {
	if err := requireContextKey(contextKey); err != nil {
		return UserAccount{}, false, err
	}
	if err := o.requireIdentityProvider(); err != nil {
		return UserAccount{}, false, err
	}
	if err := o.requireAccountStore(); err != nil {
		return UserAccount{}, false, err
	}

	stored, err := o.stateStore.Take(ctx, contextKey)
	if err != nil {
		return UserAccount{}, false, err
	}
	identity, err := o.identityProvider.Callback(ctx, params)
	if err != nil {
		return UserAccount{}, false, err
	}
	if !statesEqual(stored.State, identity.State) {
		return UserAccount{}, false, ErrStateMismatch
	}

	found := true
	account, err := o.accountStore.FindByDID(ctx, identity.DID)
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			return UserAccount{}, false, err
		}
		found = false
	}

	// The profile is fetched for returning users too, which also confirms
	// the identity still resolves at the provider.
	profile, err := o.identityProvider.GetUserProfile(ctx, identity.DID)
	if err != nil {
		return UserAccount{}, false, err
	}

	created := false
	if !found {
		account, err = o.accountStore.Create(ctx, CreateAccountInput{
			DID:     identity.DID,
			Handle:  strings.TrimSpace(profile.Handle),
			Profile: profileFromProvider(profile),
		})
		if err != nil {
			// A concurrent first login for the same DID may have won the
			// insert; adopt its row instead of failing.
			existing, findErr := o.accountStore.FindByDID(ctx, identity.DID)
			if findErr != nil {
				return UserAccount{}, false, err
			}
			account = existing
		} else {
			created = true
		}
	}

	if err := o.writeSession(ctx, contextKey, account); err != nil {
		return UserAccount{}, false, err
	}
	return account, created, nil
}

func (o *Orchestrator) writeSession(ctx context.Context, contextKey string, account UserAccount) error {
	return o.sessionStore.Set(ctx, contextKey, Session{
		User:      Principal{UserID: account.ID, DID: account.DID},
		CreatedAt: o.now(),
	})
}

// ValidateSession confirms that the session for contextKey still maps to a
// live identity and a stored account.
func (o *Orchestrator) ValidateSession(ctx context.Context, contextKey string) (principal Principal, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"context_key": contextKeyFingerprint(contextKey),
	}
	defer func() {
		o.observeOperation(ctx, startedAt, "validate_session", err, fields)
	}()

	principal, err = o.validateSession(ctx, contextKey)
	if err != nil {
		return Principal{}, o.mapError("validate_session", err)
	}
	fields["user_id"] = principal.UserID
	fields["did"] = principal.DID
	return principal, nil
}

func (o *Orchestrator) validateSession(ctx context.Context, contextKey string) (Principal, error) {
	if err := requireContextKey(contextKey); err != nil {
		return Principal{}, err
	}
	if err := o.requireIdentityProvider(); err != nil {
		return Principal{}, err
	}
	if err := o.requireAccountStore(); err != nil {
		return Principal{}, err
	}

	session, err := o.sessionStore.Get(ctx, contextKey)
	if err != nil {
		return Principal{}, err
	}
	did, err := o.identityProvider.ValidateSession(ctx, session.User.DID)
	if err != nil {
		return Principal{}, err
	}
	account, err := o.accountStore.FindByDID(ctx, did)
	if err != nil {
		return Principal{}, err
	}
	return Principal{UserID: account.ID, DID: account.DID}, nil
}

// Logout removes the session for contextKey. Removing an absent session is
// not an error.
func (o *Orchestrator) Logout(ctx context.Context, contextKey string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"context_key": contextKeyFingerprint(contextKey),
	}
	defer func() {
		o.observeOperation(ctx, startedAt, "logout", err, fields)
	}()

	if err := requireContextKey(contextKey); err != nil {
		return o.mapError("logout", err)
	}
	if err := o.sessionStore.Remove(ctx, contextKey); err != nil {
		return o.mapError("logout", err)
	}
	return nil
}

// LoginAsDefaultUser writes a session for the configured default DID without
// a provider round trip. It fails unless default_login.did is configured.
func (o *Orchestrator) LoginAsDefaultUser(ctx context.Context, contextKey string) (account UserAccount, err error) {
	startedAt := time.Now().UTC()
	did := strings.TrimSpace(o.config.DefaultLogin.DID)
	fields := map[string]any{
		"context_key": contextKeyFingerprint(contextKey),
		"did":         did,
	}
	defer func() {
		o.observeOperation(ctx, startedAt, "login_as_default_user", err, fields)
	}()

	if did == "" {
		return UserAccount{}, o.mapError("login_as_default_user", ErrDefaultLoginDisabled)
	}
	if err := requireContextKey(contextKey); err != nil {
		return UserAccount{}, o.mapError("login_as_default_user", err)
	}
	if err := o.requireAccountStore(); err != nil {
		return UserAccount{}, o.mapError("login_as_default_user", err)
	}

	account, err = o.accountStore.FindByDID(ctx, did)
	if err != nil {
		return UserAccount{}, o.mapError("login_as_default_user", err)
	}
	if err := o.writeSession(ctx, contextKey, account); err != nil {
		return UserAccount{}, o.mapError("login_as_default_user", err)
	}
	fields["user_id"] = account.ID
	return account, nil
}
