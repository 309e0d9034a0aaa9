package command

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/goliatone/go-accounts/core"
	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

type stubMutatingService struct {
	startBlueskyFn func(ctx context.Context, handle string, contextKey string) (string, error)
	callbackFn     func(ctx context.Context, params url.Values, contextKey string) (core.UserAccount, error)
	connectFn      func(ctx context.Context, userID, code, state, contextKey string) error
	refreshFn      func(ctx context.Context, userID string) (core.GitHubConnection, error)
	deleteFn       func(ctx context.Context, userID string) error
}

func (s stubMutatingService) StartBlueskyAuth(ctx context.Context, handle string, contextKey string) (string, error) {
	if s.startBlueskyFn == nil {
		return "", nil
	}
	return s.startBlueskyFn(ctx, handle, contextKey)
}

func (s stubMutatingService) HandleBlueskyAuthCallback(ctx context.Context, params url.Values, contextKey string) (core.UserAccount, error) {
	if s.callbackFn == nil {
		return core.UserAccount{}, nil
	}
	return s.callbackFn(ctx, params, contextKey)
}

func (stubMutatingService) Logout(context.Context, string) error { return nil }

func (stubMutatingService) LoginAsDefaultUser(context.Context, string) (core.UserAccount, error) {
	return core.UserAccount{}, nil
}

func (stubMutatingService) StartGitHubAccessTokenFlow(context.Context, string) (string, error) {
	return "https://github.com/login/oauth/authorize?state=s", nil
}

func (stubMutatingService) StartGitHubAppsInstallation(context.Context, string) (string, error) {
	return "https://github.com/apps/md/installations/new?state=s", nil
}

func (s stubMutatingService) ConnectGitHub(ctx context.Context, userID string, code string, state string, contextKey string) error {
	if s.connectFn == nil {
		return nil
	}
	return s.connectFn(ctx, userID, code, state, contextKey)
}

func (stubMutatingService) DisconnectGitHub(context.Context, string) error { return nil }

func (s stubMutatingService) RefreshGitHubConnection(ctx context.Context, userID string) (core.GitHubConnection, error) {
	if s.refreshFn == nil {
		return core.GitHubConnection{}, nil
	}
	return s.refreshFn(ctx, userID)
}

func (stubMutatingService) SyncProfile(context.Context, string) (core.UserAccount, error) {
	return core.UserAccount{}, nil
}

func (s stubMutatingService) DeleteUser(ctx context.Context, userID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, userID)
}

func TestStartBlueskyAuthCommand_StoresRedirect(t *testing.T) {
	svc := stubMutatingService{
		startBlueskyFn: func(_ context.Context, handle string, contextKey string) (string, error) {
			if handle != "alice.bsky.social" || contextKey != "ctx-1" {
				t.Fatalf("unexpected args: %q %q", handle, contextKey)
			}
			return "https://bsky.social/oauth/authorize?state=s1", nil
		},
	}

	collector := gocmd.NewResult[RedirectResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewStartBlueskyAuthCommand(svc).Execute(ctx, StartBlueskyAuthMessage{Handle: "alice.bsky.social", ContextKey: "ctx-1"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	result, ok := collector.Load()
	if !ok || result.URL != "https://bsky.social/oauth/authorize?state=s1" {
		t.Fatalf("unexpected stored result: %#v (%v)", result, ok)
	}
}

func TestCompleteBlueskyAuthCommand_StoresAccount(t *testing.T) {
	svc := stubMutatingService{
		callbackFn: func(_ context.Context, params url.Values, _ string) (core.UserAccount, error) {
			if params.Get("code") != "c1" {
				t.Fatalf("expected params to be forwarded, got %v", params)
			}
			return core.UserAccount{ID: "usr_1", DID: "did:plc:alice"}, nil
		},
	}

	collector := gocmd.NewResult[core.UserAccount]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewCompleteBlueskyAuthCommand(svc).Execute(ctx, CompleteBlueskyAuthMessage{
		Params:     url.Values{"code": {"c1"}, "state": {"s1"}},
		ContextKey: "ctx-1",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	account, ok := collector.Load()
	if !ok || account.ID != "usr_1" {
		t.Fatalf("unexpected stored account: %#v", account)
	}
}

func TestMutationCommands_DelegateToService(t *testing.T) {
	t.Run("connect github", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			connectFn: func(_ context.Context, userID, code, state, contextKey string) error {
				called = true
				if userID != "usr_1" || code != "c1" || state != "s1" || contextKey != "ctx-1" {
					t.Fatalf("unexpected connect payload: %q %q %q %q", userID, code, state, contextKey)
				}
				return nil
			},
		}
		msg := ConnectGitHubMessage{UserID: "usr_1", Code: "c1", State: "s1", ContextKey: "ctx-1"}
		if err := NewConnectGitHubCommand(svc).Execute(context.Background(), msg); err != nil {
			t.Fatalf("execute: %v", err)
		}
		if !called {
			t.Fatalf("expected connect invocation")
		}
	})

	t.Run("refresh stores connection", func(t *testing.T) {
		svc := stubMutatingService{
			refreshFn: func(_ context.Context, userID string) (core.GitHubConnection, error) {
				return core.GitHubConnection{UserID: userID, AccessToken: "ghu_new"}, nil
			},
		}
		collector := gocmd.NewResult[core.GitHubConnection]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := NewRefreshGitHubConnectionCommand(svc).Execute(ctx, RefreshGitHubConnectionMessage{UserID: "usr_1"}); err != nil {
			t.Fatalf("execute: %v", err)
		}
		conn, ok := collector.Load()
		if !ok || conn.AccessToken != "ghu_new" {
			t.Fatalf("unexpected stored connection: %#v", conn)
		}
	})

	t.Run("delete propagates errors", func(t *testing.T) {
		svc := stubMutatingService{
			deleteFn: func(context.Context, string) error { return core.ErrAccountNotFound },
		}
		err := NewDeleteUserCommand(svc).Execute(context.Background(), DeleteUserMessage{UserID: "usr_missing"})
		if !errors.Is(err, core.ErrAccountNotFound) {
			t.Fatalf("expected service error to propagate, got %v", err)
		}
	})

	t.Run("redirect without collector", func(t *testing.T) {
		if err := NewStartGitHubInstallationCommand(stubMutatingService{}).Execute(context.Background(), StartGitHubInstallationMessage{ContextKey: "ctx-1"}); err != nil {
			t.Fatalf("execute: %v", err)
		}
	})
}

func TestConnectGitHubMessage_ValidateReturnsRichError(t *testing.T) {
	err := (ConnectGitHubMessage{UserID: "usr_1", Code: "c1", ContextKey: "ctx-1"}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ServiceErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.ServiceErrorBadInput, rich.TextCode)
	}
}

func TestCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *LogoutCommand
	err := cmd.Execute(context.Background(), LogoutMessage{ContextKey: "ctx-1"})

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}

func TestMessages_Validate(t *testing.T) {
	valid := []interface{ Validate() error }{
		StartBlueskyAuthMessage{Handle: "alice.bsky.social", ContextKey: "k"},
		CompleteBlueskyAuthMessage{Params: url.Values{"code": {"c"}}, ContextKey: "k"},
		LogoutMessage{ContextKey: "k"},
		DisconnectGitHubMessage{UserID: "u"},
		DeleteUserMessage{UserID: "u"},
	}
	for _, msg := range valid {
		if err := msg.Validate(); err != nil {
			t.Fatalf("expected %T to validate: %v", msg, err)
		}
	}
	invalid := []interface{ Validate() error }{
		StartBlueskyAuthMessage{ContextKey: "k"},
		CompleteBlueskyAuthMessage{ContextKey: "k"},
		LoginAsDefaultUserMessage{},
		SyncProfileMessage{UserID: "  "},
	}
	for _, msg := range invalid {
		if err := msg.Validate(); err == nil {
			t.Fatalf("expected %T to fail validation", msg)
		}
	}
}
