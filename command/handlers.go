package command

import (
	"context"
	"net/url"

	"github.com/goliatone/go-accounts/core"
	gocmd "github.com/goliatone/go-command"
)

// MutatingService is the write side of the accounts orchestrator.
type MutatingService interface {
	StartBlueskyAuth(ctx context.Context, handle string, contextKey string) (string, error)
	HandleBlueskyAuthCallback(ctx context.Context, params url.Values, contextKey string) (core.UserAccount, error)
	Logout(ctx context.Context, contextKey string) error
	LoginAsDefaultUser(ctx context.Context, contextKey string) (core.UserAccount, error)
	StartGitHubAccessTokenFlow(ctx context.Context, contextKey string) (string, error)
	StartGitHubAppsInstallation(ctx context.Context, contextKey string) (string, error)
	ConnectGitHub(ctx context.Context, userID string, code string, state string, contextKey string) error
	DisconnectGitHub(ctx context.Context, userID string) error
	RefreshGitHubConnection(ctx context.Context, userID string) (core.GitHubConnection, error)
	SyncProfile(ctx context.Context, userID string) (core.UserAccount, error)
	DeleteUser(ctx context.Context, userID string) error
}

// RedirectResult carries the URL a Start* command wants the browser sent to.
type RedirectResult struct {
	URL string
}

type StartBlueskyAuthCommand struct {
	service MutatingService
}

func NewStartBlueskyAuthCommand(service MutatingService) *StartBlueskyAuthCommand {
	return &StartBlueskyAuthCommand{service: service}
}

func (c *StartBlueskyAuthCommand) Execute(ctx context.Context, msg StartBlueskyAuthMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: bluesky auth service is required")
	}
	redirectURL, err := c.service.StartBlueskyAuth(ctx, msg.Handle, msg.ContextKey)
	if err != nil {
		return err
	}
	storeResult(ctx, RedirectResult{URL: redirectURL})
	return nil
}

type CompleteBlueskyAuthCommand struct {
	service MutatingService
}

func NewCompleteBlueskyAuthCommand(service MutatingService) *CompleteBlueskyAuthCommand {
	return &CompleteBlueskyAuthCommand{service: service}
}

func (c *CompleteBlueskyAuthCommand) Execute(ctx context.Context, msg CompleteBlueskyAuthMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: bluesky callback service is required")
	}
	out, err := c.service.HandleBlueskyAuthCallback(ctx, msg.Params, msg.ContextKey)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type LogoutCommand struct {
	service MutatingService
}

func NewLogoutCommand(service MutatingService) *LogoutCommand {
	return &LogoutCommand{service: service}
}

func (c *LogoutCommand) Execute(ctx context.Context, msg LogoutMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: logout service is required")
	}
	return c.service.Logout(ctx, msg.ContextKey)
}

type LoginAsDefaultUserCommand struct {
	service MutatingService
}

func NewLoginAsDefaultUserCommand(service MutatingService) *LoginAsDefaultUserCommand {
	return &LoginAsDefaultUserCommand{service: service}
}

func (c *LoginAsDefaultUserCommand) Execute(ctx context.Context, msg LoginAsDefaultUserMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: default login service is required")
	}
	out, err := c.service.LoginAsDefaultUser(ctx, msg.ContextKey)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type StartGitHubAccessTokenCommand struct {
	service MutatingService
}

func NewStartGitHubAccessTokenCommand(service MutatingService) *StartGitHubAccessTokenCommand {
	return &StartGitHubAccessTokenCommand{service: service}
}

func (c *StartGitHubAccessTokenCommand) Execute(ctx context.Context, msg StartGitHubAccessTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: github access token service is required")
	}
	redirectURL, err := c.service.StartGitHubAccessTokenFlow(ctx, msg.ContextKey)
	if err != nil {
		return err
	}
	storeResult(ctx, RedirectResult{URL: redirectURL})
	return nil
}

type StartGitHubInstallationCommand struct {
	service MutatingService
}

func NewStartGitHubInstallationCommand(service MutatingService) *StartGitHubInstallationCommand {
	return &StartGitHubInstallationCommand{service: service}
}

func (c *StartGitHubInstallationCommand) Execute(ctx context.Context, msg StartGitHubInstallationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: github installation service is required")
	}
	redirectURL, err := c.service.StartGitHubAppsInstallation(ctx, msg.ContextKey)
	if err != nil {
		return err
	}
	storeResult(ctx, RedirectResult{URL: redirectURL})
	return nil
}

type ConnectGitHubCommand struct {
	service MutatingService
}

func NewConnectGitHubCommand(service MutatingService) *ConnectGitHubCommand {
	return &ConnectGitHubCommand{service: service}
}

func (c *ConnectGitHubCommand) Execute(ctx context.Context, msg ConnectGitHubMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: github connect service is required")
	}
	return c.service.ConnectGitHub(ctx, msg.UserID, msg.Code, msg.State, msg.ContextKey)
}

type DisconnectGitHubCommand struct {
	service MutatingService
}

func NewDisconnectGitHubCommand(service MutatingService) *DisconnectGitHubCommand {
	return &DisconnectGitHubCommand{service: service}
}

func (c *DisconnectGitHubCommand) Execute(ctx context.Context, msg DisconnectGitHubMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: github disconnect service is required")
	}
	return c.service.DisconnectGitHub(ctx, msg.UserID)
}

type RefreshGitHubConnectionCommand struct {
	service MutatingService
}

func NewRefreshGitHubConnectionCommand(service MutatingService) *RefreshGitHubConnectionCommand {
	return &RefreshGitHubConnectionCommand{service: service}
}

func (c *RefreshGitHubConnectionCommand) Execute(ctx context.Context, msg RefreshGitHubConnectionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: github refresh service is required")
	}
	out, err := c.service.RefreshGitHubConnection(ctx, msg.UserID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SyncProfileCommand struct {
	service MutatingService
}

func NewSyncProfileCommand(service MutatingService) *SyncProfileCommand {
	return &SyncProfileCommand{service: service}
}

func (c *SyncProfileCommand) Execute(ctx context.Context, msg SyncProfileMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: profile sync service is required")
	}
	out, err := c.service.SyncProfile(ctx, msg.UserID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteUserCommand struct {
	service MutatingService
}

func NewDeleteUserCommand(service MutatingService) *DeleteUserCommand {
	return &DeleteUserCommand{service: service}
}

func (c *DeleteUserCommand) Execute(ctx context.Context, msg DeleteUserMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delete user service is required")
	}
	return c.service.DeleteUser(ctx, msg.UserID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
