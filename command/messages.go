package command

import (
	"net/url"
	"strings"
)

const (
	TypeStartBlueskyAuth        = "accounts.command.bluesky.start"
	TypeCompleteBlueskyAuth     = "accounts.command.bluesky.callback"
	TypeLogout                  = "accounts.command.session.logout"
	TypeLoginAsDefaultUser      = "accounts.command.session.default_login"
	TypeStartGitHubAccessToken  = "accounts.command.github.access_token.start"
	TypeStartGitHubInstallation = "accounts.command.github.installation.start"
	TypeConnectGitHub           = "accounts.command.github.connect"
	TypeDisconnectGitHub        = "accounts.command.github.disconnect"
	TypeRefreshGitHubConnection = "accounts.command.github.refresh"
	TypeSyncProfile             = "accounts.command.profile.sync"
	TypeDeleteUser              = "accounts.command.user.delete"
)

type StartBlueskyAuthMessage struct {
	Handle     string
	ContextKey string
}

func (StartBlueskyAuthMessage) Type() string { return TypeStartBlueskyAuth }

func (m StartBlueskyAuthMessage) Validate() error {
	if err := requireField("handle", m.Handle); err != nil {
		return err
	}
	return requireField("context_key", m.ContextKey)
}

type CompleteBlueskyAuthMessage struct {
	Params     url.Values
	ContextKey string
}

func (CompleteBlueskyAuthMessage) Type() string { return TypeCompleteBlueskyAuth }

func (m CompleteBlueskyAuthMessage) Validate() error {
	if len(m.Params) == 0 {
		return commandValidationError("params", "callback parameters are required")
	}
	return requireField("context_key", m.ContextKey)
}

type LogoutMessage struct {
	ContextKey string
}

func (LogoutMessage) Type() string { return TypeLogout }

func (m LogoutMessage) Validate() error {
	return requireField("context_key", m.ContextKey)
}

type LoginAsDefaultUserMessage struct {
	ContextKey string
}

func (LoginAsDefaultUserMessage) Type() string { return TypeLoginAsDefaultUser }

func (m LoginAsDefaultUserMessage) Validate() error {
	return requireField("context_key", m.ContextKey)
}

type StartGitHubAccessTokenMessage struct {
	ContextKey string
}

func (StartGitHubAccessTokenMessage) Type() string { return TypeStartGitHubAccessToken }

func (m StartGitHubAccessTokenMessage) Validate() error {
	return requireField("context_key", m.ContextKey)
}

type StartGitHubInstallationMessage struct {
	ContextKey string
}

func (StartGitHubInstallationMessage) Type() string { return TypeStartGitHubInstallation }

func (m StartGitHubInstallationMessage) Validate() error {
	return requireField("context_key", m.ContextKey)
}

type ConnectGitHubMessage struct {
	UserID     string
	Code       string
	State      string
	ContextKey string
}

func (ConnectGitHubMessage) Type() string { return TypeConnectGitHub }

func (m ConnectGitHubMessage) Validate() error {
	if err := requireField("user_id", m.UserID); err != nil {
		return err
	}
	if err := requireField("code", m.Code); err != nil {
		return err
	}
	if err := requireField("state", m.State); err != nil {
		return err
	}
	return requireField("context_key", m.ContextKey)
}

type DisconnectGitHubMessage struct {
	UserID string
}

func (DisconnectGitHubMessage) Type() string { return TypeDisconnectGitHub }

func (m DisconnectGitHubMessage) Validate() error {
	return requireField("user_id", m.UserID)
}

type RefreshGitHubConnectionMessage struct {
	UserID string `json:"user_id"`
}

func (RefreshGitHubConnectionMessage) Type() string { return TypeRefreshGitHubConnection }

func (m RefreshGitHubConnectionMessage) Validate() error {
	return requireField("user_id", m.UserID)
}

type SyncProfileMessage struct {
	UserID string `json:"user_id"`
}

func (SyncProfileMessage) Type() string { return TypeSyncProfile }

func (m SyncProfileMessage) Validate() error {
	return requireField("user_id", m.UserID)
}

type DeleteUserMessage struct {
	UserID string `json:"user_id"`
}

func (DeleteUserMessage) Type() string { return TypeDeleteUser }

func (m DeleteUserMessage) Validate() error {
	return requireField("user_id", m.UserID)
}

func requireField(field string, value string) error {
	if strings.TrimSpace(value) == "" {
		return commandValidationError(field, field+" is required")
	}
	return nil
}
