package query

import "strings"

const (
	TypeValidateSession         = "accounts.query.session.validate"
	TypeGetUserByID             = "accounts.query.user.by_id"
	TypeGetUserByHandle         = "accounts.query.user.by_handle"
	TypeGetGitHubConnection     = "accounts.query.github.connection"
	TypeListGitHubInstallations = "accounts.query.github.installations"
	TypeCountUsers              = "accounts.query.user.count"
	TypeListUsers               = "accounts.query.user.list"
)

type ValidateSessionMessage struct {
	ContextKey string
}

func (ValidateSessionMessage) Type() string { return TypeValidateSession }

func (m ValidateSessionMessage) Validate() error {
	return requireField("context_key", m.ContextKey)
}

type GetUserByIDMessage struct {
	UserID string
}

func (GetUserByIDMessage) Type() string { return TypeGetUserByID }

func (m GetUserByIDMessage) Validate() error {
	return requireField("user_id", m.UserID)
}

type GetUserByHandleMessage struct {
	Handle string
}

func (GetUserByHandleMessage) Type() string { return TypeGetUserByHandle }

func (m GetUserByHandleMessage) Validate() error {
	return requireField("handle", strings.TrimPrefix(strings.TrimSpace(m.Handle), "@"))
}

type GetGitHubConnectionMessage struct {
	UserID string
}

func (GetGitHubConnectionMessage) Type() string { return TypeGetGitHubConnection }

func (m GetGitHubConnectionMessage) Validate() error {
	return requireField("user_id", m.UserID)
}

type ListGitHubInstallationsMessage struct {
	UserID string
}

func (ListGitHubInstallationsMessage) Type() string { return TypeListGitHubInstallations }

func (m ListGitHubInstallationsMessage) Validate() error {
	return requireField("user_id", m.UserID)
}

type CountUsersMessage struct{}

func (CountUsersMessage) Type() string { return TypeCountUsers }

func (CountUsersMessage) Validate() error { return nil }

type ListUsersMessage struct {
	Limit  int
	Offset int
}

func (ListUsersMessage) Type() string { return TypeListUsers }

func (m ListUsersMessage) Validate() error {
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	if m.Offset < 0 {
		return queryValidationError("offset", "offset must be >= 0")
	}
	return nil
}

func requireField(field string, value string) error {
	if strings.TrimSpace(value) == "" {
		return queryValidationError(field, field+" is required")
	}
	return nil
}
