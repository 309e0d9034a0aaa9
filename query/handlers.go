package query

import (
	"context"

	"github.com/goliatone/go-accounts/core"
)

type SessionReader interface {
	ValidateSession(ctx context.Context, contextKey string) (core.Principal, error)
}

type AccountReader interface {
	GetUserByID(ctx context.Context, userID string) (core.UserAccount, error)
	GetUserByHandle(ctx context.Context, handle string) (core.UserAccount, error)
	CountUsers(ctx context.Context) (int, error)
	ListUsers(ctx context.Context, opts core.ListUsersOptions) ([]core.UserAccount, error)
}

type GitHubReader interface {
	GetGitHubConnection(ctx context.Context, userID string) (core.GitHubConnection, error)
	ListGitHubInstallations(ctx context.Context, userID string) ([]core.Installation, error)
}

type ValidateSessionQuery struct {
	reader SessionReader
}

func NewValidateSessionQuery(reader SessionReader) *ValidateSessionQuery {
	return &ValidateSessionQuery{reader: reader}
}

func (q *ValidateSessionQuery) Query(ctx context.Context, msg ValidateSessionMessage) (core.Principal, error) {
	if q == nil || q.reader == nil {
		return core.Principal{}, queryDependencyError("query: session reader is required")
	}
	return q.reader.ValidateSession(ctx, msg.ContextKey)
}

type GetUserByIDQuery struct {
	reader AccountReader
}

func NewGetUserByIDQuery(reader AccountReader) *GetUserByIDQuery {
	return &GetUserByIDQuery{reader: reader}
}

func (q *GetUserByIDQuery) Query(ctx context.Context, msg GetUserByIDMessage) (core.UserAccount, error) {
	if q == nil || q.reader == nil {
		return core.UserAccount{}, queryDependencyError("query: account reader is required")
	}
	return q.reader.GetUserByID(ctx, msg.UserID)
}

type GetUserByHandleQuery struct {
	reader AccountReader
}

func NewGetUserByHandleQuery(reader AccountReader) *GetUserByHandleQuery {
	return &GetUserByHandleQuery{reader: reader}
}

func (q *GetUserByHandleQuery) Query(ctx context.Context, msg GetUserByHandleMessage) (core.UserAccount, error) {
	if q == nil || q.reader == nil {
		return core.UserAccount{}, queryDependencyError("query: account reader is required")
	}
	return q.reader.GetUserByHandle(ctx, msg.Handle)
}

type CountUsersQuery struct {
	reader AccountReader
}

func NewCountUsersQuery(reader AccountReader) *CountUsersQuery {
	return &CountUsersQuery{reader: reader}
}

func (q *CountUsersQuery) Query(ctx context.Context, _ CountUsersMessage) (int, error) {
	if q == nil || q.reader == nil {
		return 0, queryDependencyError("query: account reader is required")
	}
	return q.reader.CountUsers(ctx)
}

type ListUsersQuery struct {
	reader AccountReader
}

func NewListUsersQuery(reader AccountReader) *ListUsersQuery {
	return &ListUsersQuery{reader: reader}
}

func (q *ListUsersQuery) Query(ctx context.Context, msg ListUsersMessage) ([]core.UserAccount, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: account reader is required")
	}
	return q.reader.ListUsers(ctx, core.ListUsersOptions{Limit: msg.Limit, Offset: msg.Offset})
}

type GetGitHubConnectionQuery struct {
	reader GitHubReader
}

func NewGetGitHubConnectionQuery(reader GitHubReader) *GetGitHubConnectionQuery {
	return &GetGitHubConnectionQuery{reader: reader}
}

func (q *GetGitHubConnectionQuery) Query(ctx context.Context, msg GetGitHubConnectionMessage) (core.GitHubConnection, error) {
	if q == nil || q.reader == nil {
		return core.GitHubConnection{}, queryDependencyError("query: github reader is required")
	}
	return q.reader.GetGitHubConnection(ctx, msg.UserID)
}

type ListGitHubInstallationsQuery struct {
	reader GitHubReader
}

func NewListGitHubInstallationsQuery(reader GitHubReader) *ListGitHubInstallationsQuery {
	return &ListGitHubInstallationsQuery{reader: reader}
}

func (q *ListGitHubInstallationsQuery) Query(ctx context.Context, msg ListGitHubInstallationsMessage) ([]core.Installation, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: github reader is required")
	}
	return q.reader.ListGitHubInstallations(ctx, msg.UserID)
}
