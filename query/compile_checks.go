package query

import (
	"github.com/goliatone/go-accounts/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[ValidateSessionMessage, core.Principal]              = (*ValidateSessionQuery)(nil)
	_ gocmd.Querier[GetUserByIDMessage, core.UserAccount]                = (*GetUserByIDQuery)(nil)
	_ gocmd.Querier[GetUserByHandleMessage, core.UserAccount]            = (*GetUserByHandleQuery)(nil)
	_ gocmd.Querier[CountUsersMessage, int]                              = (*CountUsersQuery)(nil)
	_ gocmd.Querier[ListUsersMessage, []core.UserAccount]                = (*ListUsersQuery)(nil)
	_ gocmd.Querier[GetGitHubConnectionMessage, core.GitHubConnection]   = (*GetGitHubConnectionQuery)(nil)
	_ gocmd.Querier[ListGitHubInstallationsMessage, []core.Installation] = (*ListGitHubInstallationsQuery)(nil)
)
