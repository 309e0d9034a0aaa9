package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[StartBlueskyAuthMessage]        = (*StartBlueskyAuthCommand)(nil)
	_ gocmd.Commander[CompleteBlueskyAuthMessage]     = (*CompleteBlueskyAuthCommand)(nil)
	_ gocmd.Commander[LogoutMessage]                  = (*LogoutCommand)(nil)
	_ gocmd.Commander[LoginAsDefaultUserMessage]      = (*LoginAsDefaultUserCommand)(nil)
	_ gocmd.Commander[StartGitHubAccessTokenMessage]  = (*StartGitHubAccessTokenCommand)(nil)
	_ gocmd.Commander[StartGitHubInstallationMessage] = (*StartGitHubInstallationCommand)(nil)
	_ gocmd.Commander[ConnectGitHubMessage]           = (*ConnectGitHubCommand)(nil)
	_ gocmd.Commander[DisconnectGitHubMessage]        = (*DisconnectGitHubCommand)(nil)
	_ gocmd.Commander[RefreshGitHubConnectionMessage] = (*RefreshGitHubConnectionCommand)(nil)
	_ gocmd.Commander[SyncProfileMessage]             = (*SyncProfileCommand)(nil)
	_ gocmd.Commander[DeleteUserMessage]              = (*DeleteUserCommand)(nil)
)
