package accounts

import (
	"fmt"

	accountscommand "github.com/goliatone/go-accounts/command"
	accountsquery "github.com/goliatone/go-accounts/query"
)

// CommandQueryService is satisfied by *core.Orchestrator.
type CommandQueryService interface {
	accountscommand.MutatingService
	accountsquery.SessionReader
	accountsquery.AccountReader
	accountsquery.GitHubReader
}

type Commands struct {
	StartBlueskyAuth        *accountscommand.StartBlueskyAuthCommand
	CompleteBlueskyAuth     *accountscommand.CompleteBlueskyAuthCommand
	Logout                  *accountscommand.LogoutCommand
	LoginAsDefaultUser      *accountscommand.LoginAsDefaultUserCommand
	StartGitHubAccessToken  *accountscommand.StartGitHubAccessTokenCommand
	StartGitHubInstallation *accountscommand.StartGitHubInstallationCommand
	ConnectGitHub           *accountscommand.ConnectGitHubCommand
	DisconnectGitHub        *accountscommand.DisconnectGitHubCommand
	RefreshGitHubConnection *accountscommand.RefreshGitHubConnectionCommand
	SyncProfile             *accountscommand.SyncProfileCommand
	DeleteUser              *accountscommand.DeleteUserCommand
}

type Queries struct {
	ValidateSession         *accountsquery.ValidateSessionQuery
	GetUserByID             *accountsquery.GetUserByIDQuery
	GetUserByHandle         *accountsquery.GetUserByHandleQuery
	CountUsers              *accountsquery.CountUsersQuery
	ListUsers               *accountsquery.ListUsersQuery
	GetGitHubConnection     *accountsquery.GetGitHubConnectionQuery
	ListGitHubInstallations *accountsquery.ListGitHubInstallationsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("accounts: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		StartBlueskyAuth:        accountscommand.NewStartBlueskyAuthCommand(service),
		CompleteBlueskyAuth:     accountscommand.NewCompleteBlueskyAuthCommand(service),
		Logout:                  accountscommand.NewLogoutCommand(service),
		LoginAsDefaultUser:      accountscommand.NewLoginAsDefaultUserCommand(service),
		StartGitHubAccessToken:  accountscommand.NewStartGitHubAccessTokenCommand(service),
		StartGitHubInstallation: accountscommand.NewStartGitHubInstallationCommand(service),
		ConnectGitHub:           accountscommand.NewConnectGitHubCommand(service),
		DisconnectGitHub:        accountscommand.NewDisconnectGitHubCommand(service),
		RefreshGitHubConnection: accountscommand.NewRefreshGitHubConnectionCommand(service),
		SyncProfile:             accountscommand.NewSyncProfileCommand(service),
		DeleteUser:              accountscommand.NewDeleteUserCommand(service),
	}
	facade.queries = Queries{
		ValidateSession:         accountsquery.NewValidateSessionQuery(service),
		GetUserByID:             accountsquery.NewGetUserByIDQuery(service),
		GetUserByHandle:         accountsquery.NewGetUserByHandleQuery(service),
		CountUsers:              accountsquery.NewCountUsersQuery(service),
		ListUsers:               accountsquery.NewListUsersQuery(service),
		GetGitHubConnection:     accountsquery.NewGetGitHubConnectionQuery(service),
		ListGitHubInstallations: accountsquery.NewListGitHubInstallationsQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
