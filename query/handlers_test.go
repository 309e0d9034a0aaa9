package query

import (
	"context"
	"testing"

	"github.com/goliatone/go-accounts/core"
	goerrors "github.com/goliatone/go-errors"
)

type stubReader struct {
	principal core.Principal
	accounts  []core.UserAccount
	conn      core.GitHubConnection
	installs  []core.Installation
	lastOpts  core.ListUsersOptions
	lastArg   string
}

func (s *stubReader) ValidateSession(_ context.Context, contextKey string) (core.Principal, error) {
	s.lastArg = contextKey
	return s.principal, nil
}

func (s *stubReader) GetUserByID(_ context.Context, userID string) (core.UserAccount, error) {
	s.lastArg = userID
	for _, account := range s.accounts {
		if account.ID == userID {
			return account, nil
		}
	}
	return core.UserAccount{}, core.ErrAccountNotFound
}

func (s *stubReader) GetUserByHandle(_ context.Context, handle string) (core.UserAccount, error) {
	s.lastArg = handle
	for _, account := range s.accounts {
		if account.Handle == handle {
			return account, nil
		}
	}
	return core.UserAccount{}, core.ErrAccountNotFound
}

func (s *stubReader) CountUsers(context.Context) (int, error) {
	return len(s.accounts), nil
}

func (s *stubReader) ListUsers(_ context.Context, opts core.ListUsersOptions) ([]core.UserAccount, error) {
	s.lastOpts = opts
	return s.accounts, nil
}

func (s *stubReader) GetGitHubConnection(_ context.Context, userID string) (core.GitHubConnection, error) {
	s.lastArg = userID
	return s.conn, nil
}

func (s *stubReader) ListGitHubInstallations(_ context.Context, userID string) ([]core.Installation, error) {
	s.lastArg = userID
	return s.installs, nil
}

func TestValidateSessionQuery_Delegates(t *testing.T) {
	reader := &stubReader{principal: core.Principal{UserID: "usr_1", DID: "did:plc:alice"}}
	principal, err := NewValidateSessionQuery(reader).Query(context.Background(), ValidateSessionMessage{ContextKey: "ctx-1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if principal.UserID != "usr_1" || reader.lastArg != "ctx-1" {
		t.Fatalf("unexpected principal %#v (arg %q)", principal, reader.lastArg)
	}
}

func TestAccountQueries_Delegate(t *testing.T) {
	reader := &stubReader{accounts: []core.UserAccount{
		{ID: "usr_1", DID: "did:plc:alice", Handle: "alice.test"},
		{ID: "usr_2", DID: "did:plc:bob", Handle: "bob.test"},
	}}
	ctx := context.Background()

	byID, err := NewGetUserByIDQuery(reader).Query(ctx, GetUserByIDMessage{UserID: "usr_2"})
	if err != nil || byID.Handle != "bob.test" {
		t.Fatalf("get by id: %#v (%v)", byID, err)
	}
	byHandle, err := NewGetUserByHandleQuery(reader).Query(ctx, GetUserByHandleMessage{Handle: "alice.test"})
	if err != nil || byHandle.ID != "usr_1" {
		t.Fatalf("get by handle: %#v (%v)", byHandle, err)
	}
	count, err := NewCountUsersQuery(reader).Query(ctx, CountUsersMessage{})
	if err != nil || count != 2 {
		t.Fatalf("count: %d (%v)", count, err)
	}
	if _, err := NewListUsersQuery(reader).Query(ctx, ListUsersMessage{Limit: 10, Offset: 5}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if reader.lastOpts.Limit != 10 || reader.lastOpts.Offset != 5 {
		t.Fatalf("expected pagination forwarded, got %#v", reader.lastOpts)
	}
}

func TestGitHubQueries_Delegate(t *testing.T) {
	reader := &stubReader{
		conn:     core.GitHubConnection{UserID: "usr_1", AccessToken: "ghu_1"},
		installs: []core.Installation{{ID: 7, AppSlug: "md-publisher"}},
	}
	ctx := context.Background()

	conn, err := NewGetGitHubConnectionQuery(reader).Query(ctx, GetGitHubConnectionMessage{UserID: "usr_1"})
	if err != nil || conn.AccessToken != "ghu_1" {
		t.Fatalf("get connection: %#v (%v)", conn, err)
	}
	installs, err := NewListGitHubInstallationsQuery(reader).Query(ctx, ListGitHubInstallationsMessage{UserID: "usr_1"})
	if err != nil || len(installs) != 1 || installs[0].ID != 7 {
		t.Fatalf("list installations: %#v (%v)", installs, err)
	}
}

func TestListUsersMessage_ValidateReturnsRichError(t *testing.T) {
	err := (ListUsersMessage{Limit: -1}).Validate()
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.ServiceErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.ServiceErrorBadInput, rich.TextCode)
	}
	if err := (GetUserByHandleMessage{Handle: "@"}).Validate(); err == nil {
		t.Fatalf("expected bare @ handle to fail validation")
	}
}

func TestQuery_NilReaderReturnsRichError(t *testing.T) {
	var qry *CountUsersQuery
	_, err := qry.Query(context.Background(), CountUsersMessage{})

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}
