package adapters_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/adapters/gocommand"
	"github.com/goliatone/go-accounts/adapters/gojob"
	"github.com/goliatone/go-accounts/adapters/gologger"
	accountscommand "github.com/goliatone/go-accounts/command"
	"github.com/goliatone/go-accounts/core"
	"github.com/goliatone/go-accounts/providers/github"
	accountsquery "github.com/goliatone/go-accounts/query"
	sqlstore "github.com/goliatone/go-accounts/store/sql"
	"github.com/goliatone/go-command"
	"github.com/goliatone/go-job/queue"
	jobredis "github.com/goliatone/go-job/queue/adapters/redis"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	goredis "github.com/redis/go-redis/v9"
)

func TestRuntimeCompatibility_RefreshJobThroughSQLStores(t *testing.T) {
	ctx := context.Background()
	tokenServer := newRefreshTokenServer(t)
	factory := newSQLiteFactory(t)
	account := seedRefreshableConnection(t, factory, "did:plc:alice", "alice.bsky.social")

	logger := &compatLogger{}
	orchestrator := newRefreshOrchestrator(t, factory, tokenServer,
		gologger.OrchestratorOptions("accounts", &compatProvider{logger: logger}, nil)...)

	_, resolvedLogger, jobProvider, jobLogger := gologger.ResolveForJob("accounts.jobs", &compatProvider{logger: logger}, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}

	q := newRedisQueue(t)
	receipt, err := gojob.EnqueueRefresh(ctx, q, account.ID)
	if err != nil {
		t.Fatalf("enqueue refresh: %v", err)
	}
	w, err := gojob.NewRefreshWorker(q, orchestrator,
		gojob.WithLogger(resolvedLogger),
		gojob.WithIdleDelay(5*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new refresh worker: %v", err)
	}
	startWorker(t, w)
	waitForDispatchState(t, q, receipt.DispatchID, queue.DispatchStateSucceeded)

	facade, err := accounts.NewFacade(orchestrator)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	subs, err := gocommand.RegisterFacade(gocommand.NewRegistryAdapter(command.NewRegistry()), facade)
	if err != nil {
		t.Fatalf("register facade: %v", err)
	}
	defer subs.Unsubscribe()

	assertRefreshedConnection(t, account.ID)
}

func TestRuntimeCompatibility_QueuedRefreshCommand(t *testing.T) {
	ctx := context.Background()
	tokenServer := newRefreshTokenServer(t)
	factory := newSQLiteFactory(t)
	account := seedRefreshableConnection(t, factory, "did:plc:carol", "carol.bsky.social")
	orchestrator := newRefreshOrchestrator(t, factory, tokenServer)

	facade, err := accounts.NewFacade(orchestrator)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	queueRegistry := jobqueuecommand.NewRegistry()
	subs, err := gocommand.RegisterFacade(
		gocommand.NewRegistryAdapter(command.NewRegistry()),
		facade,
		gocommand.WithQueueRegistry(queueRegistry),
	)
	if err != nil {
		t.Fatalf("register facade: %v", err)
	}
	defer subs.Unsubscribe()

	q := newRedisQueue(t)
	receipt, err := jobqueuecommand.Enqueue(ctx, q, queueRegistry,
		accountscommand.TypeRefreshGitHubConnection,
		map[string]any{"user_id": account.ID},
	)
	if err != nil {
		t.Fatalf("enqueue queued command: %v", err)
	}
	w, err := jobqueuecommand.NewLocalWorker(q, queueRegistry, jobqueuecommand.LocalWorkerConfig{
		IDs:           []string{accountscommand.TypeRefreshGitHubConnection},
		WorkerOptions: []worker.Option{worker.WithIdleDelay(5 * time.Millisecond)},
	})
	if err != nil {
		t.Fatalf("new local worker: %v", err)
	}
	startWorker(t, w)
	waitForDispatchState(t, q, receipt.DispatchID, queue.DispatchStateSucceeded)

	assertRefreshedConnection(t, account.ID)
}

func TestRuntimeCompatibility_TerminalRefreshIsDeadLettered(t *testing.T) {
	ctx := context.Background()
	factory := newSQLiteFactory(t)
	account, err := factory.AccountStore().Create(ctx, core.CreateAccountInput{DID: "did:plc:bob", Handle: "bob.bsky.social"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := factory.ConnectionStore().Create(ctx, core.CreateConnectionInput{
		UserID:      account.ID,
		AccessToken: "gho_classic",
	}); err != nil {
		t.Fatalf("create connection: %v", err)
	}

	tokenProvider, err := github.NewTokenProvider(github.Config{ClientID: "client-123", ClientSecret: "secret-456"})
	if err != nil {
		t.Fatalf("new token provider: %v", err)
	}
	opts := append(factory.Options(), core.WithGitHubTokenProvider(tokenProvider))
	orchestrator, err := accounts.NewOrchestrator(accounts.DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	q := newRedisQueue(t)
	receipt, err := gojob.EnqueueRefresh(ctx, q, account.ID)
	if err != nil {
		t.Fatalf("enqueue refresh: %v", err)
	}
	failures := make(chan worker.Event, 1)
	w, err := gojob.NewRefreshWorker(q, orchestrator,
		gojob.WithIdleDelay(5*time.Millisecond),
		gojob.WithHooks(worker.HookFuncs{
			OnFailureFunc: func(_ context.Context, event worker.Event) { failures <- event },
		}),
	)
	if err != nil {
		t.Fatalf("new refresh worker: %v", err)
	}
	startWorker(t, w)

	select {
	case event := <-failures:
		if core.TextCodeOf(event.Err) != core.ServiceErrorGitHubUnrefreshable {
			t.Fatalf("expected unrefreshable failure, got %v", event.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected refresh failure hook")
	}
	status := waitForDispatchState(t, q, receipt.DispatchID, queue.DispatchStateDeadLetter)
	if status.Attempt != 1 {
		t.Fatalf("expected dead letter on first attempt, got %d", status.Attempt)
	}
}

func newRefreshTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("refresh_token") != "ghr_old" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "bad_refresh_token"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "ghu_new",
			"refresh_token": "ghr_new",
			"expires_in":    28800,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func seedRefreshableConnection(t *testing.T, factory *sqlstore.RepositoryFactory, did, handle string) core.UserAccount {
	t.Helper()
	ctx := context.Background()
	account, err := factory.AccountStore().Create(ctx, core.CreateAccountInput{DID: did, Handle: handle})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	refreshToken := "ghr_old"
	expired := time.Now().UTC().Add(-time.Hour)
	if _, err := factory.ConnectionStore().Create(ctx, core.CreateConnectionInput{
		UserID:       account.ID,
		AccessToken:  "ghu_old",
		RefreshToken: &refreshToken,
		ExpiresAt:    &expired,
	}); err != nil {
		t.Fatalf("create connection: %v", err)
	}
	return account
}

func newRefreshOrchestrator(t *testing.T, factory *sqlstore.RepositoryFactory, tokenServer *httptest.Server, extra ...core.Option) *core.Orchestrator {
	t.Helper()
	tokenProvider, err := github.NewTokenProvider(github.Config{
		ClientID:     "client-123",
		ClientSecret: "secret-456",
		TokenURL:     tokenServer.URL + "/login/oauth/access_token",
		APIURL:       tokenServer.URL,
		HTTPClient:   tokenServer.Client(),
	})
	if err != nil {
		t.Fatalf("new token provider: %v", err)
	}
	opts := append(factory.Options(), core.WithGitHubTokenProvider(tokenProvider))
	opts = append(opts, extra...)
	orchestrator, err := accounts.NewOrchestrator(accounts.DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return orchestrator
}

func assertRefreshedConnection(t *testing.T, userID string) {
	t.Helper()
	conn, err := gocommand.Query[accountsquery.GetGitHubConnectionMessage, core.GitHubConnection](
		context.Background(),
		accountsquery.GetGitHubConnectionMessage{UserID: userID},
	)
	if err != nil {
		t.Fatalf("query github connection: %v", err)
	}
	if conn.AccessToken != "ghu_new" || conn.RefreshToken == nil || *conn.RefreshToken != "ghr_new" {
		t.Fatalf("expected refreshed tokens to be persisted, got %#v", conn)
	}
	if conn.ExpiresAt == nil || !conn.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected refreshed expiry to be persisted, got %v", conn.ExpiresAt)
	}
}

func newRedisQueue(t *testing.T) *jobredis.Adapter {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return gojob.NewRedisQueue(client, jobredis.WithQueueName("accounts-compat"))
}

func startWorker(t *testing.T, w *worker.Worker) {
	t.Helper()
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start worker: %v", err)
	}
	t.Cleanup(func() { _ = w.Stop(context.Background()) })
}

func waitForDispatchState(t *testing.T, q *jobredis.Adapter, dispatchID string, want queue.DispatchState) queue.DispatchStatus {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		status, err := q.GetDispatchStatus(context.Background(), dispatchID)
		if err == nil && status.State == want {
			return status
		}
		if time.Now().After(deadline) {
			t.Fatalf("dispatch %s never reached %s (last %#v, %v)", dispatchID, want, status, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newSQLiteFactory(t *testing.T) *sqlstore.RepositoryFactory {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:accounts-compat-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	client, err := sqlstore.Open(ctx, sqlstore.PersistenceConfig{Driver: sqlstore.DriverSQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	return factory
}

type compatProvider struct {
	logger glog.Logger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type compatLogger struct{}

func (compatLogger) Trace(string, ...any)                    {}
func (compatLogger) Debug(string, ...any)                    {}
func (compatLogger) Info(string, ...any)                     {}
func (compatLogger) Warn(string, ...any)                     {}
func (compatLogger) Error(string, ...any)                    {}
func (compatLogger) Fatal(string, ...any)                    {}
func (compatLogger) WithContext(context.Context) glog.Logger { return compatLogger{} }
