package core

import (
	"context"
	"testing"
	"time"
)

func TestNewOrchestrator_DefaultDependencies(t *testing.T) {
	orchestrator, err := NewOrchestrator(Config{})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	cfg := orchestrator.Config()
	if cfg.ServiceName != defaultAccountsServiceName {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
	if cfg.State.TTL != defaultStateTTL {
		t.Fatalf("expected default state ttl, got %v", cfg.State.TTL)
	}
	if cfg.GitHub.AuthorizeURL != defaultGitHubAuthorizeURL {
		t.Fatalf("expected default authorize url, got %q", cfg.GitHub.AuthorizeURL)
	}

	deps := orchestrator.Dependencies()
	if deps.Logger == nil || deps.MetricsRecorder == nil || deps.ErrorMapper == nil {
		t.Fatalf("expected ambient defaults, got %#v", deps)
	}
	if _, ok := deps.StateStore.(*MemoryStateStore); !ok {
		t.Fatalf("expected memory state store default, got %T", deps.StateStore)
	}
	if _, ok := deps.SessionStore.(*MemorySessionStore); !ok {
		t.Fatalf("expected memory session store default, got %T", deps.SessionStore)
	}
	if deps.IdentityProvider != nil || deps.AccountStore != nil {
		t.Fatalf("expected adapters to stay unset")
	}
}

func TestNewOrchestrator_ConfigLayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name": "from-config",
		"github": map[string]any{
			"client_id": "config-client",
			"app_name":  "config-app",
		},
		"default_login": map[string]any{
			"did": "did:plc:owner",
		},
	}})

	runtime := Config{ServiceName: "from-runtime"}
	runtime.GitHub.AppName = "runtime-app"
	orchestrator, err := NewOrchestrator(runtime, WithConfigProvider(provider))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	cfg := orchestrator.Config()
	if cfg.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime override, got %q", cfg.ServiceName)
	}
	if cfg.GitHub.AppName != "runtime-app" {
		t.Fatalf("expected runtime app name, got %q", cfg.GitHub.AppName)
	}
	if cfg.GitHub.ClientID != "config-client" {
		t.Fatalf("expected config layer client id, got %q", cfg.GitHub.ClientID)
	}
	if cfg.DefaultLogin.DID != "did:plc:owner" {
		t.Fatalf("expected config layer default login, got %q", cfg.DefaultLogin.DID)
	}
	if cfg.GitHub.APIURL != defaultGitHubAPIURL {
		t.Fatalf("expected defaults to fill unset keys, got %q", cfg.GitHub.APIURL)
	}
}

func TestNewOrchestrator_RuntimeStateTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.State.TTL = 2 * time.Minute
	h, err := newHarness(cfg)
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	if _, err := h.orchestrator.StartBlueskyAuth(context.Background(), "alice.bsky.social", "ctx_1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	stored, err := h.states.Get(context.Background(), "ctx_1")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if got := stored.ExpiresAt.Sub(stored.CreatedAt); got != 2*time.Minute {
		t.Fatalf("expected 2m ttl, got %v", got)
	}
}

func TestNewOrchestrator_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GitHub.APIURL = "not a url"
	if _, err := NewOrchestrator(cfg); err == nil {
		t.Fatalf("expected invalid config error")
	}
}

func TestWithStateGenerator(t *testing.T) {
	h, err := newHarness(DefaultConfig(), WithStateGenerator(func() (string, error) {
		return "fixed-state", nil
	}))
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	redirect, err := h.orchestrator.StartBlueskyAuth(context.Background(), "alice.bsky.social", "ctx_1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if stateFromURL(redirect) != "fixed-state" {
		t.Fatalf("expected generator state, got %q", redirect)
	}
}
