package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/goliatone/go-accounts/core"
)

func newTestProvider(t *testing.T, handler http.Handler) *TokenProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewTokenProvider(Config{
		ClientID:     "client-123",
		ClientSecret: "secret-456",
		RedirectURL:  "https://app.example/github/callback",
		TokenURL:     server.URL + "/login/oauth/access_token",
		APIURL:       server.URL,
		HTTPClient:   server.Client(),
	})
	if err != nil {
		t.Fatalf("new token provider: %v", err)
	}
	return provider
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func TestTokenProvider_GetAccessToken(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "authorization_code" || r.Form.Get("code") != "code_1" {
			t.Errorf("unexpected exchange form: %v", r.Form)
		}
		if r.Form.Get("client_id") != "client-123" || r.Form.Get("client_secret") != "secret-456" {
			t.Errorf("expected client credentials in params: %v", r.Form)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "ghu_access",
			"token_type":    "bearer",
			"refresh_token": "ghr_refresh",
			"expires_in":    28800,
		})
	}))

	before := time.Now()
	grant, err := provider.GetAccessToken(context.Background(), "code_1")
	if err != nil {
		t.Fatalf("get access token: %v", err)
	}
	if grant.AccessToken != "ghu_access" {
		t.Fatalf("unexpected access token %q", grant.AccessToken)
	}
	if grant.RefreshToken == nil || *grant.RefreshToken != "ghr_refresh" {
		t.Fatalf("expected refresh token, got %v", grant.RefreshToken)
	}
	if grant.ExpiresAt == nil || grant.ExpiresAt.Before(before.Add(7*time.Hour)) {
		t.Fatalf("expected expiry around 8h, got %v", grant.ExpiresAt)
	}
}

func TestTokenProvider_GetAccessTokenWithoutExpiry(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "gho_classic", "token_type": "bearer"})
	}))

	grant, err := provider.GetAccessToken(context.Background(), "code_1")
	if err != nil {
		t.Fatalf("get access token: %v", err)
	}
	if grant.RefreshToken != nil || grant.ExpiresAt != nil {
		t.Fatalf("expected nil refresh token and expiry, got %#v", grant)
	}
}

func TestTokenProvider_ExchangeErrorsAreClassified(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      map[string]any
		retryable bool
	}{
		{name: "bad code", status: http.StatusBadRequest, body: map[string]any{"error": "bad_verification_code"}, retryable: false},
		{name: "unavailable", status: http.StatusServiceUnavailable, body: map[string]any{}, retryable: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tc.status, tc.body)
			}))
			_, err := provider.GetAccessToken(context.Background(), "code_1")
			var providerErr *core.ProviderError
			if !errors.As(err, &providerErr) {
				t.Fatalf("expected provider error, got %T %v", err, err)
			}
			if providerErr.StatusCode != tc.status || providerErr.Retryable != tc.retryable {
				t.Fatalf("unexpected classification: %#v", providerErr)
			}
		})
	}
}

func TestTokenProvider_RefreshAccessToken(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "ghr_old" {
			t.Errorf("unexpected refresh form: %v", r.Form)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "ghu_new",
			"refresh_token": "ghr_new",
			"expires_in":    3600,
		})
	}))

	grant, err := provider.RefreshAccessToken(context.Background(), "ghr_old")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if grant.AccessToken != "ghu_new" || *grant.RefreshToken != "ghr_new" || grant.ExpiresAt == nil {
		t.Fatalf("unexpected grant: %#v", grant)
	}
}

func TestTokenProvider_ListInstallationsPaginates(t *testing.T) {
	const total = installationsPageSize + 1
	var pages []int
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/installations" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer ghu_access" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("X-GitHub-Api-Version") != APIVersion {
			t.Errorf("expected api version header")
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		pages = append(pages, page)

		start := (page - 1) * installationsPageSize
		records := []map[string]any{}
		for id := start; id < total && id < start+installationsPageSize; id++ {
			records = append(records, map[string]any{
				"id":                   id + 1,
				"app_slug":             "md-publisher",
				"account":              map[string]any{"login": fmt.Sprintf("org-%d", id), "type": "Organization"},
				"target_type":          "Organization",
				"repository_selection": "selected",
				"html_url":             "https://github.com/organizations/org/settings/installations/1",
				"created_at":           "2026-01-02T03:04:05Z",
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"total_count": total, "installations": records})
	}))

	installations, err := provider.ListInstallations(context.Background(), "ghu_access")
	if err != nil {
		t.Fatalf("list installations: %v", err)
	}
	if len(installations) != total {
		t.Fatalf("expected %d installations, got %d", total, len(installations))
	}
	if len(pages) != 2 {
		t.Fatalf("expected two page requests, got %v", pages)
	}
	first := installations[0]
	if first.ID != 1 || first.AccountLogin != "org-0" || first.AccountType != "Organization" || first.RepositorySelection != "selected" {
		t.Fatalf("unexpected installation mapping: %#v", first)
	}
	if first.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be parsed")
	}
}

func TestTokenProvider_ListInstallationsUnauthorized(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Bad credentials"})
	}))

	_, err := provider.ListInstallations(context.Background(), "ghu_stale")
	var providerErr *core.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if providerErr.StatusCode != http.StatusUnauthorized || providerErr.Retryable {
		t.Fatalf("expected terminal 401, got %#v", providerErr)
	}
}
