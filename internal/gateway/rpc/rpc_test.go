package rpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/roster/internal/domain"
	"github.com/mmcdole/roster/internal/gateway/gatewaytest"
)

func newTestPair(t *testing.T, token string, accounts ...domain.Account) (*gatewaytest.Gateway, *Client) {
	t.Helper()
	fake := gatewaytest.New(accounts...)
	srv := httptest.NewServer(NewHandler(fake, token, nil))
	t.Cleanup(srv.Close)
	return fake, NewClient(srv.URL, token, 5*time.Second, nil)
}

func TestClient_ListAndCurrent(t *testing.T) {
	_, client := newTestPair(t, "",
		domain.Account{ID: "a", Email: "a@example.com"},
		domain.Account{ID: "b", Email: "b@example.com", ProxyDisabled: true},
	)
	ctx := context.Background()

	accounts, err := client.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(accounts) != 2 || accounts[1].Email != "b@example.com" || !accounts[1].ProxyDisabled {
		t.Fatalf("unexpected accounts: %+v", accounts)
	}

	current, err := client.GetCurrentAccount(ctx)
	if err != nil {
		t.Fatalf("GetCurrentAccount: %v", err)
	}
	if current == nil || current.ID != "a" {
		t.Fatalf("expected current a, got %+v", current)
	}
}

func TestClient_NoCurrentAccountIsNil(t *testing.T) {
	_, client := newTestPair(t, "")

	current, err := client.GetCurrentAccount(context.Background())
	if err != nil {
		t.Fatalf("GetCurrentAccount: %v", err)
	}
	if current != nil {
		t.Fatalf("expected nil current, got %+v", current)
	}

	accounts, err := client.ListAccounts(context.Background())
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if accounts == nil || len(accounts) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", accounts)
	}
}

func TestClient_MutationsReachBackend(t *testing.T) {
	fake, client := newTestPair(t, "",
		domain.Account{ID: "a", Email: "a@example.com"},
		domain.Account{ID: "b", Email: "b@example.com"},
		domain.Account{ID: "c", Email: "c@example.com"},
	)
	ctx := context.Background()

	if err := client.SwitchAccount(ctx, "c"); err != nil {
		t.Fatalf("SwitchAccount: %v", err)
	}
	if fake.CurrentID() != "c" {
		t.Fatalf("expected current c, got %s", fake.CurrentID())
	}

	if err := client.ToggleProxyStatus(ctx, "b", false, "rate limited"); err != nil {
		t.Fatalf("ToggleProxyStatus: %v", err)
	}
	if got := fake.Accounts()[1]; !got.ProxyDisabled || got.ProxyDisabledReason != "rate limited" {
		t.Fatalf("proxy toggle not applied: %+v", got)
	}

	if err := client.DeleteAccounts(ctx, []string{"a", "b"}); err != nil {
		t.Fatalf("DeleteAccounts: %v", err)
	}
	if got := fake.Accounts(); len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("unexpected remaining accounts: %+v", got)
	}

	if err := client.AddAccount(ctx, "", "1//refresh"); err != nil {
		t.Fatalf("AddAccount: %v", err)
	}
	if fake.LastToken != "1//refresh" {
		t.Fatalf("token not forwarded: %q", fake.LastToken)
	}

	if err := client.ImportFromCustomDB(ctx, "/tmp/state.vscdb"); err != nil {
		t.Fatalf("ImportFromCustomDB: %v", err)
	}
	if fake.LastPath != "/tmp/state.vscdb" {
		t.Fatalf("path not forwarded: %q", fake.LastPath)
	}
}

func TestClient_RefreshAllQuotasReturnsStats(t *testing.T) {
	fake, client := newTestPair(t, "", domain.Account{ID: "a"})
	fake.Stats = domain.RefreshStats{Total: 3, Success: 2, Failed: 1, Details: []string{"c: forbidden"}}

	stats, err := client.RefreshAllQuotas(context.Background())
	if err != nil {
		t.Fatalf("RefreshAllQuotas: %v", err)
	}
	if stats.Total != 3 || stats.Failed != 1 || len(stats.Details) != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestClient_ErrorKindsSurviveTheWire(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind domain.ErrorKind
	}{
		{"credential missing", domain.NewGatewayError("start_oauth_login", domain.KindCredentialMissing, "Refresh token not found"), domain.KindCredentialMissing},
		{"environment", domain.NewGatewayError("start_oauth_login", domain.KindEnvironment, "failed to bind port"), domain.KindEnvironment},
		{"plain error", errors.New("boom"), domain.KindGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, client := newTestPair(t, "")
			fake.SetError(gatewaytest.MethodStartOAuthLogin, tt.err)

			err := client.StartOAuthLogin(context.Background())
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := domain.KindOf(err); got != tt.kind {
				t.Fatalf("expected kind %s, got %s", tt.kind, got)
			}
			if domain.ErrorMessage(err) != domain.ErrorMessage(tt.err) {
				t.Fatalf("expected message %q, got %q", domain.ErrorMessage(tt.err), domain.ErrorMessage(err))
			}
		})
	}
}

func TestClient_NotFoundMapsToSentinel(t *testing.T) {
	_, client := newTestPair(t, "", domain.Account{ID: "a"})

	err := client.SwitchAccount(context.Background(), "missing")
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestClient_TokenRequired(t *testing.T) {
	fake := gatewaytest.New(domain.Account{ID: "a"})
	srv := httptest.NewServer(NewHandler(fake, "secret", nil))
	defer srv.Close()

	bad := NewClient(srv.URL, "wrong", time.Second, nil)
	if _, err := bad.ListAccounts(context.Background()); !errors.Is(err, domain.ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}

	good := NewClient(srv.URL, "secret", time.Second, nil)
	if _, err := good.ListAccounts(context.Background()); err != nil {
		t.Fatalf("expected success with token, got %v", err)
	}
}

func TestClient_UnreachableIsEnvironmentError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, "", time.Second, nil)
	_, err := client.ListAccounts(context.Background())
	if !errors.Is(err, domain.ErrBackendUnreachable) {
		t.Fatalf("expected ErrBackendUnreachable, got %v", err)
	}
	if domain.KindOf(err) != domain.KindEnvironment {
		t.Fatalf("expected environment kind, got %s", domain.KindOf(err))
	}
}

func TestClient_SubscribeOAuthURL(t *testing.T) {
	fake, client := newTestPair(t, "")

	sub, err := client.SubscribeOAuthURL(context.Background())
	if err != nil {
		t.Fatalf("SubscribeOAuthURL: %v", err)
	}

	// The handler subscribes before replying, so the broker already has us
	fake.Broker.Publish("https://accounts.example.com/o/oauth2/auth?state=1")

	select {
	case got := <-sub.URLs():
		if !strings.Contains(got, "state=1") {
			t.Fatalf("unexpected url %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for oauth url")
	}

	sub.Close()
	select {
	case _, ok := <-sub.URLs():
		if ok {
			// a buffered value may still drain; the next read must close
			if _, ok := <-sub.URLs(); ok {
				t.Fatalf("expected channel to close after Close")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscription did not close")
	}
}

func TestHandler_UnknownTopic(t *testing.T) {
	fake := gatewaytest.New()
	req := httptest.NewRequest(http.MethodGet, "/events?topic=nope", nil)
	rec := httptest.NewRecorder()

	NewHandler(fake, "", nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandler_BadArguments(t *testing.T) {
	fake := gatewaytest.New()
	req := httptest.NewRequest(http.MethodPost, "/rpc/delete_accounts", strings.NewReader(`{"account_ids": "nope"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	NewHandler(fake, "", nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
	}
	if fake.Calls(gatewaytest.MethodDeleteAccounts) != 0 {
		t.Fatalf("gateway should not be called with bad args")
	}
}
