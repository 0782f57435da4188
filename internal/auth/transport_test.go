package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PrefectHQ/fastmcp/pkg/oauth"
)

func TestTransport_AddsAuthorizationHeader(t *testing.T) {
	var gotAuth atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	storage := newMemoryStorage()
	storage.seed(server.URL, &oauth.Token{
		AccessToken: "stored-access-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}, nil)

	manager := newTestManager(t, Config{ServerURL: server.URL}, storage)
	client := NewHTTPClient(manager)

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if auth := gotAuth.Load(); auth != "Bearer stored-access-token" {
		t.Errorf("expected bearer header, got %q", auth)
	}
}

func TestTransport_RetriesOnceAfter401(t *testing.T) {
	as := newFakeAuthServer()
	defer as.Close()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") == "Bearer refreshed-access-token" {
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, "OK")
			return
		}
		w.Header().Set("WWW-Authenticate", `Bearer realm="`+as.URL()+`"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	storage := newMemoryStorage()
	// The stored token looks valid locally but the server rejects it.
	storage.seed(server.URL, &oauth.Token{
		AccessToken:  "revoked-access-token",
		RefreshToken: "test-refresh-token",
		Issuer:       as.URL(),
		ExpiresAt:    time.Now().Add(time.Hour),
	}, &oauth.ClientInformation{ClientID: "test-client-id"})

	manager := newTestManager(t, Config{ServerURL: server.URL}, storage)
	client := NewHTTPClient(manager)

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 after retry, got %d", resp.StatusCode)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("expected 2 requests (original + retry), got %d", got)
	}
	if got := as.refreshes.Load(); got != 1 {
		t.Errorf("expected 1 refresh, got %d", got)
	}
}

func TestTransport_SecondUnauthorizedPassesThrough(t *testing.T) {
	as := newFakeAuthServer()
	defer as.Close()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("WWW-Authenticate", `Bearer realm="`+as.URL()+`"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	storage := newMemoryStorage()
	storage.seed(server.URL, &oauth.Token{
		AccessToken:  "revoked-access-token",
		RefreshToken: "test-refresh-token",
		Issuer:       as.URL(),
		ExpiresAt:    time.Now().Add(time.Hour),
	}, &oauth.ClientInformation{ClientID: "test-client-id"})

	manager := newTestManager(t, Config{ServerURL: server.URL}, storage)
	client := NewHTTPClient(manager)

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	// The second 401 is the caller's problem; no retry loop.
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected the second 401 to pass through, got %d", resp.StatusCode)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("expected exactly 2 requests, got %d", got)
	}
}

func TestTransport_ReplaysBodyOnRetry(t *testing.T) {
	as := newFakeAuthServer()
	defer as.Close()

	var mu sync.Mutex
	var bodies []string
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()

		if r.Header.Get("Authorization") == "Bearer refreshed-access-token" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	storage := newMemoryStorage()
	storage.seed(server.URL, &oauth.Token{
		AccessToken:  "revoked-access-token",
		RefreshToken: "test-refresh-token",
		Issuer:       as.URL(),
		ExpiresAt:    time.Now().Add(time.Hour),
	}, &oauth.ClientInformation{ClientID: "test-client-id"})

	manager := newTestManager(t, Config{ServerURL: server.URL}, storage)
	client := NewHTTPClient(manager)

	resp, err := client.Post(server.URL, "application/json", strings.NewReader(`{"method":"tools/list"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 after retry, got %d", resp.StatusCode)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	for i, body := range bodies {
		if body != `{"method":"tools/list"}` {
			t.Errorf("request %d body = %q, want the original payload", i, body)
		}
	}
}

func TestTransport_NonReplayableBodyPassesThrough(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	storage := newMemoryStorage()
	storage.seed(server.URL, &oauth.Token{
		AccessToken: "stored-access-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}, nil)

	manager := newTestManager(t, Config{ServerURL: server.URL}, storage)
	transport := &Transport{Manager: manager}

	req, err := http.NewRequest(http.MethodPost, server.URL, strings.NewReader("one-shot"))
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.GetBody = nil // simulate a streaming body that cannot be replayed

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 passthrough, got %d", resp.StatusCode)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("expected no retry for non-replayable body, got %d requests", got)
	}
}

func TestTransport_ForwardsChallengeForDiscovery(t *testing.T) {
	as := newFakeAuthServer()
	defer as.Close()

	// The configured MCP endpoint never issues a challenge, so discovery can
	// only succeed through the challenge the transport observed.
	neutral := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer neutral.Close()

	protected := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer test-access-token" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("WWW-Authenticate", `Bearer realm="`+as.URL()+`"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer protected.Close()

	storage := newMemoryStorage()
	storage.seed(neutral.URL, &oauth.Token{
		AccessToken: "initial-access-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}, nil)

	manager := newTestManager(t, Config{
		ServerURL:   neutral.URL,
		OpenBrowser: headlessBrowser,
	}, storage)
	client := NewHTTPClient(manager)

	resp, err := client.Get(protected.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 via challenge-driven discovery, got %d", resp.StatusCode)
	}
	if got := as.exchanges.Load(); got != 1 {
		t.Errorf("expected 1 interactive exchange, got %d", got)
	}
}

func TestTransport_CredentialErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	// No stored token and an unreachable authorization server: obtaining a
	// credential fails before any request is sent.
	manager := newTestManager(t, Config{
		ServerURL:              server.URL,
		AuthorizationServerURL: "https://unreachable.invalid",
		OpenBrowser:            func(string) error { return nil },
	}, newMemoryStorage())
	client := NewHTTPClient(manager)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}

	if _, err := client.Do(req); err == nil {
		t.Error("expected credential acquisition error to propagate")
	}
}
