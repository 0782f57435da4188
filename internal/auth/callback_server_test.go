package auth

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestCallbackServer_Start_PortBinding(t *testing.T) {
	t.Run("ephemeral port", func(t *testing.T) {
		server := NewCallbackServer(0, "")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		redirectURI, err := server.Start(ctx)
		if err != nil {
			t.Fatalf("Failed to start callback server: %v", err)
		}
		defer server.Stop()

		if redirectURI == "" {
			t.Error("expected non-empty redirect URI")
		}

		if !strings.Contains(redirectURI, "/callback") {
			t.Errorf("redirect URI should contain '/callback', got: %s", redirectURI)
		}

		if server.Port() == 0 {
			t.Error("expected non-zero port after start")
		}
	})

	t.Run("two servers get different ports", func(t *testing.T) {
		server1 := NewCallbackServer(0, "")
		ctx1, cancel1 := context.WithCancel(context.Background())
		defer cancel1()

		if _, err := server1.Start(ctx1); err != nil {
			t.Fatalf("Could not start first server: %v", err)
		}
		defer server1.Stop()

		server2 := NewCallbackServer(0, "")
		ctx2, cancel2 := context.WithCancel(context.Background())
		defer cancel2()

		if _, err := server2.Start(ctx2); err != nil {
			t.Fatalf("Could not start second server: %v", err)
		}
		defer server2.Stop()

		if server1.Port() == server2.Port() {
			t.Errorf("expected different ports, both got %d", server1.Port())
		}
	})

	t.Run("custom path", func(t *testing.T) {
		server := NewCallbackServer(0, "/oauth/redirect")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		redirectURI, err := server.Start(ctx)
		if err != nil {
			t.Fatalf("Failed to start callback server: %v", err)
		}
		defer server.Stop()

		if !strings.HasSuffix(redirectURI, "/oauth/redirect") {
			t.Errorf("redirect URI should end with '/oauth/redirect', got: %s", redirectURI)
		}
	})
}

func TestCallbackServer_HandleCallback_Success(t *testing.T) {
	server := NewCallbackServer(0, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redirectURI, err := server.Start(ctx)
	if err != nil {
		t.Fatalf("Failed to start callback server: %v", err)
	}
	defer server.Stop()

	go func() {
		resp, err := http.Get(redirectURI + "?code=test-code&state=test-state")
		if err != nil {
			return
		}
		resp.Body.Close()
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()

	result, err := server.WaitForCallback(waitCtx)
	if err != nil {
		t.Fatalf("WaitForCallback failed: %v", err)
	}

	if result == nil {
		t.Fatal("expected result, got nil")
	}

	if result.Code != "test-code" {
		t.Errorf("expected code 'test-code', got %q", result.Code)
	}

	if result.State != "test-state" {
		t.Errorf("expected state 'test-state', got %q", result.State)
	}

	if result.IsError() {
		t.Error("expected success, but IsError() returned true")
	}
}

func TestCallbackServer_HandleCallback_Error(t *testing.T) {
	server := NewCallbackServer(0, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redirectURI, err := server.Start(ctx)
	if err != nil {
		t.Fatalf("Failed to start callback server: %v", err)
	}
	defer server.Stop()

	go func() {
		resp, err := http.Get(redirectURI + "?error=access_denied&error_description=User+denied+access")
		if err != nil {
			return
		}
		resp.Body.Close()
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()

	result, err := server.WaitForCallback(waitCtx)
	if err != nil {
		t.Fatalf("WaitForCallback failed: %v", err)
	}

	if !result.IsError() {
		t.Error("expected error result, but IsError() returned false")
	}

	if result.Error != "access_denied" {
		t.Errorf("expected error 'access_denied', got %q", result.Error)
	}

	if result.ErrorDescription != "User denied access" {
		t.Errorf("expected error description 'User denied access', got %q", result.ErrorDescription)
	}
}

func TestCallbackServer_WaitForCallback_Timeout(t *testing.T) {
	server := NewCallbackServer(0, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := server.Start(ctx); err != nil {
		t.Fatalf("Failed to start callback server: %v", err)
	}
	defer server.Stop()

	waitCtx, waitCancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer waitCancel()

	result, err := server.WaitForCallback(waitCtx)

	if err == nil {
		t.Error("expected timeout error, got nil")
	}

	if result != nil {
		t.Errorf("expected nil result on timeout, got: %+v", result)
	}

	if err != context.DeadlineExceeded {
		t.Errorf("expected context.DeadlineExceeded error, got: %v", err)
	}
}

func TestCallbackServer_SecurityHeaders(t *testing.T) {
	server := NewCallbackServer(0, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redirectURI, err := server.Start(ctx)
	if err != nil {
		t.Fatalf("Failed to start callback server: %v", err)
	}
	defer server.Stop()

	resp, err := http.Get(redirectURI + "?code=test-code&state=test-state")
	if err != nil {
		t.Fatalf("HTTP request failed: %v", err)
	}
	defer resp.Body.Close()

	expectedHeaders := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
		"Cache-Control":          "no-store",
	}

	for header, expectedValue := range expectedHeaders {
		actual := resp.Header.Get(header)
		if actual != expectedValue {
			t.Errorf("expected header %s=%q, got %q", header, expectedValue, actual)
		}
	}

	csp := resp.Header.Get("Content-Security-Policy")
	if csp == "" {
		t.Error("expected Content-Security-Policy header")
	} else if !strings.Contains(csp, "default-src") {
		t.Errorf("Content-Security-Policy should contain 'default-src', got: %s", csp)
	}
}

func TestCallbackServer_RedirectURI(t *testing.T) {
	server := NewCallbackServer(0, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := server.Start(ctx); err != nil {
		t.Fatalf("Failed to start callback server: %v", err)
	}
	defer server.Stop()

	redirectURI := server.RedirectURI()

	if redirectURI == "" {
		t.Error("expected non-empty redirect URI")
	}

	if !strings.HasSuffix(redirectURI, "/callback") {
		t.Errorf("redirect URI should end with '/callback', got: %s", redirectURI)
	}

	if !strings.HasPrefix(redirectURI, "http://127.0.0.1:") {
		t.Errorf("redirect URI should start with 'http://127.0.0.1:', got: %s", redirectURI)
	}
}

func TestCallbackServer_IgnoresOtherPaths(t *testing.T) {
	server := NewCallbackServer(0, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redirectURI, err := server.Start(ctx)
	if err != nil {
		t.Fatalf("Failed to start callback server: %v", err)
	}
	defer server.Stop()

	base := strings.TrimSuffix(redirectURI, DefaultCallbackPath)

	// Browsers often fetch /favicon.ico alongside the redirect; it must not
	// consume the one-shot callback.
	resp, err := http.Get(base + "/favicon.ico")
	if err != nil {
		t.Fatalf("HTTP request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for non-callback path, got %d", resp.StatusCode)
	}

	// The real callback must still be accepted afterwards.
	go func() {
		resp, err := http.Get(redirectURI + "?code=real-code&state=real-state")
		if err != nil {
			return
		}
		resp.Body.Close()
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()

	result, err := server.WaitForCallback(waitCtx)
	if err != nil {
		t.Fatalf("WaitForCallback failed: %v", err)
	}

	if result.Code != "real-code" {
		t.Errorf("expected code 'real-code', got %q", result.Code)
	}
}

func TestCallbackServer_ContextCancellation(t *testing.T) {
	server := NewCallbackServer(0, "")
	ctx, cancel := context.WithCancel(context.Background())

	if _, err := server.Start(ctx); err != nil {
		t.Fatalf("Failed to start callback server: %v", err)
	}

	cancel()

	// Give the shutdown goroutine time to run
	time.Sleep(200 * time.Millisecond)

	resp, err := http.Get(server.RedirectURI())
	if err == nil {
		resp.Body.Close()
		t.Log("Server still responded after context cancellation (may take time to stop)")
	}
}

func TestCallbackServer_Stop(t *testing.T) {
	server := NewCallbackServer(0, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := server.Start(ctx); err != nil {
		t.Fatalf("Failed to start callback server: %v", err)
	}

	server.Stop()

	// Stopping again should not panic or error
	server.Stop()
}

func TestCallbackServer_PortReleasedAfterStop(t *testing.T) {
	first := NewCallbackServer(0, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := first.Start(ctx); err != nil {
		t.Fatalf("Failed to start first server: %v", err)
	}

	port := first.Port()
	first.Stop()

	// Sequential authorization attempts must be able to reuse the port:
	// a leaked listener from any earlier attempt makes the bind fail.
	for i := 0; i < 100; i++ {
		server := NewCallbackServer(port, "")
		if _, err := server.Start(ctx); err != nil {
			t.Fatalf("attempt %d: port %d not released after Stop: %v", i, port, err)
		}
		server.Stop()
	}
}

func TestCallbackResult_IsError(t *testing.T) {
	testCases := []struct {
		name     string
		result   CallbackResult
		expected bool
	}{
		{
			name: "success with code",
			result: CallbackResult{
				Code:  "auth-code",
				State: "state",
			},
			expected: false,
		},
		{
			name: "error response",
			result: CallbackResult{
				Error:            "access_denied",
				ErrorDescription: "User denied access",
			},
			expected: true,
		},
		{
			name:     "empty result",
			result:   CallbackResult{},
			expected: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.result.IsError() != tc.expected {
				t.Errorf("IsError() = %v, want %v", tc.result.IsError(), tc.expected)
			}
		})
	}
}

func TestCallbackServer_MultipleCallbacksHandledOnce(t *testing.T) {
	server := NewCallbackServer(0, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redirectURI, err := server.Start(ctx)
	if err != nil {
		t.Fatalf("Failed to start callback server: %v", err)
	}
	defer server.Stop()

	go func() {
		resp, err := http.Get(redirectURI + "?code=first-code&state=first-state")
		if err == nil {
			resp.Body.Close()
		}
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()

	result, err := server.WaitForCallback(waitCtx)
	if err != nil {
		t.Fatalf("WaitForCallback failed: %v", err)
	}

	if result.Code != "first-code" {
		t.Errorf("expected first code, got %q", result.Code)
	}

	// A replayed redirect must be rejected, not re-processed.
	resp, err := http.Get(redirectURI + "?code=second-code&state=second-state")
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("second callback got status %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
	}
}
