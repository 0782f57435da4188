// Package auth implements the OAuth 2.1 authorization code flow for MCP
// client connections.
//
// This package orchestrates the full client-side flow against OAuth-protected
// MCP servers: authorization server discovery, dynamic client registration,
// the browser-based authorization step with a local callback listener, token
// exchange, and automatic refresh.
//
// # Architecture
//
// The package is built from four cooperating pieces:
//   - Flow: the state machine driving a single authorization attempt
//     (discovery -> registration -> user interaction -> exchange)
//   - CallbackServer: a one-shot loopback HTTP listener that receives the
//     authorization redirect
//   - TokenManager: serves bearer credentials, refreshing or re-running the
//     flow as tokens expire, backed by optional persistent storage
//   - Transport: an http.RoundTripper that attaches credentials and retries
//     exactly once after a 401 response
//
// # Discovery
//
// The authorization server is located in order of preference from an explicit
// configuration override, a recorded WWW-Authenticate challenge (including
// RFC 9728 protected resource metadata), or the MCP server origin itself.
// Metadata is fetched per RFC 8414 with an OpenID Connect fallback.
//
// # Usage
//
//	flow, err := auth.NewFlow(auth.Config{
//	    ServerURL: "https://mcp.example.com/mcp",
//	})
//	manager := auth.NewTokenManager(flow, auth.WithStorage(store))
//
//	// HTTP client that authenticates transparently.
//	httpClient := auth.NewHTTPClient(manager)
package auth
