// Package oauth implements the OAuth 2.1 wire protocol pieces used by the
// fastmcp authentication flow.
//
// This package knows how to talk to authorization servers but not when to:
// flow orchestration, token persistence, and retry policy live in
// internal/auth and internal/tokenstore on top of these primitives.
//
// # Core Components
//
//   - Token: OAuth token representation with expiry checking
//   - Metadata: authorization server metadata (RFC 8414 / OIDC discovery)
//   - ProtectedResourceMetadata: resource server metadata (RFC 9728)
//   - ClientMetadata / ClientInformation: dynamic client registration (RFC 7591)
//   - AuthChallenge: parsed WWW-Authenticate header information (RFC 6750)
//   - PKCEChallenge: Proof Key for Code Exchange generation (RFC 7636)
//   - Client: HTTP client for discovery, registration, and token operations
//
// # Usage
//
//	import "github.com/PrefectHQ/fastmcp/pkg/oauth"
//
//	client := oauth.NewClient()
//	metadata, err := client.DiscoverMetadata(ctx, issuer)
//	pkce, err := oauth.GeneratePKCE()
//	authURL, err := oauth.BuildAuthorizationURL(
//	    metadata.AuthorizationEndpoint, clientID, redirectURI, state, scope, pkce)
//
// Metadata discovery is cached per issuer with a TTL and deduplicated across
// goroutines, so callers can invoke DiscoverMetadata freely.
package oauth
