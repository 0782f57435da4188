// Package oauth embeds sample OAuth documents used across the test suite.
//
// The fixtures cover the documents a client sees during a full
// authorization pass:
//
//   - valid_token.json: an unexpired bearer token response
//   - expired_token.json: a token whose expiry is in the past
//   - metadata.json: RFC 8414 authorization server metadata
//   - protected_resource.json: RFC 9728 protected resource metadata
//   - www_authenticate.txt: example WWW-Authenticate challenge headers
//
// Tests either load them through the typed accessors (LoadValidToken,
// LoadMetadata, ...) or serve the raw bytes from httptest servers so the
// production parsers see realistic documents.
package oauth
