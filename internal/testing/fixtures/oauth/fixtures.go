// Package oauth provides embedded test fixtures for OAuth testing.
package oauth

import (
	_ "embed"
	"encoding/json"
	"strings"
)

//go:embed valid_token.json
var validTokenData []byte

//go:embed expired_token.json
var expiredTokenData []byte

//go:embed metadata.json
var metadataData []byte

//go:embed protected_resource.json
var protectedResourceData []byte

//go:embed www_authenticate.txt
var wwwAuthenticateData []byte

// TokenFixture represents an OAuth token fixture.
type TokenFixture struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	IssuedAt     string `json:"issued_at"`
	ExpiresAt    string `json:"expires_at"`
}

// MetadataFixture represents an OAuth server metadata fixture.
type MetadataFixture struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint"`
	JwksURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
}

// LoadValidToken returns the unexpired token fixture.
func LoadValidToken() (*TokenFixture, error) {
	var token TokenFixture
	if err := json.Unmarshal(validTokenData, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// LoadExpiredToken returns the expired token fixture for expiry handling
// tests.
func LoadExpiredToken() (*TokenFixture, error) {
	var token TokenFixture
	if err := json.Unmarshal(expiredTokenData, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// LoadMetadata returns the authorization server metadata fixture.
func LoadMetadata() (*MetadataFixture, error) {
	var metadata MetadataFixture
	if err := json.Unmarshal(metadataData, &metadata); err != nil {
		return nil, err
	}
	return &metadata, nil
}

// RawMetadata returns the authorization server metadata document verbatim,
// for serving from test HTTP servers or parsing with production types.
func RawMetadata() []byte {
	return metadataData
}

// RawProtectedResource returns the RFC 9728 protected resource metadata
// document verbatim.
func RawProtectedResource() []byte {
	return protectedResourceData
}

// WWWAuthenticateHeaders returns the example WWW-Authenticate header
// values, one per entry, with comment and blank lines stripped.
func WWWAuthenticateHeaders() []string {
	var headers []string
	for _, line := range strings.Split(string(wwwAuthenticateData), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		headers = append(headers, line)
	}
	return headers
}
