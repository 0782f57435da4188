package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultMetadataCacheTTL is the default TTL for cached OAuth metadata.
	DefaultMetadataCacheTTL = 30 * time.Minute
)

// Well-known paths for discovery documents.
const (
	wellKnownOAuthMetadata     = "/.well-known/oauth-authorization-server"
	wellKnownOpenIDConfig      = "/.well-known/openid-configuration"
	wellKnownProtectedResource = "/.well-known/oauth-protected-resource"
)

// HTTPStatusError is returned when an endpoint responds with an unexpected
// HTTP status. Callers can inspect StatusCode to distinguish client errors
// (e.g. registration rejected) from transport failures.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, body)
}

// IsClientError reports whether the status is in the 4xx range.
func (e *HTTPStatusError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// metadataCacheEntry holds cached OAuth metadata with its timestamp.
type metadataCacheEntry struct {
	metadata  *Metadata
	fetchedAt time.Time
}

// Client handles OAuth 2.1 protocol operations: metadata discovery, dynamic
// client registration, token exchange, and token refresh.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger

	// Metadata cache with mutex for thread safety
	metadataMu    sync.RWMutex
	metadataCache map[string]*metadataCacheEntry
	metadataTTL   time.Duration

	// singleflight group to deduplicate concurrent metadata fetches
	metadataGroup singleflight.Group
}

// ClientOption configures the OAuth client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetadataCacheTTL sets the metadata cache TTL.
func WithMetadataCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.metadataTTL = ttl
	}
}

// NewClient creates a new OAuth client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: DefaultHTTPTimeout},
		logger:        slog.Default(),
		metadataCache: make(map[string]*metadataCacheEntry),
		metadataTTL:   DefaultMetadataCacheTTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// DiscoverMetadata fetches authorization server metadata from the issuer's
// well-known endpoints. It tries RFC 8414 (/.well-known/oauth-authorization-server,
// path-aware for issuers with a path component) first, then falls back to
// OpenID Connect discovery (/.well-known/openid-configuration).
//
// Results are cached with a TTL and concurrent fetches for the same issuer
// are deduplicated.
func (c *Client) DiscoverMetadata(ctx context.Context, issuer string) (*Metadata, error) {
	issuer = strings.TrimSuffix(issuer, "/")

	// Check cache first with read lock
	c.metadataMu.RLock()
	if entry, ok := c.metadataCache[issuer]; ok {
		if time.Since(entry.fetchedAt) < c.metadataTTL {
			c.metadataMu.RUnlock()
			return entry.metadata, nil
		}
	}
	c.metadataMu.RUnlock()

	// Use singleflight to deduplicate concurrent fetches
	result, err, _ := c.metadataGroup.Do(issuer, func() (interface{}, error) {
		// Double-check cache after acquiring singleflight lock
		c.metadataMu.RLock()
		if entry, ok := c.metadataCache[issuer]; ok {
			if time.Since(entry.fetchedAt) < c.metadataTTL {
				c.metadataMu.RUnlock()
				return entry.metadata, nil
			}
		}
		c.metadataMu.RUnlock()

		return c.doDiscoverMetadata(ctx, issuer)
	})

	if err != nil {
		return nil, err
	}

	return result.(*Metadata), nil
}

// doDiscoverMetadata fetches the metadata document, trying each candidate
// well-known URL in order until one yields a valid document.
func (c *Client) doDiscoverMetadata(ctx context.Context, issuer string) (*Metadata, error) {
	candidates, err := metadataURLCandidates(issuer)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, wellKnownURL := range candidates {
		metadata, fetchErr := c.fetchMetadata(ctx, wellKnownURL)
		if fetchErr != nil {
			c.logger.Debug("Metadata fetch failed, trying next candidate",
				"url", wellKnownURL,
				"error", fetchErr)
			lastErr = fetchErr
			continue
		}

		if validateErr := metadata.Validate(); validateErr != nil {
			c.logger.Debug("Metadata document invalid, trying next candidate",
				"url", wellKnownURL,
				"error", validateErr)
			lastErr = validateErr
			continue
		}

		c.cacheMetadata(issuer, metadata)
		return metadata, nil
	}

	return nil, fmt.Errorf("failed to discover OAuth metadata for %s: %w", issuer, lastErr)
}

// metadataURLCandidates builds the ordered list of well-known URLs for an
// issuer. For issuers with a path component, RFC 8414 inserts the path after
// the well-known segment; some servers serve the suffix form instead, so both
// are tried.
func metadataURLCandidates(issuer string) ([]string, error) {
	parsed, err := url.Parse(issuer)
	if err != nil {
		return nil, fmt.Errorf("invalid issuer URL %q: %w", issuer, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("issuer URL %q missing scheme or host", issuer)
	}

	base := parsed.Scheme + "://" + parsed.Host
	path := strings.TrimSuffix(parsed.Path, "/")

	if path == "" {
		return []string{
			base + wellKnownOAuthMetadata,
			base + wellKnownOpenIDConfig,
		}, nil
	}

	return []string{
		base + wellKnownOAuthMetadata + path,
		base + path + wellKnownOAuthMetadata,
		base + wellKnownOpenIDConfig + path,
		base + path + wellKnownOpenIDConfig,
	}, nil
}

// fetchMetadata fetches and parses a metadata document from a specific URL.
func (c *Client) fetchMetadata(ctx context.Context, metadataURL string) (*Metadata, error) {
	body, err := c.getJSON(ctx, metadataURL)
	if err != nil {
		return nil, err
	}

	var metadata Metadata
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	return &metadata, nil
}

// cacheMetadata stores metadata in the cache.
func (c *Client) cacheMetadata(issuer string, metadata *Metadata) {
	c.metadataMu.Lock()
	c.metadataCache[issuer] = &metadataCacheEntry{
		metadata:  metadata,
		fetchedAt: time.Now(),
	}
	c.metadataMu.Unlock()

	c.logger.Debug("Cached OAuth metadata",
		"issuer", issuer,
		"authorization_endpoint", metadata.AuthorizationEndpoint,
		"token_endpoint", metadata.TokenEndpoint)
}

// ClearMetadataCache clears the metadata cache.
// Useful for testing or when metadata needs to be refreshed immediately.
func (c *Client) ClearMetadataCache() {
	c.metadataMu.Lock()
	c.metadataCache = make(map[string]*metadataCacheEntry)
	c.metadataMu.Unlock()
}

// DiscoverProtectedResource fetches RFC 9728 protected resource metadata for
// a resource server. The document lists the authorization servers protecting
// the resource. resourceURL may be the full metadata URL (as advertised in a
// WWW-Authenticate resource_metadata parameter) or the resource's base URL,
// in which case the well-known path is derived from it.
func (c *Client) DiscoverProtectedResource(ctx context.Context, resourceURL string) (*ProtectedResourceMetadata, error) {
	metadataURL := resourceURL
	if !strings.Contains(resourceURL, "/.well-known/") {
		parsed, err := url.Parse(resourceURL)
		if err != nil {
			return nil, fmt.Errorf("invalid resource URL %q: %w", resourceURL, err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("resource URL %q missing scheme or host", resourceURL)
		}
		path := strings.TrimSuffix(parsed.Path, "/")
		metadataURL = parsed.Scheme + "://" + parsed.Host + wellKnownProtectedResource + path
	}

	body, err := c.getJSON(ctx, metadataURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch protected resource metadata: %w", err)
	}

	var metadata ProtectedResourceMetadata
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse protected resource metadata: %w", err)
	}

	return &metadata, nil
}

// getJSON performs a GET request expecting a 200 JSON response.
func (c *Client) getJSON(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

// RegisterClient performs RFC 7591 dynamic client registration against the
// given registration endpoint. The extra map carries additional registration
// fields beyond the standard metadata; extra values win on key collision.
//
// Non-2xx responses are returned as *HTTPStatusError so callers can detect
// servers that refuse registration.
func (c *Client) RegisterClient(ctx context.Context, registrationEndpoint string, metadata ClientMetadata, extra map[string]interface{}) (*ClientInformation, error) {
	payload, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode client metadata: %w", err)
	}

	if len(extra) > 0 {
		var merged map[string]interface{}
		if err := json.Unmarshal(payload, &merged); err != nil {
			return nil, fmt.Errorf("failed to merge client metadata: %w", err)
		}
		for k, v := range extra {
			merged[k] = v
		}
		payload, err = json.Marshal(merged)
		if err != nil {
			return nil, fmt.Errorf("failed to encode client metadata: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, registrationEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registration request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read registration response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Debug("Client registration rejected",
			"endpoint", registrationEndpoint,
			"status", resp.StatusCode)
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var info ClientInformation
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse registration response: %w", err)
	}

	if info.ClientID == "" {
		return nil, fmt.Errorf("registration response missing client_id")
	}

	c.logger.Debug("Registered OAuth client",
		"endpoint", registrationEndpoint,
		"client_id", info.ClientID)

	return &info, nil
}

// ExchangeCode exchanges an authorization code for tokens.
// clientSecret may be empty for public clients; when present it is sent as
// client_secret_post.
func (c *Client) ExchangeCode(ctx context.Context, tokenEndpoint, code, redirectURI, clientID, clientSecret, codeVerifier string) (*Token, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {clientID},
		"code_verifier": {codeVerifier},
	}
	if clientSecret != "" {
		data.Set("client_secret", clientSecret)
	}

	return c.doTokenRequest(ctx, tokenEndpoint, data)
}

// RefreshToken obtains a new access token using a refresh token.
func (c *Client) RefreshToken(ctx context.Context, tokenEndpoint, refreshToken, clientID, clientSecret string) (*Token, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {clientID},
	}
	if clientSecret != "" {
		data.Set("client_secret", clientSecret)
	}

	return c.doTokenRequest(ctx, tokenEndpoint, data)
}

// doTokenRequest performs a token endpoint request.
func (c *Client) doTokenRequest(ctx context.Context, tokenEndpoint string, data url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("Token request failed",
			"status", resp.StatusCode,
			"body", string(body))

		// Surface the RFC 6749 error code when the server sent one
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			if errResp.ErrorDescription != "" {
				return nil, fmt.Errorf("token request failed with status %d: %s (%s)",
					resp.StatusCode, errResp.Error, errResp.ErrorDescription)
			}
			return nil, fmt.Errorf("token request failed with status %d: %s",
				resp.StatusCode, errResp.Error)
		}

		return nil, fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	// Calculate expiration if not set
	token.SetExpiresAtFromExpiresIn()

	return &token, nil
}

// BuildAuthorizationURL constructs an OAuth authorization URL.
// scope is omitted when empty; PKCE parameters are omitted when pkce is nil.
func BuildAuthorizationURL(authEndpoint, clientID, redirectURI, state, scope string, pkce *PKCEChallenge) (string, error) {
	authURL, err := url.Parse(authEndpoint)
	if err != nil {
		return "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}

	query := authURL.Query()
	query.Set("response_type", "code")
	query.Set("client_id", clientID)
	query.Set("redirect_uri", redirectURI)
	query.Set("state", state)

	if scope != "" {
		query.Set("scope", scope)
	}

	if pkce != nil {
		query.Set("code_challenge", pkce.CodeChallenge)
		query.Set("code_challenge_method", pkce.CodeChallengeMethod)
	}

	authURL.RawQuery = query.Encode()
	return authURL.String(), nil
}
