package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/PrefectHQ/fastmcp/pkg/logging"
	"github.com/PrefectHQ/fastmcp/pkg/oauth"
)

// FlowState represents where an authentication attempt currently stands.
type FlowState int

const (
	// StateIdle means no attempt has been started yet.
	StateIdle FlowState = iota

	// StateDiscovering means authorization server metadata is being located.
	StateDiscovering

	// StateRegistering means dynamic client registration is in progress.
	StateRegistering

	// StateAwaitingInteraction means the browser interaction is pending.
	StateAwaitingInteraction

	// StateExchanging means the authorization code is being exchanged.
	StateExchanging

	// StateAuthenticated means a valid token set is held.
	StateAuthenticated

	// StateRefreshing means an expired token is being refreshed silently.
	StateRefreshing

	// StateFailed means the current attempt failed. A new attempt may be
	// started; the session is not over.
	StateFailed
)

// String returns the string representation of the flow state.
func (s FlowState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	case StateRegistering:
		return "registering"
	case StateAwaitingInteraction:
		return "awaiting_interaction"
	case StateExchanging:
		return "exchanging"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Flow orchestrates OAuth 2.1 authentication attempts against one MCP
// server: discovery, optional dynamic registration, the browser interaction
// with a loopback callback listener, and the code exchange.
//
// At most one attempt is in flight at a time. Concurrent Authenticate calls
// coalesce onto the running attempt and all receive its outcome, so two
// requests hitting a 401 simultaneously produce one browser window and bind
// one port.
type Flow struct {
	cfg         Config
	httpClient  *http.Client
	oauthClient *oauth.Client

	group singleflight.Group

	mu         sync.RWMutex
	state      FlowState
	attemptID  string
	authURL    string
	issuer     string
	clientInfo *oauth.ClientInformation
	challenge  *oauth.AuthChallenge
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithHTTPClient sets the HTTP client used for probing and protocol calls.
func WithHTTPClient(httpClient *http.Client) FlowOption {
	return func(f *Flow) {
		f.httpClient = httpClient
	}
}

// WithOAuthClient sets a custom protocol client, sharing its metadata cache.
func WithOAuthClient(client *oauth.Client) FlowOption {
	return func(f *Flow) {
		f.oauthClient = client
	}
}

// NewFlow creates a flow for the given configuration.
func NewFlow(cfg Config, opts ...FlowOption) (*Flow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f := &Flow{
		cfg:   cfg.withDefaults(),
		state: StateIdle,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.httpClient == nil {
		f.httpClient = &http.Client{Timeout: oauth.DefaultHTTPTimeout}
	}
	if f.oauthClient == nil {
		f.oauthClient = oauth.NewClient(oauth.WithHTTPClient(f.httpClient))
	}

	// Static credentials disable dynamic registration entirely
	if f.cfg.ClientID != "" {
		f.clientInfo = &oauth.ClientInformation{
			ClientID:     f.cfg.ClientID,
			ClientSecret: f.cfg.ClientSecret,
		}
	}

	return f, nil
}

// ServerURL returns the MCP endpoint this flow authenticates against.
func (f *Flow) ServerURL() string {
	return f.cfg.ServerURL
}

// State returns the current flow state.
func (f *Flow) State() FlowState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// AuthorizationURL returns the authorization URL of the current attempt, or
// empty if no attempt has reached the interaction step.
func (f *Flow) AuthorizationURL() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.authURL
}

// ClientInfo returns the client credentials in use: static configuration or
// the result of dynamic registration. Nil before the first attempt when no
// static credentials are configured.
func (f *Flow) ClientInfo() *oauth.ClientInformation {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.clientInfo
}

// SetClientInfo seeds the flow with previously persisted client credentials
// so refresh grants work without re-registration.
func (f *Flow) SetClientInfo(client *oauth.ClientInformation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clientInfo == nil {
		f.clientInfo = client
	}
}

// HandleChallenge records a WWW-Authenticate challenge observed by the
// transport. The next attempt consumes it instead of probing the server.
func (f *Flow) HandleChallenge(challenge *oauth.AuthChallenge) {
	if challenge == nil {
		return
	}
	f.mu.Lock()
	f.challenge = challenge
	f.mu.Unlock()

	logging.Debug("Discovery", "Recorded authentication challenge (issuer=%q, resource_metadata=%q)",
		challenge.GetIssuer(), challenge.ResourceMetadataURL)
}

// Authenticate runs a full interactive authentication attempt and returns
// the resulting token set. Concurrent calls coalesce onto one attempt.
//
// On failure the returned error is an *AuthenticationError wrapping the
// step-specific cause (DiscoveryError, RegistrationError,
// CallbackTimeoutError, CallbackStateMismatchError,
// AuthorizationDeniedError, or TokenExchangeError).
func (f *Flow) Authenticate(ctx context.Context) (*oauth.Token, error) {
	result, err, shared := f.group.Do("authenticate", func() (interface{}, error) {
		return f.authenticate(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logging.Debug("OAuth", "Joined in-flight authentication attempt for %s", f.cfg.ServerURL)
	}
	return result.(*oauth.Token), nil
}

// authenticate runs one attempt end to end and maps failures to
// AuthenticationError.
func (f *Flow) authenticate(ctx context.Context) (*oauth.Token, error) {
	attemptID := uuid.NewString()

	f.mu.Lock()
	f.attemptID = attemptID
	f.authURL = ""
	f.mu.Unlock()

	token, err := f.runAttempt(ctx, attemptID)
	if err != nil {
		f.setState(StateFailed)
		return nil, &AuthenticationError{ServerURL: f.cfg.ServerURL, Err: err}
	}

	f.setState(StateAuthenticated)
	return token, nil
}

// runAttempt executes the discovery, registration, interaction, and exchange
// steps of a single attempt. Each attempt uses a fresh PKCE pair and state
// value; the callback port is released on every exit path.
func (f *Flow) runAttempt(ctx context.Context, attemptID string) (*oauth.Token, error) {
	f.setState(StateDiscovering)

	metadata, issuer, err := f.discover(ctx)
	if err != nil {
		return nil, err
	}

	server := NewCallbackServer(f.cfg.CallbackPort, f.cfg.CallbackPath)
	redirectURI, err := server.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}
	defer server.Stop()

	client, err := f.ensureClient(ctx, metadata, redirectURI)
	if err != nil {
		return nil, err
	}

	pkce, err := oauth.GeneratePKCE()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PKCE challenge: %w", err)
	}

	state, err := oauth.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	authURL, err := oauth.BuildAuthorizationURL(
		metadata.AuthorizationEndpoint, client.ClientID, redirectURI, state, f.cfg.scopeString(), pkce)
	if err != nil {
		return nil, fmt.Errorf("failed to build authorization URL: %w", err)
	}

	f.mu.Lock()
	f.authURL = authURL
	f.mu.Unlock()
	f.setState(StateAwaitingInteraction)

	logging.Info("OAuth", "Waiting for browser authentication on %s (attempt %s)", redirectURI, attemptID)

	// Fire and forget: a failed browser launch is not fatal, the user can
	// open the printed URL manually
	go func() {
		if openErr := f.cfg.OpenBrowser(authURL); openErr != nil {
			logging.Warn("OAuth", "Could not open browser automatically: %v", openErr)
		}
	}()

	waitCtx, cancel := context.WithTimeout(ctx, f.cfg.CallbackTimeout)
	defer cancel()

	result, err := server.WaitForCallback(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &CallbackTimeoutError{Timeout: f.cfg.CallbackTimeout}
		}
		return nil, fmt.Errorf("callback wait aborted: %w", err)
	}

	if result.State != state {
		logging.Warn("OAuth", "Authorization callback state mismatch (attempt %s), code discarded", attemptID)
		return nil, &CallbackStateMismatchError{}
	}

	if result.IsError() {
		return nil, &AuthorizationDeniedError{Code: result.Error, Description: result.ErrorDescription}
	}

	f.setState(StateExchanging)

	token, err := f.oauthClient.ExchangeCode(
		ctx, metadata.TokenEndpoint, result.Code, redirectURI, client.ClientID, client.ClientSecret, pkce.CodeVerifier)
	if err != nil {
		return nil, &TokenExchangeError{Op: "exchange", Err: err}
	}

	token.Issuer = issuer
	logging.Info("OAuth", "Authentication succeeded for %s (attempt %s)", f.cfg.ServerURL, attemptID)
	return token, nil
}

// discover resolves the issuer and fetches its metadata.
func (f *Flow) discover(ctx context.Context) (*oauth.Metadata, string, error) {
	issuer, err := f.resolveIssuer(ctx)
	if err != nil {
		return nil, "", err
	}

	metadata, err := f.oauthClient.DiscoverMetadata(ctx, issuer)
	if err != nil {
		return nil, "", &DiscoveryError{Issuer: issuer, Err: err}
	}

	if !metadata.SupportsPKCE() {
		logging.Warn("Discovery", "Authorization server %s does not advertise S256 PKCE support", issuer)
	}

	f.mu.Lock()
	f.issuer = issuer
	f.mu.Unlock()

	return metadata, issuer, nil
}

// resolveIssuer determines which authorization server to use.
//
// Proactive mode: an explicitly configured AuthorizationServerURL is used
// directly, with zero resource-server round-trips. It stays authoritative
// even when a recorded challenge names a different issuer.
//
// Reactive mode: the recorded challenge (or a fresh unauthenticated probe)
// is consulted, preferring its resource_metadata document's authorization
// servers, then its realm, then the resource host itself.
func (f *Flow) resolveIssuer(ctx context.Context) (string, error) {
	challenge := f.takeChallenge()

	if f.cfg.AuthorizationServerURL != "" {
		if challenge != nil {
			if ci := challenge.GetIssuer(); ci != "" && !sameIssuer(ci, f.cfg.AuthorizationServerURL) {
				logging.Warn("Discovery", "Challenge issuer %s conflicts with configured authorization server %s, using the configured value",
					ci, f.cfg.AuthorizationServerURL)
			}
		}
		return f.cfg.AuthorizationServerURL, nil
	}

	if challenge == nil {
		var err error
		challenge, err = f.probe(ctx)
		if err != nil {
			return "", &DiscoveryError{Err: err}
		}
	}

	if challenge != nil {
		if challenge.ResourceMetadataURL != "" {
			prm, err := f.oauthClient.DiscoverProtectedResource(ctx, challenge.ResourceMetadataURL)
			if err != nil {
				logging.Debug("Discovery", "Protected resource metadata unavailable: %v", err)
			} else if len(prm.AuthorizationServers) > 0 {
				return prm.AuthorizationServers[0], nil
			}
		}
		if issuer := challenge.GetIssuer(); issuer != "" {
			return issuer, nil
		}
	}

	// Some servers host the authorization metadata themselves
	return oauth.NormalizeServerURL(f.cfg.ServerURL), nil
}

// probe sends an unauthenticated request to the MCP endpoint to obtain its
// WWW-Authenticate challenge. A non-401 answer yields no challenge, which is
// not an error: discovery falls back to the resource host.
func (f *Flow) probe(ctx context.Context) (*oauth.AuthChallenge, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.ServerURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", f.cfg.ServerURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	challenge := oauth.ParseWWWAuthenticateFromResponse(resp)
	if challenge == nil {
		logging.Debug("Discovery", "Probe of %s returned status %d without a usable challenge",
			f.cfg.ServerURL, resp.StatusCode)
	}
	return challenge, nil
}

// takeChallenge consumes the recorded challenge. Challenges are single-use:
// a failed attempt must not reuse stale discovery input.
func (f *Flow) takeChallenge() *oauth.AuthChallenge {
	f.mu.Lock()
	defer f.mu.Unlock()
	challenge := f.challenge
	f.challenge = nil
	return challenge
}

// ensureClient returns the client credentials for the attempt, registering
// dynamically when none are configured. Loopback redirect ports may vary
// between registration and authorization (RFC 8252 section 7.3), so a client
// registered in an earlier attempt is reused as-is.
func (f *Flow) ensureClient(ctx context.Context, metadata *oauth.Metadata, redirectURI string) (*oauth.ClientInformation, error) {
	f.mu.RLock()
	client := f.clientInfo
	f.mu.RUnlock()
	if client != nil {
		return client, nil
	}

	f.setState(StateRegistering)

	if !metadata.SupportsRegistration() {
		return nil, &RegistrationError{Err: ErrRegistrationUnavailable}
	}

	request := oauth.ClientMetadata{
		RedirectURIs:            []string{redirectURI},
		TokenEndpointAuthMethod: "none",
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		ClientName:              f.cfg.ClientName,
		Scope:                   f.cfg.scopeString(),
	}

	info, err := f.oauthClient.RegisterClient(ctx, metadata.RegistrationEndpoint, request, f.cfg.AdditionalClientMetadata)
	if err != nil {
		return nil, &RegistrationError{Endpoint: metadata.RegistrationEndpoint, Err: err}
	}

	f.mu.Lock()
	f.clientInfo = info
	f.mu.Unlock()

	logging.Info("OAuth", "Registered with %s as client %s", metadata.RegistrationEndpoint, info.ClientID)
	return info, nil
}

// Refresh exchanges a refresh token for a new token set. The previous
// refresh token is kept when the server omits one from the response, and
// the identity token is carried over so identity display survives refreshes.
//
// A rejected refresh returns a *TokenExchangeError; callers fall back to a
// full interactive attempt.
func (f *Flow) Refresh(ctx context.Context, token *oauth.Token, client *oauth.ClientInformation) (*oauth.Token, error) {
	if token == nil || token.RefreshToken == "" {
		return nil, &TokenExchangeError{Op: "refresh", Err: errors.New("no refresh token available")}
	}

	if client == nil {
		f.mu.RLock()
		client = f.clientInfo
		f.mu.RUnlock()
	}
	if client == nil || client.ClientID == "" {
		return nil, &TokenExchangeError{Op: "refresh", Err: errors.New("no client credentials available")}
	}

	f.setState(StateRefreshing)

	issuer := token.Issuer
	if issuer == "" {
		f.mu.RLock()
		issuer = f.issuer
		f.mu.RUnlock()
	}
	if issuer == "" {
		return nil, &TokenExchangeError{Op: "refresh", Err: errors.New("token has no issuer recorded")}
	}

	metadata, err := f.oauthClient.DiscoverMetadata(ctx, issuer)
	if err != nil {
		return nil, &DiscoveryError{Issuer: issuer, Err: err}
	}

	refreshed, err := f.oauthClient.RefreshToken(ctx, metadata.TokenEndpoint, token.RefreshToken, client.ClientID, client.ClientSecret)
	if err != nil {
		logging.Debug("OAuth", "Refresh rejected for %s: %v", f.cfg.ServerURL, err)
		return nil, &TokenExchangeError{Op: "refresh", Err: err}
	}

	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = token.RefreshToken
	}
	if refreshed.IDToken == "" {
		refreshed.IDToken = token.IDToken
	}
	refreshed.Issuer = issuer

	f.setState(StateAuthenticated)
	logging.Debug("OAuth", "Refreshed token for %s", f.cfg.ServerURL)
	return refreshed, nil
}

// setState records a state transition.
func (f *Flow) setState(state FlowState) {
	f.mu.Lock()
	prev := f.state
	f.state = state
	attemptID := f.attemptID
	f.mu.Unlock()

	if prev != state {
		logging.Debug("OAuth", "Flow state %s -> %s (attempt %s)", prev, state, attemptID)
	}
}

func sameIssuer(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}
