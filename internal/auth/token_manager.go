package auth

import (
	"context"
	"sync"
	"time"

	"github.com/PrefectHQ/fastmcp/pkg/logging"
	"github.com/PrefectHQ/fastmcp/pkg/oauth"
)

// TokenStorage persists token sets and client credentials across processes.
// Load returns what is stored without filtering on expiry; expired tokens
// still carry usable refresh tokens. Implementations must be safe for
// concurrent use.
type TokenStorage interface {
	Load(serverURL string) (*oauth.Token, *oauth.ClientInformation, error)
	Save(serverURL string, token *oauth.Token, client *oauth.ClientInformation) error
	Delete(serverURL string) error
}

// TokenManager owns the token set for one server session. It hands out
// bearer credentials, refreshes silently when possible, and falls back to
// the interactive flow when it must.
type TokenManager struct {
	flow         *Flow
	storage      TokenStorage
	expiryMargin time.Duration

	mu     sync.RWMutex
	token  *oauth.Token
	client *oauth.ClientInformation
	loaded bool
}

// TokenManagerOption configures a TokenManager.
type TokenManagerOption func(*TokenManager)

// WithStorage attaches persistent token storage. Without it tokens live for
// the process lifetime only.
func WithStorage(storage TokenStorage) TokenManagerOption {
	return func(m *TokenManager) {
		m.storage = storage
	}
}

// WithExpiryMargin overrides the margin subtracted from token lifetimes when
// deciding whether a token is still usable.
func WithExpiryMargin(margin time.Duration) TokenManagerOption {
	return func(m *TokenManager) {
		m.expiryMargin = margin
	}
}

// NewTokenManager creates a token manager driving the given flow.
func NewTokenManager(flow *Flow, opts ...TokenManagerOption) *TokenManager {
	m := &TokenManager{
		flow:         flow,
		expiryMargin: oauth.DefaultExpiryMargin,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Credential returns a bearer access token, running whatever is needed to
// get one: none when the held token is still valid, a silent refresh when it
// expired with a refresh token present, or a full interactive attempt.
func (m *TokenManager) Credential(ctx context.Context) (string, error) {
	token, client := m.current()

	if token != nil && !token.IsExpiredWithMargin(m.expiryMargin) {
		return token.AccessToken, nil
	}

	if token != nil && token.RefreshToken != "" {
		refreshed, err := m.flow.Refresh(ctx, token, client)
		if err == nil {
			m.store(refreshed)
			return refreshed.AccessToken, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		logging.Warn("OAuth", "Silent refresh failed, falling back to interactive authentication: %v", err)
	}

	return m.authenticate(ctx)
}

// OnAuthenticationFailure handles a request that was rejected despite
// holding a credential. The current token is invalidated and replaced: by
// refresh when possible, otherwise by a full interactive attempt. The caller
// retries its original request exactly once after this returns nil.
func (m *TokenManager) OnAuthenticationFailure(ctx context.Context) error {
	m.mu.Lock()
	token := m.token
	client := m.client
	m.token = nil
	m.mu.Unlock()

	if m.storage != nil {
		if err := m.storage.Delete(m.serverKey()); err != nil {
			logging.Debug("TokenStore", "Failed to delete rejected token for %s: %v", m.serverKey(), err)
		}
	}

	logging.Info("OAuth", "Server rejected credential for %s, re-authenticating", m.flow.ServerURL())

	if token != nil && token.RefreshToken != "" {
		refreshed, err := m.flow.Refresh(ctx, token, client)
		if err == nil {
			m.store(refreshed)
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		logging.Debug("OAuth", "Refresh after rejection failed: %v", err)
	}

	_, err := m.authenticate(ctx)
	return err
}

// Token returns a copy of the currently held token set, or nil. For status
// display; the access token inside is live credential material.
func (m *TokenManager) Token() *oauth.Token {
	token, _ := m.current()
	if token == nil {
		return nil
	}
	copied := *token
	return &copied
}

// ClientInfo returns the client credentials associated with the session.
func (m *TokenManager) ClientInfo() *oauth.ClientInformation {
	_, client := m.current()
	if client == nil {
		client = m.flow.ClientInfo()
	}
	return client
}

// State reports the underlying flow state.
func (m *TokenManager) State() FlowState {
	return m.flow.State()
}

// AuthorizationURL reports the pending authorization URL, if any.
func (m *TokenManager) AuthorizationURL() string {
	return m.flow.AuthorizationURL()
}

// HandleChallenge forwards a server challenge to the flow for reactive
// discovery.
func (m *TokenManager) HandleChallenge(challenge *oauth.AuthChallenge) {
	m.flow.HandleChallenge(challenge)
}

// Clear drops the held token and removes it from storage.
func (m *TokenManager) Clear() error {
	m.mu.Lock()
	m.token = nil
	m.loaded = true
	m.mu.Unlock()

	if m.storage == nil {
		return nil
	}
	return m.storage.Delete(m.serverKey())
}

// authenticate runs the interactive flow and stores its outcome.
func (m *TokenManager) authenticate(ctx context.Context) (string, error) {
	token, err := m.flow.Authenticate(ctx)
	if err != nil {
		return "", err
	}

	m.store(token)
	return token.AccessToken, nil
}

// current returns the held token and client, consulting storage once.
func (m *TokenManager) current() (*oauth.Token, *oauth.ClientInformation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == nil && !m.loaded && m.storage != nil {
		m.loaded = true
		token, client, err := m.storage.Load(m.serverKey())
		if err != nil {
			logging.Debug("TokenStore", "Failed to load stored token for %s: %v", m.serverKey(), err)
		} else if token != nil {
			m.token = token
			if m.client == nil {
				m.client = client
			}
			if client != nil {
				m.flow.SetClientInfo(client)
			}
			logging.Debug("TokenStore", "Loaded stored token for %s", m.serverKey())
		}
	}

	return m.token, m.client
}

// store records a fresh token set in memory and storage.
func (m *TokenManager) store(token *oauth.Token) {
	client := m.flow.ClientInfo()

	m.mu.Lock()
	m.token = token
	m.client = client
	m.loaded = true
	m.mu.Unlock()

	if m.storage == nil {
		return
	}
	if err := m.storage.Save(m.serverKey(), token, client); err != nil {
		// The session keeps working with the in-memory token
		logging.Warn("TokenStore", "Failed to persist token for %s: %v", m.serverKey(), err)
	}
}

func (m *TokenManager) serverKey() string {
	return oauth.NormalizeServerURL(m.flow.ServerURL())
}
