package client

import (
	"context"
	"sync"

	"github.com/PrefectHQ/fastmcp/internal/tokenstore"
	"github.com/PrefectHQ/fastmcp/pkg/oauth"

	"github.com/mark3labs/mcp-go/client/transport"
)

// PersistentTokenStore is a thin binder that implements mcp-go's
// transport.TokenStore interface on top of the file-backed token store,
// bound to one server URL.
//
// It has no storage of its own -- all reads and writes go through the
// underlying tokenstore.Store. The only local state is a cached copy of
// the ID token and client registration, because mcp-go's transport.Token
// tracks neither.
//
// This binder is for embedders that let mcp-go drive OAuth itself: mcp-go
// owns refresh and 401 handling, this store returns the current token
// as-is and persists whatever mcp-go writes back after a refresh.
type PersistentTokenStore struct {
	serverURL string
	store     *tokenstore.Store

	mu         sync.RWMutex
	idToken    string
	issuer     string
	clientInfo *oauth.ClientInformation
}

// NewPersistentTokenStore creates a token store that binds the given
// server URL to the file-backed token store.
func NewPersistentTokenStore(serverURL string, store *tokenstore.Store) *PersistentTokenStore {
	return &PersistentTokenStore{
		serverURL: serverURL,
		store:     store,
	}
}

// GetToken returns the current token from the file-backed store. Expired
// tokens are returned as-is; mcp-go decides when to refresh based on the
// ExpiresAt field. Returns transport.ErrNoToken when nothing is stored,
// which signals mcp-go to initiate the authorization flow.
func (s *PersistentTokenStore) GetToken(ctx context.Context) (*transport.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	token, clientInfo, err := s.store.Load(s.serverURL)
	if err != nil {
		return nil, err
	}
	if token == nil || token.AccessToken == "" {
		return nil, transport.ErrNoToken
	}

	s.mu.Lock()
	if token.IDToken != "" {
		s.idToken = token.IDToken
	}
	if token.Issuer != "" {
		s.issuer = token.Issuer
	}
	if clientInfo != nil {
		s.clientInfo = clientInfo
	}
	s.mu.Unlock()

	return &transport.Token{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt,
	}, nil
}

// SaveToken persists a refreshed token to the file-backed store. mcp-go
// calls this after a successful token refresh.
//
// The cached ID token and client registration are carried over because
// refresh responses typically include neither, and losing the
// registration would force a re-register on the next process start.
func (s *PersistentTokenStore) SaveToken(ctx context.Context, token *transport.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.store == nil || token == nil {
		return nil
	}

	s.mu.RLock()
	idToken := s.idToken
	issuer := s.issuer
	clientInfo := s.clientInfo
	s.mu.RUnlock()

	return s.store.Save(s.serverURL, &oauth.Token{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt,
		Issuer:       issuer,
		IDToken:      idToken,
	}, clientInfo)
}

// GetIDToken returns the last cached ID token. mcp-go's transport.Token
// doesn't track ID tokens, so they are cached from the file store on each
// GetToken call for identity display and SSO forwarding.
func (s *PersistentTokenStore) GetIDToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idToken
}

// Ensure PersistentTokenStore implements transport.TokenStore at compile time.
var _ transport.TokenStore = (*PersistentTokenStore)(nil)
