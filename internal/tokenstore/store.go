// Package tokenstore provides XDG-compliant persistent storage for OAuth
// token sets, keyed by server URL with issuer-based lookup for single
// sign-on across MCP servers.
package tokenstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PrefectHQ/fastmcp/internal/auth"
	"github.com/PrefectHQ/fastmcp/pkg/logging"
	"github.com/PrefectHQ/fastmcp/pkg/oauth"
)

// Store persists OAuth token sets together with the registered client
// credentials that obtained them, so refresh grants keep working across
// process restarts without re-registration.
//
// SECURITY: This store handles sensitive OAuth credentials. The following
// security measures are implemented:
//   - Files are created with 0600 permissions (owner read/write only)
//   - Storage directory is created with 0700 permissions (owner only)
//   - Token values are NEVER logged (only server URLs and issuers)
//   - Expired records are filtered from validity lookups with a safety margin
type Store struct {
	mu         sync.RWMutex
	storageDir string
	records    map[string]*Record // in-memory cache, keyed by hashed server URL
	fileMode   bool
}

var _ auth.TokenStorage = (*Store)(nil)

// Record is the stored form of one server's credentials.
type Record struct {
	// AccessToken is the OAuth access token.
	AccessToken string `json:"access_token"`

	// RefreshToken is the OAuth refresh token (if available).
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresAt is when the access token expires. Zero means no expiry.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// Scope is the granted scope(s), space-separated.
	Scope string `json:"scope,omitempty"`

	// IDToken is the OIDC ID token (if available).
	IDToken string `json:"id_token,omitempty"`

	// ServerURL is the MCP server this record authenticates to.
	ServerURL string `json:"server_url"`

	// IssuerURL is the authorization server that issued the token.
	IssuerURL string `json:"issuer_url,omitempty"`

	// ClientID and ClientSecret are the dynamically registered (or
	// configured) client credentials. Needed for refresh grants.
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`

	// CreatedAt is when the record was stored.
	CreatedAt time.Time `json:"created_at"`
}

// Token converts the record to a token set.
func (r *Record) Token() *oauth.Token {
	return &oauth.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		ExpiresAt:    r.ExpiresAt,
		Scope:        r.Scope,
		Issuer:       r.IssuerURL,
		IDToken:      r.IDToken,
	}
}

// Client returns the client credentials stored with the record, or nil when
// the record predates client persistence.
func (r *Record) Client() *oauth.ClientInformation {
	if r.ClientID == "" {
		return nil
	}
	return &oauth.ClientInformation{
		ClientID:     r.ClientID,
		ClientSecret: r.ClientSecret,
	}
}

// Config configures the token store.
type Config struct {
	// StorageDir is the directory for token files.
	// Defaults to ~/.config/fastmcp/tokens
	StorageDir string

	// FileMode enables file-based persistence. If false, records are
	// in-memory only.
	FileMode bool
}

// New creates a token store with the specified configuration.
func New(cfg Config) (*Store, error) {
	storageDir := cfg.StorageDir
	if storageDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		storageDir = filepath.Join(homeDir, oauth.DefaultTokenStorageDir)
	}

	store := &Store{
		storageDir: storageDir,
		records:    make(map[string]*Record),
		fileMode:   cfg.FileMode,
	}

	if cfg.FileMode {
		if err := os.MkdirAll(storageDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create token storage directory: %w", err)
		}
	}

	return store, nil
}

// Load returns the stored token set and client credentials for a server.
// Expired tokens are returned as-is: they may still carry a usable refresh
// token. Returns nils without error when nothing is stored.
func (s *Store) Load(serverURL string) (*oauth.Token, *oauth.ClientInformation, error) {
	key := s.recordKey(serverURL)

	s.mu.RLock()
	if record, ok := s.records[key]; ok {
		s.mu.RUnlock()
		return record.Token(), record.Client(), nil
	}
	s.mu.RUnlock()

	if !s.fileMode {
		return nil, nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have populated the cache in the meantime
	if record, ok := s.records[key]; ok {
		return record.Token(), record.Client(), nil
	}

	record, err := s.readRecordFile(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	s.records[key] = record
	return record.Token(), record.Client(), nil
}

// Save stores a token set and the client credentials that obtained it.
// SECURITY: Token values are never logged. Only server/issuer URLs are
// logged for audit purposes.
func (s *Store) Save(serverURL string, token *oauth.Token, client *oauth.ClientInformation) error {
	if token == nil {
		return fmt.Errorf("cannot store nil token for %s", serverURL)
	}

	record := &Record{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresAt:    token.ExpiresAt,
		Scope:        token.Scope,
		IDToken:      token.IDToken,
		ServerURL:    serverURL,
		IssuerURL:    token.Issuer,
		CreatedAt:    time.Now(),
	}
	if client != nil {
		record.ClientID = client.ClientID
		record.ClientSecret = client.ClientSecret
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.recordKey(serverURL)
	s.records[key] = record

	if s.fileMode {
		if err := s.writeRecordFile(key, record); err != nil {
			logging.Audit(logging.AuditEvent{
				Action:  "token_store",
				Outcome: "failure",
				Target:  serverURL,
				Detail:  err.Error(),
			})
			return fmt.Errorf("failed to persist token: %w", err)
		}
		logging.Audit(logging.AuditEvent{
			Action:  "token_store",
			Outcome: "success",
			Target:  serverURL,
			Detail:  fmt.Sprintf("issuer=%s has_refresh_token=%t", record.IssuerURL, record.RefreshToken != ""),
		})
	}

	return nil
}

// Delete removes the stored record for a server.
// SECURITY: Logs the deletion for the audit trail without token values.
func (s *Store) Delete(serverURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.recordKey(serverURL)
	delete(s.records, key)

	if s.fileMode {
		if err := s.deleteRecordFile(key); err != nil {
			logging.Audit(logging.AuditEvent{
				Action:  "token_delete",
				Outcome: "failure",
				Target:  serverURL,
				Detail:  err.Error(),
			})
			return err
		}
	}

	logging.Audit(logging.AuditEvent{
		Action:  "token_delete",
		Outcome: "success",
		Target:  serverURL,
	})
	return nil
}

// Get returns the record for a server if it holds a still-valid access
// token. Returns nil for missing or expired records; use Load when the
// refresh token of an expired record matters.
func (s *Store) Get(serverURL string) *Record {
	key := s.recordKey(serverURL)

	// Fast path with read lock
	s.mu.RLock()
	if record, ok := s.records[key]; ok {
		if isRecordValid(record) {
			s.mu.RUnlock()
			return record
		}
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.records[key]; ok {
		if isRecordValid(record) {
			return record
		}
		return nil
	}

	if s.fileMode {
		record, err := s.readRecordFile(key)
		if err == nil {
			s.records[key] = record
			if isRecordValid(record) {
				return record
			}
		}
	}

	return nil
}

// GetByIssuer returns a valid record issued by the given authorization
// server, regardless of which MCP server it was stored for. This enables
// single sign-on: a second server protected by an already-authenticated
// issuer can reuse the existing token.
func (s *Store) GetByIssuer(issuerURL string) *Record {
	// Fast path with read lock over the cache
	s.mu.RLock()
	for _, record := range s.records {
		if record.IssuerURL == issuerURL && isRecordValid(record) {
			s.mu.RUnlock()
			return record
		}
	}
	s.mu.RUnlock()

	if !s.fileMode {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check the cache in case another goroutine populated it
	for _, record := range s.records {
		if record.IssuerURL == issuerURL && isRecordValid(record) {
			return record
		}
	}

	return s.findByIssuerFromFilesLocked(issuerURL)
}

// findByIssuerFromFilesLocked scans record files for an issuer match.
// REQUIRES: s.mu must be held (write lock) by the caller.
func (s *Store) findByIssuerFromFilesLocked(issuerURL string) *Record {
	entries, err := os.ReadDir(s.storageDir)
	if err != nil {
		return nil
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		key := strings.TrimSuffix(entry.Name(), ".json")
		record, err := s.readRecordFile(key)
		if err != nil {
			continue
		}

		if record.IssuerURL == issuerURL && isRecordValid(record) {
			s.records[key] = record
			return record
		}
	}

	return nil
}

// HasValidToken reports whether a non-expired token exists for a server.
func (s *Store) HasValidToken(serverURL string) bool {
	return s.Get(serverURL) != nil
}

// HasValidTokenForIssuer reports whether a non-expired token exists for an
// issuer.
func (s *Store) HasValidTokenForIssuer(issuerURL string) bool {
	return s.GetByIssuer(issuerURL) != nil
}

// List returns every stored record, expired ones included, sorted by server
// URL. Used by status and logout commands.
func (s *Store) List() ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey := make(map[string]*Record, len(s.records))
	for key, record := range s.records {
		byKey[key] = record
	}

	if s.fileMode {
		entries, err := os.ReadDir(s.storageDir)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read token directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
				continue
			}
			key := strings.TrimSuffix(entry.Name(), ".json")
			if _, ok := byKey[key]; ok {
				continue
			}
			record, err := s.readRecordFile(key)
			if err != nil {
				continue
			}
			byKey[key] = record
		}
	}

	records := make([]*Record, 0, len(byKey))
	for _, record := range byKey {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ServerURL < records[j].ServerURL
	})
	return records, nil
}

// Clear removes all stored records, in memory and on disk.
// SECURITY: Logs bulk clearing for the audit trail.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	memoryCount := len(s.records)
	s.records = make(map[string]*Record)

	fileCount := 0
	if s.fileMode {
		entries, err := os.ReadDir(s.storageDir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("failed to read token directory: %w", err)
		}

		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
				continue
			}
			filePath := filepath.Join(s.storageDir, entry.Name())
			if err := os.Remove(filePath); err != nil {
				return fmt.Errorf("failed to remove token file %s: %w", entry.Name(), err)
			}
			fileCount++
		}
	}

	logging.Audit(logging.AuditEvent{
		Action:  "token_clear",
		Outcome: "success",
		Detail:  fmt.Sprintf("memory=%d files=%d", memoryCount, fileCount),
	})
	return nil
}

// StorageDir returns the directory holding token files.
func (s *Store) StorageDir() string {
	return s.storageDir
}

// invalidateKey drops one cached record. The watcher calls this when a file
// changes on disk, so the next Load re-reads what the other process wrote.
func (s *Store) invalidateKey(key string) {
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
}

// recordKey generates a filesystem-safe key for a server URL.
func (s *Store) recordKey(serverURL string) string {
	hash := sha256.Sum256([]byte(serverURL))
	return hex.EncodeToString(hash[:16])
}

// isRecordValid checks whether the record's access token is still usable,
// with a margin for clock skew and in-flight requests.
func isRecordValid(record *Record) bool {
	if record == nil {
		return false
	}
	if record.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Add(oauth.DefaultExpiryMargin).Before(record.ExpiresAt)
}

// writeRecordFile persists a record to a JSON file with owner-only
// permissions.
func (s *Store) writeRecordFile(key string, record *Record) error {
	filePath := filepath.Join(s.storageDir, key+".json")

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token record: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// readRecordFile reads a record from a JSON file.
func (s *Store) readRecordFile(key string) (*Record, error) {
	filePath := filepath.Join(s.storageDir, key+".json")

	// #nosec G304 -- filePath is constructed from an internal hash, not user input
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token record: %w", err)
	}

	return &record, nil
}

// deleteRecordFile removes a record file.
func (s *Store) deleteRecordFile(key string) error {
	filePath := filepath.Join(s.storageDir, key+".json")
	err := os.Remove(filePath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
