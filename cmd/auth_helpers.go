package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/PrefectHQ/fastmcp/internal/auth"
	"github.com/PrefectHQ/fastmcp/internal/client"
	"github.com/PrefectHQ/fastmcp/internal/config"
	"github.com/PrefectHQ/fastmcp/internal/tokenstore"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
)

// resolveServer maps the optional positional server argument to connection
// settings using the configuration file.
func resolveServer(args []string) (config.ServerConfig, error) {
	cfg, err := config.LoadConfig(rootConfigPath)
	if err != nil {
		return config.ServerConfig{}, fmt.Errorf("failed to load config: %w", err)
	}

	var nameOrURL string
	if len(args) > 0 {
		nameOrURL = args[0]
	}

	return cfg.Resolve(nameOrURL)
}

// openTokenStore opens the persistent token store under the default
// storage directory.
func openTokenStore() (*tokenstore.Store, error) {
	store, err := tokenstore.New(tokenstore.Config{FileMode: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}
	return store, nil
}

// newFlow builds an OAuth flow for a configured server. The browser opener
// announces the authorization URL first, so the user can complete the flow
// manually if the browser fails to launch.
func newFlow(server config.ServerConfig) (*auth.Flow, error) {
	flow, err := auth.NewFlow(auth.Config{
		ServerURL:              server.URL,
		AuthorizationServerURL: server.Auth.AuthorizationServerURL,
		ClientID:               server.Auth.ClientID,
		ClientSecret:           server.Auth.ClientSecret,
		Scopes:                 server.Auth.Scopes,
		CallbackPort:           server.Auth.CallbackPort,
		CallbackPath:           server.Auth.CallbackPath,
		OpenBrowser:            announceAndOpenBrowser,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize authentication: %w", err)
	}
	return flow, nil
}

// newTokenManager builds a storage-backed token manager for a configured
// server.
func newTokenManager(server config.ServerConfig, store *tokenstore.Store) (*auth.TokenManager, error) {
	flow, err := newFlow(server)
	if err != nil {
		return nil, err
	}
	return auth.NewTokenManager(flow, auth.WithStorage(store)), nil
}

// announceAndOpenBrowser prints the authorization URL before opening the
// system browser, so a failed launch never strands the user.
func announceAndOpenBrowser(url string) error {
	authPrintln("Opening browser for authentication...")
	authPrint("If the browser does not open, visit:\n  %s\n\n", url)
	return auth.OpenBrowser(url)
}

// connectClient creates an authenticated MCP client for a configured server
// and initializes the session, with a progress spinner unless --quiet is
// set. The caller is responsible for calling Close on the returned client.
func connectClient(ctx context.Context, server config.ServerConfig, manager *auth.TokenManager) (*client.Client, error) {
	c := client.New(client.Config{
		ServerURL:  server.URL,
		Headers:    server.Headers,
		HTTPClient: auth.NewHTTPClient(manager),
	})

	var s *spinner.Spinner
	if !rootQuiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " Connecting to MCP server..."
		s.Start()
	}

	err := c.Initialize(ctx)

	if s != nil {
		s.Stop()
	}

	if err != nil {
		return nil, err
	}
	return c, nil
}

// identityLine extracts a display identity from an ID token, preferring
// email over the opaque subject. Returns empty when no identity is
// available.
func identityLine(idToken string) string {
	if idToken == "" {
		return ""
	}
	claims, err := auth.ParseIdentity(idToken)
	if err != nil {
		return ""
	}
	if claims.Email != "" {
		return claims.Email
	}
	return claims.Subject
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "expired"
	}
	if d < time.Minute {
		return "< 1 minute"
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// formatExpiryWithDirection formats a time as "in X" or "expired X ago".
func formatExpiryWithDirection(expiresAt time.Time) string {
	remaining := time.Until(expiresAt)
	if remaining > 0 {
		return "in " + formatDuration(remaining)
	}
	expiredAgo := -remaining
	return text.FgYellow.Sprintf("expired %s ago", formatDuration(expiredAgo))
}
