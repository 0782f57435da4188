package auth

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultCallbackPath is the path the loopback redirect URI points at.
	DefaultCallbackPath = "/callback"

	// DefaultCallbackTimeout bounds how long an attempt waits for the user
	// to finish the browser interaction.
	DefaultCallbackTimeout = 5 * time.Minute

	// DefaultClientName is sent during dynamic client registration when the
	// caller does not set one.
	DefaultClientName = "fastmcp"
)

// Config describes how to authenticate against one MCP server.
//
// Precedence rules: a non-empty ClientID disables dynamic client
// registration entirely, and a non-empty AuthorizationServerURL disables the
// reactive 401 probe. The configured issuer wins even over a conflicting
// WWW-Authenticate challenge (a warning is logged when they disagree).
type Config struct {
	// ServerURL is the MCP endpoint requiring authentication. Required.
	ServerURL string

	// AuthorizationServerURL, when set, selects proactive discovery: the
	// issuer's metadata is fetched directly without probing the server.
	AuthorizationServerURL string

	// ClientID and ClientSecret are static client credentials. When ClientID
	// is set, dynamic registration is skipped.
	ClientID     string
	ClientSecret string

	// Scopes requested during authorization. Empty means the scope
	// parameter is omitted and the server's defaults apply.
	Scopes []string

	// ClientName is the human-readable name sent during registration.
	ClientName string

	// AdditionalClientMetadata carries extra RFC 7591 registration fields
	// beyond the standard set. Values here win on key collision.
	AdditionalClientMetadata map[string]interface{}

	// CallbackPort is the local port for the OAuth callback listener.
	// Zero picks an ephemeral port.
	CallbackPort int

	// CallbackPath is the redirect URI path. Defaults to /callback.
	CallbackPath string

	// CallbackTimeout bounds the wait for the browser interaction.
	// Defaults to DefaultCallbackTimeout.
	CallbackTimeout time.Duration

	// OpenBrowser opens the authorization URL for the user. Defaults to the
	// system browser. Tests and headless environments install their own.
	OpenBrowser func(url string) error
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server URL is required")
	}
	return nil
}

// withDefaults returns a copy of the config with defaults filled in.
func (c Config) withDefaults() Config {
	if c.CallbackPath == "" {
		c.CallbackPath = DefaultCallbackPath
	}
	if c.CallbackTimeout <= 0 {
		c.CallbackTimeout = DefaultCallbackTimeout
	}
	if c.ClientName == "" {
		c.ClientName = DefaultClientName
	}
	if c.OpenBrowser == nil {
		c.OpenBrowser = OpenBrowser
	}
	return c
}

// scopeString returns the space-joined scope parameter, empty when no scopes
// are configured.
func (c *Config) scopeString() string {
	return strings.Join(c.Scopes, " ")
}
