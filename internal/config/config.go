package config

import (
	"fmt"
	"strings"
)

// Config is the top-level configuration structure for fastmcp.
type Config struct {
	// DefaultServer names the entry in Servers used when a command is run
	// without a server argument.
	DefaultServer string `yaml:"defaultServer,omitempty"`

	// LogLevel sets CLI log verbosity: debug, info, warn, or error
	// (default: info).
	LogLevel string `yaml:"logLevel,omitempty"`

	// Servers maps short names to MCP server connection settings.
	Servers map[string]ServerConfig `yaml:"servers,omitempty"`
}

// ServerConfig describes one MCP server and how to authenticate against it.
type ServerConfig struct {
	// URL is the streamable HTTP endpoint of the MCP server.
	URL string `yaml:"url"`

	// Headers are additional HTTP headers sent with every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Auth tunes the OAuth flow for this server. All fields are optional;
	// zero values mean discovery and dynamic registration do the work.
	Auth AuthConfig `yaml:"auth,omitempty"`
}

// AuthConfig overrides parts of the OAuth flow for a server.
type AuthConfig struct {
	// AuthorizationServerURL pins the identity provider, skipping the
	// challenge/probe discovery round-trip.
	AuthorizationServerURL string `yaml:"authorizationServerUrl,omitempty"`

	// ClientID and ClientSecret are static credentials. Setting ClientID
	// skips dynamic client registration.
	ClientID     string `yaml:"clientId,omitempty"`
	ClientSecret string `yaml:"clientSecret,omitempty"`

	// Scopes requested during authorization.
	Scopes []string `yaml:"scopes,omitempty"`

	// CallbackPort fixes the local callback listener port. Zero picks an
	// ephemeral port, which providers registered via RFC 7591 accept for
	// loopback redirects.
	CallbackPort int `yaml:"callbackPort,omitempty"`

	// CallbackPath overrides the redirect URI path (default: /callback).
	CallbackPath string `yaml:"callbackPath,omitempty"`
}

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() Config {
	return Config{
		LogLevel: "info",
	}
}

// Validate checks cross-field consistency.
func (c Config) Validate() error {
	if c.DefaultServer != "" {
		if _, ok := c.Servers[c.DefaultServer]; !ok {
			return fmt.Errorf("defaultServer %q is not defined under servers", c.DefaultServer)
		}
	}
	for name, server := range c.Servers {
		if server.URL == "" {
			return fmt.Errorf("server %q has no url", name)
		}
	}
	return nil
}

// Resolve maps a command-line server argument to connection settings. The
// argument may be a configured server name, a raw URL used as-is, or empty
// to select the default server.
func (c Config) Resolve(nameOrURL string) (ServerConfig, error) {
	if nameOrURL == "" {
		if c.DefaultServer == "" {
			return ServerConfig{}, fmt.Errorf("no server specified and no defaultServer configured")
		}
		nameOrURL = c.DefaultServer
	}

	if server, ok := c.Servers[nameOrURL]; ok {
		return server, nil
	}

	if strings.Contains(nameOrURL, "://") {
		return ServerConfig{URL: nameOrURL}, nil
	}

	return ServerConfig{}, fmt.Errorf("unknown server %q: not a configured name and not a URL", nameOrURL)
}
