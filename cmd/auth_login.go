package cmd

import (
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// Login-specific flags
var (
	loginForce bool
)

// authLoginCmd represents the auth login command
var authLoginCmd = &cobra.Command{
	Use:   "login [server]",
	Short: "Authenticate to an MCP server",
	Long: `Authenticate to an MCP server using OAuth.

This command runs a browser-based authorization code flow with PKCE to
obtain tokens for OAuth-protected MCP servers. The authorization server is
discovered from the MCP server itself unless the configuration pins one,
and a client is registered dynamically unless static credentials are
configured.

A valid stored token short-circuits the flow; use --force to discard it and
re-authenticate.

Examples:
  fastmcp auth login                   # Login to the default server
  fastmcp auth login production        # Login to a configured server
  fastmcp auth login https://mcp.example.com/mcp
  fastmcp auth login --force           # Discard the stored token first`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthLogin,
}

func init() {
	// Login-specific flags (only on login subcommand)
	authLoginCmd.Flags().BoolVar(&loginForce, "force", false, "Re-authenticate even if a valid token is stored")
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	server, err := resolveServer(args)
	if err != nil {
		return err
	}

	store, err := openTokenStore()
	if err != nil {
		return err
	}

	if loginForce {
		if err := store.Delete(server.URL); err != nil {
			return err
		}
	} else if store.HasValidToken(server.URL) {
		authPrint("%s Already authenticated to %s\n", text.FgGreen.Sprint("✓"), server.URL)
		if token, _, err := store.Load(server.URL); err == nil && token != nil {
			if identity := identityLine(token.IDToken); identity != "" {
				authPrint("  Identity:  %s\n", identity)
			}
			if !token.ExpiresAt.IsZero() {
				authPrint("  Expires:   %s\n", formatExpiryWithDirection(token.ExpiresAt))
			}
		}
		authPrintln("\nUse --force to re-authenticate.")
		return nil
	}

	manager, err := newTokenManager(server, store)
	if err != nil {
		return err
	}

	authPrint("Authenticating to %s...\n", server.URL)
	if _, err := manager.Credential(ctx); err != nil {
		return err
	}

	authPrint("%s Authenticated to %s\n", text.FgGreen.Sprint("✓"), server.URL)
	if token := manager.Token(); token != nil {
		if identity := identityLine(token.IDToken); identity != "" {
			authPrint("  Identity:  %s\n", identity)
		}
		if !token.ExpiresAt.IsZero() {
			authPrint("  Expires:   %s\n", formatExpiryWithDirection(token.ExpiresAt))
		}
	}
	return nil
}
