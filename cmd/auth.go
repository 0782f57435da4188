package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication for MCP servers",
	Long: `Manage OAuth authentication for MCP servers.

The auth command group provides subcommands to login, logout, check status,
and refresh tokens for MCP servers that require OAuth authentication.

Servers are addressed by their configured name or by URL. Without an
argument, the defaultServer from the configuration file is used.

Examples:
  fastmcp auth login                   # Login to the default server
  fastmcp auth login production        # Login to a configured server
  fastmcp auth login https://mcp.example.com/mcp
  fastmcp auth status                  # Show status for all stored tokens
  fastmcp auth logout production       # Logout from one server
  fastmcp auth logout --all            # Clear all stored tokens
  fastmcp auth refresh                 # Force token refresh
  fastmcp auth whoami                  # Show current identity`,
}

// authLogoutCmd represents the auth logout command
var authLogoutCmd = &cobra.Command{
	Use:   "logout [server]",
	Short: "Clear stored authentication tokens",
	Long: `Clear stored OAuth tokens.

This command removes cached tokens, requiring you to re-authenticate on the
next connection to protected servers.

Examples:
  fastmcp auth logout                  # Logout from the default server
  fastmcp auth logout production       # Logout from a configured server
  fastmcp auth logout --all            # Clear all stored tokens
  fastmcp auth logout --all --yes      # Clear all without confirmation`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthLogout,
}

// authRefreshCmd represents the auth refresh command
var authRefreshCmd = &cobra.Command{
	Use:   "refresh [server]",
	Short: "Force token refresh",
	Long: `Force a refresh of the stored token.

This command redeems the stored refresh token for a new access token, which
can be useful if you're experiencing authentication issues.

Examples:
  fastmcp auth refresh                 # Refresh the default server's token
  fastmcp auth refresh production      # Refresh a configured server's token`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthRefresh,
}

// authWhoamiCmd represents the auth whoami command
var authWhoamiCmd = &cobra.Command{
	Use:   "whoami [server]",
	Short: "Show current authenticated identity",
	Long: `Show the currently authenticated identity and token information.

This command displays details about your current authentication state,
including the issuer, token expiration, and server information.

Examples:
  fastmcp auth whoami                  # Identity for the default server
  fastmcp auth whoami production       # Identity for a configured server`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthWhoami,
}

// Logout-specific flags
var (
	logoutAll bool
	logoutYes bool
)

// authPrint prints output only if the --quiet flag is not set.
// Use this for progress messages and non-essential output.
func authPrint(format string, args ...interface{}) {
	if !rootQuiet {
		fmt.Printf(format, args...)
	}
}

// authPrintln prints a line only if the --quiet flag is not set.
// Use this for progress messages and non-essential output.
func authPrintln(a ...interface{}) {
	if !rootQuiet {
		fmt.Println(a...)
	}
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authRefreshCmd)
	authCmd.AddCommand(authWhoamiCmd)

	// Logout-specific flags (only on logout subcommand)
	authLogoutCmd.Flags().BoolVar(&logoutAll, "all", false, "Clear all stored tokens")
	authLogoutCmd.Flags().BoolVarP(&logoutYes, "yes", "y", false, "Skip confirmation prompt for --all")
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	store, err := openTokenStore()
	if err != nil {
		return err
	}

	if logoutAll {
		records, err := store.List()
		if err != nil {
			return fmt.Errorf("failed to list stored tokens: %w", err)
		}

		if len(records) == 0 {
			authPrintln("No stored tokens to clear.")
			return nil
		}

		if !logoutYes {
			fmt.Printf("The following %d token(s) will be cleared:\n", len(records))
			for _, record := range records {
				fmt.Printf("  - %s\n", record.ServerURL)
			}
			fmt.Print("\nAre you sure you want to clear all tokens? [y/N]: ")

			reader := bufio.NewReader(os.Stdin)
			response, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}

			response = strings.TrimSpace(strings.ToLower(response))
			if response != "y" && response != "yes" {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		if err := store.Clear(); err != nil {
			return fmt.Errorf("failed to clear all tokens: %w", err)
		}

		authPrint("Cleared %d stored token(s).\n", len(records))
		return nil
	}

	server, err := resolveServer(args)
	if err != nil {
		return err
	}

	if err := store.Delete(server.URL); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}

	authPrint("Logged out from %s\n", server.URL)
	return nil
}

func runAuthRefresh(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	server, err := resolveServer(args)
	if err != nil {
		return err
	}

	store, err := openTokenStore()
	if err != nil {
		return err
	}

	token, client, err := store.Load(server.URL)
	if err != nil {
		return fmt.Errorf("failed to load stored token: %w", err)
	}
	if token == nil || token.RefreshToken == "" {
		return fmt.Errorf("no refresh token stored for %s. Run 'fastmcp auth login' first", server.URL)
	}

	flow, err := newFlow(server)
	if err != nil {
		return err
	}

	authPrint("Refreshing token for %s...\n", server.URL)
	refreshed, err := flow.Refresh(ctx, token, client)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	if err := store.Save(server.URL, refreshed, client); err != nil {
		return fmt.Errorf("failed to store refreshed token: %w", err)
	}

	authPrintln("Token refreshed successfully.")
	if !refreshed.ExpiresAt.IsZero() {
		authPrint("  Expires:   %s\n", formatExpiryWithDirection(refreshed.ExpiresAt))
	}
	return nil
}

func runAuthWhoami(cmd *cobra.Command, args []string) error {
	server, err := resolveServer(args)
	if err != nil {
		return err
	}

	store, err := openTokenStore()
	if err != nil {
		return err
	}

	token, _, err := store.Load(server.URL)
	if err != nil {
		return fmt.Errorf("failed to load stored token: %w", err)
	}

	if token == nil || token.AccessToken == "" {
		fmt.Printf("Not authenticated to %s\n", server.URL)
		fmt.Println("\nTo authenticate, run:")
		fmt.Printf("  fastmcp auth login %s\n", server.URL)
		return nil
	}

	// Identity first, then context
	if identity := identityLine(token.IDToken); identity != "" {
		fmt.Printf("Identity:  %s\n", identity)
	}
	fmt.Printf("Server:    %s\n", server.URL)
	if token.Issuer != "" {
		fmt.Printf("Issuer:    %s\n", token.Issuer)
	}
	if !token.ExpiresAt.IsZero() {
		fmt.Printf("Expires:   %s\n", formatExpiryWithDirection(token.ExpiresAt))
	}

	return nil
}
