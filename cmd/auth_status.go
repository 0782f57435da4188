package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PrefectHQ/fastmcp/internal/tokenstore"
	"github.com/PrefectHQ/fastmcp/pkg/oauth"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// minServerColumnWidth is the minimum width for the server column in the
// status listing, so short URLs still line up.
const minServerColumnWidth = 24

// Status-specific flags
var (
	statusWatch bool
)

// authStatusCmd represents the auth status command
var authStatusCmd = &cobra.Command{
	Use:   "status [server]",
	Short: "Show authentication status",
	Long: `Show the authentication status of stored tokens.

Without an argument, all stored tokens are listed. With a server name or
URL, the status of that server's token is shown in detail.

With --watch the command keeps running and re-prints the status whenever
another process changes the stored tokens, for example a login completed
in a second terminal.

Examples:
  fastmcp auth status                  # All stored tokens
  fastmcp auth status production       # One server in detail
  fastmcp auth status --watch          # Live updates on token changes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthStatus,
}

func init() {
	// Status-specific flags
	authStatusCmd.Flags().BoolVar(&statusWatch, "watch", false, "Keep running and re-print when stored tokens change")
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	store, err := openTokenStore()
	if err != nil {
		return err
	}

	if err := printAuthStatus(store, args); err != nil {
		return err
	}

	if !statusWatch {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	changes := make(chan struct{}, 1)
	watcher := tokenstore.NewWatcher(store, tokenstore.WatcherConfig{
		OnChange: func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		},
	})
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to watch token storage: %w", err)
	}
	defer func() { _ = watcher.Stop() }()

	authPrintln("\nWatching for token changes. Press Ctrl+C to stop.")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			authPrint("\n--- %s ---\n", time.Now().Format("15:04:05"))
			if err := printAuthStatus(store, args); err != nil {
				return err
			}
		}
	}
}

// printAuthStatus renders the status listing or detail block once.
func printAuthStatus(store *tokenstore.Store, args []string) error {
	if len(args) > 0 {
		server, err := resolveServer(args)
		if err != nil {
			return err
		}
		token, _, err := store.Load(server.URL)
		if err != nil {
			return fmt.Errorf("failed to load stored token: %w", err)
		}
		printServerStatusBlock(server.URL, token)
		return nil
	}

	records, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list stored tokens: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No stored tokens.")
		fmt.Println("Run 'fastmcp auth login <server>' to authenticate.")
		return nil
	}

	fmt.Printf("Stored tokens (%d)\n", len(records))
	printRecordList(records)
	return nil
}

// printServerStatusBlock prints the detailed status for one server.
func printServerStatusBlock(serverURL string, token *oauth.Token) {
	fmt.Printf("Server:    %s\n", serverURL)

	if token == nil || token.AccessToken == "" {
		fmt.Printf("Status:    %s\n", text.FgYellow.Sprint("Not authenticated"))
		fmt.Printf("           Run: fastmcp auth login %s\n", serverURL)
		return
	}

	fmt.Printf("Status:    %s\n", formatTokenStatus(token))
	if !token.ExpiresAt.IsZero() {
		fmt.Printf("Expires:   %s\n", formatExpiryWithDirection(token.ExpiresAt))
	}
	if token.RefreshToken != "" {
		fmt.Printf("Refresh:   %s\n", text.FgGreen.Sprint("Available"))
	} else {
		fmt.Printf("Refresh:   %s\n", text.FgYellow.Sprint("Not available (re-auth required on expiry)"))
	}
	if token.Issuer != "" {
		fmt.Printf("Issuer:    %s\n", token.Issuer)
	}
	if identity := identityLine(token.IDToken); identity != "" {
		fmt.Printf("Identity:  %s\n", identity)
	}
}

// printRecordList prints one aligned line per stored token.
func printRecordList(records []*tokenstore.Record) {
	maxNameLen := minServerColumnWidth
	for _, record := range records {
		if len(record.ServerURL) > maxNameLen {
			maxNameLen = len(record.ServerURL)
		}
	}

	for _, record := range records {
		token := record.Token()
		line := fmt.Sprintf("  %-*s %s", maxNameLen, record.ServerURL, formatTokenStatus(token))
		if !token.ExpiresAt.IsZero() {
			line += "  " + formatExpiryWithDirection(token.ExpiresAt)
		}
		if identity := identityLine(token.IDToken); identity != "" {
			line += "  " + identity
		}
		fmt.Println(line)
	}
}

// formatTokenStatus formats a token's validity with colors.
func formatTokenStatus(token *oauth.Token) string {
	switch {
	case token.IsExpired() && token.RefreshToken != "":
		return text.FgYellow.Sprint("Expired (refreshable)")
	case token.IsExpired():
		return text.FgRed.Sprint("Expired")
	default:
		return text.FgGreen.Sprint("Authenticated")
	}
}
