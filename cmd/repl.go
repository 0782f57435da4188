package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/PrefectHQ/fastmcp/internal/auth"
	"github.com/PrefectHQ/fastmcp/internal/client"

	"github.com/spf13/cobra"
)

// replCmd represents the repl command
var replCmd = &cobra.Command{
	Use:   "repl [server]",
	Short: "Start an interactive session with an MCP server",
	Long: `The repl command connects to an MCP server and provides an interactive
interface to explore and execute its tools, resources, and prompts.

Authentication happens transparently: stored tokens are reused, and when
the server requires a login the browser-based OAuth flow runs before the
session starts. If you decline to authenticate, the REPL still opens in a
disconnected state and the 'login' command is available inside it.

In the REPL you can:
- List available tools, resources, and prompts
- Get detailed information about specific items
- Execute tools with key=value or JSON arguments
- Read resources and retrieve their contents
- Inspect and refresh your authentication state

Examples:
  # Connect to the default server from your configuration
  fastmcp repl

  # Connect to a named server
  fastmcp repl github

  # Connect directly to a URL
  fastmcp repl https://mcp.example.com/mcp`,
	Args: cobra.MaximumNArgs(1),
	RunE: runREPL,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

func runREPL(cmd *cobra.Command, args []string) error {
	// Create context with signal handling
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle interrupts gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	server, err := resolveServer(args)
	if err != nil {
		return err
	}

	store, err := openTokenStore()
	if err != nil {
		return err
	}

	manager, err := newTokenManager(server, store)
	if err != nil {
		return err
	}

	c := client.New(client.Config{
		ServerURL:  server.URL,
		Headers:    server.Headers,
		HTTPClient: auth.NewHTTPClient(manager),
	})
	defer c.Close()

	repl := client.NewREPL(c, manager)
	if err := repl.Run(ctx); err != nil {
		return fmt.Errorf("REPL error: %w", err)
	}

	return nil
}
