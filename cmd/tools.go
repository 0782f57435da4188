package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/PrefectHQ/fastmcp/internal/client"
	pkgstrings "github.com/PrefectHQ/fastmcp/pkg/strings"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"
)

// Tools-specific flags
var (
	toolsServer string
)

// toolsCmd represents the tools command group
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List and call MCP server tools",
	Long: `List and call tools exposed by an MCP server.

Authentication happens transparently: if the server requires OAuth and no
valid token is stored, a browser login is started before the command runs.

Examples:
  fastmcp tools list                   # Tools on the default server
  fastmcp tools list -s production     # Tools on a configured server
  fastmcp tools call search query=foo  # Call a tool with key=value arguments
  fastmcp tools call search '{"query": "foo", "limit": 5}'`,
}

// toolsListCmd represents the tools list command
var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available tools",
	RunE:  runToolsList,
}

// toolsCallCmd represents the tools call command
var toolsCallCmd = &cobra.Command{
	Use:   "call <tool> [arguments...]",
	Short: "Call a tool",
	Long: `Call a tool on an MCP server.

Arguments are given either as key=value pairs (values are parsed as JSON
literals where possible, otherwise as strings) or as a single JSON object.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runToolsCall,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsCallCmd)

	toolsCmd.PersistentFlags().StringVarP(&toolsServer, "server", "s", "", "Server name or URL (default: defaultServer from config)")
}

func runToolsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	c, err := connectForCommand(ctx, toolsServer)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	tools, err := c.ListTools(ctx)
	if err != nil {
		return err
	}

	if len(tools) == 0 {
		fmt.Println("No tools available.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("NAME"),
		text.FgHiCyan.Sprint("DESCRIPTION"),
	})
	for _, tool := range tools {
		t.AppendRow(table.Row{
			tool.Name,
			pkgstrings.TruncateDescription(tool.Description, pkgstrings.DefaultDescriptionMaxLen),
		})
	}
	t.Render()
	return nil
}

func runToolsCall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	toolName := args[0]
	toolArgs, err := client.ParseToolArgs(args[1:])
	if err != nil {
		return err
	}

	c, err := connectForCommand(ctx, toolsServer)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	var s *spinner.Spinner
	if !rootQuiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = fmt.Sprintf(" Calling %s...", toolName)
		s.Start()
	}

	result, err := c.CallTool(ctx, toolName, toolArgs)

	if s != nil {
		s.Stop()
	}

	if err != nil {
		return err
	}

	printToolCallResult(result)
	if result.IsError {
		return fmt.Errorf("tool %s returned an error", toolName)
	}
	return nil
}

// connectForCommand resolves the server selected by the --server flag and
// returns a connected client with authentication wired in.
func connectForCommand(ctx context.Context, serverFlag string) (*client.Client, error) {
	var args []string
	if serverFlag != "" {
		args = []string{serverFlag}
	}
	server, err := resolveServer(args)
	if err != nil {
		return nil, err
	}

	store, err := openTokenStore()
	if err != nil {
		return nil, err
	}

	manager, err := newTokenManager(server, store)
	if err != nil {
		return nil, err
	}

	return connectClient(ctx, server, manager)
}

// printToolCallResult renders a tool result, pretty-printing JSON text
// content when possible.
func printToolCallResult(result *mcp.CallToolResult) {
	if result.IsError {
		fmt.Println(text.FgRed.Sprint("Tool returned an error:"))
		for _, content := range result.Content {
			if textContent, ok := content.(mcp.TextContent); ok {
				fmt.Printf("  %s\n", textContent.Text)
			}
		}
		return
	}

	for _, content := range result.Content {
		switch v := content.(type) {
		case mcp.TextContent:
			var jsonObj interface{}
			if err := json.Unmarshal([]byte(v.Text), &jsonObj); err == nil {
				if b, err := json.MarshalIndent(jsonObj, "", "  "); err == nil {
					fmt.Println(string(b))
					continue
				}
			}
			fmt.Println(v.Text)
		case mcp.ImageContent:
			fmt.Printf("[Image: MIME type %s, %d bytes]\n", v.MIMEType, len(v.Data))
		case mcp.AudioContent:
			fmt.Printf("[Audio: MIME type %s, %d bytes]\n", v.MIMEType, len(v.Data))
		default:
			fmt.Printf("%+v\n", content)
		}
	}
}
