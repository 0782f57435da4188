package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PrefectHQ/fastmcp/internal/auth"
	pkgstrings "github.com/PrefectHQ/fastmcp/pkg/strings"

	"github.com/chzyer/readline"
	"github.com/mark3labs/mcp-go/mcp"
)

// promptPrefixUnicode uses a latin "f" with hook for branding in the REPL
// prompt. Used when the terminal supports unicode.
const promptPrefixUnicode = "ƒ"

// promptPrefixASCII is the fallback prefix for terminals without unicode
// support.
const promptPrefixASCII = "fastmcp"

// promptChevronUnicode is the guillemet separator used in the prompt.
const promptChevronUnicode = "»"

// promptChevronASCII is the fallback chevron.
const promptChevronASCII = ">"

// stateAuthRequired is shown in the prompt when the server rejected the
// connection for lack of credentials. Uppercase because it requires user
// action (running 'login').
const stateAuthRequired = "[AUTH REQUIRED]"

// maxPromptHostLength bounds the server host shown in the prompt.
const maxPromptHostLength = 28

// commandTimeout bounds individual REPL command execution. Generous enough
// for an interactive login (browser roundtrip) triggered by a command.
const commandTimeout = 5 * time.Minute

// errExit signals a clean REPL shutdown from the exit command.
var errExit = errors.New("exit")

// REPL is an interactive read-eval-print loop over an authenticated MCP
// client. It offers tab completion for commands and tool names, persistent
// history, and auth commands (login, logout, status) wired to the token
// manager.
type REPL struct {
	client  *Client
	manager *auth.TokenManager
	rl      *readline.Instance
	out     io.Writer

	toolCache     []mcp.Tool
	resourceCache []mcp.Resource
	promptCache   []mcp.Prompt
	authRequired  bool
	useUnicode    bool
}

// NewREPL creates a REPL over the given client. The manager is optional;
// without it the auth commands report that authentication is not
// configured.
func NewREPL(client *Client, manager *auth.TokenManager) *REPL {
	return &REPL{
		client:     client,
		manager:    manager,
		out:        os.Stdout,
		useUnicode: detectUnicodeSupport(),
	}
}

// detectUnicodeSupport checks if the terminal likely supports unicode.
// Dumb or absent terminals get the ASCII prompt.
func detectUnicodeSupport() bool {
	term := os.Getenv("TERM")
	if term == "" || term == "dumb" {
		return false
	}

	for _, v := range []string{os.Getenv("LANG"), os.Getenv("LC_ALL")} {
		lower := strings.ToLower(v)
		if strings.Contains(lower, "utf-8") || strings.Contains(lower, "utf8") {
			return true
		}
	}

	return true
}

// buildPrompt creates the REPL prompt showing the server host and auth
// state. Format examples:
//   - "ƒ mcp.example.com » "
//   - "ƒ mcp.example.com [AUTH REQUIRED] » "
func (r *REPL) buildPrompt() string {
	prefix := promptPrefixASCII
	chevron := promptChevronASCII
	if r.useUnicode {
		prefix = promptPrefixUnicode
		chevron = promptChevronUnicode
	}

	parts := []string{prefix}

	if host := serverHost(r.client.URL()); host != "" {
		parts = append(parts, pkgstrings.TruncateDescription(host, maxPromptHostLength))
	}

	if r.authRequired {
		parts = append(parts, stateAuthRequired)
	}

	parts = append(parts, chevron)

	return strings.Join(parts, " ") + " "
}

// serverHost extracts the host portion of an endpoint URL for prompt
// display. Falls back to the raw URL when it doesn't look like one.
func serverHost(endpoint string) string {
	rest := endpoint
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	if idx := strings.IndexAny(rest, "/?#"); idx >= 0 {
		rest = rest[:idx]
	}
	return rest
}

// updatePrompt refreshes the readline prompt after auth state changes.
func (r *REPL) updatePrompt() {
	if r.rl != nil {
		r.rl.SetPrompt(r.buildPrompt())
	}
}

// Run connects the client and enters the main interaction loop. When the
// initial connection fails for lack of credentials the REPL still starts,
// flags the prompt, and suggests 'login'. The loop ends on exit, Ctrl+D,
// or context cancellation.
func (r *REPL) Run(ctx context.Context) error {
	if err := r.connect(ctx); err != nil {
		return err
	}

	historyFile := filepath.Join(os.TempDir(), ".fastmcp_history")

	config := &readline.Config{
		Prompt:          r.buildPrompt(),
		HistoryFile:     historyFile,
		AutoComplete:    r.createCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	}

	rl, err := readline.NewEx(config)
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	fmt.Fprintln(r.out, "MCP REPL started. Type 'help' for available commands. Use TAB for completion.")
	if r.authRequired {
		fmt.Fprintln(r.out, "Authentication required. Run 'login' to authenticate.")
	}
	fmt.Fprintln(r.out)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out, "REPL shutting down...")
			return nil
		default:
		}

		line, err := r.rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				continue
			}
		} else if err == io.EOF {
			fmt.Fprintln(r.out, "Goodbye!")
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if err := r.executeCommand(input); err != nil {
			if errors.Is(err, errExit) {
				fmt.Fprintln(r.out, "Goodbye!")
				return nil
			}
			fmt.Fprintf(r.out, "Error: %v\n", err)
		}

		fmt.Fprintln(r.out)
	}
}

// connect initializes the client and primes the completion caches. An
// authentication failure is downgraded to the AUTH REQUIRED prompt state
// so the user can log in from inside the REPL; other errors abort.
func (r *REPL) connect(ctx context.Context) error {
	err := r.client.Initialize(ctx)
	if err == nil {
		r.authRequired = false
		r.refreshCaches(ctx)
		return nil
	}

	var authErr *auth.AuthenticationError
	if errors.As(err, &authErr) || errors.Is(err, auth.ErrAuthRequired) {
		r.authRequired = true
		return nil
	}

	return fmt.Errorf("failed to connect to %s: %w", r.client.URL(), err)
}

// refreshCaches fetches the tool, resource, and prompt lists for tab
// completion. Failures are ignored; completion just stays stale.
func (r *REPL) refreshCaches(ctx context.Context) {
	if tools, err := r.client.ListTools(ctx); err == nil {
		r.toolCache = tools
	}
	if resources, err := r.client.ListResources(ctx); err == nil {
		r.resourceCache = resources
	}
	if prompts, err := r.client.ListPrompts(ctx); err == nil {
		r.promptCache = prompts
	}

	if r.rl != nil {
		r.rl.Config.AutoComplete = r.createCompleter()
	}
}

// createCompleter builds the tab completion tree from the cached
// capability lists.
func (r *REPL) createCompleter() *readline.PrefixCompleter {
	toolCompleter := make([]readline.PrefixCompleterInterface, len(r.toolCache))
	for i, tool := range r.toolCache {
		toolCompleter[i] = readline.PcItem(tool.Name)
	}

	resourceCompleter := make([]readline.PrefixCompleterInterface, len(r.resourceCache))
	for i, resource := range r.resourceCache {
		resourceCompleter[i] = readline.PcItem(resource.URI)
	}

	promptCompleter := make([]readline.PrefixCompleterInterface, len(r.promptCache))
	for i, prompt := range r.promptCache {
		promptCompleter[i] = readline.PcItem(prompt.Name)
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("?"),
		readline.PcItem("tools"),
		readline.PcItem("call", toolCompleter...),
		readline.PcItem("resources"),
		readline.PcItem("get", resourceCompleter...),
		readline.PcItem("prompts"),
		readline.PcItem("prompt", promptCompleter...),
		readline.PcItem("ping"),
		readline.PcItem("login"),
		readline.PcItem("logout"),
		readline.PcItem("status"),
		readline.PcItem("exit"),
		readline.PcItem("quit"),
	)
}

// filterInput filters input characters for readline.
func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

// executeCommand parses and dispatches a single REPL command. Each command
// runs under its own timeout so a hung tool call can't wedge the loop
// forever.
func (r *REPL) executeCommand(input string) error {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch command {
	case "help", "?":
		r.printHelp()
		return nil
	case "tools":
		return r.cmdTools(ctx)
	case "call", "run", "exec":
		return r.cmdCall(ctx, args)
	case "resources":
		return r.cmdResources(ctx)
	case "get":
		return r.cmdGet(ctx, args)
	case "prompts":
		return r.cmdPrompts(ctx)
	case "prompt":
		return r.cmdPrompt(ctx, args)
	case "ping":
		return r.cmdPing(ctx)
	case "login":
		return r.cmdLogin(ctx)
	case "logout":
		return r.cmdLogout()
	case "status":
		return r.cmdStatus()
	case "exit", "quit":
		return errExit
	default:
		return fmt.Errorf("unknown command: %s. Type 'help' for available commands", parts[0])
	}
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.out, "Available commands:")
	fmt.Fprintln(r.out, "  tools                      List available tools")
	fmt.Fprintln(r.out, "  call <tool> [json|k=v...]  Execute a tool")
	fmt.Fprintln(r.out, "  resources                  List available resources")
	fmt.Fprintln(r.out, "  get <uri>                  Read a resource")
	fmt.Fprintln(r.out, "  prompts                    List available prompts")
	fmt.Fprintln(r.out, "  prompt <name> [k=v...]     Render a prompt")
	fmt.Fprintln(r.out, "  ping                       Check server responsiveness")
	fmt.Fprintln(r.out, "  login                      Authenticate with the server")
	fmt.Fprintln(r.out, "  logout                     Discard stored credentials")
	fmt.Fprintln(r.out, "  status                     Show authentication status")
	fmt.Fprintln(r.out, "  exit                       Leave the REPL")
}

func (r *REPL) cmdTools(ctx context.Context) error {
	if err := r.requireConnection(ctx); err != nil {
		return err
	}

	tools, err := r.client.ListTools(ctx)
	if err != nil {
		return err
	}
	r.toolCache = tools
	if r.rl != nil {
		r.rl.Config.AutoComplete = r.createCompleter()
	}

	if len(tools) == 0 {
		fmt.Fprintln(r.out, "No tools available")
		return nil
	}

	fmt.Fprintf(r.out, "Tools (%d):\n", len(tools))
	for _, tool := range tools {
		fmt.Fprintf(r.out, "  %-30s %s\n", tool.Name,
			pkgstrings.TruncateDescription(tool.Description, pkgstrings.DefaultDescriptionMaxLen))
	}
	return nil
}

func (r *REPL) cmdCall(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: call <tool-name> [json-arguments | key=value ...]")
	}
	if err := r.requireConnection(ctx); err != nil {
		return err
	}

	toolName := args[0]
	toolArgs, err := ParseToolArgs(args[1:])
	if err != nil {
		return err
	}

	result, err := r.client.CallTool(ctx, toolName, toolArgs)
	if err != nil {
		return fmt.Errorf("tool execution failed: %w", err)
	}

	r.printToolResult(result)
	return nil
}

// printToolResult renders a tool result, pretty-printing JSON text content
// when possible.
func (r *REPL) printToolResult(result *mcp.CallToolResult) {
	if result.IsError {
		fmt.Fprintln(r.out, "Tool returned an error:")
		for _, content := range result.Content {
			if textContent, ok := content.(mcp.TextContent); ok {
				fmt.Fprintf(r.out, "  %s\n", textContent.Text)
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
					fmt.Fprintln(r.out, string(b))
					continue
				}
			}
			fmt.Fprintln(r.out, v.Text)
		case mcp.ImageContent:
			fmt.Fprintf(r.out, "[Image: MIME type %s, %d bytes]\n", v.MIMEType, len(v.Data))
		case mcp.AudioContent:
			fmt.Fprintf(r.out, "[Audio: MIME type %s, %d bytes]\n", v.MIMEType, len(v.Data))
		default:
			fmt.Fprintf(r.out, "%+v\n", content)
		}
	}
}

func (r *REPL) cmdResources(ctx context.Context) error {
	if err := r.requireConnection(ctx); err != nil {
		return err
	}

	resources, err := r.client.ListResources(ctx)
	if err != nil {
		return err
	}
	r.resourceCache = resources
	if r.rl != nil {
		r.rl.Config.AutoComplete = r.createCompleter()
	}

	if len(resources) == 0 {
		fmt.Fprintln(r.out, "No resources available")
		return nil
	}

	fmt.Fprintf(r.out, "Resources (%d):\n", len(resources))
	for _, resource := range resources {
		fmt.Fprintf(r.out, "  %-40s %s\n", resource.URI,
			pkgstrings.TruncateDescription(resource.Name, pkgstrings.DefaultDescriptionMaxLen))
	}
	return nil
}

func (r *REPL) cmdGet(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: get <resource-uri>")
	}
	if err := r.requireConnection(ctx); err != nil {
		return err
	}

	result, err := r.client.ReadResource(ctx, args[0])
	if err != nil {
		return err
	}

	for _, content := range result.Contents {
		switch v := content.(type) {
		case mcp.TextResourceContents:
			fmt.Fprintln(r.out, v.Text)
		case mcp.BlobResourceContents:
			fmt.Fprintf(r.out, "[Blob: MIME type %s, %d bytes base64]\n", v.MIMEType, len(v.Blob))
		default:
			fmt.Fprintf(r.out, "%+v\n", content)
		}
	}
	return nil
}

func (r *REPL) cmdPrompts(ctx context.Context) error {
	if err := r.requireConnection(ctx); err != nil {
		return err
	}

	prompts, err := r.client.ListPrompts(ctx)
	if err != nil {
		return err
	}
	r.promptCache = prompts
	if r.rl != nil {
		r.rl.Config.AutoComplete = r.createCompleter()
	}

	if len(prompts) == 0 {
		fmt.Fprintln(r.out, "No prompts available")
		return nil
	}

	fmt.Fprintf(r.out, "Prompts (%d):\n", len(prompts))
	for _, prompt := range prompts {
		fmt.Fprintf(r.out, "  %-30s %s\n", prompt.Name,
			pkgstrings.TruncateDescription(prompt.Description, pkgstrings.DefaultDescriptionMaxLen))
	}
	return nil
}

func (r *REPL) cmdPrompt(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: prompt <prompt-name> [key=value ...]")
	}
	if err := r.requireConnection(ctx); err != nil {
		return err
	}

	promptArgs, err := ParseToolArgs(args[1:])
	if err != nil {
		return err
	}

	result, err := r.client.GetPrompt(ctx, args[0], promptArgs)
	if err != nil {
		return err
	}

	for _, message := range result.Messages {
		if textContent, ok := message.Content.(mcp.TextContent); ok {
			fmt.Fprintf(r.out, "[%s] %s\n", message.Role, textContent.Text)
		} else {
			fmt.Fprintf(r.out, "[%s] %+v\n", message.Role, message.Content)
		}
	}
	return nil
}

func (r *REPL) cmdPing(ctx context.Context) error {
	if err := r.requireConnection(ctx); err != nil {
		return err
	}

	start := time.Now()
	if err := r.client.Ping(ctx); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Pong (%s)\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func (r *REPL) cmdLogin(ctx context.Context) error {
	if r.manager == nil {
		return fmt.Errorf("authentication is not configured for this server")
	}

	fmt.Fprintln(r.out, "Starting login flow. A browser window may open for authentication.")
	if _, err := r.manager.Credential(ctx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	fmt.Fprintln(r.out, "Authentication successful")

	// Reconnect now that credentials exist.
	if !r.client.IsConnected() {
		if err := r.client.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to connect after login: %w", err)
		}
	}
	r.authRequired = false
	r.refreshCaches(ctx)
	r.updatePrompt()
	fmt.Fprintln(r.out, "Connected")
	return nil
}

func (r *REPL) cmdLogout() error {
	if r.manager == nil {
		return fmt.Errorf("authentication is not configured for this server")
	}

	if err := r.manager.Clear(); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	fmt.Fprintln(r.out, "Credentials discarded")
	return nil
}

func (r *REPL) cmdStatus() error {
	if r.manager == nil {
		fmt.Fprintln(r.out, "Authentication: not configured")
		return nil
	}

	fmt.Fprintf(r.out, "State: %s\n", r.manager.State())

	token := r.manager.Token()
	if token == nil {
		fmt.Fprintln(r.out, "No token present")
		return nil
	}

	if token.ExpiresAt.IsZero() {
		fmt.Fprintln(r.out, "Token: valid (no expiry)")
	} else if remaining := time.Until(token.ExpiresAt); remaining > 0 {
		fmt.Fprintf(r.out, "Token: valid, expires in %s\n", remaining.Round(time.Second))
	} else {
		fmt.Fprintln(r.out, "Token: expired")
	}

	if token.IDToken != "" {
		if claims, err := auth.ParseIdentity(token.IDToken); err == nil {
			if claims.Email != "" {
				fmt.Fprintf(r.out, "Identity: %s\n", claims.Email)
			} else if claims.Subject != "" {
				fmt.Fprintf(r.out, "Identity: %s\n", claims.Subject)
			}
		}
	}
	return nil
}

// requireConnection connects on demand so a REPL started in the
// AUTH REQUIRED state recovers as soon as credentials appear (login here,
// or another process completing the flow).
func (r *REPL) requireConnection(ctx context.Context) error {
	if r.client.IsConnected() {
		return nil
	}

	if err := r.client.Initialize(ctx); err != nil {
		var authErr *auth.AuthenticationError
		if errors.As(err, &authErr) || errors.Is(err, auth.ErrAuthRequired) {
			return fmt.Errorf("not authenticated. Run 'login' first")
		}
		return err
	}

	r.authRequired = false
	r.updatePrompt()
	return nil
}

// ParseToolArgs turns REPL argument words into a tool argument map. A
// single leading JSON object is taken verbatim; otherwise key=value pairs
// are collected, with values parsed as JSON literals when they look like
// one (numbers, booleans, null, quoted strings, arrays, objects) and kept
// as plain strings when not.
func ParseToolArgs(words []string) (map[string]interface{}, error) {
	if len(words) == 0 {
		return map[string]interface{}{}, nil
	}

	// A JSON object may have been split on spaces by the shell-style
	// tokenizer; rejoin before parsing.
	if strings.HasPrefix(words[0], "{") {
		joined := strings.Join(words, " ")
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(joined), &args); err != nil {
			return nil, fmt.Errorf("arguments must be valid JSON: %v", err)
		}
		return args, nil
	}

	args := make(map[string]interface{})
	for _, word := range words {
		key, value, found := strings.Cut(word, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid argument %q: expected key=value or a JSON object", word)
		}

		var parsed interface{}
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			args[key] = parsed
		} else {
			args[key] = value
		}
	}
	return args, nil
}
