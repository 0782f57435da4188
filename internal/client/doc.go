// Package client connects to remote MCP servers over streamable HTTP with
// transparent OAuth handling.
//
// # Overview
//
// Client wraps the mcp-go streamable HTTP client with the authorization
// transport from internal/auth: pass the *http.Client built by
// auth.NewHTTPClient and every MCP request carries a bearer token, a 401
// triggers refresh or interactive login, and the original request is
// replayed once. Callers see only initialized connections and typed
// results.
//
// # Core Components
//
// ## Client
//   - Initialize/Close lifecycle around the MCP protocol handshake
//   - ListTools/CallTool, ListResources/ReadResource, ListPrompts/GetPrompt
//   - Ping for responsiveness checks
//   - Safe for concurrent use
//
// ## REPL
//   - Interactive loop with tab completion and persistent history
//   - Tool, resource, and prompt commands over the connected client
//   - login/logout/status wired to the token manager, so an
//     unauthenticated session can recover without restarting
//
// ## PersistentTokenStore
//   - mcp-go transport.TokenStore binder over the file-backed token store
//   - For embedders that let mcp-go drive OAuth itself; refreshed tokens
//     land in the same store the CLI reads
//
// # Usage
//
//	manager := auth.NewTokenManager(flow, auth.WithStorage(store))
//	c := client.New(client.Config{
//		ServerURL:  "https://mcp.example.com/mcp",
//		HTTPClient: auth.NewHTTPClient(manager),
//	})
//	if err := c.Initialize(ctx); err != nil {
//		return err
//	}
//	defer c.Close()
//	tools, err := c.ListTools(ctx)
package client
