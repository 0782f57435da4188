// Package config loads the fastmcp CLI configuration.
//
// Configuration lives in a single YAML file at
// ~/.config/fastmcp/config.yaml. It names MCP servers, selects a default,
// and carries per-server OAuth overrides (pinned issuer, static client
// credentials, scopes, callback listener settings). A missing file is not
// an error; commands then work against raw URLs with
// discovery and dynamic registration filling the gaps.
//
// Example:
//
//	defaultServer: production
//	logLevel: info
//	servers:
//	  production:
//	    url: https://mcp.example.com/mcp
//	    auth:
//	      scopes: [openid, profile]
//	  staging:
//	    url: https://staging.example.com/mcp
//	    auth:
//	      authorizationServerUrl: https://idp.staging.example.com
//	      clientId: preregistered-client
package config
