package cmd

import (
	"errors"
	"os"

	"github.com/PrefectHQ/fastmcp/internal/auth"
	"github.com/PrefectHQ/fastmcp/internal/config"
	"github.com/PrefectHQ/fastmcp/pkg/logging"

	"github.com/spf13/cobra"
)

// Global flags shared by every command.
var (
	rootConfigPath string
	rootQuiet      bool
	rootLogLevel   string
)

// Exit codes for CLI commands.
// These follow common conventions so scripts can distinguish auth problems
// from general failures.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
)

// rootCmd represents the base command for the fastmcp application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fastmcp",
	Short: "Connect to OAuth-protected MCP servers",
	Long: `fastmcp connects your environment to MCP servers, handling OAuth
authentication transparently: server discovery, dynamic client
registration, browser-based login with PKCE, and token refresh.

Tokens are stored under ~/.config/fastmcp/tokens and reused across
invocations, so you authenticate once per server.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

// initLogging sets up the logging system before any command runs. The
// --log-level flag wins; otherwise the config file's logLevel applies.
// Logs go to stderr so command output stays clean for piping.
func initLogging() error {
	levelName := rootLogLevel
	if levelName == "" {
		if cfg, err := config.LoadConfig(rootConfigPath); err == nil {
			levelName = cfg.LogLevel
		}
	}

	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}
	logging.InitForCLI(level, os.Stderr)
	return nil
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the
// application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// It initializes and executes the root command, which in turn handles
// subcommands and flags. This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "fastmcp version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	if errors.Is(err, auth.ErrAuthRequired) {
		return ExitCodeAuthRequired
	}

	var authErr *auth.AuthenticationError
	if errors.As(err, &authErr) {
		return ExitCodeAuthFailed
	}

	if auth.IsAuthorizationDenied(err) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config-path", config.GetDefaultConfigPathOrPanic(), "Configuration directory")
	rootCmd.PersistentFlags().BoolVarP(&rootQuiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "Log verbosity: debug, info, warn, or error (default from config)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
