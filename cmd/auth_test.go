package cmd

import (
	"strings"
	"testing"
	"time"
)

func TestAuthCommandStructure(t *testing.T) {
	t.Run("auth command exists", func(t *testing.T) {
		if authCmd == nil {
			t.Fatal("authCmd should not be nil")
		}
	})

	t.Run("auth command properties", func(t *testing.T) {
		if authCmd.Use != "auth" {
			t.Errorf("expected Use 'auth', got %q", authCmd.Use)
		}
		if authCmd.Short == "" {
			t.Error("expected Short description to be set")
		}
		if authCmd.Long == "" {
			t.Error("expected Long description to be set")
		}
	})

	t.Run("auth has subcommands", func(t *testing.T) {
		subcommands := authCmd.Commands()
		if len(subcommands) == 0 {
			t.Error("expected auth to have subcommands")
		}

		expectedSubcommands := []string{"login", "logout", "status", "refresh", "whoami"}
		foundCommands := make(map[string]bool)
		for _, cmd := range subcommands {
			foundCommands[cmd.Name()] = true
		}

		for _, expected := range expectedSubcommands {
			if !foundCommands[expected] {
				t.Errorf("expected subcommand %q to be registered", expected)
			}
		}
	})
}

func TestAuthLoginCommand(t *testing.T) {
	t.Run("login command exists", func(t *testing.T) {
		if authLoginCmd == nil {
			t.Fatal("authLoginCmd should not be nil")
		}
	})

	t.Run("login command properties", func(t *testing.T) {
		if !strings.HasPrefix(authLoginCmd.Use, "login") {
			t.Errorf("expected Use to start with 'login', got %q", authLoginCmd.Use)
		}
		if authLoginCmd.Short == "" {
			t.Error("expected Short description to be set")
		}
	})

	t.Run("login command has RunE", func(t *testing.T) {
		if authLoginCmd.RunE == nil {
			t.Error("expected RunE to be set")
		}
	})

	t.Run("login takes positional server argument", func(t *testing.T) {
		if !strings.Contains(authLoginCmd.Use, "[server]") {
			t.Errorf("expected Use to document the [server] argument, got %q", authLoginCmd.Use)
		}
	})

	t.Run("login has --force flag", func(t *testing.T) {
		flag := authLoginCmd.Flags().Lookup("force")
		if flag == nil {
			t.Error("expected --force flag on login command")
		}
	})
}

func TestAuthLogoutCommand(t *testing.T) {
	t.Run("logout command exists", func(t *testing.T) {
		if authLogoutCmd == nil {
			t.Fatal("authLogoutCmd should not be nil")
		}
	})

	t.Run("logout command properties", func(t *testing.T) {
		if !strings.HasPrefix(authLogoutCmd.Use, "logout") {
			t.Errorf("expected Use to start with 'logout', got %q", authLogoutCmd.Use)
		}
		if authLogoutCmd.Short == "" {
			t.Error("expected Short description to be set")
		}
	})

	t.Run("logout has --all flag", func(t *testing.T) {
		flag := authLogoutCmd.Flags().Lookup("all")
		if flag == nil {
			t.Error("expected --all flag on logout command")
		}
	})

	t.Run("logout has --yes flag", func(t *testing.T) {
		flag := authLogoutCmd.Flags().Lookup("yes")
		if flag == nil {
			t.Error("expected --yes flag on logout command")
		}
	})

	t.Run("logout --yes flag has -y shorthand", func(t *testing.T) {
		flag := authLogoutCmd.Flags().ShorthandLookup("y")
		if flag == nil {
			t.Fatal("expected -y shorthand for --yes flag")
		}
		if flag.Name != "yes" {
			t.Errorf("expected -y to be shorthand for 'yes', got %q", flag.Name)
		}
	})
}

func TestAuthStatusCommand(t *testing.T) {
	t.Run("status command exists", func(t *testing.T) {
		if authStatusCmd == nil {
			t.Fatal("authStatusCmd should not be nil")
		}
	})

	t.Run("status command properties", func(t *testing.T) {
		if !strings.HasPrefix(authStatusCmd.Use, "status") {
			t.Errorf("expected Use to start with 'status', got %q", authStatusCmd.Use)
		}
		if authStatusCmd.Short == "" {
			t.Error("expected Short description to be set")
		}
	})

	t.Run("status has --watch flag", func(t *testing.T) {
		flag := authStatusCmd.Flags().Lookup("watch")
		if flag == nil {
			t.Error("expected --watch flag on status command")
		}
	})
}

func TestAuthRefreshCommand(t *testing.T) {
	t.Run("refresh command exists", func(t *testing.T) {
		if authRefreshCmd == nil {
			t.Fatal("authRefreshCmd should not be nil")
		}
	})

	t.Run("refresh command properties", func(t *testing.T) {
		if !strings.HasPrefix(authRefreshCmd.Use, "refresh") {
			t.Errorf("expected Use to start with 'refresh', got %q", authRefreshCmd.Use)
		}
		if authRefreshCmd.Short == "" {
			t.Error("expected Short description to be set")
		}
	})

	t.Run("refresh command has RunE", func(t *testing.T) {
		if authRefreshCmd.RunE == nil {
			t.Error("expected RunE to be set")
		}
	})
}

func TestAuthWhoamiCommand(t *testing.T) {
	t.Run("whoami command exists", func(t *testing.T) {
		if authWhoamiCmd == nil {
			t.Fatal("authWhoamiCmd should not be nil")
		}
	})

	t.Run("whoami command properties", func(t *testing.T) {
		if !strings.HasPrefix(authWhoamiCmd.Use, "whoami") {
			t.Errorf("expected Use to start with 'whoami', got %q", authWhoamiCmd.Use)
		}
		if authWhoamiCmd.Short == "" {
			t.Error("expected Short description to be set")
		}
	})

	t.Run("whoami command has RunE", func(t *testing.T) {
		if authWhoamiCmd.RunE == nil {
			t.Error("expected RunE to be set")
		}
	})
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{
			name:     "negative duration",
			duration: -30 * time.Second,
			expected: "expired",
		},
		{
			name:     "less than a minute",
			duration: 30 * time.Second,
			expected: "< 1 minute",
		},
		{
			name:     "exactly one minute",
			duration: 1 * time.Minute,
			expected: "1 minute",
		},
		{
			name:     "multiple minutes",
			duration: 45 * time.Minute,
			expected: "45 minutes",
		},
		{
			name:     "exactly one hour",
			duration: 1 * time.Hour,
			expected: "1 hour",
		},
		{
			name:     "multiple hours",
			duration: 5 * time.Hour,
			expected: "5 hours",
		},
		{
			name:     "exactly one day",
			duration: 24 * time.Hour,
			expected: "1 day",
		},
		{
			name:     "multiple days",
			duration: 72 * time.Hour,
			expected: "3 days",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatDuration(tt.duration)
			if result != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, result, tt.expected)
			}
		})
	}
}

func TestFormatExpiryWithDirection(t *testing.T) {
	tests := []struct {
		name        string
		expiresAt   time.Time
		shouldMatch string // substring that should be in the result
	}{
		{
			name:        "future expiry shows in",
			expiresAt:   time.Now().Add(2 * time.Hour),
			shouldMatch: "in ",
		},
		{
			name:        "past expiry shows expired",
			expiresAt:   time.Now().Add(-2 * time.Hour),
			shouldMatch: "expired",
		},
		{
			name:        "past expiry shows ago",
			expiresAt:   time.Now().Add(-2 * time.Hour),
			shouldMatch: "ago",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatExpiryWithDirection(tt.expiresAt)
			if !strings.Contains(result, tt.shouldMatch) {
				t.Errorf("formatExpiryWithDirection() = %q, want to contain %q", result, tt.shouldMatch)
			}
		})
	}
}
