package cmd

import (
	"strings"
	"testing"
)

func TestToolsCommandStructure(t *testing.T) {
	t.Run("tools command exists", func(t *testing.T) {
		if toolsCmd == nil {
			t.Fatal("toolsCmd should not be nil")
		}
	})

	t.Run("tools command properties", func(t *testing.T) {
		if toolsCmd.Use != "tools" {
			t.Errorf("expected Use 'tools', got %q", toolsCmd.Use)
		}
		if toolsCmd.Short == "" {
			t.Error("expected Short description to be set")
		}
		if toolsCmd.Long == "" {
			t.Error("expected Long description to be set")
		}
	})

	t.Run("tools has subcommands", func(t *testing.T) {
		expectedSubcommands := []string{"list", "call"}
		foundCommands := make(map[string]bool)
		for _, cmd := range toolsCmd.Commands() {
			foundCommands[cmd.Name()] = true
		}

		for _, expected := range expectedSubcommands {
			if !foundCommands[expected] {
				t.Errorf("expected subcommand %q to be registered", expected)
			}
		}
	})

	t.Run("tools has --server flag", func(t *testing.T) {
		flag := toolsCmd.PersistentFlags().Lookup("server")
		if flag == nil {
			t.Error("expected --server flag on tools command")
		}
	})

	t.Run("tools --server flag has -s shorthand", func(t *testing.T) {
		flag := toolsCmd.PersistentFlags().ShorthandLookup("s")
		if flag == nil {
			t.Fatal("expected -s shorthand for --server flag")
		}
		if flag.Name != "server" {
			t.Errorf("expected -s to be shorthand for 'server', got %q", flag.Name)
		}
	})
}

func TestToolsCallCommand(t *testing.T) {
	t.Run("call command exists", func(t *testing.T) {
		if toolsCallCmd == nil {
			t.Fatal("toolsCallCmd should not be nil")
		}
	})

	t.Run("call command properties", func(t *testing.T) {
		if !strings.HasPrefix(toolsCallCmd.Use, "call") {
			t.Errorf("expected Use to start with 'call', got %q", toolsCallCmd.Use)
		}
		if toolsCallCmd.RunE == nil {
			t.Error("expected RunE to be set")
		}
	})

	t.Run("call requires a tool name", func(t *testing.T) {
		if toolsCallCmd.Args == nil {
			t.Fatal("expected Args validator to be set")
		}
		if err := toolsCallCmd.Args(toolsCallCmd, []string{}); err == nil {
			t.Error("expected error when no tool name is given")
		}
		if err := toolsCallCmd.Args(toolsCallCmd, []string{"my-tool"}); err != nil {
			t.Errorf("expected tool name alone to be accepted, got %v", err)
		}
	})
}
