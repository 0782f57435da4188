package strings

import (
	"testing"
)

func TestTruncateDescription(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{
			name:     "short string unchanged",
			input:    "list available tools",
			maxLen:   40,
			expected: "list available tools",
		},
		{
			name:     "exact length unchanged",
			input:    "abcdefghij",
			maxLen:   10,
			expected: "abcdefghij",
		},
		{
			name:     "long string truncated with ellipsis",
			input:    "fetches the complete set of resources exposed by the server",
			maxLen:   20,
			expected: "fetches the compl...",
		},
		{
			name:     "newlines collapse to spaces",
			input:    "first line\nsecond line",
			maxLen:   40,
			expected: "first line second line",
		},
		{
			name:     "whitespace runs collapse",
			input:    "too   many\t\tspaces   here",
			maxLen:   40,
			expected: "too many spaces here",
		},
		{
			name:     "multi-byte runes not split",
			input:    "日本語のテキストをここで切り詰める",
			maxLen:   8,
			expected: "日本語のテ...",
		},
		{
			name:     "tiny maxLen clamped",
			input:    "abcdefgh",
			maxLen:   1,
			expected: "a...",
		},
		{
			name:     "empty input",
			input:    "",
			maxLen:   10,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateDescription(tt.input, tt.maxLen)
			if got != tt.expected {
				t.Errorf("TruncateDescription(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.expected)
			}
		})
	}
}

func TestTruncateDescription_NeverExceedsMaxLen(t *testing.T) {
	inputs := []string{
		"a reasonably long description that will definitely be cut",
		"short",
		"ユニコードが混ざった mixed content string with 日本語",
	}

	for _, input := range inputs {
		for maxLen := 4; maxLen <= 30; maxLen += 7 {
			got := TruncateDescription(input, maxLen)
			if n := len([]rune(got)); n > maxLen {
				t.Errorf("TruncateDescription(%q, %d) returned %d runes: %q", input, maxLen, n, got)
			}
		}
	}
}
