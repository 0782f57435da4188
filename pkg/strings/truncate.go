// Package strings provides small text helpers shared by table and list
// output in the CLI and the REPL.
package strings

import (
	"strings"
)

// DefaultDescriptionMaxLen is the column width used for tool and resource
// descriptions in list output.
const DefaultDescriptionMaxLen = 60

// minTruncateLen leaves room for at least one character plus the ellipsis.
const minTruncateLen = 4

// TruncateDescription flattens s to a single line and truncates it to at
// most maxLen runes, appending "..." when content was cut. Newlines and
// runs of whitespace collapse to single spaces. Operates on runes so
// multi-byte characters are never split.
func TruncateDescription(s string, maxLen int) string {
	if maxLen < minTruncateLen {
		maxLen = minTruncateLen
	}

	flat := strings.Join(strings.Fields(s), " ")

	runes := []rune(flat)
	if len(runes) <= maxLen {
		return flat
	}
	return string(runes[:maxLen-3]) + "..."
}
