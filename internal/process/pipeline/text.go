package pipeline

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CleanText is the "Cleaned Text" cell: NFC-normalised and trimmed.
func CleanText(text string) string {
	return strings.TrimSpace(norm.NFC.String(text))
}
