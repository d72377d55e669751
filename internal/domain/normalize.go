package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeCategory produces the comparison key for a category name:
// trimmed, lowercased, internal whitespace collapsed.
func NormalizeCategory(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// CleanCategory trims and collapses whitespace but keeps the caller's casing.
func CleanCategory(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Truncate shortens s to max runes, appending "..." when cut.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

// NewID generates a new ULID. IDs minted in the same millisecond are
// strictly increasing, so they break created_at ties in insertion order.
func NewID() string {
	return ulid.Make().String()
}
