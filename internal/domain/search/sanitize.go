package search

import (
	"regexp"
	"strings"
)

var (
	// specialChars matches everything outside the characters kept for
	// embedding: alphanumerics, underscore, space, and .,!?-
	specialChars = regexp.MustCompile(`[^A-Za-z0-9_ .,!?-]`)
	// whitespaceRuns collapses consecutive whitespace to a single space.
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// SanitizeQuery strips characters that interfere with embedding,
// collapses whitespace runs, and trims the result.
func SanitizeQuery(query string) string {
	sanitized := specialChars.ReplaceAllString(query, " ")
	sanitized = whitespaceRuns.ReplaceAllString(sanitized, " ")
	return strings.TrimSpace(sanitized)
}

// CombineQueryAndContext sanitizes the query and each context string and
// joins them with single spaces, skipping context entries that sanitize
// to nothing.
func CombineQueryAndContext(query string, context []string) string {
	combined := SanitizeQuery(query)

	parts := make([]string, 0, len(context))
	for _, c := range context {
		if s := SanitizeQuery(c); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return combined
	}
	return combined + " " + strings.Join(parts, " ")
}
