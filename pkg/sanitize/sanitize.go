// Package sanitize strips markup from free-text fields before they are stored.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text removes every HTML element, unescapes entities and trims surrounding
// whitespace. Plain text passes through unchanged.
func Text(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := strict.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

// Optional sanitizes a nullable field. Blank results collapse to nil.
func Optional(raw *string) *string {
	if raw == nil {
		return nil
	}
	cleaned := Text(*raw)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
