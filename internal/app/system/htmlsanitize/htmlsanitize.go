// Package htmlsanitize strips HTML markup from user-supplied text fields.
//
// The application stores names and team names as plain text, so the policy
// here removes every tag rather than allowlisting formatting. Entities are
// unescaped afterward so values like "O'Brien" or "Smith & Co" round-trip
// unchanged through the sanitizer.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Sanitize removes all HTML tags from s and returns the remaining text with
// entities decoded and surrounding whitespace trimmed. Scripts and event
// handlers are dropped along with their markup.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	stripped := getPolicy().Sanitize(s)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
