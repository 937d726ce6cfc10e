// Package normalize canonicalizes user-supplied identity strings before they
// are stored or compared. Handlers and stores call these instead of spreading
// ad hoc ToLower/TrimSpace combinations.
package normalize

import "strings"

// Email trims whitespace and lowercases. Every email comparison in the
// application goes through this first, so "User@Example.com" and
// "user@example.com " resolve to the same account.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims whitespace only. Display names keep their case; use text.Fold
// for case-insensitive comparison keys.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Role trims whitespace and lowercases so "Admin" passes the same role
// validation as "admin".
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
