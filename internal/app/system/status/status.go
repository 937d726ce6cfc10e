// Package status defines the account status values a user record may carry.
//
// The values are plain strings rather than a named type so they can be used
// directly in MongoDB filters and in JSON payloads without conversion.
package status

// Account statuses. A disabled account keeps its data but cannot log in,
// and any live sessions for it are rejected at the session check.
const (
	Active   = "active"
	Disabled = "disabled"
)

// IsValid reports whether s is a recognized account status.
func IsValid(s string) bool {
	switch s {
	case Active, Disabled:
		return true
	}
	return false
}
