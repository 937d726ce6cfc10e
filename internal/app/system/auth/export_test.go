package auth

// Test-only aliases exposing unexported helpers to the external test package.
var (
	IsDefaultKeyForTest = isDefaultKey
	ClientIPForTest     = clientIP
)
