// Package timeouts centralizes context deadlines for work that either runs
// outside a request-scoped context or deserves a tighter budget than the
// request itself.
package timeouts

import "time"

const (
	// Ping bounds liveness probes against MongoDB.
	Ping = 2 * time.Second

	// Short bounds single-document lookups, such as the per-request fetch
	// of the session user.
	Short = 5 * time.Second

	// Sweep bounds one pass of a background cleanup job so a stuck pass
	// cannot wedge the runner.
	Sweep = 2 * time.Minute
)
