// Package ratelimit decides whether a login attempt may proceed.
//
// Decisions are computed from the append-only attempt ledger: count the
// failures inside the sliding window and, once the threshold is reached,
// block until the most recent failure plus the lockout duration has passed.
package ratelimit

import (
	"context"
	"time"

	"github.com/projectgoat/projectgoat/internal/app/store/attempts"
)

// Guard evaluates login rate limits for a single email.
type Guard struct {
	attempts *attempts.Store

	maxAttempts int
	window      time.Duration
	lockout     time.Duration
}

// NewGuard creates a Guard over the attempt ledger.
func NewGuard(store *attempts.Store, maxAttempts int, window, lockout time.Duration) *Guard {
	return &Guard{
		attempts:    store,
		maxAttempts: maxAttempts,
		window:      window,
		lockout:     lockout,
	}
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed      bool
	Remaining    int        // attempts left before lockout (-1 when blocked)
	BlockedUntil *time.Time // when the block lifts (nil if not blocked)
}

// Check evaluates whether an attempt for email may proceed. On ledger errors
// the check fails open so a degraded database never locks everyone out.
func (g *Guard) Check(ctx context.Context, email string) Decision {
	now := time.Now()

	count, err := g.attempts.CountFailuresSince(ctx, email, now.Add(-g.window))
	if err != nil {
		return Decision{Allowed: true, Remaining: g.maxAttempts}
	}

	if count < int64(g.maxAttempts) {
		return Decision{Allowed: true, Remaining: g.maxAttempts - int(count)}
	}

	last, err := g.attempts.LastFailure(ctx, email)
	if err != nil || last == nil {
		return Decision{Allowed: true, Remaining: g.maxAttempts}
	}

	until := last.At.Add(g.lockout)
	if now.Before(until) {
		return Decision{Allowed: false, Remaining: -1, BlockedUntil: &until}
	}
	return Decision{Allowed: true, Remaining: 1}
}

// RecordFailure appends a failed attempt and reports whether this failure
// reached the lockout threshold. The reason tags the ledger entry; it is
// never surfaced to the caller of the login endpoint.
func (g *Guard) RecordFailure(ctx context.Context, email, ip, userAgent, reason string) (lockedOut bool, lockedUntil *time.Time, err error) {
	if err := g.attempts.Record(ctx, email, ip, userAgent, attempts.OutcomeFailure, reason); err != nil {
		return false, nil, err
	}

	now := time.Now()
	count, err := g.attempts.CountFailuresSince(ctx, email, now.Add(-g.window))
	if err != nil {
		return false, nil, err
	}
	if count >= int64(g.maxAttempts) {
		until := now.Add(g.lockout)
		return true, &until, nil
	}
	return false, nil, nil
}

// RecordSuccess appends a successful attempt. Prior failures stay in the
// ledger; they age out of the window on their own.
func (g *Guard) RecordSuccess(ctx context.Context, email, ip, userAgent string) error {
	return g.attempts.Record(ctx, email, ip, userAgent, attempts.OutcomeSuccess, "")
}

// MaxAttempts returns the configured threshold.
func (g *Guard) MaxAttempts() int { return g.maxAttempts }

// Window returns the sliding window duration.
func (g *Guard) Window() time.Duration { return g.window }

// Lockout returns the lockout duration.
func (g *Guard) Lockout() time.Duration { return g.lockout }
