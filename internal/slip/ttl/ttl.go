// Package ttl holds the validity-window arithmetic for deposit slips and
// OTP codes. Pure functions so expiry policy is testable without a store.
package ttl

import "time"

// ExpiresAt derives the expiry instant from creation time and validity window.
// The expiry of a slip is fixed at creation and never moves.
func ExpiresAt(createdAt time.Time, window time.Duration) time.Time {
	return createdAt.Add(window)
}

// Expired reports whether the validity window has lapsed. A record is usable
// for the half-open interval [createdAt, expiresAt): the boundary instant
// itself counts as expired.
func Expired(now, expiresAt time.Time) bool {
	return !now.Before(expiresAt)
}

// Remaining returns the time left before expiry, clamped to zero. Display
// code needs "0s left", never a negative duration.
func Remaining(now, expiresAt time.Time) time.Duration {
	if Expired(now, expiresAt) {
		return 0
	}
	return expiresAt.Sub(now)
}

// WithinGrace reports whether now is still inside the post-expiry grace
// window in which cancel and reject remain legal for audit closure.
func WithinGrace(now, expiresAt time.Time, grace time.Duration) bool {
	return now.Before(expiresAt.Add(grace))
}
