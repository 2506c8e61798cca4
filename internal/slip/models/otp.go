package models

import (
	"time"

	"slipdesk/internal/slip/ttl"
)

// OTP is the one-time-passcode sub-record embedded in a deposit slip. Only
// the bcrypt hash of the code is ever stored; the plaintext exists in memory
// for the duration of the notification send and is never logged. The hash
// round-trips through the stores' JSON documents but is stripped by
// DepositSlip.Sanitized before anything reaches an API response.
type OTP struct {
	CodeHash     []byte     `json:"code_hash,omitempty"`
	IssuedAt     time.Time  `json:"issued_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	AttemptsUsed int        `json:"attempts_used"`
	MaxAttempts  int        `json:"max_attempts"`
	Verified     bool       `json:"verified"`
	Consumed     bool       `json:"consumed"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
}

// Active reports whether this code can still accept verification attempts.
// A consumed, locked or expired code requires a fresh issue.
func (o *OTP) Active(now time.Time) bool {
	if o == nil || o.Consumed {
		return false
	}
	if o.Locked() {
		return false
	}
	return !ttl.Expired(now, o.ExpiresAt)
}

// Locked reports whether the attempt budget is exhausted. A locked code
// fails closed until re-issuance; there is no silent retry.
func (o *OTP) Locked() bool {
	return o != nil && o.AttemptsUsed >= o.MaxAttempts
}

// VerifiedWithin reports whether the code was successfully verified and the
// verification still falls inside the OTP's own validity window at the given
// instant. The AUTHORIZED guard reads this, not the raw Verified flag.
func (o *OTP) VerifiedWithin(now time.Time) bool {
	return o != nil && o.Verified && !ttl.Expired(now, o.ExpiresAt)
}
