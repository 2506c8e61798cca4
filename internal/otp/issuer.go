// Package otp generates and checks the one-time passcodes that gate slip
// authorization. The issuer is pure policy over the OTP sub-record; the slip
// service owns persistence and delivery ordering.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"slipdesk/internal/slip/models"
	"slipdesk/internal/slip/ttl"
	derrors "slipdesk/pkg/domain-errors"
)

// Issuer holds OTP policy: code length, validity window and attempt budget.
type Issuer struct {
	length      int
	validity    time.Duration
	maxAttempts int
}

func NewIssuer(length int, validity time.Duration, maxAttempts int) *Issuer {
	return &Issuer{length: length, validity: validity, maxAttempts: maxAttempts}
}

// Issue generates a fresh numeric code and returns the record to embed in
// the slip plus the plaintext for delivery. Re-issuing always supersedes any
// prior code and resets the attempt counter; only one code is ever live.
//
// Callers must hand the plaintext to the notification adapter and then drop
// it. It is never persisted or logged.
func (i *Issuer) Issue(now time.Time) (*models.OTP, string, error) {
	code, err := generateCode(i.length)
	if err != nil {
		return nil, "", fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash otp: %w", err)
	}
	return &models.OTP{
		CodeHash:     hash,
		IssuedAt:     now,
		ExpiresAt:    ttl.ExpiresAt(now, i.validity),
		MaxAttempts:  i.maxAttempts,
		AttemptsUsed: 0,
	}, code, nil
}

// Check verifies a submitted code against the record, mutating the record's
// attempt counter and verified/consumed flags in place. The caller commits
// the mutated record through the store's compare-and-swap, so a lost race
// discards these mutations along with the rest of the write.
//
// Error codes follow the temporal taxonomy: each is terminal for the current
// attempt and the caller must re-issue to continue.
func (i *Issuer) Check(record *models.OTP, submitted string, now time.Time) error {
	if record == nil || record.Consumed {
		return derrors.New(derrors.CodeNoActiveOtp, "no active OTP for this reference, request a new code")
	}
	if record.Locked() {
		return derrors.New(derrors.CodeTooManyAttempts, "maximum OTP attempts exceeded, request a new code")
	}
	if ttl.Expired(now, record.ExpiresAt) {
		return derrors.New(derrors.CodeOtpExpired, "OTP has expired, request a new code")
	}

	record.AttemptsUsed++
	if bcrypt.CompareHashAndPassword(record.CodeHash, []byte(submitted)) != nil {
		if record.Locked() {
			return derrors.New(derrors.CodeTooManyAttempts, "maximum OTP attempts exceeded, request a new code")
		}
		remaining := record.MaxAttempts - record.AttemptsUsed
		return derrors.Newf(derrors.CodeValidationFailed, "incorrect OTP, %d attempts remaining", remaining)
	}

	// Single use: a successful verify consumes the code immediately so a
	// replay fails even inside the TTL.
	record.Verified = true
	record.Consumed = true
	verifiedAt := now
	record.VerifiedAt = &verifiedAt
	return nil
}

// MaskPhone hides all but the last four digits for teller-facing responses.
func MaskPhone(phone string) string {
	digits := strings.TrimSpace(phone)
	if len(digits) <= 4 {
		return digits
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}

func generateCode(length int) (string, error) {
	var b strings.Builder
	for range length {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
