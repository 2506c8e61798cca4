package models

import (
	"time"

	"slipdesk/internal/slip/ttl"
	id "slipdesk/pkg/domain"
)

// Verification is the teller checklist filled in at the counter. Instrument
// verification only applies to cheque and pay-order slips.
type Verification struct {
	AmountConfirmed    bool       `json:"amount_confirmed"`
	IdentityVerified   bool       `json:"identity_verified"`
	InstrumentVerified *bool      `json:"instrument_verified,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	VerifiedBy         string     `json:"verified_by,omitempty"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
}

// Complete reports whether every checklist item required for the given
// transaction type is confirmed.
func (v Verification) Complete(t TransactionType) bool {
	if !v.AmountConfirmed || !v.IdentityVerified {
		return false
	}
	if t.RequiresInstrument() {
		return v.InstrumentVerified != nil && *v.InstrumentVerified
	}
	return true
}

// Completion holds the ledger linkage, populated exactly once when the slip
// reaches COMPLETED.
type Completion struct {
	TransactionID        id.TransactionID `json:"transaction_id"`
	TransactionReference string           `json:"transaction_reference"`
	ReceiptNumber        string           `json:"receipt_number"`
	CompletedBy          string           `json:"completed_by"`
	CompletedAt          time.Time        `json:"completed_at"`
	TellerNotes          string           `json:"teller_notes,omitempty"`
}

// DepositSlip is the DRID record. All mutation goes through the store's
// compare-and-swap; Version is the linearization point for every transition.
type DepositSlip struct {
	ID     id.SlipID `json:"id"`
	Code   string    `json:"drid"`
	Status Status    `json:"status"`

	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"` // immutable after creation
	ValidityMinutes int       `json:"validity_minutes"`

	Payload Payload `json:"payload"`
	Channel string  `json:"channel"` // WEB, MOBILE, WHATSAPP, KIOSK

	// First-claim ownership: set once on the first successful retrieval and
	// never transferred.
	RetrievedBy     string     `json:"retrieved_by,omitempty"`
	RetrievedBranch string     `json:"retrieved_branch,omitempty"`
	RetrievedAt     *time.Time `json:"retrieved_at,omitempty"`

	Verification Verification `json:"verification"`
	OTP          *OTP         `json:"otp,omitempty"`
	AuthorizedAt *time.Time   `json:"authorized_at,omitempty"`

	// AuthorizationCaptured is the explicit teller confirmation required
	// before completion.
	AuthorizationCaptured bool `json:"authorization_captured"`

	Completion *Completion `json:"completion,omitempty"`

	// Closure metadata for CANCELLED / REJECTED / EXPIRED.
	ClosedBy     string     `json:"closed_by,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	ClosedReason string     `json:"closed_reason,omitempty"`

	Version int64 `json:"version"`
}

// Expired reports whether the slip's validity window has lapsed, regardless
// of stored status.
func (s *DepositSlip) Expired(now time.Time) bool {
	return ttl.Expired(now, s.ExpiresAt)
}

// Remaining is the clamped time left before expiry.
func (s *DepositSlip) Remaining(now time.Time) time.Duration {
	return ttl.Remaining(now, s.ExpiresAt)
}

// ClaimedBy reports whether the given teller holds the claim on this slip.
func (s *DepositSlip) ClaimedBy(tellerID string) bool {
	return s.RetrievedBy != "" && s.RetrievedBy == tellerID
}

// Usable reports whether the slip can still move forward at the counter:
// non-terminal and unexpired.
func (s *DepositSlip) Usable(now time.Time) bool {
	return !s.Status.IsTerminal() && !s.Expired(now)
}

// Clone returns a deep copy so store reads never alias live records.
func (s *DepositSlip) Clone() *DepositSlip {
	clone := *s
	if s.Payload.Depositor != nil {
		d := *s.Payload.Depositor
		clone.Payload.Depositor = &d
	}
	if s.Payload.Cheque != nil {
		c := *s.Payload.Cheque
		clone.Payload.Cheque = &c
	}
	if s.Payload.Bill != nil {
		b := *s.Payload.Bill
		clone.Payload.Bill = &b
	}
	if s.Payload.Beneficiary != nil {
		b := *s.Payload.Beneficiary
		clone.Payload.Beneficiary = &b
	}
	if s.Verification.InstrumentVerified != nil {
		iv := *s.Verification.InstrumentVerified
		clone.Verification.InstrumentVerified = &iv
	}
	if s.Verification.VerifiedAt != nil {
		t := *s.Verification.VerifiedAt
		clone.Verification.VerifiedAt = &t
	}
	if s.RetrievedAt != nil {
		t := *s.RetrievedAt
		clone.RetrievedAt = &t
	}
	if s.AuthorizedAt != nil {
		t := *s.AuthorizedAt
		clone.AuthorizedAt = &t
	}
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		clone.ClosedAt = &t
	}
	if s.OTP != nil {
		otp := *s.OTP
		if s.OTP.VerifiedAt != nil {
			t := *s.OTP.VerifiedAt
			otp.VerifiedAt = &t
		}
		otp.CodeHash = append([]byte(nil), s.OTP.CodeHash...)
		clone.OTP = &otp
	}
	if s.Completion != nil {
		c := *s.Completion
		clone.Completion = &c
	}
	return &clone
}

// Sanitized strips the OTP secret material for API responses. The record a
// teller sees never includes the code hash.
func (s *DepositSlip) Sanitized() *DepositSlip {
	clone := s.Clone()
	if clone.OTP != nil {
		clone.OTP.CodeHash = nil
	}
	return clone
}
