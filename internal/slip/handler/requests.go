package handler

import (
	"strings"

	"slipdesk/internal/slip/models"
	"slipdesk/internal/slip/service"
	dErrors "slipdesk/pkg/domain-errors"
)

// CreateSlipRequest is the HTTP request body for POST /slips. The payload
// fields are flattened into the body alongside the delivery channel.
type CreateSlipRequest struct {
	models.Payload
	Channel string `json:"channel"`
}

// Validate trims the identity fields and runs the per-type payload checks,
// so a malformed slip fails before it reaches the service.
func (r *CreateSlipRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.CustomerCNIC = strings.TrimSpace(r.CustomerCNIC)
	r.CustomerAccount = strings.TrimSpace(r.CustomerAccount)
	r.CustomerPhone = strings.TrimSpace(r.CustomerPhone)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	return r.Payload.Validate()
}

// Input converts the request to the service intake shape.
func (r *CreateSlipRequest) Input() service.CreateSlipInput {
	return service.CreateSlipInput{Payload: r.Payload, Channel: r.Channel}
}

// VerifyRequest is the HTTP request body for POST /teller/slips/{drid}/verify.
type VerifyRequest struct {
	AmountConfirmed    bool            `json:"amount_confirmed"`
	IdentityVerified   bool            `json:"identity_verified"`
	InstrumentVerified *bool           `json:"instrument_verified,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	PayloadEdits       *models.Payload `json:"payload_edits,omitempty"`
}

func (r *VerifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Notes) > 500 {
		return dErrors.New(dErrors.CodeValidationFailed, "notes must be at most 500 characters")
	}
	return nil
}

// Input converts the request to the service verification shape.
func (r *VerifyRequest) Input() service.VerifyInput {
	return service.VerifyInput{
		AmountConfirmed:    r.AmountConfirmed,
		IdentityVerified:   r.IdentityVerified,
		InstrumentVerified: r.InstrumentVerified,
		Notes:              r.Notes,
		PayloadEdits:       r.PayloadEdits,
	}
}

// VerifyOTPRequest is the HTTP request body for POST /teller/slips/{drid}/otp/verify.
type VerifyOTPRequest struct {
	Code string `json:"code"`
}

func (r *VerifyOTPRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Code = strings.TrimSpace(r.Code)
	if r.Code == "" {
		return dErrors.New(dErrors.CodeValidationFailed, "code is required")
	}
	if len(r.Code) > 10 {
		return dErrors.New(dErrors.CodeValidationFailed, "code must be at most 10 digits")
	}
	return nil
}

// CompleteRequest is the HTTP request body for POST /teller/slips/{drid}/complete.
// The capture flag is the teller's explicit confirmation that the customer
// authorized the deposit; completion refuses without it.
type CompleteRequest struct {
	AuthorizationCaptured bool   `json:"authorization_captured"`
	TellerNotes           string `json:"teller_notes,omitempty"`
}

func (r *CompleteRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.TellerNotes = strings.TrimSpace(r.TellerNotes)
	if len(r.TellerNotes) > 500 {
		return dErrors.New(dErrors.CodeValidationFailed, "teller notes must be at most 500 characters")
	}
	return nil
}

// Input converts the request to the service completion shape.
func (r *CompleteRequest) Input() service.CompleteInput {
	return service.CompleteInput{
		AuthorizationCaptured: r.AuthorizationCaptured,
		TellerNotes:           r.TellerNotes,
	}
}

// RejectRequest is the HTTP request body for POST /teller/slips/{drid}/reject.
type RejectRequest struct {
	Reason string `json:"reason"`
}

func (r *RejectRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidationFailed, "a rejection reason is required")
	}
	if len(r.Reason) > 500 {
		return dErrors.New(dErrors.CodeValidationFailed, "reason must be at most 500 characters")
	}
	return nil
}

// CancelRequest is the HTTP request body for POST /slips/{drid}/cancel.
type CancelRequest struct {
	Reason string `json:"reason"`
}

func (r *CancelRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidationFailed, "a cancellation reason is required")
	}
	if len(r.Reason) > 500 {
		return dErrors.New(dErrors.CodeValidationFailed, "reason must be at most 500 characters")
	}
	return nil
}
