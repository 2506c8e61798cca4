// Package derrors defines the coded domain errors surfaced to callers.
//
// Stores report infrastructure facts via pkg/platform/sentinel; services
// translate those facts (plus their own guard failures) into a DomainError
// carrying a stable machine-readable code and a human-readable reason. The
// HTTP layer maps codes to status lines with ToHTTPStatus and never invents
// its own taxonomy.
package derrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable error kind. Codes are part of the API contract: clients
// branch on them, so renaming one is a breaking change.
type Code string

const (
	// Validation: malformed input or a failed precondition. Never mutates state.
	CodeValidationFailed    Code = "validation_failed"
	CodeChecklistIncomplete Code = "checklist_incomplete"
	CodeBadRequest          Code = "bad_request"

	// Concurrency: lost an optimistic race. Retryable after a fresh read.
	CodeConflict       Code = "conflict"
	CodeAlreadyClaimed Code = "already_claimed"

	// Temporal: terminal for the current attempt; restart the sub-flow.
	CodeExpired         Code = "expired"
	CodeOtpExpired      Code = "otp_expired"
	CodeNoActiveOtp     Code = "no_active_otp"
	CodeTooManyAttempts Code = "too_many_attempts"
	CodeRateLimited     Code = "rate_limited"

	// Workflow state.
	CodeInvalidTransition Code = "invalid_transition"
	CodeNotAuthorized     Code = "not_authorized"
	CodeCompletionFailed  Code = "completion_failed"

	// Access and plumbing.
	CodeNotFound     Code = "not_found"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeInternal     Code = "internal"
)

// DomainError pairs a Code with a reason safe to show to the caller.
type DomainError struct {
	Code    Code
	Message string
	wrapped error
}

func (e *DomainError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.wrapped }

// New builds a DomainError with the given code and message.
func New(code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Newf builds a DomainError with a formatted message.
func Newf(code Code, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is / errors.As.
func Wrap(err error, code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, wrapped: err}
}

// HasCode reports whether err (or anything it wraps) is a DomainError with
// the given code.
func HasCode(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// non-domain errors.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Retryable reports whether the caller may usefully retry the same request.
// Concurrency losses and completion failures are retryable; validation and
// temporal errors are not.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeConflict, CodeCompletionFailed:
		return true
	}
	return false
}

// ToHTTPStatus maps a code to its HTTP status line.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidationFailed, CodeChecklistIncomplete, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeNotAuthorized:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeAlreadyClaimed, CodeInvalidTransition:
		return http.StatusConflict
	case CodeExpired, CodeOtpExpired, CodeNoActiveOtp:
		return http.StatusGone
	case CodeTooManyAttempts, CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeCompletionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
