package handler

import (
	"time"

	"slipdesk/internal/promoter"
	"slipdesk/internal/slip/models"
	"slipdesk/internal/slip/service"
	txnmodels "slipdesk/internal/txn/models"
)

// SlipResponse is the API projection of a deposit slip. OTP material never
// appears here; the service strips it before the slip reaches this layer.
type SlipResponse struct {
	DRID            string              `json:"drid"`
	Status          models.Status       `json:"status"`
	Payload         models.Payload      `json:"payload"`
	Channel         string              `json:"channel"`
	CreatedAt       time.Time           `json:"created_at"`
	ExpiresAt       time.Time           `json:"expires_at"`
	ValidityMinutes int                 `json:"validity_minutes"`
	RetrievedBy     string              `json:"retrieved_by,omitempty"`
	RetrievedBranch string              `json:"retrieved_branch,omitempty"`
	RetrievedAt     *time.Time          `json:"retrieved_at,omitempty"`
	AuthorizedAt    *time.Time          `json:"authorized_at,omitempty"`
	Verification    models.Verification `json:"verification"`
	Completion      *models.Completion  `json:"completion,omitempty"`
	ClosedBy        string              `json:"closed_by,omitempty"`
	ClosedAt        *time.Time          `json:"closed_at,omitempty"`
	ClosedReason    string              `json:"closed_reason,omitempty"`
}

// FromSlip converts a domain slip to its API projection.
func FromSlip(slip *models.DepositSlip) *SlipResponse {
	return &SlipResponse{
		DRID:            slip.Code,
		Status:          slip.Status,
		Payload:         slip.Payload,
		Channel:         slip.Channel,
		CreatedAt:       slip.CreatedAt,
		ExpiresAt:       slip.ExpiresAt,
		ValidityMinutes: slip.ValidityMinutes,
		RetrievedBy:     slip.RetrievedBy,
		RetrievedBranch: slip.RetrievedBranch,
		RetrievedAt:     slip.RetrievedAt,
		AuthorizedAt:    slip.AuthorizedAt,
		Verification:    slip.Verification,
		Completion:      slip.Completion,
		ClosedBy:        slip.ClosedBy,
		ClosedAt:        slip.ClosedAt,
		ClosedReason:    slip.ClosedReason,
	}
}

// CreateSlipResponse is the HTTP response for POST /slips. The cancel token
// is shown exactly once, at intake.
type CreateSlipResponse struct {
	Slip             *SlipResponse `json:"slip"`
	CancelToken      string        `json:"cancel_token"`
	PresentationCode string        `json:"presentation_code"`
	// NotificationFailed warns the client that the confirmation message did
	// not go out; the slip itself stands.
	NotificationFailed bool `json:"notification_failed,omitempty"`
}

// FromCreateResult converts the intake result to an HTTP response.
func FromCreateResult(result *service.CreateSlipResult) *CreateSlipResponse {
	return &CreateSlipResponse{
		Slip:               FromSlip(result.Slip),
		CancelToken:        result.CancelToken,
		PresentationCode:   result.PresentationCode,
		NotificationFailed: result.NotificationFailed,
	}
}

// IssueOTPResponse is the HTTP response for POST /teller/slips/{drid}/otp.
// The code itself goes to the customer's phone, never to the teller.
type IssueOTPResponse struct {
	MaskedPhone    string    `json:"masked_phone"`
	ExpiresAt      time.Time `json:"expires_at"`
	MaxAttempts    int       `json:"max_attempts"`
	DeliveryFailed bool      `json:"delivery_failed,omitempty"`
}

// TransactionResponse is the ledger side of a completed slip.
type TransactionResponse struct {
	Reference     string    `json:"reference"`
	Type          string    `json:"type"`
	AccountNumber string    `json:"account_number"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Branch        string    `json:"branch"`
	TellerID      string    `json:"teller_id"`
	PostedAt      time.Time `json:"posted_at"`
}

// ReceiptResponse is the customer-facing proof of completion.
type ReceiptResponse struct {
	Number        string    `json:"number"`
	DRID          string    `json:"drid"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	AccountMasked string    `json:"account_masked"`
	Branch        string    `json:"branch"`
	IssuedAt      time.Time `json:"issued_at"`
	Signature     string    `json:"signature"`
	SignatureAlg  string    `json:"signature_alg"`
}

// CompleteResponse is the HTTP response for POST /teller/slips/{drid}/complete.
type CompleteResponse struct {
	Slip        *SlipResponse        `json:"slip"`
	Transaction *TransactionResponse `json:"transaction"`
	Receipt     *ReceiptResponse     `json:"receipt"`
	// Replayed marks an idempotent completion: the transaction was posted
	// by an earlier call and is returned unchanged.
	Replayed bool `json:"replayed,omitempty"`
}

// FromOutcome converts a promotion outcome to an HTTP response.
func FromOutcome(outcome *promoter.Outcome) *CompleteResponse {
	return &CompleteResponse{
		Slip:        FromSlip(outcome.Slip),
		Transaction: fromTransaction(outcome.Transaction),
		Receipt:     fromReceipt(outcome.Receipt),
		Replayed:    outcome.Replayed,
	}
}

func fromTransaction(t *txnmodels.Transaction) *TransactionResponse {
	return &TransactionResponse{
		Reference:     t.Reference,
		Type:          string(t.Type),
		AccountNumber: t.AccountNumber,
		Amount:        t.Amount,
		Currency:      t.Currency,
		Branch:        t.Branch,
		TellerID:      t.TellerID,
		PostedAt:      t.PostedAt,
	}
}

// ReceiptCheckResponse is the HTTP response for GET /teller/receipts/{number}.
type ReceiptCheckResponse struct {
	Receipt     *ReceiptResponse     `json:"receipt"`
	Transaction *TransactionResponse `json:"transaction"`
	// Authentic reports whether the stored signature verifies against the
	// canonical receipt fields.
	Authentic bool `json:"authentic"`
}

// FromReceiptCheck converts a verified receipt lookup to an HTTP response.
func FromReceiptCheck(check *promoter.ReceiptCheck) *ReceiptCheckResponse {
	return &ReceiptCheckResponse{
		Receipt:     fromReceipt(check.Receipt),
		Transaction: fromTransaction(check.Transaction),
		Authentic:   check.Authentic,
	}
}

func fromReceipt(r *txnmodels.Receipt) *ReceiptResponse {
	return &ReceiptResponse{
		Number:        r.Number,
		DRID:          r.DRID,
		Amount:        r.Amount,
		Currency:      r.Currency,
		AccountMasked: r.AccountMasked,
		Branch:        r.Branch,
		IssuedAt:      r.IssuedAt,
		Signature:     r.Signature,
		SignatureAlg:  r.SignatureAlg,
	}
}

// PendingResponse is the HTTP response for GET /teller/slips/pending.
type PendingResponse struct {
	Slips []*SlipResponse `json:"slips"`
}

// FromSlips converts a pending queue to its API projection.
func FromSlips(slips []*models.DepositSlip) *PendingResponse {
	out := make([]*SlipResponse, 0, len(slips))
	for _, slip := range slips {
		out = append(out, FromSlip(slip))
	}
	return &PendingResponse{Slips: out}
}
