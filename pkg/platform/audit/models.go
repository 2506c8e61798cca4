package audit

import "time"

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// Slip closures and completions are the branch's evidence trail, so they
	// require long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring:
	// OTP lockouts, claim disputes, rate limiting.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from the slip workflow on every committed state change.
// Keep it transport-agnostic so stores and sinks can fan out.
//
// Entries are written after the transition they describe commits, never
// before, so a store rollback can not leave an orphaned audit entry for a
// transition that never happened.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	// DRID is the human-presentable reference code of the slip.
	DRID   string `json:"drid"`
	Action Action `json:"action"`
	// Actor is the teller ID for counter actions, "customer" for intake and
	// cancellation, or "sweeper" for autonomous expiry.
	Actor        string `json:"actor"`
	StatusBefore string `json:"status_before,omitempty"`
	StatusAfter  string `json:"status_after,omitempty"`
	Reason       string `json:"reason,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
}

// Action names a committed workflow event.
type Action string

const (
	ActionSlipCreated   Action = "slip_created"
	ActionSlipRetrieved Action = "slip_retrieved"
	ActionSlipVerified  Action = "slip_verified"
	ActionPayloadEdited Action = "payload_edited"
	ActionOTPIssued     Action = "otp_issued"
	ActionOTPVerified   Action = "otp_verified"
	ActionOTPLocked     Action = "otp_locked"
	ActionSlipCompleted Action = "slip_completed"
	ActionSlipCancelled Action = "slip_cancelled"
	ActionSlipRejected  Action = "slip_rejected"
	ActionSlipExpired   Action = "slip_expired"
	ActionRateLimited   Action = "rate_limited"
)

// actionCategories maps each action to its category.
var actionCategories = map[Action]EventCategory{
	ActionSlipCreated:   CategoryOperations,
	ActionSlipRetrieved: CategoryOperations,
	ActionSlipVerified:  CategoryCompliance,
	ActionPayloadEdited: CategoryCompliance,
	ActionOTPIssued:     CategoryOperations,
	ActionOTPVerified:   CategorySecurity,
	ActionOTPLocked:     CategorySecurity,
	ActionSlipCompleted: CategoryCompliance,
	ActionSlipCancelled: CategoryCompliance,
	ActionSlipRejected:  CategoryCompliance,
	ActionSlipExpired:   CategoryOperations,
	ActionRateLimited:   CategorySecurity,
}

// CategoryFor returns the category an action belongs to, defaulting to
// operations for unknown actions.
func CategoryFor(action Action) EventCategory {
	if c, ok := actionCategories[action]; ok {
		return c
	}
	return CategoryOperations
}
