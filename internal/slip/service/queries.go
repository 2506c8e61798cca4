package service

import (
	"context"
	"time"

	"slipdesk/internal/otp"
	"slipdesk/internal/slip/models"
	derrors "slipdesk/pkg/domain-errors"
	"slipdesk/pkg/requestcontext"
)

// StatusView is the customer-facing status probe. It carries no payload
// details beyond what the customer already knows, so the probe endpoint can
// stay unauthenticated.
type StatusView struct {
	DRID             string        `json:"drid"`
	Status           models.Status `json:"status"`
	ExpiresAt        time.Time     `json:"expires_at"`
	RemainingSeconds int64         `json:"remaining_seconds"`
	MaskedPhone      string        `json:"masked_phone"`
	ReceiptNumber    string        `json:"receipt_number,omitempty"`
}

// Status reports where a slip stands. Expiry is applied lazily, so a lapsed
// slip probes as EXPIRED even before the sweeper touches it.
func (s *Service) Status(ctx context.Context, code string) (*StatusView, error) {
	slip, err := s.load(ctx, code)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	view := &StatusView{
		DRID:             slip.Code,
		Status:           slip.Status,
		ExpiresAt:        slip.ExpiresAt,
		RemainingSeconds: int64(slip.Remaining(now).Seconds()),
		MaskedPhone:      otp.MaskPhone(slip.Payload.DepositorPhone()),
	}
	if slip.Completion != nil {
		view.ReceiptNumber = slip.Completion.ReceiptNumber
	}
	return view, nil
}

// Get returns the full slip record for the claiming teller. Unlike Retrieve
// it never claims; an unclaimed slip is visible to any teller for preview.
func (s *Service) Get(ctx context.Context, code string) (*models.DepositSlip, error) {
	tellerID := requestcontext.TellerID(ctx)

	slip, err := s.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if slip.RetrievedBy != "" && !slip.ClaimedBy(tellerID) && !slip.Status.IsTerminal() {
		return nil, derrors.New(derrors.CodeAlreadyClaimed, "slip is being served by another teller")
	}
	return slip.Sanitized(), nil
}

// Pending lists the in-progress slips claimed at the calling teller's
// branch, oldest first.
func (s *Service) Pending(ctx context.Context) ([]*models.DepositSlip, error) {
	branchID := requestcontext.BranchID(ctx)
	now := requestcontext.Now(ctx)

	slips, err := s.slips.ListPending(ctx, branchID)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "list pending")
	}
	out := make([]*models.DepositSlip, 0, len(slips))
	for _, slip := range slips {
		if slip.Expired(now) {
			// lapsed mid-queue; leave it for the sweeper
			continue
		}
		out = append(out, slip.Sanitized())
	}
	return out, nil
}
