package service

import (
	"context"
	"errors"

	"slipdesk/internal/adapters/notification"
	"slipdesk/internal/promoter"
	"slipdesk/internal/slip/models"
	derrors "slipdesk/pkg/domain-errors"
	"slipdesk/pkg/platform/audit"
	"slipdesk/pkg/platform/sentinel"
	"slipdesk/pkg/requestcontext"
)

// CompleteInput is the teller's completion confirmation.
type CompleteInput struct {
	// AuthorizationCaptured is the teller's explicit statement that the
	// customer authorized the deposit at the counter. Completion refuses
	// without it, regardless of the OTP outcome.
	AuthorizationCaptured bool
	TellerNotes           string
}

// Complete promotes an authorized slip into a posted transaction with a
// signed receipt. The promotion is exactly-once: a duplicate or concurrent
// completion returns the original transaction and receipt.
func (s *Service) Complete(ctx context.Context, code string, input CompleteInput) (*promoter.Outcome, error) {
	tellerID := requestcontext.TellerID(ctx)
	branchID := requestcontext.BranchID(ctx)
	now := requestcontext.Now(ctx)

	if !input.AuthorizationCaptured {
		return nil, derrors.New(derrors.CodeNotAuthorized, "customer authorization must be captured")
	}

	slip, err := s.load(ctx, code)
	if err != nil {
		return nil, err
	}
	// A completed slip replays for anyone at the branch; everything still in
	// flight stays with the claiming teller.
	if slip.Status != models.StatusCompleted && !slip.ClaimedBy(tellerID) {
		return nil, derrors.New(derrors.CodeAlreadyClaimed, "slip is being served by another teller")
	}

	outcome, err := s.promoter.Promote(ctx, promoter.Request{
		Code:        code,
		TellerID:    tellerID,
		Branch:      branchID,
		Captured:    input.AuthorizationCaptured,
		TellerNotes: input.TellerNotes,
		Now:         now,
	})
	if err != nil {
		return nil, translateCompletionErr(err)
	}

	if !outcome.Replayed {
		s.metrics.IncrementSlipsCompleted()
		s.metrics.IncrementSlipsClosed("completed")
		s.audit.Record(ctx, audit.Transition(audit.ActionSlipCompleted, code, tellerID,
			string(models.StatusAuthorized), string(models.StatusCompleted), ""))
		s.logger.InfoContext(ctx, "slip completed",
			"drid", code,
			"teller", tellerID,
			"transaction", outcome.Transaction.Reference,
			"receipt", outcome.Receipt.Number,
		)

		notifyErr := s.notifier.Send(ctx, notification.Message{
			Kind:  notification.KindReceipt,
			Phone: outcome.Slip.Payload.DepositorPhone(),
			DRID:  code,
			Body:  "Your deposit is complete. Receipt " + outcome.Receipt.Number + ".",
		})
		if notifyErr != nil {
			s.logger.WarnContext(ctx, "receipt notification failed", "drid", code, "error", notifyErr)
		}
	}
	outcome.Slip = outcome.Slip.Sanitized()
	return outcome, nil
}

// Receipt fetches a posted receipt by its public number and re-verifies its
// signature, so the counter can authenticate a reprint or a customer copy.
func (s *Service) Receipt(ctx context.Context, number string) (*promoter.ReceiptCheck, error) {
	check, err := s.promoter.CheckReceipt(ctx, number)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, derrors.New(derrors.CodeNotFound, "unknown receipt number")
	case errors.Is(err, sentinel.ErrUnavailable):
		return nil, derrors.Wrap(err, derrors.CodeInternal, "receipt verification unavailable")
	case err != nil:
		return nil, derrors.Wrap(err, derrors.CodeInternal, "load receipt")
	}
	if !check.Authentic {
		s.logger.WarnContext(ctx, "receipt failed signature verification",
			"receipt", number,
			"drid", check.Receipt.DRID,
		)
	}
	return check, nil
}

func translateCompletionErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return derrors.New(derrors.CodeNotFound, "unknown reference code")
	case errors.Is(err, sentinel.ErrExpired):
		return derrors.New(derrors.CodeExpired, "slip has expired")
	case errors.Is(err, sentinel.ErrInvalidState):
		return derrors.Wrap(err, derrors.CodeNotAuthorized, "slip is not authorized for completion")
	case errors.Is(err, sentinel.ErrUnavailable):
		return derrors.Wrap(err, derrors.CodeCompletionFailed, "receipt signing unavailable, slip remains authorized")
	case errors.Is(err, sentinel.ErrConflict):
		return derrors.Wrap(err, derrors.CodeConflict, "concurrent completion, please retry")
	default:
		return derrors.Wrap(err, derrors.CodeInternal, "complete slip")
	}
}
