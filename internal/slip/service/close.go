package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"slipdesk/internal/adapters/notification"
	"slipdesk/internal/slip/models"
	"slipdesk/internal/slip/ttl"
	derrors "slipdesk/pkg/domain-errors"
	"slipdesk/pkg/platform/audit"
	"slipdesk/pkg/requestcontext"
)

var errAlreadyClosed = fmt.Errorf("slip already cancelled")

// Cancel closes a slip on the customer's request. Authorization comes from
// the cancel token minted at intake; the handler has already matched it to
// this code. Cancellation stays legal for a grace window past expiry so a
// customer can tidy up a slip they never used.
func (s *Service) Cancel(ctx context.Context, code, reason string) (*models.DepositSlip, error) {
	now := requestcontext.Now(ctx)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, derrors.New(derrors.CodeValidationFailed, "a cancellation reason is required")
	}

	updated, err := s.withRetry(ctx, "cancel", func() (*models.DepositSlip, error) {
		return s.slips.Execute(ctx, code, func(d *models.DepositSlip) error {
			if d.Status.IsTerminal() {
				if d.Status == models.StatusCancelled {
					return errAlreadyClosed
				}
				return derrors.Newf(derrors.CodeInvalidTransition, "slip is %s", d.Status)
			}
			if d.Expired(now) && !ttl.WithinGrace(now, d.ExpiresAt, s.cfg.CancelGrace) {
				return derrors.New(derrors.CodeExpired, "slip has expired")
			}
			if !d.Status.CanTransitionTo(models.StatusCancelled) {
				return derrors.Newf(derrors.CodeInvalidTransition, "cannot cancel a slip in %s", d.Status)
			}
			return s.close(d, models.StatusCancelled, "customer", reason, now)
		})
	})
	if errors.Is(err, errAlreadyClosed) {
		fresh, loadErr := s.load(ctx, code)
		if loadErr != nil {
			return nil, loadErr
		}
		return fresh.Sanitized(), nil
	}
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementSlipsClosed("cancelled")
	s.audit.Record(ctx, audit.Transition(audit.ActionSlipCancelled, code, "customer",
		"", string(models.StatusCancelled), reason))
	s.logger.InfoContext(ctx, "slip cancelled", "drid", code)

	s.notifyClosure(ctx, updated)
	return updated.Sanitized(), nil
}

// Reject closes a slip from the counter with a mandatory reason. Only the
// claiming teller may reject, and only while the slip is in progress.
func (s *Service) Reject(ctx context.Context, code, reason string) (*models.DepositSlip, error) {
	tellerID := requestcontext.TellerID(ctx)
	now := requestcontext.Now(ctx)

	if strings.TrimSpace(reason) == "" {
		return nil, derrors.New(derrors.CodeValidationFailed, "a rejection reason is required")
	}

	updated, err := s.withRetry(ctx, "reject", func() (*models.DepositSlip, error) {
		return s.slips.Execute(ctx, code, func(d *models.DepositSlip) error {
			if d.Status.IsTerminal() {
				return derrors.Newf(derrors.CodeInvalidTransition, "slip is %s", d.Status)
			}
			if d.Expired(now) && !ttl.WithinGrace(now, d.ExpiresAt, s.cfg.CancelGrace) {
				return derrors.New(derrors.CodeExpired, "slip has expired")
			}
			if !d.ClaimedBy(tellerID) {
				return derrors.New(derrors.CodeAlreadyClaimed, "slip is being served by another teller")
			}
			if !d.Status.CanTransitionTo(models.StatusRejected) {
				return derrors.Newf(derrors.CodeInvalidTransition, "cannot reject a slip in %s", d.Status)
			}
			return s.close(d, models.StatusRejected, tellerID, reason, now)
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementSlipsClosed("rejected")
	s.audit.Record(ctx, audit.Transition(audit.ActionSlipRejected, code, tellerID,
		"", string(models.StatusRejected), reason))
	s.logger.InfoContext(ctx, "slip rejected", "drid", code, "teller", tellerID, "reason", reason)

	s.notifyClosure(ctx, updated)
	return updated.Sanitized(), nil
}

func (s *Service) close(d *models.DepositSlip, status models.Status, actor, reason string, now time.Time) error {
	d.Status = status
	d.ClosedBy = actor
	closedAt := now
	d.ClosedAt = &closedAt
	d.ClosedReason = reason
	return nil
}

func (s *Service) notifyClosure(ctx context.Context, slip *models.DepositSlip) {
	err := s.notifier.Send(ctx, notification.Message{
		Kind:  notification.KindSlipCancelled,
		Phone: slip.Payload.DepositorPhone(),
		DRID:  slip.Code,
		Body:  "Your deposit reference " + slip.Code + " is now " + strings.ToLower(string(slip.Status)) + ".",
	})
	if err != nil {
		s.logger.WarnContext(ctx, "closure notification failed", "drid", slip.Code, "error", err)
	}
}
