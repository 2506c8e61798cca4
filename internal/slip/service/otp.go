package service

import (
	"context"
	"time"

	"slipdesk/internal/adapters/notification"
	"slipdesk/internal/otp"
	"slipdesk/internal/slip/models"
	derrors "slipdesk/pkg/domain-errors"
	"slipdesk/pkg/platform/audit"
	"slipdesk/pkg/requestcontext"
)

// IssueOTPResult tells the teller where the code went and how long the
// customer has. The code itself never appears in a response.
type IssueOTPResult struct {
	MaskedPhone string
	ExpiresAt   time.Time
	MaxAttempts int
	// DeliveryFailed means the send did not go through; the code stands and
	// the teller can re-issue.
	DeliveryFailed bool
}

// IssueOTP generates and delivers a fresh authorization code for a verified
// slip. Re-issuing supersedes the previous code and resets the attempt
// budget; only the latest code is ever accepted.
func (s *Service) IssueOTP(ctx context.Context, code string) (*IssueOTPResult, error) {
	tellerID := requestcontext.TellerID(ctx)
	now := requestcontext.Now(ctx)

	if _, err := s.load(ctx, code); err != nil {
		return nil, err
	}

	record, plaintext, err := s.issuer.Issue(now)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "issue otp")
	}

	var phone string
	updated, err := s.withRetry(ctx, "otp_issue", func() (*models.DepositSlip, error) {
		return s.slips.Execute(ctx, code, func(d *models.DepositSlip) error {
			if err := s.guardCounterAction(d, tellerID, now); err != nil {
				return err
			}
			if d.Status != models.StatusVerified {
				return derrors.Newf(derrors.CodeInvalidTransition, "cannot issue OTP for a slip in %s", d.Status)
			}
			phone = d.Payload.DepositorPhone()
			d.OTP = record
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementOTPIssued()
	s.audit.Record(ctx, audit.Transition(audit.ActionOTPIssued, code, tellerID,
		string(updated.Status), string(updated.Status), ""))

	notifyErr := s.notifier.Send(ctx, notification.Message{
		Kind:  notification.KindOTP,
		Phone: phone,
		DRID:  code,
		Body:  "Your deposit authorization code is " + plaintext + ". It expires in " + s.cfg.OTPTTL.String() + ".",
	})
	if notifyErr != nil {
		s.logger.WarnContext(ctx, "otp delivery failed", "drid", code, "error", notifyErr)
	}

	return &IssueOTPResult{
		MaskedPhone:    otp.MaskPhone(phone),
		ExpiresAt:      record.ExpiresAt,
		MaxAttempts:    record.MaxAttempts,
		DeliveryFailed: notifyErr != nil,
	}, nil
}

// VerifyOTP checks the submitted code and, on success, moves the slip from
// VERIFIED to AUTHORIZED in the same commit. Failed attempts are committed
// too, so the attempt budget survives process restarts and races.
func (s *Service) VerifyOTP(ctx context.Context, code, submitted string) (*models.DepositSlip, error) {
	tellerID := requestcontext.TellerID(ctx)
	now := requestcontext.Now(ctx)

	if _, err := s.load(ctx, code); err != nil {
		return nil, err
	}

	var checkErr error
	var lockedNow bool
	updated, err := s.withRetry(ctx, "otp_verify", func() (*models.DepositSlip, error) {
		checkErr = nil
		lockedNow = false
		return s.slips.Execute(ctx, code, func(d *models.DepositSlip) error {
			if err := s.guardCounterAction(d, tellerID, now); err != nil {
				return err
			}
			if d.Status != models.StatusVerified {
				return derrors.Newf(derrors.CodeInvalidTransition, "cannot authorize a slip in %s", d.Status)
			}

			wasLocked := d.OTP.Locked()
			checkErr = s.issuer.Check(d.OTP, submitted, now)
			if checkErr != nil {
				lockedNow = !wasLocked && d.OTP.Locked()
				// commit the burned attempt, abort anything else
				if derrors.HasCode(checkErr, derrors.CodeValidationFailed) ||
					derrors.HasCode(checkErr, derrors.CodeTooManyAttempts) {
					return nil
				}
				return checkErr
			}

			d.Status = models.StatusAuthorized
			authorizedAt := now
			d.AuthorizedAt = &authorizedAt
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if checkErr != nil {
		s.metrics.IncrementOTPVerifyFailures()
		if lockedNow {
			s.audit.Record(ctx, audit.Transition(audit.ActionOTPLocked, code, tellerID,
				string(models.StatusVerified), string(models.StatusVerified), "attempt budget exhausted"))
		}
		return nil, checkErr
	}

	s.audit.Record(ctx, audit.Transition(audit.ActionOTPVerified, code, tellerID,
		string(models.StatusVerified), string(models.StatusAuthorized), ""))
	s.logger.InfoContext(ctx, "slip authorized", "drid", code, "teller", tellerID)
	return updated.Sanitized(), nil
}
