package service

import (
	"context"
	"errors"
	"fmt"

	"slipdesk/internal/slip/models"
	derrors "slipdesk/pkg/domain-errors"
	"slipdesk/pkg/platform/audit"
	"slipdesk/pkg/requestcontext"
)

// Retrieve claims a slip for the calling teller. The first successful claim
// wins and is never transferred; the same teller retrieving again is an
// idempotent read, any other teller gets already_claimed.
func (s *Service) Retrieve(ctx context.Context, code string) (*models.DepositSlip, error) {
	tellerID := requestcontext.TellerID(ctx)
	branchID := requestcontext.BranchID(ctx)
	now := requestcontext.Now(ctx)

	slip, err := s.load(ctx, code)
	if err != nil {
		return nil, err
	}

	switch {
	case slip.Status == models.StatusExpired:
		return nil, derrors.New(derrors.CodeExpired, "slip has expired")
	case slip.Status.IsTerminal():
		return nil, derrors.Newf(derrors.CodeInvalidTransition, "slip is %s", slip.Status)
	case slip.Status != models.StatusCreated:
		if slip.ClaimedBy(tellerID) {
			return slip.Sanitized(), nil
		}
		return nil, derrors.New(derrors.CodeAlreadyClaimed, "slip is being served by another teller")
	}

	updated, err := s.withRetry(ctx, "retrieve", func() (*models.DepositSlip, error) {
		return s.slips.Execute(ctx, code, func(d *models.DepositSlip) error {
			if d.Expired(now) {
				return derrors.New(derrors.CodeExpired, "slip has expired")
			}
			switch {
			case d.Status == models.StatusCreated:
				d.Status = models.StatusRetrieved
				d.RetrievedBy = tellerID
				d.RetrievedBranch = branchID
				retrievedAt := now
				d.RetrievedAt = &retrievedAt
				return nil
			case d.ClaimedBy(tellerID) && !d.Status.IsTerminal():
				// lost the race to ourselves (double submit); keep as-is
				return errAlreadyMine
			case d.Status.IsTerminal():
				return derrors.Newf(derrors.CodeInvalidTransition, "slip is %s", d.Status)
			default:
				return derrors.New(derrors.CodeAlreadyClaimed, "slip is being served by another teller")
			}
		})
	})
	if errors.Is(err, errAlreadyMine) {
		// a parallel request from the same teller won; serve its result
		fresh, loadErr := s.load(ctx, code)
		if loadErr != nil {
			return nil, loadErr
		}
		return fresh.Sanitized(), nil
	}
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Transition(audit.ActionSlipRetrieved, code, tellerID,
		string(models.StatusCreated), string(models.StatusRetrieved), ""))
	s.logger.InfoContext(ctx, "slip retrieved", "drid", code, "teller", tellerID, "branch", branchID)
	return updated.Sanitized(), nil
}

var errAlreadyMine = fmt.Errorf("already claimed by caller")
