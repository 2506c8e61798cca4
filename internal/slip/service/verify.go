package service

import (
	"context"
	"reflect"

	"slipdesk/internal/slip/models"
	derrors "slipdesk/pkg/domain-errors"
	"slipdesk/pkg/platform/audit"
	"slipdesk/pkg/requestcontext"
)

// VerifyInput is the teller's counter checklist, with optional corrections
// to the payload as presented.
type VerifyInput struct {
	AmountConfirmed    bool
	IdentityVerified   bool
	InstrumentVerified *bool
	Notes              string

	// PayloadEdits, when set, replaces the captured payload after the same
	// validation intake runs. Edits are audit-logged.
	PayloadEdits *models.Payload
}

// Verify moves a claimed slip to VERIFIED once the checklist for its
// transaction type is complete. Only the claiming teller may verify.
func (s *Service) Verify(ctx context.Context, code string, input VerifyInput) (*models.DepositSlip, error) {
	tellerID := requestcontext.TellerID(ctx)
	now := requestcontext.Now(ctx)

	if _, err := s.load(ctx, code); err != nil {
		return nil, err
	}
	if input.PayloadEdits != nil {
		if err := input.PayloadEdits.Validate(); err != nil {
			return nil, err
		}
	}

	var edited bool
	updated, err := s.withRetry(ctx, "verify", func() (*models.DepositSlip, error) {
		return s.slips.Execute(ctx, code, func(d *models.DepositSlip) error {
			if err := s.guardCounterAction(d, tellerID, now); err != nil {
				return err
			}
			if d.Status != models.StatusRetrieved {
				return derrors.Newf(derrors.CodeInvalidTransition, "cannot verify a slip in %s", d.Status)
			}

			if input.PayloadEdits != nil {
				edited = !reflect.DeepEqual(d.Payload, *input.PayloadEdits)
				d.Payload = *input.PayloadEdits
			}

			verification := models.Verification{
				AmountConfirmed:    input.AmountConfirmed,
				IdentityVerified:   input.IdentityVerified,
				InstrumentVerified: input.InstrumentVerified,
				Notes:              input.Notes,
				VerifiedBy:         tellerID,
			}
			if !verification.Complete(d.Payload.Type) {
				return derrors.New(derrors.CodeChecklistIncomplete, "verification checklist is incomplete for this transaction type")
			}
			verifiedAt := now
			verification.VerifiedAt = &verifiedAt
			d.Verification = verification
			d.Status = models.StatusVerified
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if edited {
		s.audit.Record(ctx, audit.Transition(audit.ActionPayloadEdited, code, tellerID,
			string(models.StatusRetrieved), string(models.StatusRetrieved), "teller corrected payload at counter"))
	}
	s.audit.Record(ctx, audit.Transition(audit.ActionSlipVerified, code, tellerID,
		string(models.StatusRetrieved), string(models.StatusVerified), ""))
	s.logger.InfoContext(ctx, "slip verified", "drid", code, "teller", tellerID, "payload_edited", edited)
	return updated.Sanitized(), nil
}
