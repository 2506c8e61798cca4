package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"slipdesk/internal/adapters/notification"
	"slipdesk/internal/slip/models"
	"slipdesk/internal/slip/ttl"
	id "slipdesk/pkg/domain"
	derrors "slipdesk/pkg/domain-errors"
	"slipdesk/pkg/platform/audit"
	"slipdesk/pkg/platform/sentinel"
	"slipdesk/pkg/requestcontext"
)

// CreateSlipInput is the customer intake request.
type CreateSlipInput struct {
	Payload models.Payload
	Channel string
}

// CreateSlipResult carries everything the customer needs to walk into a
// branch: the code, its validity window, the cancel token and a scannable
// presentation aid.
type CreateSlipResult struct {
	Slip *models.DepositSlip
	// CancelToken authorizes customer-side cancellation of this slip only.
	CancelToken string
	// PresentationCode is a base64 JSON blob apps render as a QR code so
	// the counter can scan rather than type the reference.
	PresentationCode string
	// NotificationFailed signals that the confirmation message did not go
	// out. The slip is live regardless.
	NotificationFailed bool
}

var validChannels = map[string]bool{
	"WEB": true, "MOBILE": true, "WHATSAPP": true, "KIOSK": true,
}

// Create validates the payload and mints a new slip in CREATED. Intake is
// rate limited per customer CNIC, and a customer cannot hold two live slips
// for the same account and transaction type.
func (s *Service) Create(ctx context.Context, input CreateSlipInput) (*CreateSlipResult, error) {
	now := requestcontext.Now(ctx)

	channel := strings.ToUpper(strings.TrimSpace(input.Channel))
	if channel == "" {
		channel = "WEB"
	}
	if !validChannels[channel] {
		return nil, derrors.Newf(derrors.CodeValidationFailed, "unknown channel %q", input.Channel)
	}
	if err := input.Payload.Validate(); err != nil {
		return nil, err
	}

	limit, err := s.limiter.Allow(ctx, input.Payload.CustomerCNIC, now)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "rate limit check")
	}
	if !limit.Allowed {
		s.audit.Record(ctx, audit.Event{
			Action: audit.ActionRateLimited,
			Actor:  "customer",
			Reason: "intake limit reached",
		})
		return nil, derrors.Newf(derrors.CodeRateLimited,
			"too many slips requested, retry after %s", limit.RetryAt.Format(time.RFC3339))
	}

	if existing, err := s.slips.FindActiveByAccount(ctx, input.Payload.CustomerAccount, input.Payload.Type); err == nil {
		if !existing.Expired(now) {
			return nil, derrors.Newf(derrors.CodeConflict,
				"an active slip %s already exists for this account and type", existing.Code)
		}
		// lapsed but unswept; let it fall to EXPIRED and continue
		if _, err := s.expire(ctx, existing, "validity window lapsed"); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "duplicate slip check")
	}

	slip := s.newSlip(input, channel, now)

	// Code collisions are possible in principle; one retry with a fresh
	// suffix covers them.
	err = s.slips.Create(ctx, slip)
	if errors.Is(err, sentinel.ErrConflict) {
		slip.Code = NewSlipCode(now)
		err = s.slips.Create(ctx, slip)
	}
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "persist slip")
	}

	cancelToken, err := s.tokens.GenerateCancelToken(slip.Code, slip.ExpiresAt)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "mint cancel token")
	}

	s.metrics.IncrementSlipsCreated()
	s.audit.Record(ctx, audit.Transition(audit.ActionSlipCreated, slip.Code, "customer", "", string(models.StatusCreated), ""))
	s.logger.InfoContext(ctx, "slip created",
		"drid", slip.Code,
		"type", string(slip.Payload.Type),
		"channel", channel,
		"expires_at", slip.ExpiresAt,
	)

	notifyErr := s.notifier.Send(ctx, notification.Message{
		Kind:  notification.KindSlipCreated,
		Phone: slip.Payload.DepositorPhone(),
		DRID:  slip.Code,
		Body:  "Your deposit reference " + slip.Code + " is valid until " + slip.ExpiresAt.Format("15:04") + ".",
	})
	if notifyErr != nil {
		s.logger.WarnContext(ctx, "intake notification failed", "drid", slip.Code, "error", notifyErr)
	}

	return &CreateSlipResult{
		Slip:               slip.Sanitized(),
		CancelToken:        cancelToken,
		PresentationCode:   presentationCode(slip),
		NotificationFailed: notifyErr != nil,
	}, nil
}

func (s *Service) newSlip(input CreateSlipInput, channel string, now time.Time) *models.DepositSlip {
	return &models.DepositSlip{
		ID:              id.NewSlipID(),
		Code:            NewSlipCode(now),
		Status:          models.StatusCreated,
		CreatedAt:       now,
		ExpiresAt:       ttl.ExpiresAt(now, s.cfg.SlipValidity),
		ValidityMinutes: int(s.cfg.SlipValidity.Minutes()),
		Payload:         input.Payload,
		Channel:         channel,
	}
}

// presentationCode packs the fields a counter scanner needs. Presentation
// only; the server never trusts its contents.
func presentationCode(slip *models.DepositSlip) string {
	blob, err := json.Marshal(map[string]any{
		"drid":       slip.Code,
		"type":       slip.Payload.Type,
		"amount":     slip.Payload.Amount,
		"currency":   slip.Payload.Currency,
		"expires_at": slip.ExpiresAt.Format(time.RFC3339),
	})
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(blob)
}
