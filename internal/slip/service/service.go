// Package service implements the deposit slip workflow: intake, retrieval,
// verification, OTP authorization, completion and closure. Every transition
// is validated and committed through the store's compare-and-swap, and every
// committed transition emits an audit event.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jaevor/go-nanoid"

	"slipdesk/internal/adapters/notification"
	"slipdesk/internal/otp"
	"slipdesk/internal/platform/config"
	"slipdesk/internal/platform/metrics"
	"slipdesk/internal/promoter"
	"slipdesk/internal/ratelimit"
	"slipdesk/internal/slip/models"
	"slipdesk/internal/slip/store"
	derrors "slipdesk/pkg/domain-errors"
	"slipdesk/pkg/platform/audit"
	"slipdesk/pkg/platform/sentinel"
	"slipdesk/pkg/requestcontext"
)

// TokenMinter issues the customer-held cancellation token bound to a slip.
type TokenMinter interface {
	GenerateCancelToken(drid string, expiresAt time.Time) (string, error)
}

// Crockford-style alphabet shared with transaction references; excludes
// glyphs customers misread over the counter.
const codeAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var newCodeSuffix = mustGenerator(6)

func mustGenerator(length int) func() string {
	gen, err := nanoid.CustomASCII(codeAlphabet, length)
	if err != nil {
		panic(err)
	}
	return gen
}

// NewSlipCode mints a DRID-YYYYMMDD-XXXXXX reference code.
func NewSlipCode(now time.Time) string {
	return "DRID-" + now.Format("20060102") + "-" + newCodeSuffix()
}

type Service struct {
	cfg      config.Server
	logger   *slog.Logger
	slips    store.Store
	issuer   *otp.Issuer
	notifier notification.Notifier
	tokens   TokenMinter
	limiter  ratelimit.Limiter
	promoter *promoter.Promoter
	metrics  *metrics.Metrics
	audit    *audit.Recorder
}

func New(
	cfg config.Server,
	logger *slog.Logger,
	slips store.Store,
	issuer *otp.Issuer,
	notifier notification.Notifier,
	tokens TokenMinter,
	limiter ratelimit.Limiter,
	prom *promoter.Promoter,
	m *metrics.Metrics,
	recorder *audit.Recorder,
) *Service {
	return &Service{
		cfg:      cfg,
		logger:   logger,
		slips:    slips,
		issuer:   issuer,
		notifier: notifier,
		tokens:   tokens,
		limiter:  limiter,
		promoter: prom,
		metrics:  m,
		audit:    recorder,
	}
}

// withRetry reruns fn on optimistic conflicts up to the configured budget.
// Every other error passes through untouched.
func (s *Service) withRetry(ctx context.Context, op string, fn func() (*models.DepositSlip, error)) (*models.DepositSlip, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.CASRetries; attempt++ {
		slip, err := fn()
		if !errors.Is(err, sentinel.ErrConflict) {
			return slip, err
		}
		s.metrics.IncrementVersionConflicts(op)
		lastErr = err
	}
	s.logger.WarnContext(ctx, "retry budget exhausted", "operation", op, "error", lastErr)
	return nil, derrors.Wrap(lastErr, derrors.CodeConflict, "concurrent update, please retry")
}

// guardCounterAction enforces the shared preconditions of every teller
// action inside a mutate callback: unexpired, non-terminal and claimed by
// the caller.
func (s *Service) guardCounterAction(d *models.DepositSlip, tellerID string, now time.Time) error {
	if d.Status == models.StatusExpired || (!d.Status.IsTerminal() && d.Expired(now)) {
		return derrors.New(derrors.CodeExpired, "slip has expired")
	}
	if d.Status.IsTerminal() {
		return derrors.Newf(derrors.CodeInvalidTransition, "slip is %s", d.Status)
	}
	if !d.ClaimedBy(tellerID) {
		return derrors.New(derrors.CodeAlreadyClaimed, "slip is being served by another teller")
	}
	return nil
}

// load fetches a slip and lazily expires it when the validity window has
// lapsed. Reads observe expiry even if the sweeper has not run yet.
func (s *Service) load(ctx context.Context, code string) (*models.DepositSlip, error) {
	slip, err := s.slips.FindByCode(ctx, code)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, derrors.New(derrors.CodeNotFound, "unknown reference code")
	}
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "load slip")
	}
	now := requestcontext.Now(ctx)
	if !slip.Status.IsTerminal() && slip.Expired(now) {
		return s.expire(ctx, slip, "validity window lapsed")
	}
	return slip, nil
}

// expire commits the lapsed slip to EXPIRED. A lost race means someone else
// already closed it, which is just as final; the fresh read wins either way.
func (s *Service) expire(ctx context.Context, slip *models.DepositSlip, reason string) (*models.DepositSlip, error) {
	now := requestcontext.Now(ctx)
	before := slip.Status
	updated, err := s.slips.Execute(ctx, slip.Code, func(d *models.DepositSlip) error {
		if d.Status.IsTerminal() {
			return nil
		}
		if !d.Expired(now) {
			return nil
		}
		d.Status = models.StatusExpired
		d.ClosedBy = "system"
		closedAt := now
		d.ClosedAt = &closedAt
		d.ClosedReason = reason
		return nil
	})
	if errors.Is(err, sentinel.ErrConflict) {
		fresh, findErr := s.slips.FindByCode(ctx, slip.Code)
		if findErr != nil {
			return nil, derrors.Wrap(findErr, derrors.CodeInternal, "reload slip")
		}
		return fresh, nil
	}
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "expire slip")
	}
	if updated.Status == models.StatusExpired && before != models.StatusExpired {
		s.metrics.AddSlipsExpired(1)
		s.audit.Record(ctx, audit.Transition(audit.ActionSlipExpired, slip.Code, "system", string(before), string(models.StatusExpired), reason))
	}
	return updated, nil
}
