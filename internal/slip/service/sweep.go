package service

import (
	"context"
	"errors"
	"time"

	"slipdesk/internal/slip/models"
	"slipdesk/pkg/platform/audit"
)

var errSweepSkip = errors.New("slip no longer expirable")

func isSweepSkip(err error) bool { return errors.Is(err, errSweepSkip) }

// Sweep closes every slip whose validity window has lapsed. Lazy expiry on
// the read path already guards correctness; the sweeper keeps the stored
// statuses from drifting and feeds the expiry metrics.
func (s *Service) Sweep(ctx context.Context, now time.Time) (int, error) {
	codes, err := s.slips.ListExpirable(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, code := range codes {
		_, err := s.slips.Execute(ctx, code, func(d *models.DepositSlip) error {
			if d.Status.IsTerminal() || !d.Expired(now) {
				return errSweepSkip
			}
			d.Status = models.StatusExpired
			d.ClosedBy = "sweeper"
			closedAt := now
			d.ClosedAt = &closedAt
			d.ClosedReason = "validity window lapsed"
			return nil
		})
		if err != nil {
			// lost races and already-closed slips are fine; anything else is
			// logged and the sweep moves on
			if !isSweepSkip(err) {
				s.logger.WarnContext(ctx, "sweep failed for slip", "drid", code, "error", err)
			}
			continue
		}
		expired++
		s.audit.Record(ctx, audit.Event{
			Timestamp:   now,
			Action:      audit.ActionSlipExpired,
			DRID:        code,
			Actor:       "sweeper",
			StatusAfter: string(models.StatusExpired),
			Reason:      "validity window lapsed",
		})
	}
	if expired > 0 {
		s.metrics.AddSlipsExpired(expired)
		s.logger.InfoContext(ctx, "sweep completed", "expired", expired, "inspected", len(codes))
	}
	return expired, nil
}

// RunSweeper loops Sweep until the context is cancelled.
func (s *Service) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick := <-ticker.C:
			if _, err := s.Sweep(ctx, tick.UTC()); err != nil {
				s.logger.ErrorContext(ctx, "sweep pass failed", "error", err)
			}
		}
	}
}
