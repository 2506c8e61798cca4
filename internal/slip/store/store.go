// Package store defines persistence for deposit slips. Implementations share
// an optimistic-concurrency contract: every mutation goes through Execute,
// which re-reads the record, applies the caller's mutation and commits only
// if the version is unchanged. Lost races surface as sentinel.ErrConflict so
// the service layer can retry with fresh state.
package store

import (
	"context"
	"sort"
	"time"

	"slipdesk/internal/slip/models"
)

// Store is the persistence boundary for deposit slips.
type Store interface {
	// Create inserts a new slip. Returns sentinel.ErrConflict if the code is
	// already taken.
	Create(ctx context.Context, slip *models.DepositSlip) error

	// FindByCode returns the slip for a reference code, or
	// sentinel.ErrNotFound. The returned value is a private copy.
	FindByCode(ctx context.Context, code string) (*models.DepositSlip, error)

	// Execute loads the slip, runs mutate on a private copy and persists the
	// result with the version bumped by one. If another writer committed in
	// between, Execute returns sentinel.ErrConflict and nothing is written.
	// An error from mutate aborts the write and is returned as-is.
	Execute(ctx context.Context, code string, mutate func(*models.DepositSlip) error) (*models.DepositSlip, error)

	// FindActiveByAccount reports a non-terminal slip for the account and
	// transaction type, used to refuse duplicate concurrent references.
	// Returns sentinel.ErrNotFound when none exists.
	FindActiveByAccount(ctx context.Context, account string, txType models.TransactionType) (*models.DepositSlip, error)

	// ListPending returns claimed, still-workable slips for a branch ordered
	// by creation time.
	ListPending(ctx context.Context, branch string) ([]*models.DepositSlip, error)

	// ListExpirable returns codes of non-terminal slips whose hard expiry has
	// passed, for the background sweeper.
	ListExpirable(ctx context.Context, now time.Time) ([]string, error)
}

func sortByCreatedAt(slips []*models.DepositSlip) {
	sort.Slice(slips, func(i, j int) bool { return slips[i].CreatedAt.Before(slips[j].CreatedAt) })
}
