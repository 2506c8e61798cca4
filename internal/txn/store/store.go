// Package store persists transactions and receipts. A slip maps to at most
// one transaction and one receipt; implementations enforce the uniqueness so
// a duplicate completion attempt fails with sentinel.ErrConflict instead of
// double-posting.
package store

import (
	"context"

	"slipdesk/internal/txn/models"
	id "slipdesk/pkg/domain"
)

type Store interface {
	// SaveCompletion inserts the transaction and receipt for a slip as one
	// write. Returns sentinel.ErrConflict if the slip already has either.
	SaveCompletion(ctx context.Context, txn *models.Transaction, receipt *models.Receipt) error

	// FindBySlip returns the transaction and receipt posted for a slip, or
	// sentinel.ErrNotFound when the slip never completed.
	FindBySlip(ctx context.Context, slipID id.SlipID) (*models.Transaction, *models.Receipt, error)

	// FindReceiptByNumber returns a receipt by its public number.
	FindReceiptByNumber(ctx context.Context, number string) (*models.Receipt, error)

	// FindTransaction returns a posted transaction by its ID.
	FindTransaction(ctx context.Context, txnID id.TransactionID) (*models.Transaction, error)
}
