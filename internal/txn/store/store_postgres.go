package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"slipdesk/internal/platform/postgres"
	slipmodels "slipdesk/internal/slip/models"
	"slipdesk/internal/txn/models"
	id "slipdesk/pkg/domain"
	"slipdesk/pkg/platform/sentinel"
)

const txnSchema = `
CREATE TABLE IF NOT EXISTS transactions (
	id             UUID PRIMARY KEY,
	reference      TEXT NOT NULL UNIQUE,
	slip_id        UUID NOT NULL UNIQUE,
	drid           TEXT NOT NULL,
	tx_type        TEXT NOT NULL,
	account_number TEXT NOT NULL,
	amount         BIGINT NOT NULL,
	currency       TEXT NOT NULL,
	branch         TEXT NOT NULL,
	teller_id      TEXT NOT NULL,
	posted_at      TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS receipts (
	id             UUID PRIMARY KEY,
	number         TEXT NOT NULL UNIQUE,
	transaction_id UUID NOT NULL UNIQUE REFERENCES transactions (id),
	drid           TEXT NOT NULL,
	amount         BIGINT NOT NULL,
	currency       TEXT NOT NULL,
	account_masked TEXT NOT NULL,
	branch         TEXT NOT NULL,
	issued_at      TIMESTAMPTZ NOT NULL,
	signature      TEXT NOT NULL,
	signature_alg  TEXT NOT NULL
);
`

// PostgresStore persists transactions and receipts. The UNIQUE constraint on
// slip_id is the database-level guarantee that a slip posts at most once.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, txnSchema); err != nil {
		return fmt.Errorf("ensure transaction schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveCompletion(ctx context.Context, txn *models.Transaction, receipt *models.Receipt) error {
	q := postgres.From(ctx, s.pool)

	_, err := q.Exec(ctx, `
		INSERT INTO transactions (id, reference, slip_id, drid, tx_type, account_number, amount, currency, branch, teller_id, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.UUID(txn.ID), txn.Reference, uuid.UUID(txn.SlipID), txn.DRID, string(txn.Type),
		txn.AccountNumber, txn.Amount, txn.Currency, txn.Branch, txn.TellerID, txn.PostedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("slip %s already posted: %w", txn.SlipID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO receipts (id, number, transaction_id, drid, amount, currency, account_masked, branch, issued_at, signature, signature_alg)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.UUID(receipt.ID), receipt.Number, uuid.UUID(receipt.TransactionID), receipt.DRID,
		receipt.Amount, receipt.Currency, receipt.AccountMasked, receipt.Branch,
		receipt.IssuedAt, receipt.Signature, receipt.SignatureAlg,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("receipt for slip %s exists: %w", txn.SlipID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindBySlip(ctx context.Context, slipID id.SlipID) (*models.Transaction, *models.Receipt, error) {
	q := postgres.From(ctx, s.pool)

	var txn models.Transaction
	var txnID, sID uuid.UUID
	var txType string
	err := q.QueryRow(ctx, `
		SELECT id, reference, slip_id, drid, tx_type, account_number, amount, currency, branch, teller_id, posted_at
		FROM transactions WHERE slip_id = $1`, uuid.UUID(slipID),
	).Scan(&txnID, &txn.Reference, &sID, &txn.DRID, &txType, &txn.AccountNumber,
		&txn.Amount, &txn.Currency, &txn.Branch, &txn.TellerID, &txn.PostedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("completion for slip %s: %w", slipID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load transaction: %w", err)
	}
	txn.ID = id.TransactionID(txnID)
	txn.SlipID = id.SlipID(sID)
	txn.Type = slipmodels.TransactionType(txType)

	receipt, err := s.findReceipt(ctx, ` WHERE transaction_id = $1`, txnID)
	if err != nil {
		return nil, nil, err
	}
	return &txn, receipt, nil
}

func (s *PostgresStore) FindReceiptByNumber(ctx context.Context, number string) (*models.Receipt, error) {
	return s.findReceipt(ctx, ` WHERE number = $1`, number)
}

func (s *PostgresStore) FindTransaction(ctx context.Context, txnID id.TransactionID) (*models.Transaction, error) {
	var txn models.Transaction
	var tID, sID uuid.UUID
	var txType string
	err := postgres.From(ctx, s.pool).QueryRow(ctx, `
		SELECT id, reference, slip_id, drid, tx_type, account_number, amount, currency, branch, teller_id, posted_at
		FROM transactions WHERE id = $1`, uuid.UUID(txnID),
	).Scan(&tID, &txn.Reference, &sID, &txn.DRID, &txType, &txn.AccountNumber,
		&txn.Amount, &txn.Currency, &txn.Branch, &txn.TellerID, &txn.PostedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", txnID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	txn.ID = id.TransactionID(tID)
	txn.SlipID = id.SlipID(sID)
	txn.Type = slipmodels.TransactionType(txType)
	return &txn, nil
}

func (s *PostgresStore) findReceipt(ctx context.Context, where string, arg any) (*models.Receipt, error) {
	var receipt models.Receipt
	var receiptID, txnID uuid.UUID
	err := postgres.From(ctx, s.pool).QueryRow(ctx, `
		SELECT id, number, transaction_id, drid, amount, currency, account_masked, branch, issued_at, signature, signature_alg
		FROM receipts`+where, arg,
	).Scan(&receiptID, &receipt.Number, &txnID, &receipt.DRID, &receipt.Amount, &receipt.Currency,
		&receipt.AccountMasked, &receipt.Branch, &receipt.IssuedAt, &receipt.Signature, &receipt.SignatureAlg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("receipt: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load receipt: %w", err)
	}
	receipt.ID = id.ReceiptID(receiptID)
	receipt.TransactionID = id.TransactionID(txnID)
	return &receipt, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
