package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"slipdesk/internal/platform/postgres"
	"slipdesk/internal/slip/models"
	"slipdesk/pkg/platform/sentinel"
)

const slipSchema = `
CREATE TABLE IF NOT EXISTS deposit_slips (
	code        TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	account     TEXT NOT NULL,
	tx_type     TEXT NOT NULL,
	branch      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL,
	version     BIGINT NOT NULL,
	doc         JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS deposit_slips_account_idx ON deposit_slips (account, tx_type) WHERE status NOT IN ('COMPLETED','REJECTED','CANCELLED','EXPIRED');
CREATE INDEX IF NOT EXISTS deposit_slips_branch_idx ON deposit_slips (branch, created_at);
CREATE INDEX IF NOT EXISTS deposit_slips_expiry_idx ON deposit_slips (expires_at) WHERE status NOT IN ('COMPLETED','REJECTED','CANCELLED','EXPIRED');
`

var terminalStatuses = []string{
	string(models.StatusCompleted),
	string(models.StatusRejected),
	string(models.StatusCancelled),
	string(models.StatusExpired),
}

// PostgresStore persists slips as a JSONB document alongside the columns the
// queries filter on. Optimistic concurrency rides the version column: the
// update is guarded by WHERE version = expected and zero rows affected means
// another writer got there first.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the slip table and indexes if absent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, slipSchema); err != nil {
		return fmt.Errorf("ensure slip schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, slip *models.DepositSlip) error {
	stored := slip.Clone()
	stored.Version = 1
	doc, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal slip: %w", err)
	}
	_, err = postgres.From(ctx, s.pool).Exec(ctx, `
		INSERT INTO deposit_slips (code, status, account, tx_type, branch, created_at, expires_at, version, doc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8)`,
		stored.Code, string(stored.Status), stored.Payload.CustomerAccount, string(stored.Payload.Type),
		stored.RetrievedBranch, stored.CreatedAt, stored.ExpiresAt, doc,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("slip %s: %w", slip.Code, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert slip: %w", err)
	}
	slip.Version = 1
	return nil
}

func (s *PostgresStore) FindByCode(ctx context.Context, code string) (*models.DepositSlip, error) {
	return s.scanOne(postgres.From(ctx, s.pool).QueryRow(ctx,
		`SELECT doc FROM deposit_slips WHERE code = $1`, code))
}

func (s *PostgresStore) Execute(ctx context.Context, code string, mutate func(*models.DepositSlip) error) (*models.DepositSlip, error) {
	q := postgres.From(ctx, s.pool)

	slip, err := s.scanOne(q.QueryRow(ctx, `SELECT doc FROM deposit_slips WHERE code = $1`, code))
	if err != nil {
		return nil, err
	}
	expected := slip.Version
	if err := mutate(slip); err != nil {
		return nil, err
	}
	slip.Version = expected + 1

	doc, err := json.Marshal(slip)
	if err != nil {
		return nil, fmt.Errorf("marshal slip: %w", err)
	}
	tag, err := q.Exec(ctx, `
		UPDATE deposit_slips
		SET status = $1, branch = $2, version = $3, doc = $4
		WHERE code = $5 AND version = $6`,
		string(slip.Status), slip.RetrievedBranch, slip.Version, doc, code, expected,
	)
	if err != nil {
		return nil, fmt.Errorf("update slip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("slip %s version %d: %w", code, expected, sentinel.ErrConflict)
	}
	return slip, nil
}

func (s *PostgresStore) FindActiveByAccount(ctx context.Context, account string, txType models.TransactionType) (*models.DepositSlip, error) {
	slip, err := s.scanOne(postgres.From(ctx, s.pool).QueryRow(ctx, `
		SELECT doc FROM deposit_slips
		WHERE account = $1 AND tx_type = $2 AND status <> ALL($3)
		ORDER BY created_at DESC
		LIMIT 1`,
		account, string(txType), terminalStatuses,
	))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("active slip for account: %w", sentinel.ErrNotFound)
	}
	return slip, err
}

func (s *PostgresStore) ListPending(ctx context.Context, branch string) ([]*models.DepositSlip, error) {
	rows, err := postgres.From(ctx, s.pool).Query(ctx, `
		SELECT doc FROM deposit_slips
		WHERE branch = $1 AND status IN ($2, $3, $4)
		ORDER BY created_at`,
		branch, string(models.StatusRetrieved), string(models.StatusVerified), string(models.StatusAuthorized),
	)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var out []*models.DepositSlip
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan slip: %w", err)
		}
		var slip models.DepositSlip
		if err := json.Unmarshal(doc, &slip); err != nil {
			return nil, fmt.Errorf("unmarshal slip: %w", err)
		}
		out = append(out, &slip)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListExpirable(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := postgres.From(ctx, s.pool).Query(ctx, `
		SELECT code FROM deposit_slips
		WHERE expires_at <= $1 AND status <> ALL($2)
		ORDER BY expires_at`,
		now, terminalStatuses,
	)
	if err != nil {
		return nil, fmt.Errorf("list expirable: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (s *PostgresStore) scanOne(row pgx.Row) (*models.DepositSlip, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("slip: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("load slip: %w", err)
	}
	var slip models.DepositSlip
	if err := json.Unmarshal(doc, &slip); err != nil {
		return nil, fmt.Errorf("unmarshal slip: %w", err)
	}
	return &slip, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
