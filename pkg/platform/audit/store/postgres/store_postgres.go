// Package postgres persists the audit trail. Append-only by construction:
// there is no update or delete path.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	audit "slipdesk/pkg/platform/audit"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id            BIGSERIAL PRIMARY KEY,
	category      TEXT NOT NULL,
	occurred_at   TIMESTAMPTZ NOT NULL,
	drid          TEXT NOT NULL,
	action        TEXT NOT NULL,
	actor         TEXT NOT NULL,
	status_before TEXT NOT NULL DEFAULT '',
	status_after  TEXT NOT NULL DEFAULT '',
	reason        TEXT NOT NULL DEFAULT '',
	request_id    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_events_drid ON audit_events (drid, occurred_at);
CREATE INDEX IF NOT EXISTS idx_audit_events_category ON audit_events (category, occurred_at);
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the audit table and indexes if absent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, auditSchema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, event audit.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_events
			(category, occurred_at, drid, action, actor, status_before, status_after, reason, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(event.Category), event.Timestamp, event.DRID, string(event.Action),
		event.Actor, event.StatusBefore, event.StatusAfter, event.Reason, event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByDRID(ctx context.Context, drid string) ([]audit.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, occurred_at, drid, action, actor, status_before, status_after, reason, request_id
		FROM audit_events
		WHERE drid = $1
		ORDER BY occurred_at, id`,
		drid,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		var category, action string
		if err := rows.Scan(&category, &e.Timestamp, &e.DRID, &action,
			&e.Actor, &e.StatusBefore, &e.StatusAfter, &e.Reason, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		e.Action = audit.Action(action)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
