package audit

import "context"

// Store persists audit events. Append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByDRID(ctx context.Context, drid string) ([]Event, error)
}
