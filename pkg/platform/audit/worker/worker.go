package worker

import (
	"context"
	"log/slog"

	audit "slipdesk/pkg/platform/audit"
)

// Sink receives audit events after they are persisted. Optional fan-out for
// external pipelines (Kafka compliance topic).
type Sink interface {
	Publish(ctx context.Context, event audit.Event) error
}

// Worker consumes audit events from a channel and persists them, then fans
// out to sinks. Sink failures are logged and skipped: the store is the source
// of truth, external delivery is best-effort.
type Worker struct {
	store  audit.Store
	sinks  []Sink
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger, sinks ...Sink) *Worker {
	return &Worker{store: store, sinks: sinks, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.Error("audit append failed",
					"error", err,
					"action", event.Action,
					"drid", event.DRID,
				)
				continue
			}
			for _, sink := range w.sinks {
				if err := sink.Publish(ctx, event); err != nil {
					w.logger.Warn("audit sink publish failed",
						"error", err,
						"action", event.Action,
						"drid", event.DRID,
					)
				}
			}
		}
	}
}
