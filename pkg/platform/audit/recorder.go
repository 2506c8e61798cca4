package audit

import (
	"context"
	"log/slog"
	"time"

	"slipdesk/pkg/requestcontext"
)

// Recorder is the producer side of the audit pipeline. Services call Record
// after a state transition has committed; delivery to stores and sinks
// happens asynchronously in the worker so the request path never blocks on
// audit persistence.
type Recorder struct {
	inbox  chan<- Event
	logger *slog.Logger
}

// NewRecorder wraps the worker inbox.
func NewRecorder(inbox chan<- Event, logger *slog.Logger) *Recorder {
	return &Recorder{inbox: inbox, logger: logger}
}

// Record enqueues an event, filling timestamp, request ID and category from
// context. A full inbox drops the event with a log line rather than stalling
// the workflow; the transition itself has already committed.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil || r.inbox == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Category == "" {
		event.Category = CategoryFor(event.Action)
	}
	select {
	case r.inbox <- event:
	default:
		r.logger.Warn("audit inbox full, dropping event",
			"action", event.Action,
			"drid", event.DRID,
		)
	}
}

// NewPipeline builds the buffered channel shared by Recorder and Worker.
func NewPipeline(buffer int) (chan Event, func()) {
	if buffer <= 0 {
		buffer = 1024
	}
	ch := make(chan Event, buffer)
	var closed bool
	return ch, func() {
		if !closed {
			closed = true
			close(ch)
		}
	}
}

// Transition is a convenience constructor for state-change events.
func Transition(action Action, drid, actor, before, after, reason string) Event {
	return Event{
		Timestamp:    time.Time{}, // filled by Record
		DRID:         drid,
		Action:       action,
		Actor:        actor,
		StatusBefore: before,
		StatusAfter:  after,
		Reason:       reason,
	}
}
