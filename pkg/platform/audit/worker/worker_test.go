package worker_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "slipdesk/pkg/platform/audit"
	auditmem "slipdesk/pkg/platform/audit/store/memory"
	auditworker "slipdesk/pkg/platform/audit/worker"
)

type captureSink struct {
	events chan audit.Event
}

func (s *captureSink) Publish(_ context.Context, event audit.Event) error {
	s.events <- event
	return nil
}

func TestPipelineDeliversToStoreAndSinks(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := auditmem.NewInMemoryStore()
	sink := &captureSink{events: make(chan audit.Event, 8)}

	inbox, closeInbox := audit.NewPipeline(8)
	done := make(chan error, 1)
	go func() {
		done <- auditworker.NewWorker(store, inbox, log, sink).Run(context.Background())
	}()

	recorder := audit.NewRecorder(inbox, log)
	recorder.Record(context.Background(), audit.Transition(
		audit.ActionSlipRetrieved, "DRID-20250601-ABC123", "T-100", "CREATED", "RETRIEVED", ""))

	select {
	case got := <-sink.events:
		assert.Equal(t, audit.ActionSlipRetrieved, got.Action)
		assert.Equal(t, "T-100", got.Actor)
		assert.Equal(t, audit.CategoryOperations, got.Category)
		assert.False(t, got.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the sink")
	}

	events, err := store.ListByDRID(context.Background(), "DRID-20250601-ABC123")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "RETRIEVED", events[0].StatusAfter)

	// closing the inbox drains the worker
	closeInbox()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after inbox close")
	}
}

func TestCategoryRouting(t *testing.T) {
	assert.Equal(t, audit.CategoryCompliance, audit.CategoryFor(audit.ActionSlipCompleted))
	assert.Equal(t, audit.CategorySecurity, audit.CategoryFor(audit.ActionOTPLocked))
	assert.Equal(t, audit.CategoryOperations, audit.CategoryFor(audit.ActionSlipCreated))
	assert.Equal(t, audit.CategoryOperations, audit.CategoryFor(audit.Action("unheard-of")))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *audit.Recorder
	r.Record(context.Background(), audit.Event{Action: audit.ActionSlipCreated})
}
