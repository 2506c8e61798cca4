package testutil

import (
	"net/http"
	"time"

	"slipdesk/pkg/requestcontext"
)

// WithTeller adds an authenticated teller identity to the request context.
// This simulates what the auth middleware would do for teller requests.
func WithTeller(req *http.Request, tellerID, branchID string) *http.Request {
	ctx := requestcontext.WithTeller(req.Context(), tellerID, branchID)
	return req.WithContext(ctx)
}

// WithTime pins the request clock so handlers observe a deterministic time.
func WithTime(req *http.Request, now time.Time) *http.Request {
	ctx := requestcontext.WithTime(req.Context(), now)
	return req.WithContext(ctx)
}

// WithRequestID attaches a request ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	return req.WithContext(ctx)
}
