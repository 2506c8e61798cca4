// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. By keeping this package free
// of net/http dependencies, services can import only what they need without pulling
// in HTTP-related code.
//
// Usage in services (read values):
//
//	tellerID := requestcontext.TellerID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithTeller(ctx, tellerID, branchID)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	tellerIDKey    struct{}
	branchIDKey    struct{}
	customerRefKey struct{}
	clientIPKey    struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyTellerID    = tellerIDKey{}
	ContextKeyBranchID    = branchIDKey{}
	ContextKeyCustomerRef = customerRefKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Actor context (teller, branch, customer)
// -----------------------------------------------------------------------------

// TellerID retrieves the authenticated teller ID from the context.
// Returns empty string when the request is not a teller request.
func TellerID(ctx context.Context) string {
	if tellerID, ok := ctx.Value(ContextKeyTellerID).(string); ok {
		return tellerID
	}
	return ""
}

// BranchID retrieves the authenticated teller's branch from the context.
func BranchID(ctx context.Context) string {
	if branchID, ok := ctx.Value(ContextKeyBranchID).(string); ok {
		return branchID
	}
	return ""
}

// WithTeller injects the teller identity into the context.
func WithTeller(ctx context.Context, tellerID, branchID string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyTellerID, tellerID)
	return context.WithValue(ctx, ContextKeyBranchID, branchID)
}

// CustomerRef retrieves the customer reference (the DRID a cancel token is
// bound to) from the context.
func CustomerRef(ctx context.Context) string {
	if ref, ok := ctx.Value(ContextKeyCustomerRef).(string); ok {
		return ref
	}
	return ""
}

// WithCustomerRef injects a customer reference into the context.
func WithCustomerRef(ctx context.Context, ref string) context.Context {
	return context.WithValue(ctx, ContextKeyCustomerRef, ref)
}

// -----------------------------------------------------------------------------
// Client metadata
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// WithClientIP injects the client IP into a context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ContextKeyClientIP, ip)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like the sweeper or tests
// that don't care about time).
//
// Every expiry decision in the workflow reads the clock through this accessor, so a
// single request observes one consistent instant and tests can pin time precisely.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that don't run the full HTTP middleware chain
//   - The expiry sweeper, which needs one consistent instant per pass
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
