package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"slipdesk/pkg/requestcontext"
)

// TellerClaims represents the claims we expect from the token validator.
type TellerClaims struct {
	TellerID string
	BranchID string
}

// TellerTokenValidator validates teller bearer tokens.
type TellerTokenValidator interface {
	ValidateTellerToken(tokenString string) (*TellerClaims, error)
}

// CancelTokenValidator validates the customer cancel token minted at intake.
// The claim binds the token to a single DRID.
type CancelTokenValidator interface {
	ValidateCancelToken(tokenString string) (drid string, err error)
}

// RequireTeller guards the counter-side endpoints. Teller identity lands in
// the request context for claim ownership checks downstream.
func RequireTeller(validator TellerTokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, r, logger, "missing or invalid Authorization header")
				return
			}
			claims, err := validator.ValidateTellerToken(token)
			if err != nil {
				unauthorized(w, r, logger, "invalid or expired token")
				return
			}
			ctx := requestcontext.WithTeller(r.Context(), claims.TellerID, claims.BranchID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCancelToken guards the customer cancel endpoint. Only the session
// that created a slip holds its cancel token, which is how "only the original
// customer may cancel" is enforced without customer logins.
func RequireCancelToken(validator CancelTokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, r, logger, "missing or invalid Authorization header")
				return
			}
			drid, err := validator.ValidateCancelToken(token)
			if err != nil {
				unauthorized(w, r, logger, "invalid or expired cancel token")
				return
			}
			ctx := requestcontext.WithCustomerRef(r.Context(), drid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	const bearerPrefix = "Bearer "
	return strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
}

func unauthorized(w http.ResponseWriter, r *http.Request, logger *slog.Logger, reason string) {
	ctx := r.Context()
	logger.WarnContext(ctx, "unauthorized access",
		"reason", reason,
		"request_id", GetRequestID(ctx),
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + reason + `"}`))
}
