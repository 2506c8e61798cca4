// Package httpapi assembles the API surface: shared middleware, the
// customer and teller route groups, and the operational endpoints.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"slipdesk/internal/platform/metrics"
	"slipdesk/internal/platform/middleware"
	"slipdesk/internal/slip/handler"
)

// Auth bundles the token validators the route groups need.
type Auth struct {
	Teller middleware.TellerTokenValidator
	Cancel middleware.CancelTokenValidator
}

// NewRouter wires the full route tree. Customer intake and status probes are
// public; cancellation needs the intake-issued cancel token; everything under
// /teller needs a teller bearer token.
func NewRouter(slips *handler.Handler, auth Auth, logger *slog.Logger, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientIP)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Tracing)
	r.Use(middleware.LatencyMiddleware(m))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(slips.RegisterCustomer)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCancelToken(auth.Cancel, logger))
			slips.RegisterCancel(r)
		})

		r.Route("/teller", func(r chi.Router) {
			r.Use(middleware.RequireTeller(auth.Teller, logger))
			slips.RegisterTeller(r)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
