package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the slip workflow.
type Metrics struct {
	SlipsCreated   prometheus.Counter
	SlipsCompleted prometheus.Counter
	SlipsExpired   prometheus.Counter

	// Terminal closures that are not completions, by outcome ("cancelled", "rejected")
	SlipsClosed *prometheus.CounterVec

	OTPIssued         prometheus.Counter
	OTPVerifyFailures prometheus.Counter

	// Lost optimistic writes, by operation
	VersionConflicts *prometheus.CounterVec

	RequestLatency *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		SlipsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "slipdesk_slips_created_total",
			Help: "Total number of deposit slips created via customer intake",
		}),
		SlipsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "slipdesk_slips_completed_total",
			Help: "Total number of deposit slips promoted into transactions",
		}),
		SlipsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "slipdesk_slips_expired_total",
			Help: "Total number of deposit slips marked expired (lazy checks and sweep)",
		}),
		SlipsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "slipdesk_slips_closed_total",
			Help: "Total number of deposit slips closed without completion",
		}, []string{"outcome"}),
		OTPIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "slipdesk_otp_issued_total",
			Help: "Total number of OTP codes issued (including re-issues)",
		}),
		OTPVerifyFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "slipdesk_otp_verify_failures_total",
			Help: "Total number of failed OTP verification attempts",
		}),
		VersionConflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "slipdesk_version_conflicts_total",
			Help: "Total number of compare-and-swap conflicts by operation",
		}, []string{"operation"}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "slipdesk_http_request_duration_seconds",
			Help:    "HTTP request duration by route and status class",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) IncrementSlipsCreated() {
	if m != nil {
		m.SlipsCreated.Inc()
	}
}

func (m *Metrics) IncrementSlipsCompleted() {
	if m != nil {
		m.SlipsCompleted.Inc()
	}
}

func (m *Metrics) AddSlipsExpired(n int) {
	if m != nil && n > 0 {
		m.SlipsExpired.Add(float64(n))
	}
}

func (m *Metrics) IncrementSlipsClosed(outcome string) {
	if m != nil {
		m.SlipsClosed.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementOTPIssued() {
	if m != nil {
		m.OTPIssued.Inc()
	}
}

func (m *Metrics) IncrementOTPVerifyFailures() {
	if m != nil {
		m.OTPVerifyFailures.Inc()
	}
}

func (m *Metrics) IncrementVersionConflicts(operation string) {
	if m != nil {
		m.VersionConflicts.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) ObserveRequestLatency(route, status string, d time.Duration) {
	if m != nil {
		m.RequestLatency.WithLabelValues(route, status).Observe(d.Seconds())
	}
}
