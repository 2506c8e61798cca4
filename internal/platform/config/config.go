package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration. Workflow constants live here
// too so the slip service, OTP issuer and sweeper all read one source.
type Server struct {
	Addr              string
	JWTSigningKey     string
	ReceiptSigningKey string

	// Slip lifecycle
	SlipValidity  time.Duration // customer-facing validity window
	CancelGrace   time.Duration // post-expiry window in which cancel/reject stay legal
	SweepInterval time.Duration
	CASRetries    int // bounded retries on version conflicts before surfacing

	// OTP policy
	OTPTTL         time.Duration
	OTPLength      int
	OTPMaxAttempts int

	// Intake rate limiting
	IntakeLimit  int
	IntakeWindow time.Duration

	// Backends (empty means in-memory)
	RedisURL    string
	PostgresDSN string

	// Audit fan-out (empty means log-only)
	KafkaBrokers []string
	KafkaTopic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:              envOr("SLIPDESK_ADDR", ":8080"),
		JWTSigningKey:     envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		ReceiptSigningKey: envOr("RECEIPT_SIGNING_KEY", "dev-receipt-key-change-in-production"),
		SlipValidity:      envDuration("SLIP_VALIDITY", 60*time.Minute),
		CancelGrace:       envDuration("SLIP_CANCEL_GRACE", 30*time.Minute),
		SweepInterval:     envDuration("SLIP_SWEEP_INTERVAL", time.Minute),
		CASRetries:        envInt("SLIP_CAS_RETRIES", 3),
		OTPTTL:            envDuration("OTP_TTL", 5*time.Minute),
		OTPLength:         envInt("OTP_LENGTH", 5),
		OTPMaxAttempts:    envInt("OTP_MAX_ATTEMPTS", 5),
		IntakeLimit:       envInt("INTAKE_RATE_LIMIT", 10),
		IntakeWindow:      envDuration("INTAKE_RATE_WINDOW", time.Minute),
		RedisURL:          os.Getenv("REDIS_URL"),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		KafkaTopic:        envOr("AUDIT_KAFKA_TOPIC", "slipdesk.audit"),
	}
	if brokers := os.Getenv("AUDIT_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
