// Command server runs the deposit slip API: customer intake, the teller
// counter workflow, and the operational endpoints.
//
// Backend selection is driven by configuration. POSTGRES_DSN turns on the
// durable stores and transactional completion; REDIS_URL alone selects the
// Redis slip store; neither selects the in-memory stores for local work.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"slipdesk/internal/adapters/notification"
	"slipdesk/internal/adapters/signature"
	httpapi "slipdesk/internal/http"
	jwttoken "slipdesk/internal/jwt_token"
	"slipdesk/internal/otp"
	"slipdesk/internal/platform/config"
	"slipdesk/internal/platform/httpserver"
	"slipdesk/internal/platform/logger"
	"slipdesk/internal/platform/metrics"
	"slipdesk/internal/platform/postgres"
	redisplatform "slipdesk/internal/platform/redis"
	"slipdesk/internal/promoter"
	"slipdesk/internal/ratelimit"
	"slipdesk/internal/slip/handler"
	"slipdesk/internal/slip/service"
	slipstore "slipdesk/internal/slip/store"
	txnstore "slipdesk/internal/txn/store"
	"slipdesk/pkg/platform/audit"
	auditkafka "slipdesk/pkg/platform/audit/publishers/kafka"
	auditmem "slipdesk/pkg/platform/audit/store/memory"
	auditpg "slipdesk/pkg/platform/audit/store/postgres"
	auditworker "slipdesk/pkg/platform/audit/worker"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(context.Background(), cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores. Postgres carries both slips and the ledger so completion can
	// commit in one transaction; Redis carries slips only.
	var (
		slips      slipstore.Store
		txns       txnstore.Store
		limiter    ratelimit.Limiter
		atomic     promoter.Atomic = promoter.Passthrough{}
		auditStore audit.Store
	)

	var redisClient *redisplatform.Client
	if cfg.RedisURL != "" {
		client, err := redisplatform.New(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		redisClient = client
	}

	switch {
	case cfg.PostgresDSN != "":
		pool, err := postgres.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		slipPG := slipstore.NewPostgresStore(pool)
		txnPG := txnstore.NewPostgresStore(pool)
		auditPG := auditpg.NewPostgresStore(pool)
		if err := slipPG.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := txnPG.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := auditPG.EnsureSchema(ctx); err != nil {
			return err
		}
		slips, txns, auditStore = slipPG, txnPG, auditPG
		atomic = postgres.NewRunner(pool)
		log.Info("using postgres stores")

	case redisClient != nil:
		slips = slipstore.NewRedisStore(redisClient.Client)
		txns = txnstore.NewInMemoryStore()
		auditStore = auditmem.NewInMemoryStore()
		log.Info("using redis slip store")

	default:
		slips = slipstore.NewInMemoryStore()
		txns = txnstore.NewInMemoryStore()
		auditStore = auditmem.NewInMemoryStore()
		log.Info("using in-memory stores")
	}

	// Intake rate limiter rides on Redis when available so the budget holds
	// across instances.
	limiter = ratelimit.NewInMemoryLimiter(cfg.IntakeLimit, cfg.IntakeWindow)
	if redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient.Client, cfg.IntakeLimit, cfg.IntakeWindow)
	}

	// Audit pipeline: non-blocking recorder, single worker, optional Kafka
	// fan-out for the compliance topic.
	inbox, closeInbox := audit.NewPipeline(1024)
	defer closeInbox()

	var sinks []auditworker.Sink
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := auditkafka.New(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		defer publisher.Close()
		sinks = append(sinks, publisher)
		log.Info("audit events fan out to kafka", "topic", cfg.KafkaTopic)
	}

	signer, err := signature.NewHMACSigner([]byte(cfg.ReceiptSigningKey))
	if err != nil {
		return err
	}

	m := metrics.New()
	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, "slipdesk")

	svc := service.New(
		cfg,
		log,
		slips,
		otp.NewIssuer(cfg.OTPLength, cfg.OTPTTL, cfg.OTPMaxAttempts),
		notification.NewLogNotifier(log),
		tokens,
		limiter,
		promoter.New(slips, txns, signer, atomic),
		m,
		audit.NewRecorder(inbox, log),
	)

	router := httpapi.NewRouter(
		handler.New(svc, log),
		httpapi.Auth{Teller: tokens, Cancel: tokens},
		log,
		m,
	)
	server := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return auditworker.NewWorker(auditStore, inbox, log, sinks...).Run(ctx)
	})

	g.Go(func() error {
		return svc.RunSweeper(ctx)
	})

	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
