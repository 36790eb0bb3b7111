package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"docgate/internal/audit"
	audithandler "docgate/internal/audit/handler"
	auditkafka "docgate/internal/audit/kafka"
	auditmemory "docgate/internal/audit/store/memory"
	auditpostgres "docgate/internal/audit/store/postgres"
	"docgate/internal/evaluation"
	evalhandler "docgate/internal/evaluation/handler"
	evalmetrics "docgate/internal/evaluation/metrics"
	httpapi "docgate/internal/http"
	jwttoken "docgate/internal/jwt_token"
	"docgate/internal/platform/config"
	"docgate/internal/platform/httpserver"
	"docgate/internal/platform/logger"
	"docgate/internal/platform/metrics"
	platformredis "docgate/internal/platform/redis"
	rulesetcache "docgate/internal/ruleset/cache"
	rulesethandler "docgate/internal/ruleset/handler"
	rulesetmetrics "docgate/internal/ruleset/metrics"
	rulesetservice "docgate/internal/ruleset/service"
	rulesetstore "docgate/internal/ruleset/store"
	rulesetmemory "docgate/internal/ruleset/store/memory"
	rulesetpostgres "docgate/internal/ruleset/store/postgres"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	checks := map[string]httpapi.HealthChecker{}

	// Persistence: postgres when configured, in-memory otherwise.
	var (
		rsStore    rulesetstore.Store
		auditStore audit.Store
		db         *sql.DB
	)
	if cfg.Postgres.DSN != "" {
		var err error
		db, err = sql.Open("pgx", cfg.Postgres.DSN)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pgRuleSets := rulesetpostgres.New(db)
		pgAudit := auditpostgres.New(db)
		if err := pgRuleSets.Migrate(ctx); err != nil {
			log.Error("ruleset migration failed", "error", err)
			os.Exit(1)
		}
		if err := pgAudit.Migrate(ctx); err != nil {
			log.Error("audit migration failed", "error", err)
			os.Exit(1)
		}
		rsStore = pgRuleSets
		auditStore = pgAudit
		checks["postgres"] = db.PingContext
	} else {
		log.Warn("no DATABASE_URL configured, using in-memory stores")
		rsStore = rulesetmemory.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
	}

	// Audit pipeline: durable store, optional Kafka forwarding.
	publisherOpts := []audit.Option{}
	var (
		sink    *auditkafka.Sink
		inbox   chan audit.Record
		workers = make(chan struct{})
	)
	if len(cfg.Kafka.Brokers) > 0 {
		var err error
		sink, err = auditkafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("failed to create kafka sink", "error", err)
			os.Exit(1)
		}
		defer sink.Close()

		inbox = make(chan audit.Record, 256)
		publisherOpts = append(publisherOpts, audit.WithForward(inbox))
	}
	auditPublisher := audit.NewPublisher(auditStore, publisherOpts...)

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if sink != nil {
		worker := audit.NewWorker(sink, inbox, log)
		go func() {
			defer close(workers)
			_ = worker.Run(workerCtx)
		}()
	} else {
		close(workers)
	}

	// Optional Redis cache for the active ruleset.
	rsOpts := []rulesetservice.Option{
		rulesetservice.WithLogger(log),
		rulesetservice.WithAuditPublisher(auditPublisher),
		rulesetservice.WithMetrics(rulesetmetrics.New()),
	}
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		rsOpts = append(rsOpts, rulesetservice.WithCache(rulesetcache.New(redisClient.Client)))
		checks["redis"] = redisClient.Health
	}

	rsService := rulesetservice.New(rsStore, rsOpts...)

	evalService := evaluation.NewService(rsStore,
		evaluation.WithLogger(log),
		evaluation.WithAuditPublisher(auditPublisher),
		evaluation.WithMetrics(evalmetrics.New()),
		evaluation.WithAnalyzer(evaluation.NewAnalyzer(
			evaluation.WithSampleLimit(cfg.Impact.SampleLimit),
			evaluation.WithConcurrency(cfg.Impact.Concurrency),
		)),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "docgate", "docgate-api")

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:     log,
		Metrics:    metrics.New(),
		Validator:  jwttoken.NewAuthAdapter(jwtService),
		AdminToken: cfg.AdminToken,
		RuleSets:   rulesethandler.New(rsService, log, cfg.LockRoles),
		Evaluation: evalhandler.New(evalService, log),
		Audit:      audithandler.New(auditPublisher, log),
		Checks:     checks,
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting docgate", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	// Drain the audit worker before the kafka client closes.
	stopWorker()
	select {
	case <-workers:
	case <-time.After(5 * time.Second):
		log.Warn("audit worker did not stop in time")
	}
}
