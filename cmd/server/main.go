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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auditkafka "bibflow/pkg/platform/audit/kafka"
	"bibflow/pkg/platform/audit/publisher"
	auditmemory "bibflow/pkg/platform/audit/store/memory"
	auditpostgres "bibflow/pkg/platform/audit/store/postgres"
	"bibflow/pkg/platform/audit/worker"
	txcontext "bibflow/pkg/platform/tx"

	pidmetrics "bibflow/internal/pidstore/metrics"
	"bibflow/internal/pidstore/minter"
	pidstore "bibflow/internal/pidstore/store"
	"bibflow/internal/platform/config"
	"bibflow/internal/platform/database"
	"bibflow/internal/platform/httpserver"
	"bibflow/internal/platform/logger"
	platformmetrics "bibflow/internal/platform/metrics"
	platformmw "bibflow/internal/platform/middleware"
	recstore "bibflow/internal/records/store"
	"bibflow/internal/records/validator"
	"bibflow/internal/workflows/engine"
	"bibflow/internal/workflows/handler"
	wfmetrics "bibflow/internal/workflows/metrics"
	"bibflow/internal/workflows/pending"
	"bibflow/internal/workflows/service"
	"bibflow/internal/workflows/sources"
)

// main wires dependencies and owns the process lifecycle. Without a database
// URL every store runs in memory, which is enough for local development; Kafka
// publishing additionally needs brokers and a database for the outbox.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := database.EnsureSchema(ctx, db); err != nil {
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
	}

	var (
		pids      pidstore.Store
		records   recstore.Store
		ledger    pending.Ledger
		snapshots sources.Store
		outbox    *auditpostgres.Store
		recorder  *publisher.Publisher
	)
	if db != nil {
		pids = pidstore.NewPostgres(db)
		records = recstore.NewPostgres(db)
		ledger = pending.NewPostgres(db)
		snapshots = sources.NewPostgres(db)
		outbox = auditpostgres.New(db)
		// Synchronous emit keeps audit writes inside the caller's transaction.
		recorder = publisher.NewPublisher(outbox)
	} else {
		pids = pidstore.NewInMemory()
		records = recstore.NewInMemory()
		ledger = pending.NewInMemory()
		snapshots = sources.NewInMemory()
		recorder = publisher.NewPublisher(auditmemory.NewInMemoryStore())
	}
	defer recorder.Close()

	runner := txcontext.NewRunner(db)
	mint := minter.New(pids, records, recorder, log, pidmetrics.New())

	var eng engine.Engine
	var dispatcher *engine.Dispatcher
	if db != nil {
		base := engine.NewPostgres(db, nil)
		dispatcher = engine.NewDispatcher(ctx, engine.NewStepper(base, log), log, 8)
		eng = engine.NewPostgres(db, dispatcher)
	} else {
		mem := engine.NewInMemory()
		mem.ContinueFunc = engine.NewStepper(mem, log).Continue
		eng = mem
	}

	svc := service.New(cfg, eng, ledger, snapshots, records, mint,
		validator.NewLiterature(), recorder, runner, log, wfmetrics.New())

	router := chi.NewRouter()
	router.Use(platformmw.Recovery(log))
	router.Use(chimiddleware.RequestID)
	router.Use(platformmw.Logger(log))
	router.Use(chimiddleware.Timeout(30 * time.Second))
	router.Use(platformmw.ContentTypeJSON)
	router.Use(platformmw.Latency(platformmetrics.NewHTTP()))
	router.Handle("/metrics", promhttp.Handler())
	handler.New(svc, log).Register(router)

	if db != nil && len(cfg.KafkaBrokers) > 0 {
		producer, err := auditkafka.NewProducer(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("kafka producer setup failed", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		drain := worker.NewWorker(outbox, producer, log)
		go func() {
			if err := drain.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit outbox worker stopped", "error", err)
			}
		}()
		log.Info("audit outbox worker started", "topic", cfg.AuditTopic)
	}

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting bibflow", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if dispatcher != nil {
		if err := dispatcher.Drain(); err != nil {
			log.Error("continuation drain failed", "error", err)
		}
	}
}
