package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"secureid/internal/audit"
	"secureid/internal/holder"
	"secureid/internal/ledger"
	ledgermetrics "secureid/internal/ledger/metrics"
	ledgerstore "secureid/internal/ledger/store"
	"secureid/internal/platform/config"
	"secureid/internal/platform/httpserver"
	"secureid/internal/platform/logger"
	"secureid/internal/platform/metrics"
	"secureid/internal/platform/middleware"
	platformredis "secureid/internal/platform/redis"
	"secureid/internal/proof"
	httptransport "secureid/internal/transport/http"
	"secureid/internal/vericode"

	_ "github.com/lib/pq"
)

// main wires configuration, stores, services and transport, then runs the
// HTTP server and the audit worker until a signal arrives. Business logic
// lives in the internal services packages.
func main() {
	cfg := config.Load()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()

	// Ledger store: Postgres when configured, in-memory otherwise.
	var store ledger.Store
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := ledgerstore.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			log.Error("migrate ledger schema", "error", err)
			os.Exit(1)
		}
		store = pg
	} else {
		log.Warn("no postgres DSN configured, using in-memory ledger store")
		store = ledgerstore.NewInMemoryStore()
	}

	// Code bindings: Redis when configured, in-memory otherwise.
	var bindings vericode.BindingStore = vericode.NewInMemoryBindingStore()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		bindings = vericode.NewRedisBindingStore(redisClient.Client)
	}

	// Audit pipeline: channel publisher feeding a worker, with an optional
	// AMQP sink fan-out.
	auditPublisher := audit.NewChannelPublisher(cfg.AuditBuffer, log)
	var sinks []audit.Sink
	if cfg.AMQP.URL != "" {
		amqpSink, err := audit.NewAMQPSink(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue, cfg.AMQP.RoutingKey)
		if err != nil {
			log.Error("connect amqp", "error", err)
			os.Exit(1)
		}
		defer amqpSink.Close()
		sinks = append(sinks, amqpSink)
	}
	auditWorker := audit.NewWorker(audit.NewInMemoryStore(), auditPublisher.Inbox(), log, sinks...)

	ledgerService := ledger.NewService(store, auditPublisher, ledgermetrics.New(registry), log)
	holderService := holder.NewService(
		proof.NewCommitmentBuilder(),
		ledgerService,
		vericode.NewIssuer(vericode.WithTTL(cfg.CodeTTL)),
		bindings,
		log,
	)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Identity:     httptransport.NewIdentityHandler(holderService, ledgerService, log),
		Verification: httptransport.NewVerificationHandler(holderService, ledgerService, log),
		Validator:    middleware.NewHMACValidator(cfg.Server.JWTSigningKey),
		HTTPMetrics:  metrics.NewHTTP(registry),
		Registry:     registry,
		Health: func(r *http.Request) error {
			if redisClient != nil {
				return redisClient.Health(r.Context())
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Server.Addr, router)
	log.Info("starting secureid server", "addr", cfg.Server.Addr)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return httpserver.Run(groupCtx, srv)
	})
	group.Go(func() error {
		err := auditWorker.Run(groupCtx)
		if err != nil && groupCtx.Err() != nil {
			return nil
		}
		return err
	})

	if err := group.Wait(); err != nil && err != http.ErrServerClosed {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
