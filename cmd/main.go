/**
 * @description
 * Entrypoint for the ledger service. Wires configuration, storage, the
 * event producer, the reconciliation schedule and the HTTP server, then
 * runs until interrupted and shuts everything down gracefully.
 *
 * @dependencies
 * - internal/config: Environment-driven configuration.
 * - internal/store: Postgres and in-memory stores.
 * - internal/app: Application service and reconciler.
 * - internal/api: HTTP transport.
 * - github.com/jackc/pgx/v5/pgxpool: Postgres connection pooling.
 * - github.com/robfig/cron/v3: Reconciliation scheduling.
 */
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"github.com/vaultline/ledger-service/internal/api"
	"github.com/vaultline/ledger-service/internal/app"
	"github.com/vaultline/ledger-service/internal/config"
	"github.com/vaultline/ledger-service/internal/store"
	"github.com/vaultline/ledger-service/pkg/clock"
	"github.com/vaultline/ledger-service/pkg/metrics"
	"github.com/vaultline/ledger-service/pkg/rabbitmq"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=main msg=\"cannot load config\" error=%v", err)
	}

	clk, err := clock.NewZoneClock(cfg.TimeZone)
	if err != nil {
		log.Fatalf("level=fatal component=main msg=\"cannot load time zone\" zone=%s error=%v", cfg.TimeZone, err)
	}

	var st store.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("level=fatal component=main msg=\"unable to create connection pool\" error=%v", err)
		}
		defer pool.Close()

		if err := pool.Ping(context.Background()); err != nil {
			log.Fatalf("level=fatal component=main msg=\"unable to reach database\" error=%v", err)
		}
		st = store.NewPostgresStore(pool)
		log.Printf("level=info component=main msg=\"connected to postgres\"")
	} else {
		st = store.NewMemoryStore()
		log.Printf("level=warn component=main msg=\"DATABASE_URL not set, using in-memory store\"")
	}

	var events rabbitmq.Publisher
	if cfg.RabbitMQURL != "" {
		producer, err := rabbitmq.NewProducer(cfg.RabbitMQURL)
		if err != nil {
			log.Fatalf("level=fatal component=main msg=\"unable to connect to rabbitmq\" error=%v", err)
		}
		defer producer.Close()
		events = producer
		log.Printf("level=info component=main msg=\"connected to rabbitmq\"")
	} else {
		log.Printf("level=warn component=main msg=\"RABBITMQ_URL not set, events disabled\"")
	}

	collector := metrics.NewCollector()
	service := app.NewService(st, clk, events, collector, cfg.TransferFeeBps, cfg.DefaultDailyWithdrawalLimit, cfg.DefaultDailyTransferLimit)

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.ReconcileCronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := service.ReconcileUnlinkedTransfers(ctx); err != nil {
			log.Printf("level=error component=main msg=\"reconciliation sweep failed\" error=%v", err)
		}
	})
	if err != nil {
		log.Fatalf("level=fatal component=main msg=\"invalid reconcile cron spec\" spec=%s error=%v", cfg.ReconcileCronSpec, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	handlers := api.NewHandlers(service)
	router := api.NewRouter(handlers, collector.Handler())

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("level=info component=main msg=\"ledger service listening\" port=%s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=main msg=\"server error\" error=%v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("level=info component=main msg=\"shutting down\"")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("level=fatal component=main msg=\"forced shutdown\" error=%v", err)
	}
	log.Printf("level=info component=main msg=\"server stopped\"")
}
