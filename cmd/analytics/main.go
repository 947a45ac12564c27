// Command analytics starts the standalone analytics aggregation service.
//
// It consumes search and index events from Kafka, aggregates them in memory
// (total queries, latency percentiles, cache hit rate, zero-result and top
// queries), snapshots the aggregate to SQL on a timer and exposes it at
// GET /api/v1/analytics. On startup the latest snapshot is restored.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Analytics.Port, "driver", cfg.Database.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		go metrics.NewServer(cfg.Metrics.Port, m).Run(ctx)
	}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := aggregator.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("failed to create snapshot schema", "error", err)
		os.Exit(1)
	}

	agg := analytics.NewAggregator(cfg.Analytics.TopQueries)
	if last, err := store.LatestSnapshot(ctx); err != nil {
		slog.Warn("could not restore analytics snapshot", "error", err)
	} else if last != nil {
		agg.Restore(*last)
		slog.Info("restored analytics snapshot", "total_searches", last.TotalSearches, "captured_at", last.CapturedAt)
	}
	saved := store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)

	checker := health.NewChecker("analytics")
	checker.Register("database", func(ctx context.Context) health.ComponentHealth {
		if err := db.Ping(ctx); err != nil {
			return health.Down(err)
		}
		return health.Up(db.Driver())
	})

	if cfg.KafkaEnabled() {
		for _, topic := range []string{cfg.Kafka.Topics.AnalyticsEvents, cfg.Kafka.Topics.IndexEvents} {
			consumer := kafka.NewConsumer(cfg.Kafka, topic, "", agg.Handle())
			defer consumer.Close()
			go func() {
				if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("analytics consumer stopped", "topic", topic, "error", err)
				}
			}()
			checker.Register("kafka-"+topic, consumer.Check)
			slog.Info("consuming analytics events", "topic", topic, "group", cfg.Kafka.ConsumerGroup)
		}
	} else {
		checker.Register("kafka", func(context.Context) health.ComponentHealth {
			return health.Degraded("no brokers configured")
		})
	}

	mux := http.NewServeMux()
	analytics.NewHandler(agg, store).RegisterRoutes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Metrics(m),
			middleware.Timeout(cfg.Server.RequestTimeout),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	<-saved
	slog.Info("analytics service stopped")
}
