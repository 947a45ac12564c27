// Command searcher serves the search API over a searchindex.js file.
//
// The index is loaded at startup and reloaded on POST /api/v1/index/reload or
// when an index_built event arrives on Kafka. Redis result caching and Kafka
// analytics are enabled when their addresses are configured.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
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
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/format"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/loader"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
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
	slog.Info("starting search service", "port", cfg.Server.Port, "index", cfg.Index.Path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		go metrics.NewServer(cfg.Metrics.Port, m).Run(ctx)
	}

	stemmer, err := tokenizer.NewStemmer(cfg.Index.Stemmer)
	if err != nil {
		slog.Error("invalid stemmer", "error", err)
		os.Exit(1)
	}
	guard := format.Guard{Required: cfg.Index.EnvVersion, Stemmer: stemmer.Name()}
	idxLoader := loader.New(cfg.Index.Path, guard, m)
	if err := idxLoader.Load(ctx); err != nil {
		// Fail closed: keep serving the empty index and let a reload fix it.
		slog.Warn("starting without an index", "error", err)
	}

	checker := health.NewChecker("searcher")
	checker.Register("index", idxLoader.Check)

	opts := handler.Options{
		Analyzer:     tokenizer.NewAnalyzer(stemmer),
		Scorer:       ranker.FromConfig(cfg.Search.Scorer),
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxLimit:     cfg.Search.MaxLimit,
		Metrics:      m,
		Checker:      checker,
	}

	var queryCache *cache.QueryCache
	if cfg.RedisEnabled() {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			opts.Cache = queryCache
			checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
				if err := redisClient.Ping(ctx); err != nil {
					return health.Degraded(err.Error())
				}
				if c := queryCache.Stats().Circuit; c.State != "closed" {
					return health.Degraded(fmt.Sprintf("circuit %s, %d lookups bypassed", c.State, c.Rejected))
				}
				return health.Up("circuit closed")
			})
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator(cfg.Analytics.TopQueries)
	opts.Stats = aggregator
	opts.Trackers = append(opts.Trackers, aggregator)

	if cfg.KafkaEnabled() {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, analytics.CollectorOptions{
			BufferSize: cfg.Analytics.BufferSize,
			Metrics:    m,
		})
		collector.Start(ctx)
		defer collector.Close()
		opts.Trackers = append(opts.Trackers, collector)
		slog.Info("analytics collector started", "topic", producer.Topic())

		// Every replica must see every build, so each gets its own group.
		host, _ := os.Hostname()
		group := fmt.Sprintf("%s-searcher-%s-%d", cfg.Kafka.ConsumerGroup, host, os.Getpid())
		var invalidator reload.Invalidator
		if queryCache != nil {
			invalidator = queryCache
		}
		reloads := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexEvents, group,
			reload.New(idxLoader, invalidator).Handle())
		defer reloads.Close()
		go func() {
			if err := reloads.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("index event consumer stopped", "error", err)
			}
		}()
		// A stalled reload feed leaves the current index serving.
		checker.Register("index-events", func(ctx context.Context) health.ComponentHealth {
			h := reloads.Check(ctx)
			if h.Status == health.StatusDown {
				h.Status = health.StatusDegraded
			}
			return h
		})
		slog.Info("listening for index builds", "topic", cfg.Kafka.Topics.IndexEvents, "group", group)
	}

	mux := http.NewServeMux()
	handler.New(idxLoader, opts).RegisterRoutes(mux)

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.CORS.AllowedOrigins
	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.CORS(cors),
		middleware.Metrics(m),
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter := middleware.NewClientLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		mws = append(mws, middleware.RateLimit(limiter, m))
		go pruneLimiter(ctx, limiter)
	}
	mws = append(mws, middleware.Timeout(cfg.Server.RequestTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, mws...),
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

func pruneLimiter(ctx context.Context, l *middleware.ClientLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Prune(); n > 0 {
				slog.Debug("pruned idle rate limiters", "clients", n)
			}
		}
	}
}
