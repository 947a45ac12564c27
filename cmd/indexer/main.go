// Command indexer builds a searchindex.js from the configured source tree and
// announces the build on Kafka so searchers reload it.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml] [-source docs] [-out searchindex.js]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	sourceDir := flag.String("source", "", "source directory (overrides index.sourceDir)")
	outPath := flag.String("out", "", "output file (overrides index.path)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	opts := indexer.OptionsFromConfig(cfg.Index)
	if *sourceDir != "" {
		opts.SourceDir = *sourceDir
	}
	if *outPath != "" {
		opts.OutputPath = *outPath
	}
	slog.Info("starting index build", "source", opts.SourceDir, "out", opts.OutputPath, "stemmer", opts.Stemmer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var publisher indexer.Publisher
	if cfg.KafkaEnabled() {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexEvents)
		defer producer.Close()
		publisher = producer
	}

	engine := indexer.NewEngine(publisher, metrics.New(prometheus.NewRegistry()))
	report, err := engine.Build(ctx, opts)
	if err != nil {
		slog.Error("index build failed", "error", err)
		stop()
		os.Exit(1)
	}

	slog.Info("index build finished",
		"out", report.OutputPath,
		"fingerprint", report.Fingerprint,
		"documents", report.Stats.Documents,
		"published", report.Published,
		"duration", report.Duration,
	)
}
