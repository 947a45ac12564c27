// Package indexer builds a searchindex.js from a documentation source tree
// and announces each finished build.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/format"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

// Publisher announces a finished build. *kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type BuildOptions struct {
	SourceDir  string
	OutputPath string
	Stemmer    string
	Excludes   []string
	Workers    int
	Wrap       bool
	EnvVersion map[string]int
}

// OptionsFromConfig maps the index section of the config onto BuildOptions.
func OptionsFromConfig(cfg config.IndexConfig) BuildOptions {
	return BuildOptions{
		SourceDir:  cfg.SourceDir,
		OutputPath: cfg.Path,
		Stemmer:    cfg.Stemmer,
		Excludes:   cfg.Excludes,
		Workers:    cfg.Workers,
		Wrap:       cfg.Wrap,
	}
}

type BuildReport struct {
	OutputPath  string        `json:"output_path"`
	Fingerprint string        `json:"fingerprint"`
	Stemmer     string        `json:"stemmer"`
	Stats       index.Stats   `json:"stats"`
	Duration    time.Duration   `json:"duration"`
	Stages      []tracing.Stage `json:"stages"`
	Published   bool            `json:"published"`
}

type Engine struct {
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewEngine returns an engine. publisher and m may be nil.
func NewEngine(publisher Publisher, m *metrics.Metrics) *Engine {
	return &Engine{
		publisher: publisher,
		metrics:   m,
		logger:    slog.Default().With("component", "indexer"),
	}
}

// Build discovers sources, builds and validates the index, writes it
// atomically and publishes an index_built event. A publish failure is logged
// and reported in BuildReport.Published; the written index stays in place.
func (e *Engine) Build(ctx context.Context, opts BuildOptions) (*BuildReport, error) {
	report, err := e.build(ctx, opts)
	e.recordBuild(err)
	return report, err
}

func (e *Engine) build(ctx context.Context, opts BuildOptions) (*BuildReport, error) {
	if opts.SourceDir == "" {
		return nil, fmt.Errorf("build: source directory is required")
	}
	if opts.OutputPath == "" {
		return nil, fmt.Errorf("build: output path is required")
	}
	stemmer, err := tokenizer.NewStemmer(opts.Stemmer)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	ctx, root := tracing.Start(ctx, "build")
	defer func() {
		root.End()
		root.Log(e.logger)
	}()
	root.SetAttr("source", opts.SourceDir)

	_, span := tracing.Start(ctx, "discover")
	docs, err := source.Discover(ctx, opts.SourceDir, source.Options{
		Excludes: opts.Excludes,
		Workers:  opts.Workers,
	})
	span.End()
	if err != nil {
		return nil, fmt.Errorf("discovering sources: %w", err)
	}
	span.SetAttr("documents", len(docs))

	_, span = tracing.Start(ctx, "index")
	b := index.NewBuilder(tokenizer.NewAnalyzer(stemmer)).WithEnvVersion(opts.EnvVersion)
	for _, doc := range docs {
		if err := b.Add(doc); err != nil {
			return nil, fmt.Errorf("building index: %w", err)
		}
	}
	idx, err := b.Build()
	span.End()
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}

	_, span = tracing.Start(ctx, "validate")
	err = idx.Validate()
	span.End()
	if err != nil {
		return nil, fmt.Errorf("validating index: %w", err)
	}
	stats := idx.Stats()
	e.logger.Info("index built",
		"documents", stats.Documents,
		"terms", stats.Terms,
		"title_terms", stats.TitleTerms,
	)

	_, span = tracing.Start(ctx, "write")
	err = format.WriteFile(ctx, opts.OutputPath, idx, format.Options{Wrap: opts.Wrap})
	span.End()
	if err != nil {
		return nil, fmt.Errorf("writing index: %w", err)
	}

	report := &BuildReport{
		OutputPath:  opts.OutputPath,
		Fingerprint: idx.Fingerprint(),
		Stemmer:     stemmer.Name(),
		Stats:       stats,
		Duration:    time.Since(root.Start),
	}
	e.logger.Info("index written",
		"path", report.OutputPath,
		"fingerprint", report.Fingerprint,
		"duration", report.Duration,
	)

	if e.publisher != nil {
		event := analytics.IndexEvent{
			Type:        analytics.EventIndexBuilt,
			Path:        report.OutputPath,
			Fingerprint: report.Fingerprint,
			Stemmer:     report.Stemmer,
			Documents:   stats.Documents,
			Terms:       stats.Terms,
			TitleTerms:  stats.TitleTerms,
			DurationMs:  report.Duration.Milliseconds(),
			Timestamp:   time.Now().UTC(),
		}
		_, span = tracing.Start(ctx, "publish")
		err := e.publisher.Publish(ctx, kafka.Event{Key: "index", Value: event})
		span.End()
		if err != nil {
			e.logger.Error("failed to publish index event", "error", err)
		} else {
			report.Published = true
		}
	}
	report.Stages = root.Stages()
	return report, nil
}

func (e *Engine) recordBuild(err error) {
	if e.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
}
