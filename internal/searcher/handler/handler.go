// Package handler serves the searcher's JSON API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/loader"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
)

// IndexSource supplies the active index. *loader.Loader satisfies it.
type IndexSource interface {
	Current() *index.Index
	Status() loader.Status
	Reload(ctx context.Context) (bool, error)
}

// ResultCache is the optional result cache. *cache.QueryCache satisfies it.
type ResultCache interface {
	GetOrCompute(ctx context.Context, fingerprint string, plan *parser.QueryPlan, limit int,
		computeFn func() (*executor.SearchResult, error)) (*executor.SearchResult, bool, error)
	Invalidate(ctx context.Context) (int64, error)
	Stats() cache.Stats
}

// SearchTracker receives one event per answered search.
type SearchTracker interface {
	TrackSearch(e analytics.SearchEvent)
}

type Options struct {
	Analyzer     *tokenizer.Analyzer
	Scorer       ranker.Scorer
	DefaultLimit int
	MaxLimit     int
	// Cache, Stats, Metrics and Checker are optional.
	Cache    ResultCache
	Trackers []SearchTracker
	Stats    *analytics.Aggregator
	Metrics  *metrics.Metrics
	Checker  *health.Checker
}

type Handler struct {
	source IndexSource
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

func New(source IndexSource, opts Options) *Handler {
	if opts.Analyzer == nil {
		opts.Analyzer = tokenizer.NewAnalyzer(tokenizer.MustStemmer("porter"))
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 20
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	return &Handler{
		source: source,
		opts:   opts,
		logger: slog.Default().With("component", "search-handler"),
		now:    time.Now,
	}
}

// RegisterRoutes mounts the API on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/documents", h.Documents)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/index", h.IndexInfo)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	if h.opts.Stats != nil {
		analytics.NewHandler(h.opts.Stats, nil).RegisterRoutes(mux)
	}
	if c := h.opts.Checker; c != nil {
		mux.HandleFunc("GET /health/live", c.LiveHandler())
		mux.HandleFunc("GET /health/ready", c.ReadyHandler())
	} else {
		mux.HandleFunc("GET /health/live", h.live)
		mux.HandleFunc("GET /health/ready", h.live)
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	plan := parser.Parse(query, h.opts.Analyzer)
	idx := h.source.Current()
	if plan.Empty() {
		h.recordSearch("empty_query", "none", 0, start)
		h.writeJSON(w, http.StatusOK, &executor.SearchResult{
			Query:       query,
			Results:     []executor.Result{},
			TermStats:   map[string]int{},
			Fingerprint: idx.Fingerprint(),
		})
		return
	}

	exec := executor.New(idx, h.opts.Scorer)
	compute := func() (*executor.SearchResult, error) {
		return exec.Execute(ctx, plan, limit)
	}

	var result *executor.SearchResult
	cacheHit := false
	cacheStatus := "disabled"
	if h.opts.Cache != nil {
		result, cacheHit, err = h.opts.Cache.GetOrCompute(ctx, idx.Fingerprint(), plan, limit, compute)
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		result, err = compute()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = apperrors.New(apperrors.ErrTimeout, 0, "search timed out")
		}
		log.Error("search execution failed", "query", query, "error", err)
		h.recordSearch("error", cacheStatus, 0, start)
		h.writeError(w, err)
		return
	}
	// The cache keys on terms, so a shared result may carry another spelling
	// of the query.
	out := *result
	out.Query = query
	result = &out

	latency := h.now().Sub(start)
	resultType := "hit"
	if result.TotalHits == 0 {
		resultType = "zero_results"
	}
	h.recordSearch(resultType, cacheStatus, len(result.Results), start)

	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)

	event := analytics.SearchEvent{
		Type:        analytics.EventSearch,
		Query:       query,
		Terms:       plan.Terms,
		TotalHits:   result.TotalHits,
		Returned:    len(result.Results),
		LatencyMs:   latency.Milliseconds(),
		CacheHit:    cacheHit,
		Fingerprint: result.Fingerprint,
		Timestamp:   start.UTC(),
		RequestID:   middleware.GetRequestID(r),
	}
	for _, t := range h.opts.Trackers {
		t.TrackSearch(event)
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.opts.DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
	}
	return min(n, h.opts.MaxLimit), nil
}

func (h *Handler) recordSearch(resultType, cacheStatus string, returned int, start time.Time) {
	m := h.opts.Metrics
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(h.now().Sub(start).Seconds())
	m.SearchResultsCount.Observe(float64(returned))
}

func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	docs := h.source.Current().Documents()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"total":     len(docs),
	})
}

func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "document id must be a non-negative integer"))
		return
	}
	doc, ok := h.source.Current().Document(id)
	if !ok {
		h.writeError(w, apperrors.Newf(apperrors.ErrDocumentNotFound, 0, "document %d", id))
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

type indexInfo struct {
	Fingerprint string         `json:"fingerprint"`
	Stats       index.Stats    `json:"stats"`
	EnvVersion  map[string]int `json:"envversion"`
	Load        loader.Status  `json:"load"`
}

func (h *Handler) IndexInfo(w http.ResponseWriter, r *http.Request) {
	idx := h.source.Current()
	h.writeJSON(w, http.StatusOK, indexInfo{
		Fingerprint: idx.Fingerprint(),
		Stats:       idx.Stats(),
		EnvVersion:  idx.EnvVersion(),
		Load:        h.source.Status(),
	})
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	changed, err := h.source.Reload(ctx)
	if err != nil {
		logger.FromContext(ctx).Error("index reload failed", "error", err)
		h.writeError(w, apperrors.New(apperrors.ErrIndexUnavailable, http.StatusServiceUnavailable, err.Error()))
		return
	}
	var invalidated int64
	if changed && h.opts.Cache != nil {
		if invalidated, err = h.opts.Cache.Invalidate(ctx); err != nil {
			logger.FromContext(ctx).Warn("cache invalidation after reload failed", "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"changed":          changed,
		"fingerprint":      h.source.Current().Fingerprint(),
		"keys_invalidated": invalidated,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.opts.Cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.opts.Cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := h.opts.Cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, apperrors.New(apperrors.ErrInternal, 0, "cache invalidation failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) live(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": msg})
}
