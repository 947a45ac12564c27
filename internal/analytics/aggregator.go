// Package analytics collects search and index events, publishes them to
// Kafka and folds them into running statistics.
package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	IndexBuilds       int64        `json:"index_builds"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	CacheHitRate      float64      `json:"cache_hit_rate"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
	LastIndex         *IndexEvent  `json:"last_index,omitempty"`
	CapturedAt        time.Time    `json:"captured_at"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds events into AggregatedStats. It is safe for concurrent
// use.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     int64
	indexBuilds       int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	latencies         []int64
	latencyNext       int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	lastIndex         *IndexEvent
	topN              int
	startTime         time.Time
	now               func() time.Time

	logger *slog.Logger
}

// NewAggregator returns an empty aggregator reporting the topN most frequent
// queries.
func NewAggregator(topN int) *Aggregator {
	if topN <= 0 {
		topN = 10
	}
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		topN:              topN,
		startTime:         time.Now(),
		now:               time.Now,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// Handle adapts the aggregator to a Kafka consumer. Undecodable messages are
// logged and skipped so they do not block the partition.
func (a *Aggregator) Handle() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := DecodeEvent(value)
		if err != nil {
			a.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		switch e := event.(type) {
		case SearchEvent:
			a.RecordSearch(e)
		case IndexEvent:
			a.RecordIndex(e)
		}
		return nil
	}
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func (a *Aggregator) RecordSearch(e SearchEvent) {
	q := normalizeQuery(e.Query)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches++
	if e.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, e.LatencyMs)
	} else {
		a.latencies[a.latencyNext] = e.LatencyMs
		a.latencyNext = (a.latencyNext + 1) % maxLatencySamples
	}
	if q == "" {
		return
	}
	a.queryCounts[q]++
	if e.TotalHits == 0 {
		a.zeroResults++
		a.zeroResultQueries[q]++
	}
}

// TrackSearch lets the aggregator stand in for a Collector when analytics
// stay in process.
func (a *Aggregator) TrackSearch(e SearchEvent) { a.RecordSearch(e) }

func (a *Aggregator) RecordIndex(e IndexEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.indexBuilds++
	a.lastIndex = &e
}

// Restore seeds the counters from a persisted snapshot. Latency samples are
// not persisted, so percentiles restart empty.
func (a *Aggregator) Restore(s AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches = s.TotalSearches
	a.indexBuilds = s.IndexBuilds
	a.cacheHits = s.CacheHits
	a.cacheMisses = s.CacheMisses
	a.zeroResults = s.ZeroResultCount
	for _, qc := range s.TopQueries {
		a.queryCounts[qc.Query] = qc.Count
	}
	for _, qc := range s.ZeroResultQueries {
		a.zeroResultQueries[qc.Query] = qc.Count
	}
	if s.LastIndex != nil {
		last := *s.LastIndex
		a.lastIndex = &last
	}
	a.logger.Info("analytics restored from snapshot", "total_searches", s.TotalSearches)
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := a.now()
	stats := AggregatedStats{
		TotalSearches:   a.totalSearches,
		IndexBuilds:     a.indexBuilds,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
		CapturedAt:      now.UTC(),
	}
	if lookups := a.cacheHits + a.cacheMisses; lookups > 0 {
		stats.CacheHitRate = float64(a.cacheHits) / float64(lookups)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, a.topN)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, a.topN)
	if a.lastIndex != nil {
		last := *a.lastIndex
		stats.LastIndex = &last
	}
	if elapsed := now.Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count descending, then query ascending.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
