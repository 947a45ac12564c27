// Package cache stores search results in Redis under keys scoped to the index
// fingerprint, so results from a replaced index are never served.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

const keyPrefix = "search:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hit_rate"`
	Breaker string  `json:"breaker"`

	Circuit resilience.Snapshot `json:"circuit"`
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New wraps store. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	c := &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("redis-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	if m != nil {
		m.CircuitBreakerState.WithLabelValues("redis-cache").Set(0)
	}
	return c
}

// Get returns a cached result. Redis errors and open-breaker rejections
// count as misses.
func (c *QueryCache) Get(ctx context.Context, fingerprint string, plan *parser.QueryPlan, limit int) (*executor.SearchResult, bool) {
	key := Key(fingerprint, plan, limit)
	var data string
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil || data == "" {
		if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "query", plan.RawQuery, "key", key)
	return &result, true
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) Set(ctx context.Context, fingerprint string, plan *parser.QueryPlan, limit int, result *executor.SearchResult) {
	key := Key(fingerprint, plan, limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or runs computeFn once for all
// concurrent callers with the same key. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	fingerprint string,
	plan *parser.QueryPlan,
	limit int,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, fingerprint, plan, limit); ok {
		return result, true, nil
	}
	key := Key(fingerprint, plan, limit)
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, fingerprint, plan, limit, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SearchResult), false, nil
}

// Invalidate deletes every cached result regardless of fingerprint.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	s := Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Circuit: c.breaker.Snapshot(),
	}
	s.Breaker = s.Circuit.State
	s.Total = s.Hits + s.Misses
	if s.Total > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Total)
	}
	return s
}

// Key builds "search:<fp16>:<hash>". Term order and duplicates do not change
// the key; the raw query text does not take part.
func Key(fingerprint string, plan *parser.QueryPlan, limit int) string {
	fp := fingerprint
	if len(fp) > 16 {
		fp = fp[:16]
	}
	raw := strings.Join([]string{
		"t=" + canonical(plan.Terms),
		"x=" + canonical(plan.ExcludeTerms),
		"o=" + canonical(plan.ObjectTerms),
		fmt.Sprintf("limit=%d", limit),
	}, "|")
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, fp, hash[:16])
}

func canonical(terms []string) string {
	sorted := slices.Clone(terms)
	slices.Sort(sorted)
	return strings.Join(slices.Compact(sorted), ",")
}
