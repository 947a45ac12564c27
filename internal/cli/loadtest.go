package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/format"
)

// loadStats collects per-request outcomes from concurrent workers.
type loadStats struct {
	total   atomic.Int64
	success atomic.Int64
	errors  atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	statuses  map[int]int64
}

func newLoadStats() *loadStats {
	return &loadStats{
		latencies: make([]time.Duration, 0, 4096),
		statuses:  make(map[int]int64),
	}
}

func (s *loadStats) record(d time.Duration, status int, err error) {
	s.total.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.success.Add(1)
	} else {
		s.errors.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statuses[status]++
	s.mu.Unlock()
}

type loadOptions struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	requests    int64
	limit       int
	queries     []string
}

func newLoadTestCommand(_ *rootOptions) *cobra.Command {
	opts := loadOptions{}
	var fromIndex string
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Fire concurrent queries at a running search service",
		Long: `Send GET /api/v1/search requests from several workers and report
throughput, latency percentiles and status codes. Queries come from --query
or are drawn from the title terms of a local index with --from-index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if fromIndex != "" {
				idx, err := format.ReadFile(fromIndex)
				if err != nil {
					return err
				}
				opts.queries = append(opts.queries, idx.TitleTermKeys()...)
			}
			if len(opts.queries) == 0 {
				return fmt.Errorf("no queries: pass --query or --from-index")
			}
			if opts.concurrency < 1 {
				return fmt.Errorf("concurrency must be positive")
			}
			out := cmd.OutOrStdout()
			printSection(out, "Load test")
			printInfo(out, fmt.Sprintf("target       %s", opts.baseURL))
			printInfo(out, fmt.Sprintf("concurrency  %d", opts.concurrency))
			printInfo(out, fmt.Sprintf("duration     %s", opts.duration))
			printInfo(out, fmt.Sprintf("queries      %d unique", len(opts.queries)))

			stats, elapsed, err := runLoad(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printLoadReport(out, stats, elapsed)
			if stats.total.Load() == 0 || stats.success.Load() == 0 {
				return fmt.Errorf("no request succeeded; is the service running at %s?", opts.baseURL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Base URL of the search service")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 10, "Number of concurrent workers")
	cmd.Flags().DurationVar(&opts.duration, "duration", 30*time.Second, "How long to run")
	cmd.Flags().Int64Var(&opts.requests, "requests", 0, "Stop after this many requests (0 for no limit)")
	cmd.Flags().IntVar(&opts.limit, "limit", 10, "limit parameter sent with each query")
	cmd.Flags().StringArrayVar(&opts.queries, "query", nil, "Query to send; repeatable")
	cmd.Flags().StringVar(&fromIndex, "from-index", "", "Draw queries from the title terms of this searchindex.js")
	return cmd
}

func runLoad(ctx context.Context, opts loadOptions) (*loadStats, time.Duration, error) {
	stats := newLoadStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        opts.concurrency * 2,
			MaxIdleConnsPerHost: opts.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	defer client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	var sent atomic.Int64
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				if opts.requests > 0 && sent.Add(1) > opts.requests {
					return nil
				}
				q := opts.queries[i%len(opts.queries)]
				target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d", opts.baseURL, url.QueryEscape(q), opts.limit)
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					return fmt.Errorf("building request: %w", err)
				}
				t0 := time.Now()
				resp, err := client.Do(req)
				d := time.Since(t0)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					stats.record(d, 0, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.record(d, resp.StatusCode, nil)
			}
			return nil
		})
	}
	err := g.Wait()
	return stats, time.Since(start), err
}

func printLoadReport(w io.Writer, s *loadStats, elapsed time.Duration) {
	total := s.total.Load()
	printSection(w, "Results")
	printInfo(w, fmt.Sprintf("requests     %d", total))
	printInfo(w, fmt.Sprintf("successful   %d", s.success.Load()))
	printInfo(w, fmt.Sprintf("errors       %d", s.errors.Load()))
	if total > 0 {
		printInfo(w, fmt.Sprintf("error rate   %.2f%%", float64(s.errors.Load())/float64(total)*100))
		printInfo(w, fmt.Sprintf("req/sec      %.2f", float64(total)/elapsed.Seconds()))
	}

	s.mu.Lock()
	latencies := slices.Clone(s.latencies)
	statuses := make(map[int]int64, len(s.statuses))
	for k, v := range s.statuses {
		statuses[k] = v
	}
	s.mu.Unlock()

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))
		var sq float64
		for _, l := range latencies {
			diff := float64(l - avg)
			sq += diff * diff
		}
		printSection(w, "Latency")
		printInfo(w, fmt.Sprintf("min     %s", latencies[0]))
		printInfo(w, fmt.Sprintf("avg     %s", avg))
		for _, p := range []float64{50, 90, 95, 99} {
			printInfo(w, fmt.Sprintf("p%-6g %s", p, percentile(latencies, p)))
		}
		printInfo(w, fmt.Sprintf("max     %s", latencies[len(latencies)-1]))
		printInfo(w, fmt.Sprintf("stddev  %s", time.Duration(math.Sqrt(sq/float64(len(latencies))))))
	}

	if len(statuses) > 0 {
		printSection(w, "Status codes")
		codes := make([]int, 0, len(statuses))
		for code := range statuses {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			printInfo(w, fmt.Sprintf("%d: %d", code, statuses[code]))
		}
	}
}

// percentile uses the nearest-rank method on sorted.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
