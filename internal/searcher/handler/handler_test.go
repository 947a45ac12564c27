package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/loader"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

type fakeSource struct {
	idx       *index.Index
	next      *index.Index
	reloadErr error
	reloads   int
}

func (f *fakeSource) Current() *index.Index { return f.idx }

func (f *fakeSource) Status() loader.Status {
	return loader.Status{Path: "searchindex.js", Loaded: true, Fingerprint: f.idx.Fingerprint()}
}

func (f *fakeSource) Reload(context.Context) (bool, error) {
	f.reloads++
	if f.reloadErr != nil {
		return false, f.reloadErr
	}
	if f.next == nil {
		return false, nil
	}
	f.idx, f.next = f.next, nil
	return true, nil
}

type fakeCache struct {
	entries     map[string]*executor.SearchResult
	invalidated int
}

func (c *fakeCache) GetOrCompute(_ context.Context, fp string, plan *parser.QueryPlan, limit int,
	fn func() (*executor.SearchResult, error)) (*executor.SearchResult, bool, error) {
	key := cache.Key(fp, plan, limit)
	if r, ok := c.entries[key]; ok {
		return r, true, nil
	}
	r, err := fn()
	if err != nil {
		return nil, false, err
	}
	c.entries[key] = r
	return r, false, nil
}

func (c *fakeCache) Invalidate(context.Context) (int64, error) {
	n := int64(len(c.entries))
	c.entries = map[string]*executor.SearchResult{}
	c.invalidated++
	return n, nil
}

func (c *fakeCache) Stats() cache.Stats { return cache.Stats{Hits: 1, Total: 1, HitRate: 1} }

type recorder struct{ events []analytics.SearchEvent }

func (r *recorder) TrackSearch(e analytics.SearchEvent) { r.events = append(r.events, e) }

func testIndex(t *testing.T) *index.Index {
	t.Helper()
	idx, err := index.New(index.Data{
		Documents: []index.Document{
			{ID: 0, DocName: "intro", FileName: "intro.md", Title: "Heat pump COP"},
			{ID: 1, DocName: "guide", FileName: "guide.md", Title: "Guide"},
			{ID: 2, DocName: "ref", FileName: "ref.md", Title: "Reference"},
		},
		Terms:      map[string][]int{"heat": {0, 1, 2}, "pump": {1}, "cop": {0, 2}},
		TitleTerms: map[string][]int{"heat": {0}, "pump": {0}, "cop": {0}, "guid": {1}, "refer": {2}},
		EnvVersion: map[string]int{"sphinx": index.SphinxEnvVersion},
	})
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func newServer(t *testing.T, src *fakeSource, opts Options) *http.ServeMux {
	t.Helper()
	opts.Scorer = ranker.DefaultScorer()
	mux := http.NewServeMux()
	New(src, opts).RegisterRoutes(mux)
	return mux
}

func do(t *testing.T, mux http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestSearch(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	rec := &recorder{}
	mux := newServer(t, &fakeSource{idx: testIndex(t)}, Options{
		DefaultLimit: 2, MaxLimit: 5, Metrics: m, Trackers: []SearchTracker{rec},
	})

	resp := do(t, mux, http.MethodGet, "/api/v1/search?q=heat")
	if resp.Code != http.StatusOK {
		t.Fatalf("status %d: %s", resp.Code, resp.Body)
	}
	res := decode[executor.SearchResult](t, resp)
	if res.TotalHits != 3 || len(res.Results) != 2 || res.Results[0].DocID != 0 || res.Results[0].Score != 15 {
		t.Errorf("result = %+v", res)
	}
	if len(rec.events) != 1 || rec.events[0].TotalHits != 3 || rec.events[0].Returned != 2 || rec.events[0].Type != analytics.EventSearch {
		t.Errorf("events = %+v", rec.events)
	}
	if got := testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("hit")); got != 1 {
		t.Errorf("search queries = %v", got)
	}

	res = decode[executor.SearchResult](t, do(t, mux, http.MethodGet, "/api/v1/search?q=heat&limit=100"))
	if len(res.Results) != 3 {
		t.Errorf("clamped limit returned %d", len(res.Results))
	}

	res = decode[executor.SearchResult](t, do(t, mux, http.MethodGet, "/api/v1/search?q=zzzz"))
	if res.TotalHits != 0 || res.Results == nil {
		t.Errorf("zero result = %+v", res)
	}
	if got := testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("zero_results")); got != 1 {
		t.Errorf("zero_results = %v", got)
	}
}

func TestSearchEmptyAndBadInput(t *testing.T) {
	mux := newServer(t, &fakeSource{idx: testIndex(t)}, Options{})
	for _, q := range []string{"/api/v1/search", "/api/v1/search?q=", "/api/v1/search?q=the+of"} {
		resp := do(t, mux, http.MethodGet, q)
		if resp.Code != http.StatusOK {
			t.Errorf("%s: status %d", q, resp.Code)
			continue
		}
		if res := decode[executor.SearchResult](t, resp); len(res.Results) != 0 || res.Results == nil {
			t.Errorf("%s: %+v", q, res)
		}
	}
	for _, q := range []string{"?q=heat&limit=0", "?q=heat&limit=-1", "?q=heat&limit=ten"} {
		if resp := do(t, mux, http.MethodGet, "/api/v1/search"+q); resp.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d", q, resp.Code)
		}
	}
}

func TestSearchUsesCache(t *testing.T) {
	fc := &fakeCache{entries: map[string]*executor.SearchResult{}}
	rec := &recorder{}
	mux := newServer(t, &fakeSource{idx: testIndex(t)}, Options{Cache: fc, Trackers: []SearchTracker{rec}})

	first := decode[executor.SearchResult](t, do(t, mux, http.MethodGet, "/api/v1/search?q=heat+pump"))
	second := decode[executor.SearchResult](t, do(t, mux, http.MethodGet, "/api/v1/search?q=pump+heat"))
	if len(fc.entries) != 1 {
		t.Errorf("cache entries = %d", len(fc.entries))
	}
	if second.Query != "pump heat" || first.Query != "heat pump" {
		t.Errorf("queries = %q, %q", first.Query, second.Query)
	}
	if len(rec.events) != 2 || rec.events[0].CacheHit || !rec.events[1].CacheHit {
		t.Errorf("events = %+v", rec.events)
	}

	stats := do(t, mux, http.MethodGet, "/api/v1/cache/stats")
	if s := decode[cache.Stats](t, stats); s.Hits != 1 {
		t.Errorf("stats = %+v", s)
	}
	if resp := do(t, mux, http.MethodPost, "/api/v1/cache/invalidate"); resp.Code != http.StatusOK || fc.invalidated != 1 {
		t.Errorf("invalidate = %d, %d", resp.Code, fc.invalidated)
	}
}

func TestCacheDisabled(t *testing.T) {
	mux := newServer(t, &fakeSource{idx: testIndex(t)}, Options{})
	if resp := do(t, mux, http.MethodPost, "/api/v1/cache/invalidate"); resp.Code != http.StatusServiceUnavailable {
		t.Errorf("invalidate status %d", resp.Code)
	}
	if s := decode[map[string]string](t, do(t, mux, http.MethodGet, "/api/v1/cache/stats")); s["status"] != "disabled" {
		t.Errorf("stats = %v", s)
	}
}

func TestDocuments(t *testing.T) {
	mux := newServer(t, &fakeSource{idx: testIndex(t)}, Options{})

	list := decode[struct {
		Documents []index.Document `json:"documents"`
		Total     int              `json:"total"`
	}](t, do(t, mux, http.MethodGet, "/api/v1/documents"))
	if list.Total != 3 || list.Documents[2].DocName != "ref" {
		t.Errorf("documents = %+v", list)
	}

	tests := []struct {
		path   string
		status int
	}{
		{"/api/v1/documents/1", http.StatusOK},
		{"/api/v1/documents/99", http.StatusNotFound},
		{"/api/v1/documents/abc", http.StatusBadRequest},
		{"/api/v1/documents/-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp := do(t, mux, http.MethodGet, tt.path)
		if resp.Code != tt.status {
			t.Errorf("%s: status %d, want %d", tt.path, resp.Code, tt.status)
		}
	}
	if doc := decode[index.Document](t, do(t, mux, http.MethodGet, "/api/v1/documents/1")); doc.Title != "Guide" {
		t.Errorf("document = %+v", doc)
	}
}

func TestIndexInfoAndReload(t *testing.T) {
	first := testIndex(t)
	next, err := index.New(index.Data{
		Documents:  []index.Document{{ID: 0, DocName: "only", FileName: "only.md", Title: "Only"}},
		Terms:      map[string][]int{"solo": {0}},
		EnvVersion: map[string]int{"sphinx": index.SphinxEnvVersion},
	})
	if err != nil {
		t.Fatal(err)
	}
	src := &fakeSource{idx: first, next: next}
	fc := &fakeCache{entries: map[string]*executor.SearchResult{}}
	mux := newServer(t, src, Options{Cache: fc})

	info := decode[indexInfo](t, do(t, mux, http.MethodGet, "/api/v1/index"))
	if info.Fingerprint != first.Fingerprint() || info.Stats.Documents != 3 || info.EnvVersion["sphinx"] != index.SphinxEnvVersion || !info.Load.Loaded {
		t.Errorf("info = %+v", info)
	}

	resp := do(t, mux, http.MethodPost, "/api/v1/index/reload")
	body := decode[map[string]any](t, resp)
	if resp.Code != http.StatusOK || body["changed"] != true || body["fingerprint"] != next.Fingerprint() {
		t.Errorf("reload = %d %v", resp.Code, body)
	}
	if fc.invalidated != 1 {
		t.Errorf("cache invalidated %d times", fc.invalidated)
	}

	resp = do(t, mux, http.MethodPost, "/api/v1/index/reload")
	if body := decode[map[string]any](t, resp); body["changed"] != false || fc.invalidated != 1 {
		t.Errorf("unchanged reload = %v, invalidated %d", body, fc.invalidated)
	}

	src.reloadErr = errors.New("schema mismatch")
	if resp := do(t, mux, http.MethodPost, "/api/v1/index/reload"); resp.Code != http.StatusServiceUnavailable {
		t.Errorf("failed reload status %d", resp.Code)
	}
	if resp := do(t, mux, http.MethodGet, "/api/v1/index/reload"); resp.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET reload status %d", resp.Code)
	}
}

func TestAnalyticsAndHealth(t *testing.T) {
	agg := analytics.NewAggregator(5)
	checker := health.NewChecker("searcher")
	checker.Register("index", func(context.Context) health.ComponentHealth { return health.Down(errors.New("not loaded")) })
	mux := newServer(t, &fakeSource{idx: testIndex(t)}, Options{
		Stats: agg, Trackers: []SearchTracker{agg}, Checker: checker,
	})

	do(t, mux, http.MethodGet, "/api/v1/search?q=heat")
	stats := decode[analytics.AggregatedStats](t, do(t, mux, http.MethodGet, "/api/v1/analytics"))
	if stats.TotalSearches != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if resp := do(t, mux, http.MethodGet, "/health/live"); resp.Code != http.StatusOK {
		t.Errorf("live status %d", resp.Code)
	}
	if resp := do(t, mux, http.MethodGet, "/health/ready"); resp.Code != http.StatusServiceUnavailable {
		t.Errorf("ready status %d", resp.Code)
	}
}
