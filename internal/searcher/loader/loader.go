// Package loader owns the searcher's active index. It loads searchindex.js
// through the version guard, swaps new indexes in atomically and fails
// closed: a searcher that never loaded a valid index serves the empty one.
package loader

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/format"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

// Status describes the active index and the most recent load attempt.
type Status struct {
	Path        string    `json:"path"`
	Loaded      bool      `json:"loaded"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Documents   int       `json:"documents"`
	LoadedAt    time.Time `json:"loaded_at,omitempty"`
	LastAttempt time.Time `json:"last_attempt,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

type Loader struct {
	path    string
	guard   format.Guard
	metrics *metrics.Metrics
	logger  *slog.Logger

	current atomic.Pointer[index.Index]
	mu      sync.Mutex // serialises loads and guards status
	status  Status
	now     func() time.Time
}

// New returns a loader serving the empty index until Load succeeds. m may
// be nil.
func New(path string, guard format.Guard, m *metrics.Metrics) *Loader {
	l := &Loader{
		path:    path,
		guard:   guard,
		metrics: m,
		logger:  slog.Default().With("component", "index-loader", "path", path),
		status:  Status{Path: path},
		now:     time.Now,
	}
	l.current.Store(index.Empty())
	return l
}

// Current returns the active index. It never returns nil.
func (l *Loader) Current() *index.Index { return l.current.Load() }

// Load reads the index file and makes it active. On failure the previous
// index stays active and the error is returned.
func (l *Loader) Load(ctx context.Context) error {
	_, err := l.load(ctx, true)
	return err
}

// Reload reads the index file and swaps it in only when its fingerprint
// differs from the active one.
func (l *Loader) Reload(ctx context.Context) (bool, error) {
	return l.load(ctx, false)
}

func (l *Loader) load(ctx context.Context, force bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.LastAttempt = l.now().UTC()

	idx, err := format.LoadFile(l.path, l.guard)
	if err != nil {
		l.status.LastError = err.Error()
		status := "error"
		if errors.Is(err, apperrors.ErrSchemaMismatch) {
			status = "schema_mismatch"
		}
		l.recordLoad(status)
		if l.status.Loaded {
			l.logger.Error("index load failed, keeping previous index", "error", err, "fingerprint", l.status.Fingerprint)
		} else {
			l.logger.Error("index load failed, serving empty index", "error", err)
		}
		return false, err
	}

	fp := idx.Fingerprint()
	l.status.LastError = ""
	if !force && l.status.Loaded && fp == l.status.Fingerprint {
		l.recordLoad("unchanged")
		l.logger.Debug("index unchanged", "fingerprint", fp)
		return false, nil
	}

	l.current.Store(idx)
	stats := idx.Stats()
	l.status.Loaded = true
	l.status.Fingerprint = fp
	l.status.Documents = stats.Documents
	l.status.LoadedAt = l.status.LastAttempt
	l.recordLoad("ok")
	if l.metrics != nil {
		l.metrics.IndexDocuments.Set(float64(stats.Documents))
		l.metrics.IndexTerms.WithLabelValues("terms").Set(float64(stats.Terms))
		l.metrics.IndexTerms.WithLabelValues("titleterms").Set(float64(stats.TitleTerms))
	}
	l.logger.Info("index loaded",
		"fingerprint", fp,
		"documents", stats.Documents,
		"terms", stats.Terms,
		"title_terms", stats.TitleTerms,
		"objects", stats.Objects,
	)
	return true, nil
}

func (l *Loader) recordLoad(status string) {
	if l.metrics != nil {
		l.metrics.IndexLoadsTotal.WithLabelValues(status).Inc()
	}
}

func (l *Loader) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Check reports down while only the empty index is served and degraded when
// the last reload failed but an earlier index is still active.
func (l *Loader) Check(ctx context.Context) health.ComponentHealth {
	s := l.Status()
	switch {
	case !s.Loaded && s.LastError != "":
		return health.Down(errors.New(s.LastError))
	case !s.Loaded:
		return health.Down(errors.New("index not loaded"))
	case s.LastError != "":
		return health.Degraded("serving previous index: " + s.LastError)
	default:
		return health.Up(s.Fingerprint)
	}
}
