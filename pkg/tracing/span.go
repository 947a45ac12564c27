// Package tracing times the stages of a multi-step operation, such as an
// index build, as a tree of spans carried in the context. Finished trees are
// logged through slog and can be flattened into per-stage timings.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

type contextKey struct{}

// Span is one timed stage. Children are the stages started from its context.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration

	mu       sync.Mutex
	attrs    []any
	children []*Span
	now      func() time.Time
}

// Stage is a flattened span: its slash-joined path and duration.
type Stage struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// Start opens a span named name. If ctx already carries a span the new one
// becomes its child and shares its trace ID; otherwise it is a root whose
// trace ID is the request ID in ctx, if any.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	s := &Span{Name: name, now: time.Now}
	if parent := FromContext(ctx); parent != nil {
		s.TraceID = parent.TraceID
		s.now = parent.now
		parent.mu.Lock()
		parent.children = append(parent.children, s)
		parent.mu.Unlock()
	} else {
		s.TraceID = logger.RequestID(ctx)
	}
	s.Start = s.now()
	return context.WithValue(ctx, contextKey{}, s), s
}

// FromContext returns the span in ctx, or nil.
func FromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(contextKey{}).(*Span)
	return s
}

// End records the span's duration. Calling it again has no effect.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Duration == 0 {
		s.Duration = s.now().Sub(s.Start)
	}
}

// SetAttr attaches a key-value pair logged with the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// Stages flattens the tree below s in start order. Nested stage names are
// joined with "/".
func (s *Span) Stages() []Stage {
	var out []Stage
	var walk func(prefix string, sp *Span)
	walk = func(prefix string, sp *Span) {
		sp.mu.Lock()
		children := append([]*Span(nil), sp.children...)
		sp.mu.Unlock()
		for _, c := range children {
			name := c.Name
			if prefix != "" {
				name = prefix + "/" + name
			}
			out = append(out, Stage{Name: name, Duration: c.Duration})
			walk(name, c)
		}
	}
	walk("", s)
	return out
}

// Log writes one debug record per span, depth first.
func (s *Span) Log(log *slog.Logger) {
	s.log(log, 0)
}

func (s *Span) log(log *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}
	if s.TraceID != "" {
		attrs = append(attrs, "trace_id", s.TraceID)
	}
	attrs = append(attrs, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	log.Debug("span", attrs...)
	for _, c := range children {
		c.log(log, depth+1)
	}
}
