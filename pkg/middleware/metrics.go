package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

// routePrefixes are the path trees served by docsearch. Anything else is
// counted under a single "other" label so scanners cannot grow the series.
var routePrefixes = []string{"/api/", "/health/"}

// Metrics records request count, latency and the in-flight gauge, labelled
// by method, route and status.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			route := routeLabel(r.URL.Path)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.Status())).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// Status is the code sent to the client; a handler that wrote nothing
// produced an implicit 200.
func (s *statusRecorder) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// routeLabel collapses numeric segments, so /api/v1/documents/3 and /12
// share a label, and folds unknown trees into "other".
func routeLabel(path string) string {
	known := false
	for _, p := range routePrefixes {
		if strings.HasPrefix(path, p) {
			known = true
			break
		}
	}
	if !known {
		if path == "/" {
			return path
		}
		return "other"
	}
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if s == "" {
			continue
		}
		if _, err := strconv.Atoi(s); err == nil {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}
