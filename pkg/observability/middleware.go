package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// knownPaths keeps the path label bounded. Anything else is reported as
// "other".
var knownPaths = []string{
	"/v1/assistant/turns",
	"/v1/assistant/history",
	"/healthz",
	"/readyz",
	"/metrics",
}

// MetricsMiddleware wraps an HTTP handler to record request metrics.
//
// It captures:
//   - kontrakt_requests_total (counter): method, status class and path labels
//   - kontrakt_request_duration_seconds (histogram): method and path labels
//   - kontrakt_requests_in_flight (gauge): incremented while a request is served
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		RequestsInFlight.Inc()
		defer RequestsInFlight.Dec()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := pathLabel(r.URL.Path)
		statusStr := strconv.Itoa(sw.status/100) + "xx"

		RequestsTotal.WithLabelValues(r.Method, statusStr, path).Inc()
		RequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func pathLabel(p string) string {
	p = strings.TrimSuffix(p, "/")
	for _, known := range knownPaths {
		if p == known {
			return known
		}
	}
	return "other"
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

// Flush delegates to the underlying writer if it implements http.Flusher.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter, enabling http.ResponseController
// and similar utilities to access the original writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
