package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPMiddleware wraps a handler to record request count, duration, and
// in-flight requests.
func HTTPMiddleware(m *Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := normalizePath(r.URL.Path)
		m.HTTPRequests.WithLabels(r.Method, path, statusLabel(wrapped.statusCode)).Inc()
		m.HTTPDuration.WithLabels(r.Method, path).Observe(float64(time.Since(start).Milliseconds()))
	})
}

// responseWriter captures the status code written by a handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(w.statusCode)
	}
	return w.ResponseWriter.Write(b)
}

// normalizePath collapses per-pipeline routes so metric cardinality stays
// bounded by the route table, not the corpus.
func normalizePath(path string) string {
	if strings.HasPrefix(path, "/v1/pipelines/") {
		return "/v1/pipelines/{name}"
	}
	return path
}

// statusLabel groups uncommon codes by class to keep label cardinality low.
func statusLabel(code int) string {
	switch code {
	case 200, 201, 204, 400, 401, 404, 429, 500, 503, 504:
		return strconv.Itoa(code)
	}
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	}
	return strconv.Itoa(code)
}
