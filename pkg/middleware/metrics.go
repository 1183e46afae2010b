// Package middleware provides the HTTP middleware shared by the search API:
// request IDs, CORS, Prometheus request metrics and request deadlines.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/metrics"
)

// Metrics records request count, latency and the in-flight gauge. Paths are
// collapsed to their route so per-track URLs share one series.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := routeLabel(r.URL.Path)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}

func routeLabel(path string) string {
	const tracks = "/api/v1/tracks/"
	if strings.HasPrefix(path, tracks) && len(path) > len(tracks) {
		return tracks + "{id}"
	}
	switch path {
	case "/api/v1/search", "/api/v1/analytics", "/api/v1/cache/stats", "/api/v1/cache/invalidate",
		"/health/live", "/health/ready":
		return path
	}
	return "other"
}
