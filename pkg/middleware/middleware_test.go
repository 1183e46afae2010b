package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/ratelimit"
)

func TestRequestIDPropagates(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/v1/search?q=x", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Len(t, seen, 24)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	called := false
	h := CORS(DefaultCORSConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/search", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, called)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/search", nil))
	assert.True(t, called)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestTimeoutSetsDeadline(t *testing.T) {
	var hasDeadline bool
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.True(t, hasDeadline)

	h = Timeout(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.False(t, hasDeadline)
}

func TestMetricsRecordsStatus(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	h := Metrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/tracks/TR1", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(),
		`http_requests_total{method="GET",path="/api/v1/tracks/{id}",status="404"} 1`)
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/api/v1/search", routeLabel("/api/v1/search"))
	assert.Equal(t, "/api/v1/tracks/{id}", routeLabel("/api/v1/tracks/TRAAA"))
	assert.Equal(t, "other", routeLabel("/wp-admin"))
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(ratelimit.New(2, time.Minute))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(path, remote, fwd string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", path, nil)
		req.RemoteAddr = remote
		if fwd != "" {
			req.Header.Set("X-Forwarded-For", fwd)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("/api/v1/search", "10.0.0.1:5000", "").Code)
	assert.Equal(t, http.StatusOK, send("/api/v1/search", "10.0.0.1:5001", "").Code)
	rec := send("/api/v1/search", "10.0.0.1:5002", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, send("/health/ready", "10.0.0.1:5003", "").Code)
	assert.Equal(t, http.StatusOK, send("/api/v1/search", "10.0.0.1:5004", "203.0.113.9, 10.0.0.1").Code)
}
