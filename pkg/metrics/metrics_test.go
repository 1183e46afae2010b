package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesRegisteredCollectors(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SearchQueriesTotal.WithLabelValues("results").Inc()
	m.CorpusDocuments.Set(3)
	m.CircuitBreakerState.WithLabelValues("query-cache").Set(StateGauge("open"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, `search_queries_total{result_type="results"} 1`)
	assert.Contains(t, out, "corpus_documents 3")
	assert.Contains(t, out, `circuit_breaker_state{name="query-cache"} 1`)
}

func TestNewWithNilRegistererIsIsolated(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}

func TestStateGauge(t *testing.T) {
	assert.Equal(t, 0.0, StateGauge("closed"))
	assert.Equal(t, 1.0, StateGauge("open"))
	assert.Equal(t, 2.0, StateGauge("half-open"))
}
