// Package analytics follows what users search for. The search service tracks
// one SearchEvent per query through a Collector that publishes to Kafka; the
// analytics service consumes the topic into an Aggregator, serves its stats
// and snapshots them to PostgreSQL.
package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/kafka"
)

const (
	latencyWindow     = 10000
	maxTrackedQueries = 100000
	topQueries        = 10
)

type Stats struct {
	TotalSearches     int64        `json:"total_searches"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	EmptyQueryCount   int64        `json:"empty_query_count"`
	ErrorCount        int64        `json:"error_count"`
	AvgCandidates     float64      `json:"avg_candidates"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      float64      `json:"p50_latency_ms"`
	P95LatencyMs      float64      `json:"p95_latency_ms"`
	P99LatencyMs      float64      `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	TopDocuments      []QueryCount `json:"top_documents"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running totals over search events. Latency percentiles
// cover the most recent events only.
type Aggregator struct {
	mu         sync.Mutex
	stats      Stats
	candidates int64
	latencies  []float64
	next       int
	queries    map[string]int64
	zeroResult map[string]int64
	topDocs    map[string]int64
	startTime  time.Time
	now        func() time.Time
	logger     *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:  make([]float64, 0, latencyWindow),
		queries:    make(map[string]int64),
		zeroResult: make(map[string]int64),
		topDocs:    make(map[string]int64),
		startTime:  time.Now(),
		now:        time.Now,
		logger:     slog.Default().With("component", "analytics-aggregator"),
	}
}

func (a *Aggregator) Record(e SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.TotalSearches++
	if e.CacheHit {
		a.stats.CacheHits++
	} else {
		a.stats.CacheMisses++
	}
	switch e.Outcome {
	case OutcomeZeroResult:
		a.stats.ZeroResultCount++
		bump(a.zeroResult, e.Query)
	case OutcomeEmptyQuery:
		a.stats.EmptyQueryCount++
	case OutcomeError:
		a.stats.ErrorCount++
	}
	a.candidates += int64(e.Candidates)
	bump(a.queries, e.Query)
	if e.TopDocID != "" {
		bump(a.topDocs, e.TopDocID)
	}

	if len(a.latencies) < latencyWindow {
		a.latencies = append(a.latencies, e.LatencyMs)
	} else {
		a.latencies[a.next] = e.LatencyMs
		a.next = (a.next + 1) % latencyWindow
	}
}

// HandleMessage decodes a search event from the Kafka topic and records it.
// Undecodable messages are logged and skipped so they are still committed.
func (a *Aggregator) HandleMessage(_ context.Context, _, value []byte) error {
	e, err := kafka.DecodeJSON[SearchEvent](value)
	if err != nil {
		a.logger.Warn("skipping undecodable search event", "error", err)
		return nil
	}
	a.Record(e)
	return nil
}

func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.stats
	if s.TotalSearches > 0 {
		s.AvgCandidates = float64(a.candidates) / float64(s.TotalSearches)
	}
	if len(a.latencies) > 0 {
		sorted := append([]float64(nil), a.latencies...)
		sort.Float64s(sorted)
		var sum float64
		for _, l := range sorted {
			sum += l
		}
		s.AvgLatencyMs = sum / float64(len(sorted))
		s.P50LatencyMs = percentile(sorted, 50)
		s.P95LatencyMs = percentile(sorted, 95)
		s.P99LatencyMs = percentile(sorted, 99)
	}
	s.TopQueries = topN(a.queries, topQueries)
	s.ZeroResultQueries = topN(a.zeroResult, topQueries)
	s.TopDocuments = topN(a.topDocs, topQueries)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		s.QueriesPerMinute = float64(s.TotalSearches) / elapsed
	}
	return s
}

func bump(counts map[string]int64, key string) {
	if _, ok := counts[key]; !ok && len(counts) >= maxTrackedQueries {
		return
	}
	counts[key]++
}

func percentile(sorted []float64, pct int) float64 {
	idx := pct * len(sorted) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	out := make([]QueryCount, 0, len(counts))
	for q, c := range counts {
		out = append(out, QueryCount{Query: q, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Query < out[j].Query
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
