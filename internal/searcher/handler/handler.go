// Package handler serves the lyrics search HTTP API: ranked search with
// artist and title attached, track lookup, and query cache administration.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/metadata"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/searcher/cache"
	apperrors "github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/tracing"
)

// Searcher is the retrieval engine as seen by the handler.
type Searcher interface {
	Analyze(text string) engine.Query
	SearchScored(ctx context.Context, text string) (*engine.Result, error)
}

// Deps wires the handler. Only Engine is required; a nil Metadata, Cache,
// Collector or Metrics disables that feature.
type Deps struct {
	Engine       Searcher
	Metadata     metadata.Provider
	Cache        *cache.QueryCache
	Collector    *analytics.Collector
	Metrics      *metrics.Metrics
	TopK         int
	QueryTimeout time.Duration
}

type Handler struct {
	Deps
	logger *slog.Logger
}

func New(deps Deps) *Handler {
	if deps.TopK <= 0 {
		deps.TopK = engine.DefaultTopK
	}
	return &Handler{
		Deps:   deps,
		logger: slog.Default().With("component", "search-handler"),
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/tracks/{id}", h.Track)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type SearchResult struct {
	Rank   int     `json:"rank"`
	DocID  string  `json:"doc_id"`
	Score  float64 `json:"score"`
	Artist string  `json:"artist"`
	Title  string  `json:"title"`
}

type SearchResponse struct {
	Query      string         `json:"query"`
	Terms      []string       `json:"terms"`
	Candidates int            `json:"candidates"`
	CacheHit   bool           `json:"cache_hit"`
	TookMs     float64        `json:"took_ms"`
	Results    []SearchResult `json:"results"`
}

// Search serves GET /api/v1/search?q=<lyrics>[&limit=n].
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logger.FromContext(r.Context())

	// a missing or blank q is an empty query and gets an empty result
	text := r.URL.Query().Get("q")
	limit := h.TopK
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, h.TopK)
	}

	ctx, root := tracing.StartSpan(r.Context(), "search", logger.RequestID(r.Context()))
	defer func() {
		root.End()
		root.Log(log)
	}()

	q := h.Engine.Analyze(text)
	res, cacheHit, err := h.execute(ctx, q, limit)
	took := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
		}
		log.Error("search failed", "query", text, "error", err)
		h.observe(ctx, q, nil, false, took, err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "search failed")
		return
	}

	_, span := tracing.StartChildSpan(ctx, "metadata")
	results := h.enrich(ctx, res)
	span.End()

	log.Info("search completed",
		"query", text,
		"terms", len(res.Terms),
		"candidates", res.Candidates,
		"returned", len(results),
		"cache_hit", cacheHit,
		"latency_ms", took.Milliseconds(),
	)
	h.observe(ctx, q, res, cacheHit, took, nil)

	h.writeJSON(w, http.StatusOK, SearchResponse{
		Query:      text,
		Terms:      res.Terms,
		Candidates: res.Candidates,
		CacheHit:   cacheHit,
		TookMs:     float64(took.Microseconds()) / 1000,
		Results:    results,
	})
}

// execute answers q from the cache when possible. Queries with no usable
// terms skip both the cache and the engine.
func (h *Handler) execute(ctx context.Context, q engine.Query, limit int) (*engine.Result, bool, error) {
	if q.Empty() {
		return &engine.Result{Query: q.Text, Terms: q.Terms, Hits: []engine.Hit{}}, false, nil
	}
	compute := func(ctx context.Context) (*engine.Result, error) {
		var res *engine.Result
		err := resilience.WithTimeout(ctx, h.QueryTimeout, "search", func(ctx context.Context) error {
			var err error
			res, err = h.Engine.SearchScored(ctx, q.Text)
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(res.Hits) > limit {
			res.Hits = res.Hits[:limit]
		}
		return res, nil
	}
	if h.Cache == nil {
		res, err := compute(ctx)
		return res, false, err
	}
	return h.Cache.GetOrCompute(ctx, q, limit, compute)
}

func (h *Handler) enrich(ctx context.Context, res *engine.Result) []SearchResult {
	out := make([]SearchResult, len(res.Hits))
	for i, hit := range res.Hits {
		out[i] = SearchResult{Rank: i + 1, DocID: hit.DocID, Score: hit.Score}
	}
	if h.Metadata == nil || len(out) == 0 {
		return out
	}
	tracks, err := metadata.Resolve(ctx, h.Metadata, res.IDs())
	if err != nil {
		logger.FromContext(ctx).Warn("metadata lookup failed", "error", err)
		return out
	}
	for i, t := range tracks {
		out[i].Artist = t.Artist
		out[i].Title = t.Title
	}
	return out
}

func (h *Handler) observe(ctx context.Context, q engine.Query, res *engine.Result, cacheHit bool, took time.Duration, err error) {
	returned, candidates := 0, 0
	if res != nil {
		returned, candidates = len(res.Hits), res.Candidates
	}
	outcome := analytics.ClassifyOutcome(len(q.Counts), returned, err)

	if m := h.Metrics; m != nil {
		cacheStatus := "bypass"
		if h.Cache != nil && !q.Empty() {
			cacheStatus = "miss"
			if cacheHit {
				cacheStatus = "hit"
			}
		}
		switch cacheStatus {
		case "hit":
			m.CacheHitsTotal.Inc()
		case "miss":
			m.CacheMissesTotal.Inc()
		}
		m.SearchQueriesTotal.WithLabelValues(string(outcome)).Inc()
		m.SearchLatency.WithLabelValues(cacheStatus).Observe(took.Seconds())
		if err == nil {
			m.SearchResultsCount.Observe(float64(returned))
			m.SearchCandidatesCount.Observe(float64(candidates))
		}
	}

	if h.Collector != nil {
		event := analytics.SearchEvent{
			Query:      q.Text,
			Terms:      q.Terms,
			Candidates: candidates,
			Returned:   returned,
			LatencyMs:  float64(took.Microseconds()) / 1000,
			CacheHit:   cacheHit,
			Outcome:    outcome,
			RequestID:  logger.RequestID(ctx),
			Timestamp:  time.Now().UTC(),
		}
		if res != nil && len(res.Hits) > 0 {
			event.TopDocID = res.Hits[0].DocID
			event.TopScore = res.Hits[0].Score
		}
		h.Collector.Track(event)
	}
}

// Track serves GET /api/v1/tracks/{id}.
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	if h.Metadata == nil {
		h.writeError(w, http.StatusServiceUnavailable, "track metadata is not loaded")
		return
	}
	t, err := h.Metadata.Lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			logger.FromContext(r.Context()).Error("track lookup failed", "error", err)
		}
		h.writeError(w, status, http.StatusText(status))
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	s := h.Cache.Stats()
	total := s.Hits + s.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(s.Hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     s.Hits,
		"misses":   s.Misses,
		"errors":   s.Errors,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  s.Breaker,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.Cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.Cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusBadGateway, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
