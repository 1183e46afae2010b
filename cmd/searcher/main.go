// Command searcher serves lyric search over HTTP.
//
// At startup it builds the corpus index from the term-count file, loads the
// precomputed term weights and the track metadata, then answers
// GET /api/v1/search?q=<lyrics> with the ten best matching songs. Redis
// caching, Kafka search analytics and the PostgreSQL metadata store are each
// optional and enabled from the config.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/metadata"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/resilience"
)

var connectRetry = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 500 * time.Millisecond}

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting lyrics search service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	idx, weights, err := loadCorpus(ctx, cfg.Corpus, m)
	if err != nil {
		slog.Error("failed to load corpus", "error", err)
		os.Exit(1)
	}

	checker := health.NewChecker()
	checker.Require("corpus", func(context.Context) error {
		if idx.Len() == 0 {
			return errors.New("corpus index is empty")
		}
		return nil
	})

	// Metadata: the file mapping backs the optional candidate restriction;
	// PostgreSQL, when enabled, serves lookups instead of the file.
	var fileMeta *metadata.FileProvider
	if cfg.Corpus.MetadataPath != "" {
		fileMeta, err = metadata.LoadFile(cfg.Corpus.MetadataPath)
		if err != nil {
			if cfg.Search.RequireMetadata {
				slog.Error("metadata required but not loadable", "error", err)
				os.Exit(1)
			}
			slog.Warn("metadata unavailable, results will have no artist or title", "error", err)
		}
	}
	var provider metadata.Provider
	if fileMeta != nil {
		provider = fileMeta
	}
	if cfg.Postgres.Enabled {
		var db *postgres.Client
		err := resilience.Retry(ctx, "postgres connect", connectRetry, func(ctx context.Context) error {
			var err error
			db, err = postgres.New(ctx, cfg.Postgres)
			return err
		})
		if err != nil {
			slog.Warn("postgres unavailable, using metadata file", "error", err)
		} else {
			defer db.Close()
			provider = metadata.NewStore(db)
			checker.Optional("postgres", db.Ping)
			slog.Info("metadata served from postgres", "host", cfg.Postgres.Host)
		}
	}

	opts := []engine.Option{
		engine.WithTopK(cfg.Search.TopK),
		engine.WithStopWordThreshold(cfg.Search.StopWordThreshold),
		engine.WithParallelScoring(cfg.Search.ParallelThreshold, cfg.Search.ScoreWorkers),
	}
	if cfg.Search.RequireMetadata && fileMeta != nil {
		opts = append(opts, engine.WithDocumentFilter(fileMeta.Has))
	}
	eng, err := engine.New(idx, weights, opts...)
	if err != nil {
		slog.Error("failed to create retrieval engine", "error", err)
		os.Exit(1)
	}

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		var client *pkgredis.Client
		err := resilience.Retry(ctx, "redis connect", connectRetry, func(ctx context.Context) error {
			var err error
			client, err = pkgredis.NewClient(ctx, cfg.Redis)
			return err
		})
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer client.Close()
			breaker := resilience.NewCircuitBreaker("query-cache", resilience.CircuitBreakerConfig{
				OnStateChange: func(name string, _, to resilience.State) {
					m.CircuitBreakerState.WithLabelValues(name).Set(metrics.StateGauge(to.String()))
				},
			})
			m.CircuitBreakerState.WithLabelValues("query-cache").Set(0)
			queryCache = cache.New(client, cfg.Redis.CacheTTL, breaker)
			checker.Optional("redis", client.Ping)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var collector *analytics.Collector
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, cfg.Analytics, m)
		collector.Start(ctx)
		defer collector.Close()
		checker.Optional("kafka", producer.Ping)
	}

	h := handler.New(handler.Deps{
		Engine:       eng,
		Metadata:     provider,
		Cache:        queryCache,
		Collector:    collector,
		Metrics:      m,
		TopK:         cfg.Search.TopK,
		QueryTimeout: cfg.Search.QueryTimeout,
	})

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimit, cfg.Server.RateWindow)
		go limiter.Run(ctx, 5*time.Minute)
		chain = middleware.RateLimit(limiter)(chain)
		slog.Info("rate limiting enabled", "limit", cfg.Server.RateLimit, "window", cfg.Server.RateWindow)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

// loadCorpus builds the index and loads the weight table sized to its
// vocabulary.
func loadCorpus(ctx context.Context, cfg config.CorpusConfig, m *metrics.Metrics) (*corpus.Index, []float64, error) {
	start := time.Now()
	f, err := os.Open(cfg.CorpusPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()

	idx, err := corpus.Build(ctx, f, corpus.WithWorkers(cfg.BuildWorkers))
	if err != nil {
		return nil, nil, fmt.Errorf("building index from %s: %w", cfg.CorpusPath, err)
	}
	m.IndexBuildDuration.Set(time.Since(start).Seconds())
	m.CorpusDocuments.Set(float64(idx.Len()))
	m.VocabularySize.Set(float64(idx.Vocabulary().Size()))

	wf, err := os.Open(cfg.WeightsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening weights: %w", err)
	}
	defer wf.Close()
	weights, err := vocabulary.LoadWeights(wf, idx.Vocabulary().Size()+1)
	if err != nil {
		return nil, nil, fmt.Errorf("loading weights from %s: %w", cfg.WeightsPath, err)
	}
	return idx, weights, nil
}
