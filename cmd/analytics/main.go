// Command analytics starts the search analytics service.
//
// It consumes the search events the searcher publishes to Kafka, aggregates
// them in memory (query volume, outcome mix, latency percentiles, cache hit
// rate, top queries and top songs) and serves them at GET /api/v1/analytics.
// When PostgreSQL is enabled it also snapshots the aggregate periodically.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
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
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	if !cfg.Kafka.Enabled {
		slog.Error("analytics service needs kafka.enabled")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	aggregator := analytics.NewAggregator()
	checker := health.NewChecker()

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents, func(ctx context.Context, key, value []byte) error {
		err := aggregator.HandleMessage(ctx, key, value)
		outcome := "consumed"
		if err != nil {
			outcome = "rejected"
		}
		m.AnalyticsEventsTotal.WithLabelValues(outcome).Inc()
		return err
	})
	checker.Require("kafka", consumer.Ping)

	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("analytics consumer stopped", "error", err)
		}
	}()
	slog.Info("analytics consumer started",
		"topic", cfg.Kafka.Topics.SearchEvents,
		"group", cfg.Kafka.ConsumerGroup,
	)

	if cfg.Postgres.Enabled {
		var db *postgres.Client
		err := resilience.Retry(ctx, "postgres connect", resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 500 * time.Millisecond}, func(ctx context.Context) error {
			var err error
			db, err = postgres.New(ctx, cfg.Postgres)
			return err
		})
		if err != nil {
			slog.Warn("postgres unavailable, snapshots disabled", "error", err)
		} else {
			defer db.Close()
			store := analytics.NewStore(db)
			if err := store.EnsureSchema(ctx); err != nil {
				slog.Error("failed to prepare snapshot table", "error", err)
				os.Exit(1)
			}
			if last, err := store.LatestSnapshot(ctx); err == nil && last != nil {
				slog.Info("previous snapshot found", "total_searches", last.TotalSearches)
			}
			checker.Optional("postgres", db.Ping)
			go store.RunPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}
