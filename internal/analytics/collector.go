package analytics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/metrics"
)

// Publisher is the part of the Kafka producer the collector uses.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers search events and publishes them in batches, flushing when
// a batch fills or the flush interval passes. Track never blocks: when the
// buffer is full the event is dropped.
type Collector struct {
	publisher     Publisher
	events        chan SearchEvent
	batchSize     int
	flushInterval time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger

	cancel  context.CancelFunc
	done    chan struct{}
	dropped atomic.Int64
}

func NewCollector(publisher Publisher, cfg config.AnalyticsConfig, m *metrics.Metrics) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		events:        make(chan SearchEvent, cfg.BufferSize),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		metrics:       m,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start runs the publish loop until ctx is cancelled or Close is called.
func (c *Collector) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.events),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

func (c *Collector) Track(event SearchEvent) {
	select {
	case c.events <- event:
	default:
		if c.dropped.Add(1)%1000 == 1 {
			c.logger.Warn("analytics buffer full, dropping events", "dropped_total", c.dropped.Load())
		}
		c.count("dropped", 1)
	}
}

// Close stops the loop after a final flush and waits for it. Closing a
// collector that was never started is a no-op.
func (c *Collector) Close() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	pending := make([]kafka.Event, 0, c.batchSize)
	for {
		select {
		case e := <-c.events:
			pending = append(pending, toKafka(e))
			if len(pending) >= c.batchSize {
				pending = c.flush(ctx, pending)
			}
		case <-ticker.C:
			pending = c.flush(ctx, pending)
		case <-ctx.Done():
		drain:
			for {
				select {
				case e := <-c.events:
					pending = append(pending, toKafka(e))
				default:
					break drain
				}
			}
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if rest := c.flush(flushCtx, pending); len(rest) > 0 {
				c.logger.Warn("analytics events lost on shutdown", "count", len(rest))
			}
			cancel()
			return
		}
	}
}

// flush publishes pending and returns what should be retried. Failed batches
// are kept up to three batches' worth.
func (c *Collector) flush(ctx context.Context, pending []kafka.Event) []kafka.Event {
	if len(pending) == 0 {
		return pending
	}
	if err := c.publisher.PublishBatch(ctx, pending); err != nil {
		c.count("failed", len(pending))
		limit := 3 * c.batchSize
		if len(pending) > limit {
			dropped := len(pending) - limit
			pending = pending[dropped:]
			c.dropped.Add(int64(dropped))
			c.count("dropped", dropped)
		}
		c.logger.Error("analytics flush failed", "pending", len(pending), "error", err)
		return pending
	}
	c.count("published", len(pending))
	return make([]kafka.Event, 0, c.batchSize)
}

func (c *Collector) count(outcome string, n int) {
	if c.metrics != nil && n > 0 {
		c.metrics.AnalyticsEventsTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

func toKafka(e SearchEvent) kafka.Event {
	return kafka.Event{Key: e.RequestID, Value: e}
}
