// Package cache stores engine results in Redis keyed by the analyzed query, so
// texts that normalize to the same term counts share one entry. Concurrent
// misses for a key are collapsed with singleflight, and every Redis call runs
// through a circuit breaker; while it is open the cache is bypassed.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/internal/engine"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/resilience"
)

const keyPrefix = "lyrics:search:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

type Stats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Errors  int64  `json:"errors"`
	Breaker string `json:"breaker"`
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	logger  *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

func New(store Store, ttl time.Duration, breaker *resilience.CircuitBreaker) *QueryCache {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("query-cache", resilience.CircuitBreakerConfig{})
	}
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		breaker: breaker,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Key derives the cache key for q at the given result limit.
func Key(q engine.Query, limit int) string {
	sum := sha256.Sum256([]byte(q.Key() + "|limit=" + strconv.Itoa(limit)))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

func (c *QueryCache) Get(ctx context.Context, key string) (*engine.Result, bool) {
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if pkgredis.IsMiss(err) {
			return nil
		}
		return err
	})
	if err != nil {
		c.errors.Add(1)
		c.misses.Add(1)
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}
	if data == nil {
		c.misses.Add(1)
		return nil, false
	}

	var res engine.Result
	if err := json.Unmarshal(data, &res); err != nil {
		c.errors.Add(1)
		c.misses.Add(1)
		c.logger.Error("cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	c.hits.Add(1)
	return &res, true
}

func (c *QueryCache) Set(ctx context.Context, key string, res *engine.Result) {
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.errors.Add(1)
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for q, or runs compute once per key
// across concurrent callers and caches what it returns. The bool reports a
// cache hit. The returned result carries q's own text and terms.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	q engine.Query,
	limit int,
	compute func(ctx context.Context) (*engine.Result, error),
) (*engine.Result, bool, error) {
	key := Key(q, limit)
	if res, ok := c.Get(ctx, key); ok {
		return forQuery(res, q), true, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		res, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, res)
		return res, nil
	})
	if err != nil {
		return nil, false, err
	}
	return forQuery(val.(*engine.Result), q), false, nil
}

func forQuery(res *engine.Result, q engine.Query) *engine.Result {
	out := *res
	out.Query = q.Text
	out.Terms = q.Terms
	return &out
}

// Invalidate deletes every cached result and returns the number removed.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.store.DeleteByPrefix(ctx, keyPrefix)
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating query cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.errors.Load(),
		Breaker: c.breaker.State().String(),
	}
}
