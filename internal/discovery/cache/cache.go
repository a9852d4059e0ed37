// Package cache implements the cache-aside layer in front of the trending
// ranker. Cache failures never reach callers: every probe resolves to an
// Outcome and anything but a hit falls back to computing the ranking.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/forum"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const trendingPrefix = "trending_topics:"

// Store is the subset of the Redis client the cache needs. A missing key is
// reported by Get as an error for which pkgredis.IsNilError is true.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)
}

// Outcome tags the result of a cache probe.
type Outcome int

const (
	OutcomeHit Outcome = iota
	OutcomeMiss
	OutcomeCorrupt
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeMiss:
		return "miss"
	case OutcomeCorrupt:
		return "corrupt"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// ComputeFunc produces the ranking on a cache fallback.
type ComputeFunc func(ctx context.Context) ([]forum.Topic, error)

// Stats is a snapshot of cache counters since start.
type Stats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Breaker string `json:"breaker"`
}

// TrendingCache stores ranked topic lists in Redis keyed by window and
// size.
type TrendingCache struct {
	store     Store
	ttl       time.Duration
	opTimeout time.Duration
	prefix    string
	breaker   *resilience.CircuitBreaker
	group     singleflight.Group
	metrics   *metrics.Metrics
	logger    *slog.Logger
	hits      atomic.Int64
	misses    atomic.Int64
}

// New creates a TrendingCache. A nil store means the cache is not
// configured and every probe is OutcomeUnavailable. m may be nil.
func New(store Store, cfg config.RedisConfig, m *metrics.Metrics) *TrendingCache {
	c := &TrendingCache{
		store:     store,
		ttl:       cfg.CacheTTL,
		opTimeout: cfg.OpTimeout,
		prefix:    cfg.KeyPrefix,
		metrics:   m,
		logger:    slog.Default().With("component", "trending-cache"),
	}
	if c.ttl <= 0 {
		c.ttl = time.Hour
	}
	c.breaker = resilience.NewCircuitBreaker("trending-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.BreakerThreshold,
		ResetTimeout:     cfg.BreakerReset,
		IsFailure: func(err error) bool {
			return !pkgredis.IsNilError(err)
		},
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	if m != nil {
		m.CircuitBreakerState.WithLabelValues("trending-cache").Set(float64(resilience.StateClosed))
	}
	return c
}

// Key returns the cache key for a (window, maxTopics) pair.
func (c *TrendingCache) Key(window, maxTopics int) string {
	return fmt.Sprintf("%s%s%d:%d", c.prefix, trendingPrefix, window, maxTopics)
}

// GetOrCompute returns the cached ranking for (window, maxTopics) or
// computes it. Misses and corrupt entries are recomputed and written back
// with the configured TTL; an unavailable cache is bypassed without a write.
// The only error returned is compute's.
func (c *TrendingCache) GetOrCompute(ctx context.Context, window, maxTopics int, compute ComputeFunc) ([]forum.Topic, Outcome, error) {
	key := c.Key(window, maxTopics)
	topics, outcome := c.lookup(ctx, key, maxTopics)
	c.record(outcome)

	switch outcome {
	case OutcomeHit:
		return topics, outcome, nil
	case OutcomeUnavailable:
		topics, err := compute(ctx)
		return topics, outcome, err
	}

	// The shared computation outlives any single caller: a cancelled caller
	// stops waiting but the others still get the result.
	flight := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		topics, err := compute(flight)
		if err != nil {
			return nil, err
		}
		c.write(flight, key, topics)
		return topics, nil
	})
	select {
	case <-ctx.Done():
		return nil, outcome, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, outcome, res.Err
		}
		if res.Shared {
			c.logger.Debug("trending computation shared", "key", key)
		}
		return res.Val.([]forum.Topic), outcome, nil
	}
}

// lookup probes the cache and classifies the result.
func (c *TrendingCache) lookup(ctx context.Context, key string, maxTopics int) ([]forum.Topic, Outcome) {
	if c.store == nil {
		return nil, OutcomeUnavailable
	}

	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = resilience.Call(ctx, c.opTimeout, "cache get", func(ctx context.Context) ([]byte, error) {
			return c.store.Get(ctx, key)
		})
		return err
	})
	switch {
	case err == nil:
	case pkgredis.IsNilError(err):
		return nil, OutcomeMiss
	case errors.Is(err, resilience.ErrCircuitOpen):
		c.logger.Debug("cache bypassed", "key", key, "error", err)
		return nil, OutcomeUnavailable
	default:
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return nil, OutcomeUnavailable
	}

	topics, err := decode(data, maxTopics)
	if err != nil {
		c.logger.Warn("discarding cache entry", "key", key, "error", err)
		return nil, OutcomeCorrupt
	}
	return topics, OutcomeHit
}

// decode parses and validates a cached ranking. The entry must be a JSON
// array of at most maxTopics topics, each with an id and creation time.
func decode(data []byte, maxTopics int) ([]forum.Topic, error) {
	var topics []forum.Topic
	if err := json.Unmarshal(data, &topics); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrCacheCorrupt, err)
	}
	if topics == nil {
		return nil, fmt.Errorf("%w: not an array", apperrors.ErrCacheCorrupt)
	}
	if len(topics) > maxTopics {
		return nil, fmt.Errorf("%w: %d entries exceed limit %d", apperrors.ErrCacheCorrupt, len(topics), maxTopics)
	}
	for i, t := range topics {
		if t.ID == 0 || t.CreatedAt.IsZero() {
			return nil, fmt.Errorf("%w: entry %d missing id or created_at", apperrors.ErrCacheCorrupt, i)
		}
	}
	return topics, nil
}

// write stores topics under key. Failures are logged and counted only.
func (c *TrendingCache) write(ctx context.Context, key string, topics []forum.Topic) {
	data, err := json.Marshal(topics)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		_, err := resilience.Call(ctx, c.opTimeout, "cache set", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.store.Set(ctx, key, data, c.ttl)
		})
		return err
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
		if c.metrics != nil {
			c.metrics.CacheWriteFailures.Inc()
		}
	}
}

// Invalidate deletes every cached ranking and returns the number of keys
// removed.
func (c *TrendingCache) Invalidate(ctx context.Context) (int64, error) {
	if c.store == nil {
		return 0, apperrors.ErrCacheUnavailable
	}
	pattern := c.prefix + trendingPrefix + "*"
	deleted, err := c.store.DeleteByPattern(ctx, pattern)
	if err != nil {
		return deleted, fmt.Errorf("invalidating trending cache: %w: %w", apperrors.ErrCacheUnavailable, err)
	}
	c.logger.Info("cache invalidated", "pattern", pattern, "keys_deleted", deleted)
	return deleted, nil
}

// Enabled reports whether a cache store is configured.
func (c *TrendingCache) Enabled() bool {
	return c.store != nil
}

func (c *TrendingCache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Breaker: c.breaker.GetState().String(),
	}
}

func (c *TrendingCache) record(o Outcome) {
	if o == OutcomeHit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	if c.metrics != nil {
		c.metrics.CacheOutcomesTotal.WithLabelValues(o.String()).Inc()
	}
}
