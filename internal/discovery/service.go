// Package discovery ties prefix search and cached trending rankings into the
// caller-facing topic discovery service.
package discovery

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/discovery/cache"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/discovery/prefix"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/discovery/trending"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/forum"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/tracing"
)

// Service answers prefix searches and trending queries.
type Service struct {
	searcher *prefix.Searcher
	ranker   *trending.Ranker
	cache    *cache.TrendingCache
	limit    int
	window   int
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService wires the components together. trendingCache must be non-nil;
// pass cache.New(nil, ...) to run without Redis. m may be nil.
func NewService(searcher *prefix.Searcher, ranker *trending.Ranker, trendingCache *cache.TrendingCache, cfg config.DiscoveryConfig, m *metrics.Metrics) *Service {
	return &Service{
		searcher: searcher,
		ranker:   ranker,
		cache:    trendingCache,
		limit:    cfg.MaxTopicsLimit,
		window:   cfg.MaxWindowDays,
		metrics:  m,
		logger:   slog.Default().With("component", "discovery-service"),
	}
}

// Search returns every topic whose title starts with prefix, ignoring case.
func (s *Service) Search(ctx context.Context, prefix string) ([]forum.Topic, error) {
	ctx, span := tracing.StartChildSpan(ctx, "prefix_search")
	defer span.End()
	span.SetAttr("prefix", prefix)

	topics, err := s.searcher.Search(ctx, prefix)
	if err != nil {
		s.countSearch("error", 0)
		return nil, err
	}
	span.SetAttr("results", len(topics))
	if len(topics) == 0 {
		s.countSearch("empty", 0)
	} else {
		s.countSearch("match", len(topics))
	}
	return topics, nil
}

// Trending returns at most maxTopics topics ranked by recent activity over
// the last window days, along with how the cache served the request.
func (s *Service) Trending(ctx context.Context, window, maxTopics int) ([]forum.Topic, cache.Outcome, error) {
	if window <= 0 {
		return nil, cache.OutcomeUnavailable, apperrors.InvalidParameter("window must be a positive number of days, got %d", window)
	}
	if s.window > 0 && window > s.window {
		return nil, cache.OutcomeUnavailable, apperrors.InvalidParameter("window must not exceed %d days, got %d", s.window, window)
	}
	if maxTopics <= 0 {
		return nil, cache.OutcomeUnavailable, apperrors.InvalidParameter("limit must be positive, got %d", maxTopics)
	}
	if s.limit > 0 && maxTopics > s.limit {
		return nil, cache.OutcomeUnavailable, apperrors.InvalidParameter("limit must not exceed %d, got %d", s.limit, maxTopics)
	}

	ctx, span := tracing.StartChildSpan(ctx, "trending")
	defer span.End()
	span.SetAttr("window", window)
	span.SetAttr("max_topics", maxTopics)

	start := time.Now()
	topics, outcome, err := s.cache.GetOrCompute(ctx, window, maxTopics, func(ctx context.Context) ([]forum.Topic, error) {
		ctx, span := tracing.StartChildSpan(ctx, "rank")
		defer span.End()
		ranked, err := s.ranker.Rank(ctx, window, maxTopics)
		if err != nil {
			return nil, err
		}
		topics := make([]forum.Topic, len(ranked))
		for i, st := range ranked {
			topics[i] = st.Topic
		}
		return topics, nil
	})
	span.SetAttr("cache", outcome.String())
	if err != nil {
		return nil, outcome, err
	}
	if s.metrics != nil {
		s.metrics.TrendingLatency.WithLabelValues(outcome.String()).Observe(time.Since(start).Seconds())
	}
	return topics, outcome, nil
}

// CacheStats reports trending cache counters and whether a cache is
// configured.
func (s *Service) CacheStats() (cache.Stats, bool) {
	return s.cache.Stats(), s.cache.Enabled()
}

// InvalidateCache drops every cached trending ranking.
func (s *Service) InvalidateCache(ctx context.Context) (int64, error) {
	return s.cache.Invalidate(ctx)
}

func (s *Service) countSearch(resultType string, n int) {
	if s.metrics == nil {
		return
	}
	s.metrics.SearchRequestsTotal.WithLabelValues(resultType).Inc()
	if resultType != "error" {
		s.metrics.SearchResultsCount.Observe(float64(n))
	}
}
