// Package trending ranks topics by recent and total comment activity with a
// linear recency bonus, keeping only the top K in a bounded heap.
package trending

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/forum"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const day = 24 * time.Hour

// MaxWindowDays is the longest window whose duration fits in a time.Duration.
const MaxWindowDays = int(math.MaxInt64 / int64(day))

// ActivitySource provides the topic and comment reads a ranking needs.
type ActivitySource interface {
	ListTopics(ctx context.Context) ([]forum.Topic, error)
	// CountComments counts comments per topic created at or after since; a
	// zero since counts all comments.
	CountComments(ctx context.Context, since time.Time) (map[int64]int, error)
}

// ScoredTopic is a topic with its trending score.
type ScoredTopic struct {
	Topic forum.Topic
	Score float64
}

// Ranker computes trending rankings from an ActivitySource.
type Ranker struct {
	source  ActivitySource
	weights config.TrendingWeights
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithClock replaces the wall clock used to age topics.
func WithClock(now func() time.Time) Option {
	return func(r *Ranker) { r.now = now }
}

// WithMetrics reports ranking duration and candidate counts to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Ranker) { r.metrics = m }
}

func NewRanker(source ActivitySource, weights config.TrendingWeights, opts ...Option) *Ranker {
	r := &Ranker{
		source:  source,
		weights: weights,
		now:     time.Now,
		logger:  slog.Default().With("component", "trending-ranker"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Score computes w.RecentComments*recent + w.TotalComments*total +
// w.Recency*recency, where recency falls linearly from 1 for a topic created
// today to 0 for one window days old or older.
func Score(a forum.Activity, now time.Time, window int, w config.TrendingWeights) float64 {
	ageDays := math.Floor(now.Sub(a.Topic.CreatedAt).Hours() / 24)
	if ageDays < 0 {
		ageDays = 0
	}
	recency := math.Max(0, 1-ageDays/float64(window))
	return w.RecentComments*float64(a.RecentComments) +
		w.TotalComments*float64(a.TotalComments) +
		w.Recency*recency
}

// Rank returns at most maxTopics topics ordered by descending score, ties
// broken by ascending ID. window is the activity window in days.
func (r *Ranker) Rank(ctx context.Context, window, maxTopics int) ([]ScoredTopic, error) {
	if window <= 0 {
		return nil, apperrors.InvalidParameter("window must be positive, got %d", window)
	}
	if window > MaxWindowDays {
		return nil, apperrors.InvalidParameter("window must not exceed %d days, got %d", MaxWindowDays, window)
	}
	if maxTopics <= 0 {
		return nil, apperrors.InvalidParameter("max topics must be positive, got %d", maxTopics)
	}

	start := time.Now()
	now := r.now().UTC()
	activity, err := r.fetch(ctx, now.Add(-time.Duration(window)*day))
	if err != nil {
		return nil, err
	}

	top := newTopK(maxTopics)
	for _, a := range activity {
		top.Offer(ScoredTopic{Topic: a.Topic, Score: Score(a, now, window, r.weights)})
	}
	ranked := top.Drain()

	elapsed := time.Since(start)
	if r.metrics != nil {
		r.metrics.RankingDuration.Observe(elapsed.Seconds())
		r.metrics.RankedCandidates.Observe(float64(len(activity)))
	}
	r.logger.Debug("trending ranked",
		"window", window,
		"max_topics", maxTopics,
		"candidates", len(activity),
		"returned", len(ranked),
		"duration_ms", elapsed.Milliseconds(),
	)
	return ranked, nil
}

// fetch runs the three store reads concurrently and joins them by topic ID.
func (r *Ranker) fetch(ctx context.Context, since time.Time) ([]forum.Activity, error) {
	var (
		topics []forum.Topic
		recent map[int64]int
		total  map[int64]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		topics, err = r.source.ListTopics(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = r.source.CountComments(gctx, since)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = r.source.CountComments(gctx, time.Time{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching topic activity: %w", err)
	}

	activity := make([]forum.Activity, len(topics))
	for i, t := range topics {
		activity[i] = forum.Activity{
			Topic:          t,
			RecentComments: recent[t.ID],
			TotalComments:  total[t.ID],
		}
	}
	return activity, nil
}
