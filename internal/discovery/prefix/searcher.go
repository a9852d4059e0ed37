package prefix

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/forum"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/metrics"
)

// TopicLister enumerates every topic in the record store.
type TopicLister interface {
	ListTopics(ctx context.Context) ([]forum.Topic, error)
}

// Searcher answers prefix queries against the current store contents. Each
// search builds a fresh Index, so results always reflect the store at call
// time at the cost of a full scan per query.
type Searcher struct {
	store   TopicLister
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewSearcher creates a Searcher. m may be nil.
func NewSearcher(store TopicLister, m *metrics.Metrics) *Searcher {
	return &Searcher{
		store:   store,
		metrics: m,
		logger:  slog.Default().With("component", "prefix-searcher"),
	}
}

// Search returns the topics whose titles start with prefix, ignoring case.
func (s *Searcher) Search(ctx context.Context, prefix string) ([]forum.Topic, error) {
	idx, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Search(prefix), nil
}

func (s *Searcher) build(ctx context.Context) (*Index, error) {
	start := time.Now()
	topics, err := s.store.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("building prefix index: %w", err)
	}

	idx := NewIndex()
	for _, t := range topics {
		idx.Insert(t.Title, t)
	}

	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.IndexRebuildDuration.Observe(elapsed.Seconds())
		s.metrics.IndexTopics.Set(float64(idx.Len()))
	}
	s.logger.Debug("prefix index built", "topics", len(topics), "titles", idx.Len(), "duration_ms", elapsed.Milliseconds())
	return idx, nil
}
