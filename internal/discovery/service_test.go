package discovery

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/discovery/cache"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/discovery/prefix"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/discovery/trending"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/forum"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type forumFake struct {
	topics []forum.Topic
	recent map[int64]int
	total  map[int64]int
	err    error
	reads  atomic.Int32
}

func (f *forumFake) ListTopics(context.Context) ([]forum.Topic, error) {
	f.reads.Add(1)
	return f.topics, f.err
}

func (f *forumFake) CountComments(_ context.Context, since time.Time) (map[int64]int, error) {
	f.reads.Add(1)
	if since.IsZero() {
		return f.total, f.err
	}
	return f.recent, f.err
}

type kv map[string][]byte

func (m kv) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (m kv) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m[key] = value
	return nil
}

func (m kv) DeleteByPattern(context.Context, string) (int64, error) {
	n := int64(len(m))
	clear(m)
	return n, nil
}

func newForum() *forumFake {
	day := 24 * time.Hour
	return &forumFake{
		topics: []forum.Topic{
			{ID: 1, Title: "Go Basics", CreatedAt: now.Add(-1 * day)},
			{ID: 2, Title: "Gophers", CreatedAt: now.Add(-10 * day)},
			{ID: 3, Title: "Rust", CreatedAt: now.Add(-3 * day)},
		},
		recent: map[int64]int{1: 5, 3: 2},
		total:  map[int64]int{1: 5, 2: 10, 3: 2},
	}
}

func newService(f *forumFake, store cache.Store) (*Service, *metrics.Metrics) {
	cfg := config.Default()
	m := metrics.New(prometheus.NewRegistry())
	searcher := prefix.NewSearcher(f, m)
	ranker := trending.NewRanker(f, cfg.Discovery.Weights, trending.WithClock(func() time.Time { return now }), trending.WithMetrics(m))
	tc := cache.New(store, cfg.Redis, m)
	return NewService(searcher, ranker, tc, cfg.Discovery, m), m
}

func topicIDs(topics []forum.Topic) []int64 {
	out := make([]int64, len(topics))
	for i, t := range topics {
		out[i] = t.ID
	}
	return out
}

func TestServiceSearch(t *testing.T) {
	svc, m := newService(newForum(), nil)

	got, err := svc.Search(context.Background(), "go")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Search(go) = %v", topicIDs(got))
	}
	got, err = svc.Search(context.Background(), "zzz")
	if err != nil || len(got) != 0 {
		t.Errorf("Search(zzz) = %v, %v", got, err)
	}
	if v := testutil.ToFloat64(m.SearchRequestsTotal.WithLabelValues("empty")); v != 1 {
		t.Errorf("empty searches = %v", v)
	}
}

func TestServiceTrendingCachesResult(t *testing.T) {
	f := newForum()
	svc, _ := newService(f, kv{})

	first, outcome, err := svc.Trending(context.Background(), 7, 2)
	if err != nil || outcome != cache.OutcomeMiss {
		t.Fatalf("first: outcome %s err %v", outcome, err)
	}
	if ids := topicIDs(first); len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("top 2 = %v, want [1 2]", ids)
	}
	reads := f.reads.Load()

	second, outcome, err := svc.Trending(context.Background(), 7, 2)
	if err != nil || outcome != cache.OutcomeHit {
		t.Fatalf("second: outcome %s err %v", outcome, err)
	}
	if f.reads.Load() != reads {
		t.Error("store read on cache hit")
	}
	if ids := topicIDs(second); len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("cached top 2 = %v", ids)
	}
}

func TestServiceTrendingWithoutCacheMatchesEmptyCache(t *testing.T) {
	withCache, _ := newService(newForum(), kv{})
	noCache, _ := newService(newForum(), nil)

	a, _, err := withCache.Trending(context.Background(), 7, 10)
	if err != nil {
		t.Fatal(err)
	}
	b, outcome, err := noCache.Trending(context.Background(), 7, 10)
	if err != nil || outcome != cache.OutcomeUnavailable {
		t.Fatalf("outcome %s err %v", outcome, err)
	}
	ida, idb := topicIDs(a), topicIDs(b)
	if len(ida) != len(idb) {
		t.Fatalf("%v vs %v", ida, idb)
	}
	for i := range ida {
		if ida[i] != idb[i] {
			t.Errorf("%v vs %v", ida, idb)
			break
		}
	}
}

func TestServiceTrendingRejectsBadParameters(t *testing.T) {
	tests := []struct {
		name          string
		window, limit int
	}{
		{"zero window", 0, 10},
		{"negative limit", 7, -1},
		{"limit above maximum", 7, 101},
		{"window above maximum", 3651, 10},
		{"window overflows duration", 200000, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newForum()
			svc, _ := newService(f, kv{})
			_, _, err := svc.Trending(context.Background(), tt.window, tt.limit)
			if !errors.Is(err, apperrors.ErrInvalidParameter) {
				t.Fatalf("err = %v, want ErrInvalidParameter", err)
			}
			if apperrors.HTTPStatusCode(err) != 400 {
				t.Errorf("status = %d", apperrors.HTTPStatusCode(err))
			}
			if f.reads.Load() != 0 {
				t.Error("store read for invalid parameters")
			}
		})
	}
}

func TestServiceStoreFailure(t *testing.T) {
	f := newForum()
	f.err = apperrors.StoreUnavailable("listing topics", errors.New("connection refused"))
	store := kv{}
	svc, _ := newService(f, store)

	if _, err := svc.Search(context.Background(), "go"); !errors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Errorf("Search err = %v", err)
	}
	if _, _, err := svc.Trending(context.Background(), 7, 5); !errors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Errorf("Trending err = %v", err)
	}
	if len(store) != 0 {
		t.Error("failed ranking was cached")
	}
}

func TestServiceInvalidateCache(t *testing.T) {
	svc, _ := newService(newForum(), kv{})
	svc.Trending(context.Background(), 7, 5)

	n, err := svc.InvalidateCache(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("InvalidateCache = %d, %v", n, err)
	}
	if _, outcome, _ := svc.Trending(context.Background(), 7, 5); outcome != cache.OutcomeMiss {
		t.Errorf("outcome after invalidation = %s", outcome)
	}
	stats, enabled := svc.CacheStats()
	if !enabled || stats.Misses != 2 {
		t.Errorf("stats = %+v enabled = %v", stats, enabled)
	}
}
