// Package benchmark contains Go benchmarks for the prefix index and the
// trending ranker, measuring throughput and allocation behaviour.
package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/discovery/prefix"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/forum"
)

var benchTitles = []string{
	"Go Basics", "Gophers unite", "Generics in Go", "Goroutine leaks",
	"Rust ownership", "Rust async", "Python packaging", "PostgreSQL indexes",
	"Redis eviction", "Kafka consumer groups",
}

func makeTopics(n int) []forum.Topic {
	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	topics := make([]forum.Topic, n)
	for i := range topics {
		topics[i] = forum.Topic{
			ID:        int64(i + 1),
			Title:     fmt.Sprintf("%s #%d", benchTitles[i%len(benchTitles)], i),
			CreatedAt: created.Add(-time.Duration(i%30) * 24 * time.Hour),
		}
	}
	return topics
}

type staticTopics []forum.Topic

func (s staticTopics) ListTopics(context.Context) ([]forum.Topic, error) { return s, nil }

// BenchmarkIndexInsert measures per-title insert throughput.
func BenchmarkIndexInsert(b *testing.B) {
	topics := makeTopics(10000)
	idx := prefix.NewIndex()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		t := topics[i%len(topics)]
		idx.Insert(t.Title, t)
	}
}

// BenchmarkIndexSearch measures a short-prefix lookup over 10 000 titles.
func BenchmarkIndexSearch(b *testing.B) {
	idx := prefix.NewIndex()
	for _, t := range makeTopics(10000) {
		idx.Insert(t.Title, t)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = idx.Search("go")
	}
}

// BenchmarkIndexSearchParallel measures concurrent read throughput.
func BenchmarkIndexSearchParallel(b *testing.B) {
	idx := prefix.NewIndex()
	for _, t := range makeTopics(10000) {
		idx.Insert(t.Title, t)
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = idx.Search("rust a")
		}
	})
}

// BenchmarkSearcherRebuild measures a full search including the per-query
// index rebuild, for varying store sizes.
func BenchmarkSearcherRebuild(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("topics=%d", n), func(b *testing.B) {
			s := prefix.NewSearcher(staticTopics(makeTopics(n)), nil)
			ctx := context.Background()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := s.Search(ctx, "go"); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkFold measures title normalization.
func BenchmarkFold(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = prefix.Fold("Straße der Gophers: ÉCOLE")
	}
}
