package prefix

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/forum"
	apperrors "github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/text/unicode/norm"
)

func topic(id int64, title string) forum.Topic {
	return forum.Topic{ID: id, Title: title, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func ids(topics []forum.Topic) []int64 {
	out := make([]int64, len(topics))
	for i, t := range topics {
		out[i] = t.ID
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func seeded() *Index {
	idx := NewIndex()
	idx.Insert("Go Basics", topic(1, "Go Basics"))
	idx.Insert("Gophers", topic(2, "Gophers"))
	idx.Insert("Rust", topic(3, "Rust"))
	return idx
}

func TestIndexSearch(t *testing.T) {
	idx := seeded()
	tests := []struct {
		prefix string
		want   []int64
	}{
		{"go", []int64{1, 2}},
		{"GO", []int64{1, 2}},
		{"Go B", []int64{1}},
		{"gophers", []int64{2}},
		{"rust", []int64{3}},
		{"", []int64{1, 2, 3}},
		{"zzz", []int64{}},
		{"gophersx", []int64{}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.prefix), func(t *testing.T) {
			got := idx.Search(tt.prefix)
			if got == nil {
				t.Fatal("Search returned nil slice")
			}
			if !equalIDs(ids(got), tt.want) {
				t.Errorf("Search(%q) = %v, want %v", tt.prefix, ids(got), tt.want)
			}
		})
	}
}

func TestIndexEmpty(t *testing.T) {
	idx := NewIndex()
	if got := idx.Search(""); got == nil || len(got) != 0 {
		t.Errorf("empty index Search(\"\") = %v", got)
	}
}

func TestIndexUnicodeFolding(t *testing.T) {
	idx := NewIndex()
	idx.Insert("Straße", topic(1, "Straße"))
	idx.Insert("ÉCOLE", topic(2, "ÉCOLE"))
	// decomposed e + combining acute
	idx.Insert("e\u0301lan", topic(3, "e\u0301lan"))

	if got := ids(idx.Search("STRASS")); !equalIDs(got, []int64{1}) {
		t.Errorf("Search(STRASS) = %v, want [1]", got)
	}
	if got := ids(idx.Search("éc")); !equalIDs(got, []int64{2}) {
		t.Errorf("Search(éc) = %v, want [2]", got)
	}
	if got := ids(idx.Search("él")); !equalIDs(got, []int64{3}) {
		t.Errorf("Search(él) = %v, want [3]", got)
	}
}

func TestFoldIsNormalized(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		// U+01F0 folds to j + combining caron
		{"precomposed j caron", "\u01F0", "J\u030C"},
		{"precomposed and decomposed acute", "\u00C9cole", "e\u0301COLE"},
		{"sharp s", "STRASSE", "straße"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa, fb := Fold(tt.a), Fold(tt.b)
			if fa != fb {
				t.Errorf("Fold(%q) = %q, Fold(%q) = %q; want equal", tt.a, fa, tt.b, fb)
			}
			if !norm.NFC.IsNormalString(fa) {
				t.Errorf("Fold(%q) = %q is not NFC", tt.a, fa)
			}
		})
	}

	idx := NewIndex()
	idx.Insert("J\u030Cudo", topic(1, "J\u030Cudo"))
	if got := ids(idx.Search("\u01F0u")); !equalIDs(got, []int64{1}) {
		t.Errorf("Search(\u01F0u) = %v, want [1]", got)
	}
}

func TestIndexDuplicateTitleLastWriterWins(t *testing.T) {
	idx := NewIndex()
	idx.Insert("Go Basics", topic(1, "Go Basics"))
	idx.Insert("go basics", topic(7, "go basics"))

	got := idx.Search("go")
	if len(got) != 1 || got[0].ID != 7 {
		t.Errorf("Search(go) = %v, want only topic 7", ids(got))
	}
	if idx.Len() != 1 {
		t.Errorf("Len() = %d, want 1", idx.Len())
	}
}

func TestIndexPrefixOfAnotherTitle(t *testing.T) {
	idx := NewIndex()
	idx.Insert("Go", topic(1, "Go"))
	idx.Insert("Gophers", topic(2, "Gophers"))

	if got := ids(idx.Search("go")); !equalIDs(got, []int64{1, 2}) {
		t.Errorf("Search(go) = %v, want [1 2]", got)
	}
	if got := ids(idx.Search("gop")); !equalIDs(got, []int64{2}) {
		t.Errorf("Search(gop) = %v, want [2]", got)
	}
}

func TestIndexReset(t *testing.T) {
	idx := seeded()
	if idx.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", idx.Len())
	}
	idx.Reset()
	if idx.Len() != 0 || len(idx.Search("")) != 0 {
		t.Error("index not empty after Reset")
	}
}

func TestIndexConcurrentAccess(t *testing.T) {
	idx := NewIndex()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := int64(w*1000 + i)
				idx.Insert(fmt.Sprintf("topic %d", id), topic(id, ""))
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				idx.Search("topic")
			}
		}()
	}
	wg.Wait()
	if idx.Len() != 800 {
		t.Errorf("Len() = %d, want 800", idx.Len())
	}
}

type fakeLister struct {
	topics []forum.Topic
	err    error
	calls  int
}

func (f *fakeLister) ListTopics(context.Context) ([]forum.Topic, error) {
	f.calls++
	return f.topics, f.err
}

func TestSearcherRebuildsPerCall(t *testing.T) {
	store := &fakeLister{topics: []forum.Topic{topic(1, "Go Basics"), topic(2, "Gophers"), topic(3, "Rust")}}
	m := metrics.New(prometheus.NewRegistry())
	s := NewSearcher(store, m)

	got, err := s.Search(context.Background(), "go")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !equalIDs(ids(got), []int64{1, 2}) {
		t.Errorf("Search(go) = %v", ids(got))
	}
	if v := testutil.ToFloat64(m.IndexTopics); v != 3 {
		t.Errorf("index_topics = %v, want 3", v)
	}

	store.topics = append(store.topics, topic(4, "Go Generics"))
	got, err = s.Search(context.Background(), "go")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !equalIDs(ids(got), []int64{1, 2, 4}) {
		t.Errorf("after insert Search(go) = %v", ids(got))
	}
	if store.calls != 2 {
		t.Errorf("store calls = %d, want 2", store.calls)
	}
}

func TestSearcherStoreFailure(t *testing.T) {
	store := &fakeLister{err: apperrors.StoreUnavailable("listing topics", errors.New("connection refused"))}
	s := NewSearcher(store, nil)

	got, err := s.Search(context.Background(), "go")
	if !errors.Is(err, apperrors.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	if got != nil {
		t.Errorf("got %v on failure", got)
	}
}
