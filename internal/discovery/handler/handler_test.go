package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/discovery/cache"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/forum"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/middleware"
)

var created = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

type fakeDiscovery struct {
	topics      []forum.Topic
	outcome     cache.Outcome
	err         error
	cacheOn     bool
	stats       cache.Stats
	gotWindow   int
	gotLimit    int
	invalidated int
}

func (f *fakeDiscovery) Search(_ context.Context, prefix string) ([]forum.Topic, error) {
	if f.err != nil {
		return nil, f.err
	}
	if prefix == "zzz" {
		return []forum.Topic{}, nil
	}
	return f.topics, nil
}

func (f *fakeDiscovery) Trending(_ context.Context, window, maxTopics int) ([]forum.Topic, cache.Outcome, error) {
	f.gotWindow, f.gotLimit = window, maxTopics
	if f.err != nil {
		return nil, f.outcome, f.err
	}
	if maxTopics > 100 {
		return nil, cache.OutcomeUnavailable, apperrors.InvalidParameter("limit must not exceed 100, got %d", maxTopics)
	}
	return f.topics, f.outcome, nil
}

func (f *fakeDiscovery) CacheStats() (cache.Stats, bool) { return f.stats, f.cacheOn }

func (f *fakeDiscovery) InvalidateCache(context.Context) (int64, error) {
	f.invalidated++
	return 4, nil
}

type fakeTracker struct {
	mu     sync.Mutex
	events []analytics.QueryEvent
}

func (t *fakeTracker) Track(e analytics.QueryEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}

func newTestServer(svc *fakeDiscovery, tracker Tracker) http.Handler {
	cfg := config.Default().Discovery
	mux := http.NewServeMux()
	New(svc, tracker, cfg).Register(mux)
	return middleware.RequestID(mux)
}

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	h.ServeHTTP(rec, req)
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding %s %s: %v", method, target, err)
	}
	return rec, body
}

func sampleTopics() []forum.Topic {
	return []forum.Topic{
		{ID: 1, Title: "Go Basics", Content: "intro", UserID: 9, CreatedAt: created},
		{ID: 2, Title: "Gophers", UserID: 9, CreatedAt: created},
	}
}

func TestSearchEndpoint(t *testing.T) {
	tracker := &fakeTracker{}
	srv := newTestServer(&fakeDiscovery{topics: sampleTopics()}, tracker)

	rec, body := do(t, srv, http.MethodGet, "/api/v1/topics/search?prefix=go")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["prefix"] != "go" || body["count"] != float64(2) {
		t.Errorf("body = %v", body)
	}
	topics := body["topics"].([]any)
	first := topics[0].(map[string]any)
	if first["title"] != "Go Basics" || first["created_at"] != "2024-06-01T00:00:00Z" || first["is_locked"] != false {
		t.Errorf("topic = %v", first)
	}

	rec, body = do(t, srv, http.MethodGet, "/api/v1/topics/search?prefix=zzz")
	if rec.Code != http.StatusOK || body["count"] != float64(0) {
		t.Errorf("zzz: status %d body %v", rec.Code, body)
	}
	if topics, ok := body["topics"].([]any); !ok || len(topics) != 0 {
		t.Errorf("zzz topics = %v, want []", body["topics"])
	}

	if len(tracker.events) != 2 {
		t.Fatalf("tracked %d events", len(tracker.events))
	}
	if tracker.events[0].Type != analytics.EventSearch || tracker.events[0].RequestID != "req-42" {
		t.Errorf("event = %+v", tracker.events[0])
	}
	if tracker.events[1].Type != analytics.EventZeroResult {
		t.Errorf("zero-result event type = %s", tracker.events[1].Type)
	}
}

func TestTrendingEndpoint(t *testing.T) {
	svc := &fakeDiscovery{topics: sampleTopics(), outcome: cache.OutcomeHit}
	tracker := &fakeTracker{}
	srv := newTestServer(svc, tracker)

	rec, body := do(t, srv, http.MethodGet, "/api/v1/topics/trending")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.gotWindow != 7 || svc.gotLimit != 10 {
		t.Errorf("defaults = (%d, %d), want (7, 10)", svc.gotWindow, svc.gotLimit)
	}
	if body["cache"] != "hit" || body["window"] != float64(7) || body["limit"] != float64(10) {
		t.Errorf("body = %v", body)
	}

	do(t, srv, http.MethodGet, "/api/v1/topics/trending?window=30&limit=3")
	if svc.gotWindow != 30 || svc.gotLimit != 3 {
		t.Errorf("params = (%d, %d), want (30, 3)", svc.gotWindow, svc.gotLimit)
	}
	if ev := tracker.events[1]; ev.Type != analytics.EventTrending || ev.CacheOutcome != "hit" || ev.Window != 30 {
		t.Errorf("event = %+v", ev)
	}
}

func TestTrendingErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		want   int
	}{
		{"non-numeric window", "/api/v1/topics/trending?window=abc", nil, http.StatusBadRequest},
		{"zero limit", "/api/v1/topics/trending?limit=0", nil, http.StatusBadRequest},
		{"limit above maximum", "/api/v1/topics/trending?limit=500", nil, http.StatusBadRequest},
		{"store unavailable", "/api/v1/topics/trending", apperrors.StoreUnavailable("listing topics", errors.New("refused")), http.StatusServiceUnavailable},
		{"store timeout", "/api/v1/topics/trending", apperrors.StoreUnavailable("listing topics", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"unexpected", "/api/v1/topics/trending", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := &fakeTracker{}
			srv := newTestServer(&fakeDiscovery{err: tt.err}, tracker)
			rec, body := do(t, srv, http.MethodGet, tt.target)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if _, ok := body["error"]; !ok {
				t.Errorf("body has no error field: %v", body)
			}
			if len(tracker.events) != 0 {
				t.Error("failed request was tracked")
			}
		})
	}
}

func TestCacheEndpoints(t *testing.T) {
	svc := &fakeDiscovery{cacheOn: true, stats: cache.Stats{Hits: 3, Misses: 1, Breaker: "closed"}}
	srv := newTestServer(svc, nil)

	rec, body := do(t, srv, http.MethodGet, "/api/v1/cache/stats")
	if rec.Code != http.StatusOK || body["enabled"] != true || body["hit_rate"] != 0.75 || body["total"] != float64(4) || body["breaker"] != "closed" {
		t.Errorf("stats: status %d body %v", rec.Code, body)
	}

	rec, body = do(t, srv, http.MethodPost, "/api/v1/cache/invalidate")
	if rec.Code != http.StatusOK || body["keys_deleted"] != float64(4) || svc.invalidated != 1 {
		t.Errorf("invalidate: status %d body %v", rec.Code, body)
	}

	disabled := newTestServer(&fakeDiscovery{}, nil)
	rec, body = do(t, disabled, http.MethodGet, "/api/v1/cache/stats")
	if rec.Code != http.StatusOK || body["enabled"] != false || body["hits"] != float64(0) || body["hit_rate"] != float64(0) {
		t.Errorf("disabled stats: status %d body %v", rec.Code, body)
	}
	if _, ok := body["breaker"]; ok {
		t.Errorf("disabled stats report a breaker: %v", body)
	}
	if rec, _ := do(t, disabled, http.MethodPost, "/api/v1/cache/invalidate"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled invalidate status = %d", rec.Code)
	}
}
