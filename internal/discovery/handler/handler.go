// Package handler exposes the discovery service over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/discovery/cache"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/forum"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/middleware"
)

// Discovery is the service the handler serves.
type Discovery interface {
	Search(ctx context.Context, prefix string) ([]forum.Topic, error)
	Trending(ctx context.Context, window, maxTopics int) ([]forum.Topic, cache.Outcome, error)
	CacheStats() (cache.Stats, bool)
	InvalidateCache(ctx context.Context) (int64, error)
}

// Tracker records served queries. *analytics.Collector implements it.
type Tracker interface {
	Track(event analytics.QueryEvent)
}

type Handler struct {
	svc           Discovery
	tracker       Tracker
	defaultWindow int
	defaultLimit  int
	logger        *slog.Logger
}

// New creates a Handler. tracker may be nil to disable analytics.
func New(svc Discovery, tracker Tracker, cfg config.DiscoveryConfig) *Handler {
	return &Handler{
		svc:           svc,
		tracker:       tracker,
		defaultWindow: cfg.DefaultWindowDays,
		defaultLimit:  cfg.DefaultMaxTopics,
		logger:        slog.Default().With("component", "discovery-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/topics/search", h.Search)
	mux.HandleFunc("GET /api/v1/topics/trending", h.Trending)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

type searchResponse struct {
	Prefix string        `json:"prefix"`
	Count  int           `json:"count"`
	Topics []forum.Topic `json:"topics"`
}

type trendingResponse struct {
	Window int           `json:"window"`
	Limit  int           `json:"limit"`
	Cache  string        `json:"cache"`
	Topics []forum.Topic `json:"topics"`
}

// cacheStatsResponse has one shape whether or not a cache is configured.
// HitRate is hits over hits plus misses, 0 before any lookup.
type cacheStatsResponse struct {
	Enabled bool    `json:"enabled"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hit_rate"`
	Breaker string  `json:"breaker,omitempty"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	prefix := r.URL.Query().Get("prefix")

	topics, err := h.svc.Search(ctx, prefix)
	if err != nil {
		log.Error("prefix search failed", "prefix", prefix, "error", err)
		h.writeServiceError(w, err)
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	log.Info("prefix search completed",
		"prefix", prefix,
		"returned", len(topics),
		"latency_ms", latencyMs,
	)
	if h.tracker != nil {
		eventType := analytics.EventSearch
		if len(topics) == 0 {
			eventType = analytics.EventZeroResult
		}
		h.tracker.Track(analytics.QueryEvent{
			Type:      eventType,
			Prefix:    prefix,
			Returned:  len(topics),
			LatencyMs: latencyMs,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, searchResponse{Prefix: prefix, Count: len(topics), Topics: topics})
}

func (h *Handler) Trending(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	window, err := intParam(r, "window", h.defaultWindow)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := intParam(r, "limit", h.defaultLimit)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	topics, outcome, err := h.svc.Trending(ctx, window, limit)
	if err != nil {
		log.Error("trending failed", "window", window, "limit", limit, "error", err)
		h.writeServiceError(w, err)
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	log.Info("trending completed",
		"window", window,
		"limit", limit,
		"returned", len(topics),
		"cache", outcome.String(),
		"latency_ms", latencyMs,
	)
	if h.tracker != nil {
		h.tracker.Track(analytics.QueryEvent{
			Type:         analytics.EventTrending,
			Window:       window,
			Limit:        limit,
			Returned:     len(topics),
			CacheOutcome: outcome.String(),
			LatencyMs:    latencyMs,
			Timestamp:    time.Now().UTC(),
			RequestID:    middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, trendingResponse{
		Window: window,
		Limit:  limit,
		Cache:  outcome.String(),
		Topics: topics,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats, enabled := h.svc.CacheStats()
	resp := cacheStatsResponse{Enabled: enabled}
	if enabled {
		resp.Hits = stats.Hits
		resp.Misses = stats.Misses
		resp.Total = stats.Hits + stats.Misses
		resp.Breaker = stats.Breaker
		if resp.Total > 0 {
			resp.HitRate = float64(stats.Hits) / float64(resp.Total)
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if _, enabled := h.svc.CacheStats(); !enabled {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.svc.InvalidateCache(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return v, nil
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := http.StatusText(status)
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeError(w, status, message)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
