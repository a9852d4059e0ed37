// Package analytics publishes discovery query events to Kafka for offline
// analysis. Publishing is best effort and never affects query results.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventTrending   EventType = "trending"
	EventZeroResult EventType = "zero_result"
)

// QueryEvent describes one served discovery request. Prefix is set for
// searches; Window, Limit and CacheOutcome for trending requests.
type QueryEvent struct {
	Type         EventType `json:"type"`
	Prefix       string    `json:"prefix,omitempty"`
	Window       int       `json:"window,omitempty"`
	Limit        int       `json:"limit,omitempty"`
	Returned     int       `json:"returned"`
	CacheOutcome string    `json:"cache_outcome,omitempty"`
	LatencyMs    int64     `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id,omitempty"`
}
