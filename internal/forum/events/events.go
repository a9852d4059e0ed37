// Package events consumes forum change events from Kafka. A change to any
// topic or comment can move the trending ranking, so recognised events may
// drop the cached rankings before their TTL runs out.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/metrics"
)

type Type string

const (
	TopicCreated   Type = "topic.created"
	TopicUpdated   Type = "topic.updated"
	TopicDeleted   Type = "topic.deleted"
	CommentCreated Type = "comment.created"
	CommentDeleted Type = "comment.deleted"
)

func (t Type) known() bool {
	switch t {
	case TopicCreated, TopicUpdated, TopicDeleted, CommentCreated, CommentDeleted:
		return true
	}
	return false
}

// ForumEvent is the payload of a message on the forum events topic.
type ForumEvent struct {
	Type       Type      `json:"type"`
	TopicID    int64     `json:"topic_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Invalidator drops cached trending rankings.
type Invalidator interface {
	InvalidateCache(ctx context.Context) (int64, error)
}

// NewHandler returns a MessageHandler that counts forum events and, when
// invalidate is set, clears the trending cache on every recognised one.
// Malformed messages and failed invalidations are logged and acknowledged.
func NewHandler(inv Invalidator, invalidate bool, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "forum-events")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ForumEvent](value)
		if err != nil {
			logger.Warn("skipping malformed forum event", "key", string(key), "error", err)
			count(m, "malformed")
			return nil
		}
		if !event.Type.known() {
			logger.Debug("ignoring unknown forum event", "type", event.Type)
			count(m, "unknown")
			return nil
		}
		count(m, string(event.Type))
		if !invalidate {
			return nil
		}

		deleted, err := inv.InvalidateCache(ctx)
		if err != nil {
			logger.Warn("trending cache invalidation failed", "type", event.Type, "topic_id", event.TopicID, "error", err)
			return nil
		}
		logger.Debug("trending cache invalidated", "type", event.Type, "topic_id", event.TopicID, "keys_deleted", deleted)
		return nil
	}
}

func count(m *metrics.Metrics, label string) {
	if m != nil {
		m.ForumEventsTotal.WithLabelValues(label).Inc()
	}
}
