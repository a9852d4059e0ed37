// Package store reads topics and comment counts from the forum's PostgreSQL
// database. The forum owns the schema; this package never writes.
//
// Expected tables:
//
//	CREATE TABLE topics (
//	    id         BIGSERIAL PRIMARY KEY,
//	    title      TEXT NOT NULL,
//	    content    TEXT NOT NULL,
//	    user_id    BIGINT NOT NULL,
//	    created_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc'),
//	    is_locked  BOOLEAN NOT NULL DEFAULT FALSE
//	);
//	CREATE TABLE comments (
//	    id         BIGSERIAL PRIMARY KEY,
//	    topic_id   BIGINT NOT NULL REFERENCES topics(id),
//	    created_at TIMESTAMP NOT NULL DEFAULT (NOW() AT TIME ZONE 'utc')
//	);
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/topic-discovery/internal/forum"
	apperrors "github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/resilience"
)

// Store serves topic and comment reads. Every query is bounded by the
// client's query timeout and any failure is reported as ErrStoreUnavailable.
type Store struct {
	db      *sql.DB
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Store over an open Postgres client.
func New(client *postgres.Client) *Store {
	return &Store{
		db:      client.DB,
		timeout: client.QueryTimeout(),
		logger:  slog.Default().With("component", "forum-store"),
	}
}

// ListTopics returns every topic ordered by id.
func (s *Store) ListTopics(ctx context.Context) ([]forum.Topic, error) {
	topics, err := resilience.Call(ctx, s.timeout, "list topics", func(ctx context.Context) ([]forum.Topic, error) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, title, content, user_id, created_at, is_locked
			 FROM topics
			 ORDER BY id`,
		)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		topics := make([]forum.Topic, 0, 64)
		for rows.Next() {
			var t forum.Topic
			if err := rows.Scan(&t.ID, &t.Title, &t.Content, &t.UserID, &t.CreatedAt, &t.IsLocked); err != nil {
				return nil, fmt.Errorf("scanning topic row: %w", err)
			}
			t.CreatedAt = t.CreatedAt.UTC()
			topics = append(topics, t)
		}
		return topics, rows.Err()
	})
	if err != nil {
		return nil, apperrors.StoreUnavailable("listing topics", err)
	}
	s.logger.Debug("topics listed", "count", len(topics))
	return topics, nil
}

// CountComments returns the number of comments per topic id created at or
// after since. A zero since counts every comment. Topics without comments
// are absent from the map.
func (s *Store) CountComments(ctx context.Context, since time.Time) (map[int64]int, error) {
	query := `SELECT topic_id, COUNT(id) FROM comments GROUP BY topic_id`
	var args []any
	if !since.IsZero() {
		query = `SELECT topic_id, COUNT(id) FROM comments WHERE created_at >= $1 GROUP BY topic_id`
		args = append(args, since.UTC())
	}

	counts, err := resilience.Call(ctx, s.timeout, "count comments", func(ctx context.Context) (map[int64]int, error) {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		counts := make(map[int64]int)
		for rows.Next() {
			var topicID int64
			var n int
			if err := rows.Scan(&topicID, &n); err != nil {
				return nil, fmt.Errorf("scanning comment count row: %w", err)
			}
			counts[topicID] = n
		}
		return counts, rows.Err()
	})
	if err != nil {
		return nil, apperrors.StoreUnavailable("counting comments", err)
	}
	return counts, nil
}
