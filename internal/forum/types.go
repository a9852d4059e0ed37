// Package forum defines the read-only snapshots of forum records that the
// discovery service works on.
package forum

import "time"

// Topic is an immutable snapshot of a forum topic row. Its JSON form is also
// the trending cache wire format.
type Topic struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	IsLocked  bool      `json:"is_locked"`
}

// Activity is a topic together with its comment counts, the input of a
// trending computation.
type Activity struct {
	Topic          Topic
	RecentComments int
	TotalComments  int
}
