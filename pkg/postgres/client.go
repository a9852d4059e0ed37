// Package postgres opens the lib/pq connection pool used to read the forum
// record store and bounds every query with a configurable timeout.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/config"
	_ "github.com/lib/pq"
)

const defaultQueryTimeout = 5 * time.Second

type Client struct {
	DB  *sql.DB
	cfg config.PostgresConfig
}

func New(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db, cfg: cfg}, nil
}

// QueryTimeout is the upper bound applied to a single store query.
func (c *Client) QueryTimeout() time.Duration {
	if c.cfg.QueryTimeout <= 0 {
		return defaultQueryTimeout
	}
	return c.cfg.QueryTimeout
}

// Ping checks connectivity; used by readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.DB.Close()
}
