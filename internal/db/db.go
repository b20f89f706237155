// Package db opens the PostgreSQL connection pool used by the provider corpus
// source and the readiness probe.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DriverName is the database/sql driver registered by lib/pq.
const DriverName = "postgres"

// Pool settings. The corpus is read once at startup and the readiness probe
// pings periodically, so a small pool is enough.
const (
	MaxOpenConns    = 5
	MaxIdleConns    = 2
	ConnMaxLifetime = 30 * time.Minute
)

// Open opens a connection pool for url and verifies it with a ping bounded by ctx.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	pool, err := sql.Open(DriverName, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	pool.SetMaxOpenConns(MaxOpenConns)
	pool.SetMaxIdleConns(MaxIdleConns)
	pool.SetConnMaxLifetime(ConnMaxLifetime)

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}
