// Package health provides readiness checks for the service's dependencies.
package health

import (
	"context"
	"database/sql"
	"fmt"
)

// DBChecker checks that PostgreSQL is reachable and the provider table exists.
type DBChecker struct {
	db    *sql.DB
	table string
}

// NewDBChecker creates a checker for db. An empty table only pings.
func NewDBChecker(db *sql.DB, table string) *DBChecker {
	return &DBChecker{
		db:    db,
		table: table,
	}
}

// HealthCheck pings the database and, when a table is set, verifies it is visible.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return err
	}
	if d.table == "" {
		return nil
	}

	var name sql.NullString
	if err := d.db.QueryRowContext(ctx, "SELECT to_regclass($1)::text", d.table).Scan(&name); err != nil {
		return fmt.Errorf("check table %s: %w", d.table, err)
	}
	if !name.Valid {
		return fmt.Errorf("table %s does not exist", d.table)
	}
	return nil
}
