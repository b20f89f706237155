package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/onnwee/provider-search/internal/tracing"
)

// DefaultTable is the provider table created by the migrations.
const DefaultTable = "providers"

// PostgresSource reads the corpus from a table of (npi, record JSONB) rows.
type PostgresSource struct {
	DB    *sql.DB
	Table string // defaults to DefaultTable
}

// Load selects every row ordered by npi so index builds are reproducible.
func (s PostgresSource) Load(ctx context.Context) (records []Record, err error) {
	table := s.table()
	ctx, endSpan := tracing.StartDBSpan(ctx, table, tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := fmt.Sprintf("SELECT npi, record FROM %s ORDER BY npi", pq.QuoteIdentifier(table))
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query providers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			npi string
			raw []byte
		)
		if err := rows.Scan(&npi, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan provider row: %w", err)
		}

		attrs, err := decodeAttributes(raw)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", npi, err)
		}
		records = append(records, Record{ID: npi, Attributes: attrs})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read provider rows: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("table %s: %w", table, ErrEmptyCorpus)
	}

	slog.Info("loaded provider corpus", "source", "postgres", "table", table, "count", len(records))
	return records, nil
}

// Insert upserts records into the table. Used by the indexer's import mode
// and by tests to seed a database.
func (s PostgresSource) Insert(ctx context.Context, records []Record) (err error) {
	table := s.table()
	ctx, endSpan := tracing.StartDBSpan(ctx, table, tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (npi, record) VALUES ($1, $2) ON CONFLICT (npi) DO UPDATE SET record = EXCLUDED.record, updated_at = NOW()",
		pq.QuoteIdentifier(table)))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		raw, err := marshalAttributes(r.Attributes)
		if err != nil {
			return fmt.Errorf("provider %s: %w", r.ID, err)
		}
		// JSONB takes text; lib/pq would send []byte as bytea.
		if _, err := stmt.ExecContext(ctx, r.ID, string(raw)); err != nil {
			return fmt.Errorf("failed to insert provider %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

func (s PostgresSource) table() string {
	if s.Table == "" {
		return DefaultTable
	}
	return s.Table
}
