//go:build integration

// Integration tests for PostgresSource. They start a throwaway PostgreSQL
// container, apply the provider migration, and round-trip records.
//
// Run with: go test -tags=integration -v ./internal/corpus/...
// Requires a working Docker daemon.
package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("providers"),
		postgres.WithUsername("search"),
		postgres.WithPassword("search"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	migration, err := os.ReadFile(filepath.Join("..", "..", "migrations", "000001_create_providers.up.sql"))
	if err != nil {
		t.Fatalf("failed to read migration: %v", err)
	}
	if _, err := db.ExecContext(ctx, string(migration)); err != nil {
		t.Fatalf("failed to apply migration: %v", err)
	}
	return db
}

func TestPostgresSource_RoundTrip(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	src := PostgresSource{DB: db}

	if _, err := src.Load(ctx); !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus on empty table, got %v", err)
	}

	input, err := DecodeJSONL(strings.NewReader(sampleJSONL))
	if err != nil {
		t.Fatalf("DecodeJSONL: %v", err)
	}
	if err := src.Insert(ctx, input); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	// Upsert must not duplicate.
	if err := src.Insert(ctx, input); err != nil {
		t.Fatalf("second Insert: %v", err)
	}

	records, err := src.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "1234567890" {
		t.Errorf("expected records ordered by npi, got %q first", records[0].ID)
	}
	if _, ok := records[0].Attributes["average_rating"].(json.Number); !ok {
		t.Errorf("expected json.Number attributes, got %T", records[0].Attributes["average_rating"])
	}
}

func TestPostgresSource_RejectsNonObjectRecord(t *testing.T) {
	db := startPostgres(t)
	_, err := db.Exec(`INSERT INTO providers (npi, record) VALUES ('1', '[1,2]'::jsonb)`)
	if err == nil {
		t.Fatal("expected check constraint violation for non-object record")
	}
}
