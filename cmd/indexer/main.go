// Package main is the entry point for the provider index builder.
//
// The indexer loads the provider corpus from the configured source and writes
// the bleve indexes the API server searches. With -import it first copies a
// JSONL corpus file into the PostgreSQL providers table.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/onnwee/provider-search/internal/config"
	"github.com/onnwee/provider-search/internal/corpus"
	"github.com/onnwee/provider-search/internal/db"
	"github.com/onnwee/provider-search/internal/middleware"
	"github.com/onnwee/provider-search/internal/retrieval"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (environment variables override it)")
	importPath := flag.String("import", "", "JSONL corpus file to upsert into the providers table before indexing")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Provider Search Indexer")
		fmt.Println()
		fmt.Println("Usage: indexer [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			slog.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *importPath, logger); err != nil {
		logger.Error("indexing failed", "error", err)
		os.Exit(1)
	}
}

// run optionally imports a JSONL file into PostgreSQL, then rebuilds the index
// from the configured corpus source.
func run(ctx context.Context, cfg *config.Config, importPath string, logger *slog.Logger) error {
	var pool *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		pool, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	if importPath != "" {
		if pool == nil {
			return fmt.Errorf("-import requires DATABASE_URL")
		}
		records, err := corpus.FileSource{Path: importPath}.Load(ctx)
		if err != nil {
			return err
		}
		dst := corpus.PostgresSource{DB: pool, Table: cfg.ProvidersTable}
		if err := dst.Insert(ctx, records); err != nil {
			return fmt.Errorf("failed to import corpus: %w", err)
		}
		logger.Info("imported providers", "file", importPath, "table", cfg.ProvidersTable, "count", len(records))
	}

	source, err := corpus.NewSource(cfg, pool)
	if err != nil {
		return err
	}
	records, err := source.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}
	logger.Info("loaded corpus", "source", cfg.CorpusSource, "count", len(records))

	idx, err := retrieval.Build(ctx, cfg.IndexDir, records)
	if err != nil {
		return err
	}
	defer idx.Close()

	n, err := idx.DocCount()
	if err != nil {
		return err
	}
	logger.Info("index built", "dir", cfg.IndexDir, "documents", n, "methods", retrieval.Methods())
	return nil
}
